package service

import (
	"sync"
	"time"
)

// Run states.
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunError    = "error"
)

// RunStatus is a snapshot of an indexing run.
type RunStatus struct {
	ID          string    `json:"id"`
	Index       string    `json:"index"`
	Status      string    `json:"status"`
	Processed   int       `json:"processed"`
	Total       int       `json:"total"`
	Built       int       `json:"built"`
	Skipped     int       `json:"skipped"`
	Indexed     int       `json:"indexed"`
	Failed      int       `json:"failed"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// Done reports whether the run has finished.
func (s RunStatus) Done() bool {
	return s.Status == RunComplete || s.Status == RunError
}

// RunTracker keeps run progress in memory and fans updates out to subscribers.
type RunTracker struct {
	mu     sync.RWMutex
	runs   map[string]*RunStatus
	subs   map[string][]chan RunStatus
	latest string
}

// NewRunTracker creates a new run tracker.
func NewRunTracker() *RunTracker {
	return &RunTracker{
		runs: make(map[string]*RunStatus),
		subs: make(map[string][]chan RunStatus),
	}
}

// Start registers a new running run.
func (t *RunTracker) Start(id, index string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[id] = &RunStatus{
		ID:        id,
		Index:     index,
		Status:    RunRunning,
		StartedAt: time.Now(),
	}
	t.latest = id
}

// Update applies fn to the run and notifies subscribers.
func (t *RunTracker) Update(id string, fn func(s *RunStatus)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	run, ok := t.runs[id]
	if !ok {
		return
	}
	fn(run)
	if run.Done() && run.CompletedAt.IsZero() {
		run.CompletedAt = time.Now()
	}
	snapshot := *run

	// Non-blocking sends under the lock; Unsubscribe closes channels under the same lock.
	for _, ch := range t.subs[id] {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// Get returns a run snapshot.
func (t *RunTracker) Get(id string) (*RunStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	run, ok := t.runs[id]
	if !ok {
		return nil, false
	}
	snapshot := *run
	return &snapshot, true
}

// Latest returns a snapshot of the most recently started run.
func (t *RunTracker) Latest() (*RunStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	run, ok := t.runs[t.latest]
	if !ok {
		return nil, false
	}
	snapshot := *run
	return &snapshot, true
}

// Subscribe returns a channel that receives run updates.
func (t *RunTracker) Subscribe(id string) chan RunStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan RunStatus, 16)
	t.subs[id] = append(t.subs[id], ch)
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (t *RunTracker) Unsubscribe(id string, ch chan RunStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.subs[id]
	for i, s := range subs {
		if s == ch {
			t.subs[id] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(t.subs[id]) == 0 {
		delete(t.subs, id)
	}
}
