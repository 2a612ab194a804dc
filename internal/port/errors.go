package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrSourceNotFound      = errors.New("source file not found")
	ErrMalformedMetadata   = errors.New("malformed question metadata")
	ErrDimensionMismatch   = errors.New("embedding dimension mismatch")
	ErrEmptyEmbedding      = errors.New("empty embedding")
	ErrEmptySummary        = errors.New("empty summary")
	ErrIndexCreate         = errors.New("index creation failed")
	ErrRunInProgress       = errors.New("indexing run already in progress")
	ErrRunNotFound         = errors.New("run not found")
	ErrUnknownIndexBackend = errors.New("unknown index backend")
)
