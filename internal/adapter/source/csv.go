package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/arturoeanton/go-survey-indexer/internal/domain"
	"github.com/arturoeanton/go-survey-indexer/internal/port"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var columnReplacer = strings.NewReplacer(".", "_", "/", "_", "(", "", ")", "", " ", "_")

// SanitizeColumn turns a header cell into a key that is safe as a document field name.
func SanitizeColumn(raw string) string {
	return columnReplacer.Replace(strings.TrimSpace(raw))
}

// LoadResponses reads the response file at path.
func LoadResponses(path string) (*domain.ResponseTable, error) {
	records, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ParseResponses(records)
}

// ParseResponses converts raw CSV records (header first) into a response table.
// Short rows are padded and long rows truncated to the header width.
func ParseResponses(records [][]string) (*domain.ResponseTable, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("parse responses: missing header row")
	}

	header := records[0]
	table := &domain.ResponseTable{Columns: make([]domain.Column, len(header))}
	seen := make(map[string]int, len(header))
	for i, raw := range header {
		name := SanitizeColumn(raw)
		if name == "" {
			name = fmt.Sprintf("column_%d", i)
		}
		// Two headers may collapse to the same key once sanitised.
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}
		table.Columns[i] = domain.Column{Raw: strings.TrimSpace(raw), Name: name}
	}

	for i, rec := range records[1:] {
		// Records without values keep their row number.
		if isBlank(rec) {
			continue
		}
		row := domain.ResponseRow{Index: i, Values: make(map[string]string, len(header))}
		for j, col := range table.Columns {
			if j >= len(rec) {
				break
			}
			v := strings.TrimSpace(rec[j])
			if v == "" {
				continue
			}
			row.Values[col.Name] = v
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// LoadQuestionFile returns the raw records of the question metadata file.
func LoadQuestionFile(path string) ([][]string, error) {
	return readFile(path)
}

func readFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", port.ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

// ReadRecords reads all CSV records from r, dropping a leading UTF-8 BOM.
func ReadRecords(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
