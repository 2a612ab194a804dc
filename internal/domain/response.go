package domain

// Column is one header cell of the response file.
type Column struct {
	Raw  string `json:"raw"`  // header text as it appears in the file
	Name string `json:"name"` // sanitised name used as a document key
}

// ResponseRow holds one respondent's raw answers keyed by sanitised column name.
// Empty cells are absent from Values.
type ResponseRow struct {
	Index  int               `json:"index"` // zero-based data row number
	Values map[string]string `json:"values"`
}

// Get returns the value stored for column name.
func (r ResponseRow) Get(name string) (string, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// ResponseTable is the parsed response file.
type ResponseTable struct {
	Columns []Column      `json:"columns"`
	Rows    []ResponseRow `json:"rows"`
}
