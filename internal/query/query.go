package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nlqgate/nlqgate/internal/sqlguard"
)

// Cell is one column value of a row. Value is nil for a database NULL.
type Cell struct {
	Column string
	Value  any
}

// Row keeps the backend's column order. It encodes to a JSON object with
// keys in that order.
type Row []Cell

// Get looks a column up case-insensitively.
func (r Row) Get(column string) (any, bool) {
	for _, cell := range r {
		if strings.EqualFold(cell.Column, column) {
			return cell.Value, true
		}
	}
	return nil, false
}

// String returns the column as text, or fallback when the column is absent
// or NULL.
func (r Row) String(column, fallback string) string {
	value, ok := r.Get(column)
	if !ok || value == nil {
		return fallback
	}
	switch typed := value.(type) {
	case string:
		return typed
	case time.Time:
		return typed.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(typed)
	}
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cell := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(cell.Column)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(cell.Value)
		if err != nil {
			return nil, fmt.Errorf("encode column %q: %w", cell.Column, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row must be a JSON object")
	}
	out := Row{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("row key must be a string")
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode column %q: %w", key, err)
		}
		out = append(out, Cell{Column: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

// Result is the outcome of one executor call. RowCount always equals
// len(Rows).
type Result struct {
	Successful  bool     `json:"isSuccessful"`
	Error       string   `json:"errorMessage,omitempty"`
	Columns     []string `json:"columns,omitempty"`
	Rows        []Row    `json:"data"`
	RowCount    int      `json:"rowCount"`
	Truncated   bool     `json:"truncated,omitempty"`
	ExecutedSQL string   `json:"executedSql"`
	DurationMs  int64    `json:"executionTimeMs"`

	// Verdict is the validator's decision. A result with Verdict.Admitted
	// false never reached the database.
	Verdict  sqlguard.Verdict `json:"-"`
	TimedOut bool             `json:"-"`
	Duration time.Duration    `json:"-"`
}

// Rejected reports whether the validator refused the statement.
func (r Result) Rejected() bool {
	return !r.Successful && !r.Verdict.Admitted
}

// Scalar returns the first cell of the first row.
func (r Result) Scalar() (any, bool) {
	if len(r.Rows) == 0 || len(r.Rows[0]) == 0 {
		return nil, false
	}
	return r.Rows[0][0].Value, true
}
