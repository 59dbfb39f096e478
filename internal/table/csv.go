package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/backyonatan-alt/restable/internal/jsonvalue"
)

// WriteCSV writes a header row and one record per row, in column order.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := writeRecord(w, cw, t.columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(t.columns))
	for i, row := range t.rows {
		for c, v := range row {
			record[c] = FormatCell(v)
		}
		if err := writeRecord(w, cw, record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeRecord writes a single empty field as "" so the line is not blank;
// readers skip blank lines and the row would be lost.
func writeRecord(w io.Writer, cw *csv.Writer, record []string) error {
	if len(record) != 1 || record[0] != "" {
		return cw.Write(record)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\"\"\n")
	return err
}

// CSV returns the table as UTF-8 CSV bytes.
func (t *Table) CSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatCell renders a cell as text: empty for null, the raw contents for
// strings, the literal for numbers and compact JSON for lists.
func FormatCell(v jsonvalue.Value) string {
	switch v.Kind() {
	case jsonvalue.Null:
		return ""
	case jsonvalue.Bool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case jsonvalue.Number, jsonvalue.String:
		return v.Text()
	}
	return v.String()
}
