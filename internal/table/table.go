// ABOUTME: In-memory table type and parsing of uploaded CSV/XLSX files
// ABOUTME: Sniffs delimiters, strips BOMs and falls back to Windows-1252 for non-UTF-8 input

package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// ErrEmptyTable is returned when an upload has no header row.
var ErrEmptyTable = errors.New("table is empty")

// ErrRaggedRow is returned when a row has more cells than the header has columns.
var ErrRaggedRow = errors.New("row has more cells than the header")

// candidateDelimiters are tried in order; the first wins on a tie.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	zipMagic   = []byte("PK\x03\x04")
	xlsxSuffix = ".xlsx"
)

// Table is a header row plus data rows of string cells.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// New creates a table and pads or validates rows against the column count.
func New(name string, columns []string, rows [][]string) (*Table, error) {
	t := &Table{
		Name:    name,
		Columns: append([]string(nil), columns...),
		Rows:    make([][]string, 0, len(rows)),
	}
	for i, row := range rows {
		fixed, err := fitRow(row, len(columns))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", name, i+1, err)
		}
		t.Rows = append(t.Rows, fixed)
	}
	return t, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table has a column with exactly this name.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Value returns the cell at row i for the named column, or "" if the column is absent.
func (t *Table) Value(i int, column string) string {
	idx := t.ColumnIndex(column)
	if idx < 0 || i < 0 || i >= len(t.Rows) {
		return ""
	}
	return t.Rows[i][idx]
}

// Head returns a copy holding at most n rows. n <= 0 keeps every row.
func (t *Table) Head(n int) *Table {
	if n <= 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &Table{
		Name:    t.Name,
		Columns: append([]string(nil), t.Columns...),
		Rows:    t.Rows[:n:n],
	}
}

// Parse reads an uploaded file. The name is used for format detection and in errors.
func Parse(name string, data []byte) (*Table, error) {
	if isXLSX(name, data) {
		return parseXLSX(name, data)
	}
	return parseDelimited(name, data)
}

// ParseReader is Parse over an io.Reader.
func ParseReader(name string, r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return Parse(name, data)
}

func isXLSX(name string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(name), xlsxSuffix) {
		return true
	}
	return bytes.HasPrefix(data, zipMagic)
}

func parseDelimited(name string, data []byte) (*Table, error) {
	data = decodeText(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = SniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parsing %s: %w", name, ErrEmptyTable)
	}

	return New(name, records[0], records[1:])
}

func parseXLSX(name string, data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("parsing %s: no worksheet found", name)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q of %s: %w", sheet, name, err)
	}

	// excelize returns empty slices for blank rows
	var records [][]string
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		records = append(records, row)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parsing %s: %w", name, ErrEmptyTable)
	}

	return New(name, records[0], records[1:])
}

// decodeText drops a UTF-8 BOM and converts Windows-1252 input to UTF-8.
func decodeText(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return decoded
}

// SniffDelimiter picks the delimiter that occurs most often outside quotes on the
// first non-empty line. Comma is returned when no candidate appears.
func SniffDelimiter(data []byte) rune {
	line := firstLine(data)

	best := ','
	bestCount := 0
	for _, d := range candidateDelimiters {
		if n := countOutsideQuotes(line, d); n > bestCount {
			best = d
			bestCount = n
		}
	}
	return best
}

func firstLine(data []byte) string {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

func countOutsideQuotes(line string, d rune) int {
	n := 0
	quoted := false
	for _, c := range line {
		switch {
		case c == '"':
			quoted = !quoted
		case c == d && !quoted:
			n++
		}
	}
	return n
}

// fitRow pads short rows with empty cells. Long rows are rejected.
func fitRow(row []string, width int) ([]string, error) {
	if len(row) > width {
		// trailing empty cells are common in spreadsheet exports
		extra := row[width:]
		for _, c := range extra {
			if strings.TrimSpace(c) != "" {
				return nil, fmt.Errorf("%w: %d cells, %d columns", ErrRaggedRow, len(row), width)
			}
		}
		row = row[:width]
	}
	out := make([]string, width)
	copy(out, row)
	return out, nil
}
