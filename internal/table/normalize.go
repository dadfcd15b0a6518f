// ABOUTME: Column normalization and required-column validation for uploaded tables
// ABOUTME: Trims header names and reports missing columns as a typed error

package table

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Required column sets for the two uploads.
var (
	LaboratoryColumns = []string{"ID", "Nom", "Enterprises"}
	ProductColumns    = []string{"ID", "Labos", "Entreprises"}
)

// ErrMissingColumns matches any *MissingColumnsError via errors.Is.
var ErrMissingColumns = errors.New("missing required columns")

// ErrDuplicateColumn is returned when a required column appears more than once
// after trimming.
var ErrDuplicateColumn = errors.New("duplicate column name")

// MissingColumnsError names the required columns absent from a table.
type MissingColumnsError struct {
	Table   string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s is missing required columns: %s", e.Table, strings.Join(e.Missing, ", "))
}

// Is lets errors.Is(err, ErrMissingColumns) match.
func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}

// Normalize returns a copy of t with trimmed column names, after checking that
// every required column is present. Matching is exact and case-sensitive.
//
// Blank headers become "Unnamed: N" (N is the zero-based position) and repeats of
// other columns become "name.1", "name.2" and so on. A repeated required column
// is an error since the join key would be ambiguous.
func Normalize(t *Table, required []string) (*Table, error) {
	if t == nil {
		return nil, ErrEmptyTable
	}

	isRequired := make(map[string]bool, len(required))
	for _, r := range required {
		isRequired[r] = true
	}

	columns := make([]string, len(t.Columns))
	seen := make(map[string]bool, len(t.Columns))
	for i, c := range t.Columns {
		name := strings.TrimSpace(c)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if seen[name] {
			if isRequired[name] {
				return nil, fmt.Errorf("%s: %w: %q", t.Name, ErrDuplicateColumn, name)
			}
			name = uniqueName(name, seen)
		}
		seen[name] = true
		columns[i] = name
	}

	var missing []string
	for _, r := range required {
		if !seen[r] {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingColumnsError{Table: t.Name, Missing: missing}
	}

	return &Table{
		Name:    t.Name,
		Columns: columns,
		Rows:    t.Rows,
	}, nil
}

// uniqueName returns the first of name.1, name.2, ... not in seen.
func uniqueName(name string, seen map[string]bool) string {
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s.%d", name, n)
		if !seen[candidate] {
			return candidate
		}
	}
}
