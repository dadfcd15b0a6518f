// ABOUTME: Left join of product rows onto laboratory rows to fill in company references
// ABOUTME: Renames laboratory columns, fans out on duplicate lab IDs and fills unmatched rows with a sentinel

// Package mapping joins uploaded product tables with laboratory tables and
// encodes the result for download.
package mapping

import (
	"fmt"
	"strings"

	"github.com/2389/labmap/internal/table"
)

// Unassigned is written into output cells that have no laboratory value.
const Unassigned = "Non assignée"

// Output column names added by Join.
const (
	LaboratoryNameColumn = "Laboratory Name"
	CompanyIDColumn      = "Company ID"
)

// Source column names used by the join.
const (
	productKeyColumn     = "Labos"
	productCompanyColumn = "Entreprises"
	labKeyColumn         = "ID"
	labNameColumn        = "Nom"
	labCompanyColumn     = "Enterprises"
)

// nullPlaceholders are cell spellings treated as missing values.
var nullPlaceholders = map[string]bool{
	"":     true,
	"nan":  true,
	"NaN":  true,
	"None": true,
	"null": true,
	"NULL": true,
	"<NA>": true,
	"N/A":  true,
}

// JoinError reports a structural problem that stopped the join.
type JoinError struct {
	Table string
	Err   error
}

func (e *JoinError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("join failed: %v", e.Err)
	}
	return fmt.Sprintf("join failed on %s: %v", e.Table, e.Err)
}

func (e *JoinError) Unwrap() error {
	return e.Err
}

// Join left-joins products onto laboratories where the product Labos value equals
// the laboratory ID. Every product row is kept. A product matching several
// laboratories appears once per match, in laboratory order.
//
// The result holds the product columns followed by Laboratory Name and Company ID.
// Blank Entreprises cells are filled from Company ID. Laboratory Name and Company ID
// columns already present in products, as in a re-uploaded export, are recomputed.
func Join(products, laboratories *table.Table) (*table.Table, error) {
	if err := checkInput(products, "products", table.ProductColumns); err != nil {
		return nil, err
	}
	if err := checkInput(laboratories, "laboratories", table.LaboratoryColumns); err != nil {
		return nil, err
	}
	products = dropColumns(products, LaboratoryNameColumn, CompanyIDColumn)

	labKey := laboratories.ColumnIndex(labKeyColumn)
	labName := laboratories.ColumnIndex(labNameColumn)
	labCompany := laboratories.ColumnIndex(labCompanyColumn)

	index := make(map[string][]int, laboratories.Len())
	for i, row := range laboratories.Rows {
		key := canonicalKey(row[labKey])
		if key == "" {
			continue
		}
		index[key] = append(index[key], i)
	}

	prodKey := products.ColumnIndex(productKeyColumn)
	prodCompany := products.ColumnIndex(productCompanyColumn)

	columns := make([]string, 0, len(products.Columns)+2)
	columns = append(columns, products.Columns...)
	columns = append(columns, LaboratoryNameColumn, CompanyIDColumn)

	rows := make([][]string, 0, products.Len())
	for _, prod := range products.Rows {
		matches := index[canonicalKey(prod[prodKey])]
		if len(matches) == 0 {
			rows = append(rows, joinedRow(prod, prodCompany, Unassigned, Unassigned))
			continue
		}
		for _, li := range matches {
			lab := laboratories.Rows[li]
			rows = append(rows, joinedRow(prod, prodCompany, fill(lab[labName]), fill(lab[labCompany])))
		}
	}

	return &table.Table{
		Name:    products.Name,
		Columns: columns,
		Rows:    rows,
	}, nil
}

func checkInput(t *table.Table, role string, required []string) error {
	if t == nil {
		return &JoinError{Table: role, Err: table.ErrEmptyTable}
	}
	var missing []string
	for _, c := range required {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &JoinError{Table: t.Name, Err: &table.MissingColumnsError{Table: t.Name, Missing: missing}}
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return &JoinError{
				Table: t.Name,
				Err:   fmt.Errorf("row %d: %w: %d cells, %d columns", i+1, table.ErrRaggedRow, len(row), len(t.Columns)),
			}
		}
	}
	return nil
}

// dropColumns returns t without the named columns, or t itself if it has none of them.
func dropColumns(t *table.Table, names ...string) *table.Table {
	drop := make(map[int]bool)
	for _, n := range names {
		for i, c := range t.Columns {
			if c == n {
				drop[i] = true
			}
		}
	}
	if len(drop) == 0 {
		return t
	}

	keep := func(cells []string) []string {
		out := make([]string, 0, len(cells)-len(drop))
		for i, c := range cells {
			if !drop[i] {
				out = append(out, c)
			}
		}
		return out
	}

	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = keep(row)
	}
	return &table.Table{
		Name:    t.Name,
		Columns: keep(t.Columns),
		Rows:    rows,
	}
}

func joinedRow(prod []string, companyIdx int, name, company string) []string {
	out := make([]string, 0, len(prod)+2)
	out = append(out, prod...)
	if isNull(out[companyIdx]) {
		out[companyIdx] = company
	}
	return append(out, name, company)
}

func fill(v string) string {
	if isNull(v) {
		return Unassigned
	}
	return v
}

func isNull(v string) bool {
	return nullPlaceholders[strings.TrimSpace(v)]
}

// canonicalKey trims a join key and reduces integral decimal spellings such as
// "12.0" or the French-locale "12,0" to "12", so IDs typed as numbers in one file
// match text IDs in the other.
func canonicalKey(v string) string {
	v = strings.TrimSpace(v)
	whole, frac, ok := strings.Cut(v, ".")
	if !ok {
		whole, frac, ok = strings.Cut(v, ",")
	}
	if !ok || !isInteger(whole) || strings.Trim(frac, "0") != "" {
		return v
	}
	return whole
}

func isInteger(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Summary counts rows of a join result for display.
type Summary struct {
	Rows       int
	Matched    int
	Unassigned int
}

// Stats summarizes a table produced by Join.
func Stats(result *table.Table) Summary {
	var s Summary
	if result == nil {
		return s
	}
	s.Rows = result.Len()
	idx := result.ColumnIndex(CompanyIDColumn)
	for _, row := range result.Rows {
		if idx >= 0 && row[idx] == Unassigned {
			s.Unassigned++
			continue
		}
		s.Matched++
	}
	return s
}
