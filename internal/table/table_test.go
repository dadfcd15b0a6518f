// ABOUTME: Tests for table parsing of CSV and XLSX uploads
// ABOUTME: Covers delimiter sniffing, BOM and charset handling, padding and ragged rows

package table

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParse_Comma(t *testing.T) {
	data := []byte("ID,Nom,Enterprises\n1,LabA,E1\n2,LabB,E2\n")

	tbl, err := Parse("labos.csv", data)
	require.NoError(t, err)

	assert.Equal(t, "labos.csv", tbl.Name)
	assert.Equal(t, []string{"ID", "Nom", "Enterprises"}, tbl.Columns)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, "LabB", tbl.Value(1, "Nom"))
}

func TestParse_SemicolonWithQuotedCommas(t *testing.T) {
	data := []byte("ID;Nom;Enterprises\n1;\"Lab, Paris\";E1\n")

	tbl, err := Parse("labos.csv", data)
	require.NoError(t, err)

	assert.Equal(t, []string{"ID", "Nom", "Enterprises"}, tbl.Columns)
	assert.Equal(t, "Lab, Paris", tbl.Value(0, "Nom"))
}

func TestParse_Tab(t *testing.T) {
	tbl, err := Parse("produits.tsv", []byte("ID\tLabos\tEntreprises\nP1\t1\t\n"))
	require.NoError(t, err)
	assert.Equal(t, "1", tbl.Value(0, "Labos"))
	assert.Equal(t, "", tbl.Value(0, "Entreprises"))
}

func TestParse_StripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("ID,Nom,Enterprises\n1,LabA,E1\n")...)

	tbl, err := Parse("labos.csv", data)
	require.NoError(t, err)
	assert.Equal(t, "ID", tbl.Columns[0])
}

func TestParse_Windows1252Fallback(t *testing.T) {
	// "Laboratoire Pér" with é encoded as a single 0xE9 byte
	data := []byte("ID,Nom,Enterprises\n1,Laboratoire P\xe9r,E1\n")

	tbl, err := Parse("labos.csv", data)
	require.NoError(t, err)
	assert.Equal(t, "Laboratoire Pér", tbl.Value(0, "Nom"))
}

func TestParse_PadsShortRows(t *testing.T) {
	tbl, err := Parse("produits.csv", []byte("ID,Labos,Entreprises\nP1,1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "1", ""}, tbl.Rows[0])
}

func TestParse_TrailingEmptyCellsDropped(t *testing.T) {
	tbl, err := Parse("produits.csv", []byte("ID,Labos,Entreprises\nP1,1,,,\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "1", ""}, tbl.Rows[0])
}

func TestParse_RaggedRow(t *testing.T) {
	_, err := Parse("produits.csv", []byte("ID,Labos\nP1,1,extra\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRaggedRow))
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse("empty.csv", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyTable))
}

func TestParse_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"ID", "Nom", "Enterprises"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"1", "LabA", "E1"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"2", "LabB"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	tbl, err := Parse("labos.xlsx", buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, []string{"ID", "Nom", "Enterprises"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "E1", tbl.Value(0, "Enterprises"))
	assert.Equal(t, "", tbl.Value(1, "Enterprises"))
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name string
		line string
		want rune
	}{
		{"comma", "a,b,c", ','},
		{"semicolon", "a;b;c", ';'},
		{"tab", "a\tb\tc", '\t'},
		{"pipe", "a|b|c", '|'},
		{"quoted commas ignored", "\"a,b\";c;d", ';'},
		{"single column defaults to comma", "ID", ','},
		{"leading blank lines skipped", "\n\na;b", ';'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SniffDelimiter([]byte(tt.line)))
		})
	}
}

func TestTable_Head(t *testing.T) {
	tbl, err := New("t", []string{"A"}, [][]string{{"1"}, {"2"}, {"3"}})
	require.NoError(t, err)

	assert.Equal(t, 2, tbl.Head(2).Len())
	assert.Equal(t, 3, tbl.Head(0).Len())
	assert.Equal(t, 3, tbl.Head(10).Len())
}

func TestTable_ValueUnknownColumn(t *testing.T) {
	tbl, err := New("t", []string{"A"}, [][]string{{"1"}})
	require.NoError(t, err)

	assert.Equal(t, "", tbl.Value(0, "B"))
	assert.Equal(t, "", tbl.Value(5, "A"))
}
