// Package table loads uploaded tabular files into memory and validates their shape.
//
// # Overview
//
// A Table is a header plus rows of string cells. Every row has exactly as many
// cells as there are columns, so callers can index cells by column position
// without bounds checks.
//
// # Parsing
//
// Parse accepts the raw bytes of an upload:
//
//   - XLSX workbooks (detected by extension or zip signature): first sheet only
//   - Delimited text: the delimiter is sniffed from the header line among
//     comma, semicolon, tab and pipe
//
// Text input may start with a UTF-8 byte order mark, which is dropped. Input that
// is not valid UTF-8 is decoded as Windows-1252, the encoding spreadsheet tools use
// for French-locale CSV exports.
//
// # Normalization
//
// Normalize trims the column names and checks that a required set is present:
//
//	t, err := table.Normalize(raw, table.LaboratoryColumns)
//	var missing *table.MissingColumnsError
//	if errors.As(err, &missing) {
//	    // missing.Missing lists the absent column names
//	}
//
// Column matching is exact and case-sensitive after trimming. "nom" does not
// satisfy a required "Nom".
package table
