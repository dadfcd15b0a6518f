// ABOUTME: CSV encoding of join results and export file naming
// ABOUTME: Writes comma-separated UTF-8 with a header row and no index column

package mapping

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/2389/labmap/internal/table"
)

const (
	exportBase      = "produits_completes"
	exportExt       = ".csv"
	exportTimestamp = "20060102_150405"
)

// ContentType is the media type of encoded exports.
const ContentType = "text/csv; charset=utf-8"

// Encode renders t as comma-separated text.
func Encode(t *table.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeTo(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo writes t to w as comma-separated text with LF line endings.
func EncodeTo(w io.Writer, t *table.Table) error {
	if t == nil {
		return table.ErrEmptyTable
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// ExportFilename returns the download name for an export made at now.
func ExportFilename(now time.Time) string {
	if now.IsZero() {
		return exportBase + exportExt
	}
	return exportBase + "_" + now.Format(exportTimestamp) + exportExt
}
