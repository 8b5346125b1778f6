package render

import (
	"encoding/csv"
	"fmt"
	"io"

	"fleet-dashboard/internal/models"
)

// WriteCSV writes the frame with a header row. Nulls become empty fields.
func WriteCSV(w io.Writer, f *models.Frame) error {
	cw := csv.NewWriter(w)
	if f == nil {
		f = models.NewFrame()
	}
	if err := cw.Write(f.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	record := make([]string, len(f.Columns))
	for r := 0; r < f.Len(); r++ {
		for i, c := range f.Columns {
			record[i] = f.String(r, c)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", r, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
