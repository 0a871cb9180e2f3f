package modern

import (
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/CK6170/Leocal-go/internal/fsutil"
	"github.com/CK6170/Leocal-go/models"
)

// ExportCSV writes t as CSV: index, datetime, then every column in table
// order. Missing samples are written as empty fields.
func ExportCSV(w io.Writer, t *models.Table) error {
	cw := csv.NewWriter(w)
	cols := t.Columns()
	if err := cw.Write(append([]string{"index", "datetime"}, cols...)); err != nil {
		return err
	}

	data := make([][]float64, len(cols))
	for i, name := range cols {
		data[i], _ = t.Column(name)
	}
	times := t.Times()
	row := make([]string, 2+len(cols))
	for i, idx := range t.Index() {
		row[0] = strconv.FormatInt(idx, 10)
		row[1] = ""
		if times != nil {
			row[1] = times[i].Format(models.DateLayout)
		}
		for j, col := range data {
			if math.IsNaN(col[i]) {
				row[2+j] = ""
				continue
			}
			row[2+j] = strconv.FormatFloat(col[i], 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV exports t to path, replacing any existing file atomically.
func SaveCSV(path string, t *models.Table) error {
	var buf bytes.Buffer
	if err := ExportCSV(&buf, t); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}
