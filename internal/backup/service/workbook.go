package service

import (
	"math"
	"time"

	"github.com/xuri/excelize/v2"
)

// sheetWriter streams one table into one worksheet.
type sheetWriter struct {
	stream *excelize.StreamWriter
	row    int
}

func newSheetWriter(f *excelize.File, sheet string) (*sheetWriter, error) {
	stream, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, err
	}
	return &sheetWriter{stream: stream, row: 1}, nil
}

func (w *sheetWriter) Header(columns []string) error {
	cells := make([]any, len(columns))
	for i, c := range columns {
		cells[i] = c
	}
	return w.write(cells)
}

func (w *sheetWriter) Row(values []any) error {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = cellValue(v)
	}
	return w.write(cells)
}

func (w *sheetWriter) write(cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.stream.SetRow(cell, cells); err != nil {
		return err
	}
	w.row++
	return nil
}

func (w *sheetWriter) Flush() error {
	return w.stream.Flush()
}

// maxExactInt is the largest integer a spreadsheet double holds exactly.
const maxExactInt = 1 << 53

func cellValue(v any) any {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case int64:
		// snowflake ids would lose digits as numbers
		if val > maxExactInt || val < -maxExactInt {
			return formatInt(val)
		}
		return val
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ""
		}
		return val
	case time.Time:
		return val.UTC()
	default:
		return val
	}
}
