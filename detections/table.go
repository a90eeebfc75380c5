package detections

import "github.com/objinspect/inspection-service/models"

// OutputMode selects the coordinate convention of a detection table.
type OutputMode int

const (
	// AbsolutePixelBox reports corner coordinates in source-image pixels.
	AbsolutePixelBox OutputMode = iota
	// NormalizedBox reports center/size coordinates scaled to [0,1].
	NormalizedBox
)

func (m OutputMode) String() string {
	if m == NormalizedBox {
		return "xywhn"
	}
	return "xyxy"
}

var (
	absoluteColumns   = []string{"xmin", "ymin", "xmax", "ymax", "confidence", "class", "name"}
	normalizedColumns = []string{"x_center", "y_center", "width", "height", "confidence", "class", "name"}
)

// Table is the tabular outcome of one detection run: one row per detected
// object, in engine reporting order, with the column set fixed by the mode.
// Rows are never re-sorted after construction.
type Table struct {
	mode OutputMode
	rows []models.Detection
	imgW int
	imgH int
}

// NewTable builds a table over dets for an imgW×imgH source image. A nil or
// empty dets is a valid zero-object table.
func NewTable(mode OutputMode, dets []models.Detection, imgW, imgH int) Table {
	return Table{mode: mode, rows: dets, imgW: imgW, imgH: imgH}
}

func (t Table) Mode() OutputMode { return t.mode }

func (t Table) Len() int { return len(t.rows) }

// Columns returns the table's column names in report order. Every record
// produced from this table carries exactly this key set.
func (t Table) Columns() []string {
	if t.mode == NormalizedBox {
		return normalizedColumns
	}
	return absoluteColumns
}

// Record is one detection row materialized as a self-describing mapping.
type Record = map[string]any

// Normalize materializes the table as one record per row, iterating rows in
// ascending index order. Callers rely on array position matching detection
// index. A zero-row table yields an empty, non-nil slice.
func Normalize(t Table) []Record {
	records := make([]Record, 0, t.Len())
	for _, d := range t.rows {
		records = append(records, t.record(d))
	}
	return records
}

func (t Table) record(d models.Detection) Record {
	rec := Record{
		"confidence": d.Confidence,
		"class":      d.Class,
		"name":       d.Name,
	}
	if t.mode == NormalizedBox {
		w := float64(t.imgW)
		h := float64(t.imgH)
		rec["x_center"] = (d.XMin + d.XMax) / 2 / w
		rec["y_center"] = (d.YMin + d.YMax) / 2 / h
		rec["width"] = (d.XMax - d.XMin) / w
		rec["height"] = (d.YMax - d.YMin) / h
	} else {
		rec["xmin"] = d.XMin
		rec["ymin"] = d.YMin
		rec["xmax"] = d.XMax
		rec["ymax"] = d.YMax
	}
	return rec
}
