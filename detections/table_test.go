package detections

import (
	"testing"

	"github.com/objinspect/inspection-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDetections() []models.Detection {
	return []models.Detection{
		{XMin: 10, YMin: 20, XMax: 110, YMax: 220, Confidence: 0.93, Class: 0, Name: "person"},
		{XMin: 200, YMin: 40, XMax: 400, YMax: 140, Confidence: 0.71, Class: 2, Name: "car"},
		{XMin: 5, YMin: 5, XMax: 25, YMax: 25, Confidence: 0.44, Class: 16, Name: "dog"},
	}
}

func TestNormalizePreservesRowOrder(t *testing.T) {
	table := NewTable(AbsolutePixelBox, sampleDetections(), 640, 480)

	records := Normalize(table)
	require.Len(t, records, 3)

	// Array position must match detection index, values untouched.
	assert.Equal(t, 0.93, records[0]["confidence"])
	assert.Equal(t, 0.71, records[1]["confidence"])
	assert.Equal(t, 0.44, records[2]["confidence"])
	assert.Equal(t, 10.0, records[0]["xmin"])
	assert.Equal(t, 140.0, records[1]["ymax"])
	assert.Equal(t, "dog", records[2]["name"])
}

func TestNormalizeRecordUniformity(t *testing.T) {
	for _, mode := range []OutputMode{AbsolutePixelBox, NormalizedBox} {
		table := NewTable(mode, sampleDetections(), 640, 480)
		records := Normalize(table)

		for _, rec := range records {
			require.Len(t, rec, len(table.Columns()))
			for _, col := range table.Columns() {
				assert.Contains(t, rec, col)
			}
		}
	}
}

func TestNormalizeEmptyTable(t *testing.T) {
	table := NewTable(NormalizedBox, nil, 640, 480)
	records := Normalize(table)
	require.NotNil(t, records)
	assert.Empty(t, records)
}

func TestNormalizedBoxScaling(t *testing.T) {
	dets := []models.Detection{
		{XMin: 0, YMin: 0, XMax: 320, YMax: 240, Confidence: 0.9, Class: 0, Name: "person"},
	}
	table := NewTable(NormalizedBox, dets, 640, 480)

	records := Normalize(table)
	require.Len(t, records, 1)

	rec := records[0]
	assert.InDelta(t, 0.25, rec["x_center"], 1e-9)
	assert.InDelta(t, 0.25, rec["y_center"], 1e-9)
	assert.InDelta(t, 0.5, rec["width"], 1e-9)
	assert.InDelta(t, 0.5, rec["height"], 1e-9)

	// Everything a normalized record reports stays inside the unit interval.
	for _, key := range []string{"x_center", "y_center", "width", "height"} {
		v := rec[key].(float64)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestTableColumnsByMode(t *testing.T) {
	abs := NewTable(AbsolutePixelBox, nil, 1, 1)
	assert.Equal(t, []string{"xmin", "ymin", "xmax", "ymax", "confidence", "class", "name"}, abs.Columns())

	norm := NewTable(NormalizedBox, nil, 1, 1)
	assert.Equal(t, []string{"x_center", "y_center", "width", "height", "confidence", "class", "name"}, norm.Columns())
}
