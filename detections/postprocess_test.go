package detections

import (
	"testing"

	"github.com/objinspect/inspection-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntersectionOverUnion(t *testing.T) {
	a := models.Detection{XMin: 0, YMin: 0, XMax: 10, YMax: 10}
	b := models.Detection{XMin: 5, YMin: 5, XMax: 15, YMax: 15}
	c := models.Detection{XMin: 20, YMin: 20, XMax: 30, YMax: 30}

	// 25 overlap over 175 union.
	assert.InDelta(t, 25.0/175.0, intersectionOverUnion(a, b), 1e-9)
	assert.Zero(t, intersectionOverUnion(a, c))
	assert.InDelta(t, 1.0, intersectionOverUnion(a, a), 1e-9)
}

func TestNonMaxSuppressionSameClass(t *testing.T) {
	dets := []models.Detection{
		{XMin: 0, YMin: 0, XMax: 100, YMax: 100, Confidence: 0.9, Class: 0},
		{XMin: 5, YMin: 5, XMax: 105, YMax: 105, Confidence: 0.8, Class: 0},
		{XMin: 300, YMin: 300, XMax: 400, YMax: 400, Confidence: 0.7, Class: 0},
	}

	kept := nonMaxSuppression(dets, DefaultIouThreshold)
	require.Len(t, kept, 2)
	assert.Equal(t, 0.9, kept[0].Confidence)
	assert.Equal(t, 0.7, kept[1].Confidence)
}

func TestNonMaxSuppressionKeepsOtherClasses(t *testing.T) {
	// Heavy overlap but different classes: both survive.
	dets := []models.Detection{
		{XMin: 0, YMin: 0, XMax: 100, YMax: 100, Confidence: 0.9, Class: 0},
		{XMin: 2, YMin: 2, XMax: 98, YMax: 98, Confidence: 0.85, Class: 16},
	}

	kept := nonMaxSuppression(dets, DefaultIouThreshold)
	assert.Len(t, kept, 2)
}

func TestNonMaxSuppressionEmpty(t *testing.T) {
	assert.Empty(t, nonMaxSuppression(nil, DefaultIouThreshold))
}

func TestDecodeCandidatesLengthCheck(t *testing.T) {
	_, err := decodeCandidates(make([]float32, 100), 640, 480, DefaultConfThreshold)
	assert.Error(t, err)
}

func TestDecodeCandidatesFindsPlantedBox(t *testing.T) {
	preds := make([]float32, NumCandidates*NumChannels)

	// Plant one confident "car" (class 2) centered at (320, 320), 100×80,
	// in input-tensor coordinates.
	base := 1234 * NumChannels
	preds[base] = 320
	preds[base+1] = 320
	preds[base+2] = 100
	preds[base+3] = 80
	preds[base+4] = 0.95
	preds[base+5+2] = 0.9

	dets, err := decodeCandidates(preds, 1280, 640, DefaultConfThreshold)
	require.NoError(t, err)
	require.Len(t, dets, 1)

	d := dets[0]
	assert.Equal(t, 2, d.Class)
	assert.Equal(t, "car", d.Name)
	assert.InDelta(t, 0.95*0.9, d.Confidence, 1e-6)

	// 1280/640 = 2x horizontal scale, 640/640 = 1x vertical.
	assert.InDelta(t, (320-50)*2, d.XMin, 1e-3)
	assert.InDelta(t, (320+50)*2, d.XMax, 1e-3)
	assert.InDelta(t, 320-40, d.YMin, 1e-3)
	assert.InDelta(t, 320+40, d.YMax, 1e-3)
}

func TestDecodeCandidatesClampsToImage(t *testing.T) {
	preds := make([]float32, NumCandidates*NumChannels)

	// Box hanging off the top-left corner must clamp to the image.
	base := 7 * NumChannels
	preds[base] = 10
	preds[base+1] = 10
	preds[base+2] = 100
	preds[base+3] = 100
	preds[base+4] = 0.9
	preds[base+5] = 0.9

	dets, err := decodeCandidates(preds, 640, 640, DefaultConfThreshold)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Zero(t, dets[0].XMin)
	assert.Zero(t, dets[0].YMin)
}

func TestDecodeCandidatesOrderedByConfidence(t *testing.T) {
	preds := make([]float32, NumCandidates*NumChannels)

	plant := func(idx int, conf float32) {
		base := idx * NumChannels
		preds[base] = float32(50 + idx)
		preds[base+1] = 50
		preds[base+2] = 10
		preds[base+3] = 10
		preds[base+4] = conf
		preds[base+5] = 1
	}
	plant(10, 0.5)
	plant(5000, 0.9)
	plant(20000, 0.7)

	dets, err := decodeCandidates(preds, 640, 640, DefaultConfThreshold)
	require.NoError(t, err)
	require.Len(t, dets, 3)
	assert.True(t, dets[0].Confidence >= dets[1].Confidence)
	assert.True(t, dets[1].Confidence >= dets[2].Confidence)
}

func TestClassName(t *testing.T) {
	assert.Equal(t, "person", ClassName(0))
	assert.Equal(t, "toothbrush", ClassName(79))
	assert.Equal(t, "unknown", ClassName(-1))
	assert.Equal(t, "unknown", ClassName(80))
}
