// Package detections wraps the ONNX object-detection model: preprocessing,
// inference, postprocessing into per-object detections, and the tabular and
// rendered output shapes built from them.
package detections

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/objinspect/inspection-service/models"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"
)

// Engine is a single detection-engine replica. Implementations are not
// safe for concurrent use; callers serialize access through the pool.
type Engine interface {
	Detect(ctx context.Context, img image.Image, timings *models.ProcessingTimings) ([]models.Detection, error)
	Destroy()
}

// ModelSession is an Engine backed by a loaded ONNX Runtime session.
type ModelSession struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Output  *ort.Tensor[float32]

	ConfThreshold float32
	IouThreshold  float32
}

func (m *ModelSession) Destroy() {
	if m.Session != nil {
		m.Session.Destroy()
	}
	if m.Input != nil {
		m.Input.Destroy()
	}
	if m.Output != nil {
		m.Output.Destroy()
	}
}

// ProcessingError marks an engine-side failure on a structurally valid
// image, as opposed to a validation rejection.
type ProcessingError struct {
	Message string
	Cause   error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProcessingError) Unwrap() error { return e.Cause }

var bufferPool = sync.Pool{
	New: func() interface{} {
		return make([]float32, InputWidth*InputHeight*3)
	},
}

// Detect runs one inference over img and returns the detected objects in the
// engine's reporting order. Transient session failures are retried a bounded
// number of times; the last error wins.
func (m *ModelSession) Detect(ctx context.Context, img image.Image, timings *models.ProcessingTimings) ([]models.Detection, error) {
	var lastErr error

	for attempt := 1; attempt <= RetryAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, &ProcessingError{Message: "inference cancelled", Cause: ctx.Err()}
		default:
			dets, err := m.detectOnce(img, timings)
			if err == nil {
				return dets, nil
			}
			lastErr = err

			if attempt < RetryAttempts {
				time.Sleep(time.Duration(attempt) * RetryDelayMs * time.Millisecond)
			}
		}
	}

	if lastErr != nil {
		return nil, &ProcessingError{Message: "model inference failed", Cause: lastErr}
	}
	return nil, &ProcessingError{Message: "model inference failed", Cause: errors.New("unknown error")}
}

func (m *ModelSession) detectOnce(img image.Image, timings *models.ProcessingTimings) ([]models.Detection, error) {
	resizeStart := time.Now()
	resized := imaging.Resize(img, InputWidth, InputHeight, imaging.Linear)
	timings.Resize = time.Since(resizeStart)

	prepStart := time.Now()
	prepareInput(resized, m.Input)
	timings.Preprocess = time.Since(prepStart)

	inferStart := time.Now()
	if err := m.Session.Run(); err != nil {
		return nil, fmt.Errorf("session run: %w", err)
	}
	timings.Inference = time.Since(inferStart)

	postStart := time.Now()
	dets, err := decodeCandidates(m.Output.GetData(), img.Bounds().Dx(), img.Bounds().Dy(), m.ConfThreshold)
	if err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}
	dets = nonMaxSuppression(dets, float64(m.IouThreshold))
	timings.Postprocess = time.Since(postStart)

	return dets, nil
}

// prepareInput fills the input tensor with a CHW float32 rendition of pic,
// splitting rows across workers.
func prepareInput(pic *image.NRGBA, dst *ort.Tensor[float32]) {
	buffer := bufferPool.Get().([]float32)
	defer bufferPool.Put(buffer)

	const channelSize = InputWidth * InputHeight
	numWorkers := 4
	rowsPerWorker := InputHeight / numWorkers

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		startRow := w * rowsPerWorker
		endRow := (w + 1) * rowsPerWorker
		if w == numWorkers-1 {
			endRow = InputHeight
		}

		go func(start, end int) {
			defer wg.Done()
			for y := start; y < end; y++ {
				offset := y * InputWidth
				row := pic.Pix[y*pic.Stride:]
				for x := 0; x < InputWidth; x++ {
					i := offset + x
					buffer[i] = float32(row[x*4]) / 255.0
					buffer[channelSize+i] = float32(row[x*4+1]) / 255.0
					buffer[channelSize*2+i] = float32(row[x*4+2]) / 255.0
				}
			}
		}(startRow, endRow)
	}

	wg.Wait()
	copy(dst.GetData(), buffer)
}
