package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"time"

	"github.com/objinspect/inspection-service/detections"
	"github.com/objinspect/inspection-service/models"
	"github.com/objinspect/inspection-service/storage"
)

const jpegQuality = 90

// Invoker runs the detection engine in one of its two output shapes: render
// a stored file in place, or produce a detection table for an in-memory
// image. Each invocation acquires one engine replica and runs under the
// configured inference deadline.
type Invoker struct {
	pool    *EnginePool
	store   *storage.Store
	timeout time.Duration
}

func NewInvoker(pool *EnginePool, store *storage.Store, timeout time.Duration) *Invoker {
	return &Invoker{pool: pool, store: store, timeout: timeout}
}

// Table runs table-mode detection over img and shapes the result per mode.
// Zero detections is a valid empty table, not an error.
func (v *Invoker) Table(ctx context.Context, img image.Image, mode detections.OutputMode, timings *models.ProcessingTimings) (detections.Table, error) {
	dets, err := v.detect(ctx, img, timings)
	if err != nil {
		return detections.Table{}, err
	}
	return detections.NewTable(mode, dets, img.Bounds().Dx(), img.Bounds().Dy()), nil
}

// RenderToFile runs render-mode detection over the stored image called name
// and overwrites the stored file with the annotated version, keeping its
// original encoding.
func (v *Invoker) RenderToFile(ctx context.Context, name string, timings *models.ProcessingTimings) error {
	f, err := v.store.Open(name)
	if err != nil {
		return fmt.Errorf("open stored image %q: %w", name, err)
	}

	decodeStart := time.Now()
	img, format, err := image.Decode(f)
	f.Close()
	timings.ImageDecode = time.Since(decodeStart)
	if err != nil {
		return &detections.ProcessingError{Message: "decode stored image", Cause: err}
	}

	dets, err := v.detect(ctx, img, timings)
	if err != nil {
		return err
	}

	renderStart := time.Now()
	annotated := detections.Render(img, dets)
	timings.Render = time.Since(renderStart)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, annotated, &jpeg.Options{Quality: jpegQuality})
	case "png":
		err = png.Encode(&buf, annotated)
	case "gif":
		err = gif.Encode(&buf, annotated, nil)
	default:
		err = fmt.Errorf("unsupported stored format %q", format)
	}
	if err != nil {
		return &detections.ProcessingError{Message: "encode annotated image", Cause: err}
	}

	if _, err := v.store.Save(name, &buf); err != nil {
		return fmt.Errorf("overwrite stored image %q: %w", name, err)
	}
	return nil
}

func (v *Invoker) detect(ctx context.Context, img image.Image, timings *models.ProcessingTimings) ([]models.Detection, error) {
	engine, err := v.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer v.pool.Release(engine)

	runCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	return engine.Detect(runCtx, img, timings)
}
