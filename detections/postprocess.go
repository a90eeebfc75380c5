package detections

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/objinspect/inspection-service/models"
)

// decodeCandidates turns the raw YOLOv5 output tensor into detections in
// source-image pixel coordinates, dropping candidates below threshold. The
// result is ordered by descending confidence; that ordering is the engine's
// reporting order and is preserved everywhere downstream.
func decodeCandidates(predictions []float32, originalWidth, originalHeight int, threshold float32) ([]models.Detection, error) {
	expectedSize := NumCandidates * NumChannels
	if len(predictions) != expectedSize {
		return nil, fmt.Errorf("unexpected predictions length: got %d, want %d", len(predictions), expectedSize)
	}

	const chunkSize = 2048
	numWorkers := runtime.NumCPU()
	jobs := make(chan int, numWorkers)
	results := make(chan []models.Detection, numWorkers)

	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]models.Detection, 0, 64)

			for start := range jobs {
				end := start + chunkSize
				if end > NumCandidates {
					end = NumCandidates
				}

				for i := start; i < end; i++ {
					base := i * NumChannels
					objectness := predictions[base+4]
					if objectness < threshold {
						continue
					}

					bestClass := 0
					bestScore := predictions[base+5]
					for c := 1; c < NumClasses; c++ {
						if s := predictions[base+5+c]; s > bestScore {
							bestScore = s
							bestClass = c
						}
					}

					confidence := objectness * bestScore
					if confidence < threshold {
						continue
					}

					local = append(local, scaleCandidate(
						predictions[base], predictions[base+1],
						predictions[base+2], predictions[base+3],
						confidence, bestClass,
						float64(originalWidth), float64(originalHeight),
					))
				}
			}

			if len(local) > 0 {
				results <- local
			}
		}()
	}

	go func() {
		for i := 0; i < NumCandidates; i += chunkSize {
			jobs <- i
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	detections := make([]models.Detection, 0, 64)
	for chunk := range results {
		detections = append(detections, chunk...)
	}

	sortByConfidence(detections)
	return detections, nil
}

// scaleCandidate converts one center-format candidate in input-tensor pixels
// to a corner-format detection in source-image pixels, clamped to the image.
func scaleCandidate(cx, cy, w, h, confidence float32, class int, origWidth, origHeight float64) models.Detection {
	scaleX := origWidth / InputWidth
	scaleY := origHeight / InputHeight

	x1 := (float64(cx) - float64(w)/2) * scaleX
	y1 := (float64(cy) - float64(h)/2) * scaleY
	x2 := (float64(cx) + float64(w)/2) * scaleX
	y2 := (float64(cy) + float64(h)/2) * scaleY

	return models.Detection{
		XMin:       clamp(x1, 0, origWidth),
		YMin:       clamp(y1, 0, origHeight),
		XMax:       clamp(x2, 0, origWidth),
		YMax:       clamp(y2, 0, origHeight),
		Confidence: float64(confidence),
		Class:      class,
		Name:       ClassName(class),
	}
}

// nonMaxSuppression greedily keeps the highest-confidence box of each
// overlapping same-class group. Input must already be sorted by descending
// confidence; output keeps that order.
func nonMaxSuppression(dets []models.Detection, iouThreshold float64) []models.Detection {
	if len(dets) == 0 {
		return dets
	}

	kept := make([]models.Detection, 0, len(dets))
	suppressed := make([]bool, len(dets))

	for i := range dets {
		if suppressed[i] {
			continue
		}
		kept = append(kept, dets[i])
		for j := i + 1; j < len(dets); j++ {
			if suppressed[j] || dets[j].Class != dets[i].Class {
				continue
			}
			if intersectionOverUnion(dets[i], dets[j]) > iouThreshold {
				suppressed[j] = true
			}
		}
	}

	return kept
}

func intersectionOverUnion(a, b models.Detection) float64 {
	ix1 := maxF(a.XMin, b.XMin)
	iy1 := maxF(a.YMin, b.YMin)
	ix2 := minF(a.XMax, b.XMax)
	iy2 := minF(a.YMax, b.YMax)

	iw := maxF(0, ix2-ix1)
	ih := maxF(0, iy2-iy1)
	intersection := iw * ih

	areaA := (a.XMax - a.XMin) * (a.YMax - a.YMin)
	areaB := (b.XMax - b.XMin) * (b.YMax - b.YMin)
	union := areaA + areaB - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func sortByConfidence(dets []models.Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
