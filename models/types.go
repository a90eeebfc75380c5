package models

import "time"

// Detection is one object reported by the engine, with corner coordinates in
// source-image pixels.
type Detection struct {
	XMin       float64
	YMin       float64
	XMax       float64
	YMax       float64
	Confidence float64
	Class      int
	Name       string
}

type ProcessingTimings struct {
	RequestID   string
	ImageDecode time.Duration
	Resize      time.Duration
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
	Render      time.Duration
	Total       time.Duration
}
