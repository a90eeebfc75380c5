package detections

const (
	InputWidth  = 640
	InputHeight = 640

	// YOLOv5 head: 25200 candidate boxes, 85 channels each
	// (cx, cy, w, h, objectness, 80 class scores).
	NumCandidates = 25200
	NumChannels   = 5 + NumClasses
	NumClasses    = 80

	DefaultConfThreshold = 0.25
	DefaultIouThreshold  = 0.45

	RetryAttempts = 3
	RetryDelayMs  = 100
)
