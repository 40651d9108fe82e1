package model

// FrameDescriptor describes one extracted frame handed over by the
// frame-extraction worker.
type FrameDescriptor struct {
	Timestamp   float64 `json:"timestamp" validate:"gte=0"`
	FrameNumber int     `json:"frameNumber" validate:"gte=0"`
	Filename    string  `json:"filename" validate:"required"`
	StorageURL  string  `json:"storageUrl,omitempty"`
	Index       int     `json:"index" validate:"gte=0"`
}

// MaterializeRequest is the body of POST /api/videos/:videoId/keyframes
type MaterializeRequest struct {
	FrameDescriptors []FrameDescriptor `json:"frameDescriptors" validate:"required,min=1,dive"`
}

// MaterializeResponse reports what the materializer did
type MaterializeResponse struct {
	VideoID             string `json:"videoId"`
	KeyframesCreated    int    `json:"keyframesCreated"`
	AILabelingTriggered bool   `json:"aiLabelingTriggered"`
}

// EvaluateRequest is the body of POST /api/labeling/evaluate. Either VideoID
// or ScanAll must be set.
type EvaluateRequest struct {
	VideoID             string  `json:"videoId,omitempty"`
	ScanAll             bool    `json:"scanAll,omitempty"`
	CompletionThreshold float64 `json:"completionThreshold,omitempty" validate:"omitempty,gt=0,lte=1"`
}

// VideoEvaluation is the per-video result of one evaluator pass
type VideoEvaluation struct {
	VideoID                string           `json:"videoId"`
	Status                 EvaluationStatus `json:"status"`
	CompletedKeyframes     int              `json:"completedKeyframes"`
	TotalKeyframes         int              `json:"totalKeyframes"`
	CompletionRatioPercent float64          `json:"completionRatioPercent"`
	RetriedKeyframes       []string         `json:"retriedKeyframes,omitempty"`
	Reason                 string           `json:"reason,omitempty"`
}

// EvaluateResponse wraps a batch of per-video evaluations with summary counts
// so a caller can tell "nothing needed doing" from "something is stuck".
type EvaluateResponse struct {
	Evaluated    int               `json:"evaluated"`
	Completed    int               `json:"completed"`
	Retried      int               `json:"retried"`
	Insufficient int               `json:"insufficient"`
	Skipped      int               `json:"skipped"`
	Errors       int               `json:"errors"`
	Results      []VideoEvaluation `json:"results"`
}
