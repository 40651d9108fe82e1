package model

// LabelingStatus tracks the per-keyframe labeling state machine:
// pending → processing → {completed | failed}. A failed frame whose retry
// budget is not exhausted may be moved back to processing by the evaluator.
type LabelingStatus string

const (
	LabelingPending    LabelingStatus = "pending"
	LabelingProcessing LabelingStatus = "processing"
	LabelingCompleted  LabelingStatus = "completed"
	LabelingFailed     LabelingStatus = "failed"
)

// ExtractionStatus tracks keyframe extraction on the parent video
type ExtractionStatus string

const (
	ExtractionPending   ExtractionStatus = "pending"
	ExtractionCompleted ExtractionStatus = "completed"
)

// VideoLabelingStatus tracks aggregate labeling on the parent video.
// Only the completion evaluator moves a video out of processing.
type VideoLabelingStatus string

const (
	VideoLabelingPending    VideoLabelingStatus = "pending"
	VideoLabelingProcessing VideoLabelingStatus = "processing"
	VideoLabelingCompleted  VideoLabelingStatus = "completed"
	VideoLabelingError      VideoLabelingStatus = "error"
)

// EvaluationStatus is the per-video outcome of one evaluator pass
type EvaluationStatus string

const (
	EvaluationCompleted    EvaluationStatus = "completed"
	EvaluationRetried      EvaluationStatus = "retried"
	EvaluationInsufficient EvaluationStatus = "insufficient"
	EvaluationSkipped      EvaluationStatus = "skipped"
	EvaluationError        EvaluationStatus = "error"
)

// MaxLabelRetries is the per-keyframe retry budget. A failed frame at this
// count is terminal and is never re-dispatched.
const MaxLabelRetries = 3
