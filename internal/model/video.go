package model

import "time"

// VideoAsset is the parent video document. It owns the lifecycle of its
// keyframes; the embedded KeyframeStills list is a denormalized copy written
// once by the materializer; canonical per-frame state lives in the individual
// keyframe documents.
type VideoAsset struct {
	ID               string                `json:"id"`
	ProjectID        string                `json:"projectId,omitempty"`
	Title            string                `json:"title"`
	KeyframeStills   []KeyframeStill       `json:"keyframeStills,omitempty"`
	KeyframeCount    int                   `json:"keyframeCount"`
	ProcessingStatus VideoProcessingStatus `json:"processingStatus"`
	AILabels         *LabelSet             `json:"aiLabels,omitempty"`
	LabelingComplete bool                  `json:"labelingComplete"`
	Timestamps       VideoTimestamps       `json:"timestamps"`
}

type VideoProcessingStatus struct {
	KeyframeExtraction ExtractionStatus    `json:"keyframeExtraction"`
	AILabeling         VideoLabelingStatus `json:"aiLabeling"`
}

type VideoTimestamps struct {
	KeyframesExtracted *time.Time `json:"keyframesExtracted,omitempty"`
	LabeledAI          *time.Time `json:"labeledAi,omitempty"`
}
