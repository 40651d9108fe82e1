package model

import "time"

// KeyframeStill is one extracted frame of a parent video. ParentVideoID is a
// back-reference only; the video owns the lifecycle.
type KeyframeStill struct {
	ID               string                   `json:"id"`
	ParentVideoID    string                   `json:"parentVideoId"`
	ProjectID        string                   `json:"projectId,omitempty"`
	Timestamp        float64                  `json:"timestamp"`
	FrameNumber      int                      `json:"frameNumber"`
	Filename         string                   `json:"filename"`
	StorageURL       string                   `json:"storageUrl,omitempty"`
	ThumbnailURL     string                   `json:"thumbnailUrl,omitempty"`
	AILabels         *LabelSet                `json:"aiLabels,omitempty"`
	ProcessingStatus KeyframeProcessingStatus `json:"processingStatus"`
	RetryCount       int                      `json:"retryCount"`
	UsageTracking    UsageTracking            `json:"usageTracking"`
	CreatedAt        time.Time                `json:"createdAt"`
}

type KeyframeProcessingStatus struct {
	AILabeling LabelingStatus `json:"aiLabeling"`
}

// UsageTracking records editorial reuse of a still. It is carried through
// unchanged by the labeling pipeline.
type UsageTracking struct {
	TimesReused    int        `json:"timesReused"`
	ProjectsUsedIn []string   `json:"projectsUsedIn,omitempty"`
	LastUsed       *time.Time `json:"lastUsed,omitempty"`
}

// IsTerminalFailed reports whether the frame has exhausted its retry budget.
// Terminal frames stay in the completion-ratio denominator but are never
// re-dispatched.
func (k *KeyframeStill) IsTerminalFailed() bool {
	return k.ProcessingStatus.AILabeling == LabelingFailed && k.RetryCount >= MaxLabelRetries
}
