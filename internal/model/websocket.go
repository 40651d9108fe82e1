package model

// WebSocket message types
const (
	WSMessageTypeFrameLabeled = "frame_labeled"
	WSMessageTypeRetry        = "labeling_retry"
	WSMessageTypeComplete     = "labeling_complete"
	WSMessageTypeError        = "error"
	WSMessageTypePing         = "ping"
	WSMessageTypePong         = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSFrameLabeledMessage reports one keyframe reaching a terminal label state
type WSFrameLabeledMessage struct {
	Type       string         `json:"type"`
	VideoID    string         `json:"videoId"`
	KeyframeID string         `json:"keyframeId"`
	Status     LabelingStatus `json:"status"`
}

// WSRetryMessage reports the evaluator escalating retries for failed frames
type WSRetryMessage struct {
	Type        string   `json:"type"`
	VideoID     string   `json:"videoId"`
	KeyframeIDs []string `json:"keyframeIds"`
}

// WSCompleteMessage reports the video reaching labeling completion
type WSCompleteMessage struct {
	Type     string    `json:"type"`
	VideoID  string    `json:"videoId"`
	AILabels *LabelSet `json:"aiLabels"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type    string  `json:"type"`
	VideoID string  `json:"videoId"`
	Error   WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
