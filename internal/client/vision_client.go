package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clipsight/api/internal/config"
)

// VisionLabeler is the label worker boundary: one call labels one keyframe.
// On success the worker itself has written ai_labels and the completed status
// to that keyframe's document; on final failure it has written failed. The
// caller only observes success or failure of the call.
type VisionLabeler interface {
	LabelKeyframe(ctx context.Context, keyframeID string) error
	IsConfigured() bool
}

// VisionClient implements VisionLabeler against the HTTP vision worker
type VisionClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type labelFrameRequest struct {
	KeyframeID string `json:"keyframe_id"`
}

type labelFrameResponse struct {
	KeyframeID string `json:"keyframe_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// NewVisionClient creates a client for the vision-labeling worker
func NewVisionClient(cfg *config.VisionConfig) *VisionClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if cfg.Timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &VisionClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
	}
}

// LabelKeyframe asks the worker to label one keyframe. The worker reads the
// frame, runs the classifier and writes the result to the keyframe document
// as a side effect; this call reports only whether that succeeded.
func (c *VisionClient) LabelKeyframe(ctx context.Context, keyframeID string) error {
	var result labelFrameResponse
	if err := c.post(ctx, "/v1/frames/label", labelFrameRequest{KeyframeID: keyframeID}, &result); err != nil {
		return err
	}
	if result.Status != "completed" {
		return fmt.Errorf("vision worker reported %s for keyframe %s: %s", result.Status, keyframeID, result.Error)
	}
	return nil
}

// IsConfigured returns true if the client has an API key
func (c *VisionClient) IsConfigured() bool {
	return c.apiKey != ""
}

func (c *VisionClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vision worker request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vision worker returned %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
