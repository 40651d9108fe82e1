package client

import (
	"context"

	"github.com/clipsight/api/internal/model"
	"github.com/clipsight/api/internal/store"
)

// MockVisionClient stands in for the vision worker when no API key is
// configured. It writes deterministic labels straight to the keyframe
// document, mirroring the real worker's side effect, so the rest of the
// pipeline behaves identically in development.
type MockVisionClient struct {
	store store.Store
}

func NewMockVisionClient(assetStore store.Store) *MockVisionClient {
	return &MockVisionClient{store: assetStore}
}

var (
	mockScenes = []string{"interior", "street", "landscape", "close-up"}
	mockMoods  = []string{"calm", "tense", "upbeat"}
	mockStyles = []string{"cinematic", "documentary", "vintage"}
)

func (c *MockVisionClient) LabelKeyframe(ctx context.Context, keyframeID string) error {
	keyframe, err := c.store.GetKeyframe(ctx, keyframeID)
	if err != nil {
		return err
	}

	n := keyframe.FrameNumber
	keyframe.AILabels = &model.LabelSet{
		Scenes:  []string{mockScenes[n%len(mockScenes)]},
		Objects: []string{"person", "car"},
		Style:   []string{mockStyles[n%len(mockStyles)]},
		Mood:    []string{mockMoods[n%len(mockMoods)]},
		Themes:  []string{"everyday life"},
		ConfidenceScores: map[string][]float64{
			"scenes":  {0.9},
			"objects": {0.85, 0.7},
		},
	}
	keyframe.ProcessingStatus.AILabeling = model.LabelingCompleted

	return c.store.PutKeyframe(ctx, keyframe)
}

func (c *MockVisionClient) IsConfigured() bool {
	return false
}
