package service

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/clipsight/api/internal/model"
	"github.com/clipsight/api/internal/store"
)

func newEvaluator(assetStore store.Store, vision *fakeVision) *EvaluatorService {
	return NewEvaluatorService(assetStore, vision, noopHub{}, 0.75)
}

func sampleLabels(n int) *model.LabelSet {
	scenes := []string{"harbor", "street", "forest", "rooftop"}
	return &model.LabelSet{
		Scenes:  []string{scenes[n%len(scenes)]},
		Objects: []string{"person", "car"},
		Style:   []string{"cinematic"},
		Mood:    []string{"calm"},
		Themes:  []string{"travel"},
	}
}

func TestEvaluate_ThresholdMet(t *testing.T) {
	assetStore := store.NewMemoryStore()
	vision := &fakeVision{}
	evaluator := newEvaluator(assetStore, vision)

	video := seedVideo(t, assetStore, model.VideoLabelingProcessing)
	for i := 0; i < 3; i++ {
		seedKeyframe(t, assetStore, video, i, model.LabelingCompleted, 0, sampleLabels(i))
	}
	seedKeyframe(t, assetStore, video, 3, model.LabelingPending, 0, nil)
	refreshVideoCount(t, assetStore, video)

	eval, err := evaluator.Evaluate(context.Background(), video.ID, 0.75)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	if eval.Status != model.EvaluationCompleted {
		t.Fatalf("expected completed, got %s (%s)", eval.Status, eval.Reason)
	}
	if eval.CompletedKeyframes != 3 || eval.TotalKeyframes != 4 {
		t.Errorf("expected 3/4 keyframes, got %d/%d", eval.CompletedKeyframes, eval.TotalKeyframes)
	}

	updated, err := assetStore.GetVideo(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("failed to reload video: %v", err)
	}
	if !updated.LabelingComplete {
		t.Error("expected labeling_complete = true")
	}
	if updated.ProcessingStatus.AILabeling != model.VideoLabelingCompleted {
		t.Errorf("expected video status completed, got %s", updated.ProcessingStatus.AILabeling)
	}
	if updated.AILabels.IsEmpty() {
		t.Error("expected non-empty aggregated labels")
	}
	if updated.Timestamps.LabeledAI == nil {
		t.Error("expected labeled_ai timestamp to be set")
	}
}

func TestEvaluate_BelowThreshold(t *testing.T) {
	assetStore := store.NewMemoryStore()
	vision := &fakeVision{}
	evaluator := newEvaluator(assetStore, vision)

	video := seedVideo(t, assetStore, model.VideoLabelingProcessing)
	seedKeyframe(t, assetStore, video, 0, model.LabelingCompleted, 0, sampleLabels(0))
	seedKeyframe(t, assetStore, video, 1, model.LabelingCompleted, 0, sampleLabels(1))
	seedKeyframe(t, assetStore, video, 2, model.LabelingPending, 0, nil)
	seedKeyframe(t, assetStore, video, 3, model.LabelingPending, 0, nil)
	refreshVideoCount(t, assetStore, video)

	eval, err := evaluator.Evaluate(context.Background(), video.ID, 0.75)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	if eval.Status != model.EvaluationInsufficient {
		t.Fatalf("expected insufficient, got %s", eval.Status)
	}
	if len(vision.callList()) != 0 {
		t.Errorf("expected no retry invocations, got %v", vision.callList())
	}

	updated, _ := assetStore.GetVideo(context.Background(), video.ID)
	if updated.LabelingComplete {
		t.Error("video must not be marked complete at 50% completion")
	}
}

func TestEvaluate_LeniencyCompletion(t *testing.T) {
	assetStore := store.NewMemoryStore()
	vision := &fakeVision{}
	evaluator := newEvaluator(assetStore, vision)

	video := seedVideo(t, assetStore, model.VideoLabelingProcessing)
	for i := 0; i < 8; i++ {
		seedKeyframe(t, assetStore, video, i, model.LabelingCompleted, 0, sampleLabels(i))
	}
	// Two terminal failures: retry budget spent, excluded from aggregation
	// but still in the denominator.
	seedKeyframe(t, assetStore, video, 8, model.LabelingFailed, model.MaxLabelRetries, nil)
	seedKeyframe(t, assetStore, video, 9, model.LabelingFailed, model.MaxLabelRetries, nil)
	refreshVideoCount(t, assetStore, video)

	eval, err := evaluator.Evaluate(context.Background(), video.ID, 0.75)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	if eval.Status != model.EvaluationCompleted {
		t.Fatalf("expected completed at 80%%, got %s (%s)", eval.Status, eval.Reason)
	}
	if eval.CompletedKeyframes != 8 || eval.TotalKeyframes != 10 {
		t.Errorf("expected 8/10, got %d/%d", eval.CompletedKeyframes, eval.TotalKeyframes)
	}
	if len(vision.callList()) != 0 {
		t.Errorf("terminal-failed frames must not be re-dispatched, got %v", vision.callList())
	}
}

func TestEvaluate_RetryEscalation(t *testing.T) {
	assetStore := store.NewMemoryStore()
	vision := &fakeVision{}
	evaluator := newEvaluator(assetStore, vision)

	video := seedVideo(t, assetStore, model.VideoLabelingProcessing)
	seedKeyframe(t, assetStore, video, 0, model.LabelingCompleted, 0, sampleLabels(0))
	retryable := seedKeyframe(t, assetStore, video, 1, model.LabelingFailed, 2, nil)
	terminal := seedKeyframe(t, assetStore, video, 2, model.LabelingFailed, model.MaxLabelRetries, nil)
	seedKeyframe(t, assetStore, video, 3, model.LabelingPending, 0, nil)
	refreshVideoCount(t, assetStore, video)

	eval, err := evaluator.Evaluate(context.Background(), video.ID, 0.75)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	if eval.Status != model.EvaluationRetried {
		t.Fatalf("expected retried, got %s (%s)", eval.Status, eval.Reason)
	}
	if len(eval.RetriedKeyframes) != 1 || eval.RetriedKeyframes[0] != retryable.ID {
		t.Fatalf("expected exactly %s retried, got %v", retryable.ID, eval.RetriedKeyframes)
	}
	if vision.callCount(retryable.ID) != 1 {
		t.Errorf("expected 1 re-invocation for retryable frame, got %d", vision.callCount(retryable.ID))
	}
	if vision.callCount(terminal.ID) != 0 {
		t.Error("terminal-failed frame must never be re-dispatched")
	}

	updated, _ := assetStore.GetKeyframe(context.Background(), retryable.ID)
	if updated.RetryCount != 3 {
		t.Errorf("expected retry count 3, got %d", updated.RetryCount)
	}
	if updated.ProcessingStatus.AILabeling != model.LabelingProcessing {
		t.Errorf("expected retried frame back in processing, got %s", updated.ProcessingStatus.AILabeling)
	}
}

func TestEvaluate_IdempotentAggregation(t *testing.T) {
	assetStore := store.NewMemoryStore()
	vision := &fakeVision{}
	evaluator := newEvaluator(assetStore, vision)

	video := seedVideo(t, assetStore, model.VideoLabelingProcessing)
	seedKeyframe(t, assetStore, video, 0, model.LabelingCompleted, 0, &model.LabelSet{
		Scenes: []string{"harbor", "sunset"}, Objects: []string{"boat"},
	})
	seedKeyframe(t, assetStore, video, 1, model.LabelingCompleted, 0, &model.LabelSet{
		Scenes: []string{"sunset", "harbor"}, Objects: []string{"boat", "gull"},
	})
	refreshVideoCount(t, assetStore, video)

	ctx := context.Background()
	if _, err := evaluator.Evaluate(ctx, video.ID, 0.75); err != nil {
		t.Fatalf("first evaluate failed: %v", err)
	}
	first, _ := assetStore.GetVideo(ctx, video.ID)
	firstJSON, _ := json.Marshal(first.AILabels)
	firstLabeledAt := first.Timestamps.LabeledAI

	if _, err := evaluator.Evaluate(ctx, video.ID, 0.75); err != nil {
		t.Fatalf("second evaluate failed: %v", err)
	}
	second, _ := assetStore.GetVideo(ctx, video.ID)
	secondJSON, _ := json.Marshal(second.AILabels)

	if !bytes.Equal(firstJSON, secondJSON) {
		t.Errorf("aggregation not idempotent:\nfirst:  %s\nsecond: %s", firstJSON, secondJSON)
	}
	if second.Timestamps.LabeledAI == nil || !second.Timestamps.LabeledAI.Equal(*firstLabeledAt) {
		t.Error("first completion timestamp must be preserved on re-evaluation")
	}
}

func TestEvaluateAll_SelectionAndIsolation(t *testing.T) {
	assetStore := store.NewMemoryStore()
	vision := &fakeVision{}
	evaluator := newEvaluator(assetStore, vision)
	ctx := context.Background()

	// Eligible: processing with keyframes above threshold.
	eligible := seedVideo(t, assetStore, model.VideoLabelingProcessing)
	seedKeyframe(t, assetStore, eligible, 0, model.LabelingCompleted, 0, sampleLabels(0))
	refreshVideoCount(t, assetStore, eligible)

	// Already completed: not selected by the sweep.
	done := seedVideo(t, assetStore, model.VideoLabelingCompleted)
	seedKeyframe(t, assetStore, done, 0, model.LabelingCompleted, 0, sampleLabels(0))
	refreshVideoCount(t, assetStore, done)

	// No keyframes yet: not selected.
	seedVideo(t, assetStore, model.VideoLabelingPending)

	results, err := evaluator.EvaluateAll(ctx, 0.75)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d: %+v", len(results), results)
	}
	if results[0].VideoID != eligible.ID || results[0].Status != model.EvaluationCompleted {
		t.Errorf("unexpected result: %+v", results[0])
	}
}

func TestEvaluateAll_IsolatesBrokenVideo(t *testing.T) {
	assetStore := store.NewMemoryStore()
	vision := &fakeVision{}
	evaluator := newEvaluator(assetStore, vision)
	ctx := context.Background()

	broken := seedVideo(t, assetStore, model.VideoLabelingProcessing)
	// Dangling index entry: keyframe indexed but its document never written.
	if err := assetStore.AppendKeyframe(ctx, broken.ID, uuid.New().String()); err != nil {
		t.Fatalf("failed to seed dangling index: %v", err)
	}
	broken.KeyframeCount = 1
	if err := assetStore.PutVideo(ctx, broken); err != nil {
		t.Fatalf("failed to update video: %v", err)
	}

	healthy := seedVideo(t, assetStore, model.VideoLabelingProcessing)
	seedKeyframe(t, assetStore, healthy, 0, model.LabelingCompleted, 0, sampleLabels(0))
	refreshVideoCount(t, assetStore, healthy)

	results, err := evaluator.EvaluateAll(ctx, 0.75)
	if err != nil {
		t.Fatalf("sweep must not abort on one broken video: %v", err)
	}

	byID := make(map[string]model.VideoEvaluation)
	for _, r := range results {
		byID[r.VideoID] = r
	}
	if byID[broken.ID].Status != model.EvaluationError {
		t.Errorf("expected error entry for broken video, got %+v", byID[broken.ID])
	}
	if byID[healthy.ID].Status != model.EvaluationCompleted {
		t.Errorf("expected healthy video completed, got %+v", byID[healthy.ID])
	}
}

func TestEvaluate_MissingVideoIsHardError(t *testing.T) {
	assetStore := store.NewMemoryStore()
	evaluator := newEvaluator(assetStore, &fakeVision{})

	_, err := evaluator.Evaluate(context.Background(), uuid.New().String(), 0.75)
	if err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEvaluate_ZeroKeyframesSkipped(t *testing.T) {
	assetStore := store.NewMemoryStore()
	evaluator := newEvaluator(assetStore, &fakeVision{})

	video := seedVideo(t, assetStore, model.VideoLabelingPending)

	eval, err := evaluator.Evaluate(context.Background(), video.ID, 0.75)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if eval.Status != model.EvaluationSkipped {
		t.Fatalf("expected skipped, got %s", eval.Status)
	}

	updated, _ := assetStore.GetVideo(context.Background(), video.ID)
	if updated.LabelingComplete {
		t.Error("zero-keyframe video must never be marked complete")
	}
}
