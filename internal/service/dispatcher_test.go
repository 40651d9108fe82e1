package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clipsight/api/internal/model"
	"github.com/clipsight/api/internal/store"
)

func newDispatcher(assetStore store.Store, vision *fakeVision) *DispatcherService {
	d := NewDispatcherService(assetStore, vision, noopHub{}, 2)
	d.backoffBase = time.Millisecond // keep retry sleeps out of test time
	return d
}

func seedBatch(t *testing.T, assetStore store.Store, n int) (*model.VideoAsset, []string) {
	t.Helper()
	video := seedVideo(t, assetStore, model.VideoLabelingPending)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		kf := seedKeyframe(t, assetStore, video, i, model.LabelingPending, 0, nil)
		ids = append(ids, kf.ID)
	}
	refreshVideoCount(t, assetStore, video)
	return video, ids
}

func TestDispatchBatch_HeroFirst(t *testing.T) {
	assetStore := store.NewMemoryStore()
	vision := &fakeVision{}
	vision.fn = completingVision(assetStore, sampleLabels(0))
	dispatcher := newDispatcher(assetStore, vision)

	video, ids := seedBatch(t, assetStore, 5)
	hero := ids[0]

	if err := dispatcher.DispatchBatch(context.Background(), video.ID, ids); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	calls := vision.callList()
	if len(calls) != 5 {
		t.Fatalf("expected 5 invocations, got %d", len(calls))
	}
	if calls[0] != hero {
		t.Errorf("hero frame must be invoked first, got %s", calls[0])
	}

	// Every frame reaches a terminal status.
	for _, id := range ids {
		kf, err := assetStore.GetKeyframe(context.Background(), id)
		if err != nil {
			t.Fatalf("failed to reload keyframe: %v", err)
		}
		if kf.ProcessingStatus.AILabeling != model.LabelingCompleted {
			t.Errorf("keyframe %s not completed: %s", id, kf.ProcessingStatus.AILabeling)
		}
	}
}

func TestDispatchBatch_MarksVideoProcessingAfterHero(t *testing.T) {
	assetStore := store.NewMemoryStore()
	vision := &fakeVision{}
	vision.fn = completingVision(assetStore, sampleLabels(0))
	dispatcher := newDispatcher(assetStore, vision)

	video, ids := seedBatch(t, assetStore, 3)

	if err := dispatcher.DispatchBatch(context.Background(), video.ID, ids); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	updated, _ := assetStore.GetVideo(context.Background(), video.ID)
	if updated.ProcessingStatus.AILabeling != model.VideoLabelingProcessing {
		t.Errorf("expected video processing after hero, got %s", updated.ProcessingStatus.AILabeling)
	}
	if updated.LabelingComplete {
		t.Error("dispatcher must never mark the video complete")
	}
}

func TestDispatchBatch_RetriesTransientFailure(t *testing.T) {
	assetStore := store.NewMemoryStore()
	vision := &fakeVision{}
	dispatcher := newDispatcher(assetStore, vision)

	video, ids := seedBatch(t, assetStore, 1)
	hero := ids[0]

	// Fail twice, succeed on the third attempt.
	complete := completingVision(assetStore, sampleLabels(0))
	failures := 0
	vision.fn = func(ctx context.Context, keyframeID string) error {
		if failures < 2 {
			failures++
			return errors.New("transient worker failure")
		}
		return complete(ctx, keyframeID)
	}

	if err := dispatcher.DispatchBatch(context.Background(), video.ID, ids); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if got := vision.callCount(hero); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}

	kf, _ := assetStore.GetKeyframe(context.Background(), hero)
	if kf.ProcessingStatus.AILabeling != model.LabelingCompleted {
		t.Errorf("expected completed after retry, got %s", kf.ProcessingStatus.AILabeling)
	}
}

func TestDispatchBatch_RetryExhaustion(t *testing.T) {
	assetStore := store.NewMemoryStore()
	vision := &fakeVision{}
	dispatcher := newDispatcher(assetStore, vision)

	video, ids := seedBatch(t, assetStore, 2)

	// The worker writes failed on its final attempt; model that here.
	var mu sync.Mutex
	attempts := make(map[string]int)
	vision.fn = func(ctx context.Context, keyframeID string) error {
		mu.Lock()
		attempts[keyframeID]++
		final := attempts[keyframeID] >= model.MaxLabelRetries
		mu.Unlock()
		if final {
			kf, err := assetStore.GetKeyframe(ctx, keyframeID)
			if err != nil {
				return err
			}
			kf.ProcessingStatus.AILabeling = model.LabelingFailed
			if err := assetStore.PutKeyframe(ctx, kf); err != nil {
				return err
			}
		}
		return errors.New("permanent worker failure")
	}

	if err := dispatcher.DispatchBatch(context.Background(), video.ID, ids); err != nil {
		t.Fatalf("dispatch must not fail the batch on frame failures: %v", err)
	}

	for _, id := range ids {
		if got := vision.callCount(id); got != model.MaxLabelRetries {
			t.Errorf("expected %d attempts for %s, got %d", model.MaxLabelRetries, id, got)
		}
		kf, _ := assetStore.GetKeyframe(context.Background(), id)
		if kf.ProcessingStatus.AILabeling != model.LabelingFailed {
			t.Errorf("expected failed after exhaustion, got %s", kf.ProcessingStatus.AILabeling)
		}
	}
}

func TestDispatchBatch_EmptyBatch(t *testing.T) {
	assetStore := store.NewMemoryStore()
	dispatcher := newDispatcher(assetStore, &fakeVision{})

	if err := dispatcher.DispatchBatch(context.Background(), "some-video", nil); err != nil {
		t.Fatalf("empty batch must be a no-op, got %v", err)
	}
}
