package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/clipsight/api/internal/client"
	"github.com/clipsight/api/internal/model"
	"github.com/clipsight/api/internal/store"
)

// ProgressBroadcaster receives labeling progress events. *websocket.Hub
// satisfies it; tests pass a no-op.
type ProgressBroadcaster interface {
	BroadcastFrameLabeled(videoID, keyframeID string, status model.LabelingStatus)
	BroadcastRetry(videoID string, keyframeIDs []string)
	BroadcastComplete(videoID string, labels *model.LabelSet)
	BroadcastError(videoID, code, message string)
}

// DispatcherService fans label-worker invocations out across a batch of
// keyframes. The first frame (hero) is labeled synchronously with retry so
// the UI gets one labeled frame quickly; the rest run concurrently under a
// bounded semaphore, each with its own retry schedule.
type DispatcherService struct {
	store       store.Store
	vision      client.VisionLabeler
	hub         ProgressBroadcaster
	concurrency int
	backoffBase time.Duration
}

func NewDispatcherService(assetStore store.Store, vision client.VisionLabeler, hub ProgressBroadcaster, concurrency int) *DispatcherService {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &DispatcherService{
		store:       assetStore,
		vision:      vision,
		hub:         hub,
		concurrency: concurrency,
		backoffBase: 500 * time.Millisecond,
	}
}

// DispatchBatch labels the given keyframes. The hero frame's attempt,
// including its retries, fully resolves before any other frame is invoked;
// only then is the parent video moved to processing. Individual frame
// failures are recorded on the frame documents by the worker and never fail
// the batch.
func (s *DispatcherService) DispatchBatch(ctx context.Context, videoID string, keyframeIDs []string) error {
	if len(keyframeIDs) == 0 {
		return nil
	}

	hero := keyframeIDs[0]
	s.markProcessing(ctx, hero)
	if err := s.labelWithRetry(ctx, hero); err != nil {
		log.Printf("Hero frame %s of video %s failed labeling: %v", hero, videoID, err)
	}
	s.reportFrame(ctx, videoID, hero)

	if err := s.markVideoProcessing(ctx, videoID); err != nil {
		log.Printf("Failed to mark video %s processing: %v", videoID, err)
	}

	rest := keyframeIDs[1:]
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for _, id := range rest {
		wg.Add(1)
		sem <- struct{}{}
		go func(keyframeID string) {
			defer wg.Done()
			defer func() { <-sem }()

			s.markProcessing(ctx, keyframeID)
			if err := s.labelWithRetry(ctx, keyframeID); err != nil {
				log.Printf("Keyframe %s of video %s failed labeling: %v", keyframeID, videoID, err)
			}
			s.reportFrame(ctx, videoID, keyframeID)
		}(id)
	}

	wg.Wait()
	return nil
}

// labelWithRetry invokes the label worker up to MaxLabelRetries times,
// sleeping 500·n² ms after the nth failed attempt. Retry exhaustion is
// reported to the caller but the frame's status is what the worker wrote.
func (s *DispatcherService) labelWithRetry(ctx context.Context, keyframeID string) error {
	var lastErr error
	for attempt := 1; attempt <= model.MaxLabelRetries; attempt++ {
		err := s.vision.LabelKeyframe(ctx, keyframeID)
		if err == nil {
			return nil
		}
		lastErr = err
		log.Printf("Label attempt %d/%d for keyframe %s failed: %v", attempt, model.MaxLabelRetries, keyframeID, err)

		if attempt < model.MaxLabelRetries {
			delay := s.backoffBase * time.Duration(attempt*attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// markProcessing is a narrow write scoped to one keyframe document only,
// safe to run concurrently with other frames' labelers.
func (s *DispatcherService) markProcessing(ctx context.Context, keyframeID string) {
	keyframe, err := s.store.GetKeyframe(ctx, keyframeID)
	if err != nil {
		log.Printf("Failed to read keyframe %s: %v", keyframeID, err)
		return
	}
	if keyframe.ProcessingStatus.AILabeling != model.LabelingPending {
		return
	}
	keyframe.ProcessingStatus.AILabeling = model.LabelingProcessing
	if err := s.store.PutKeyframe(ctx, keyframe); err != nil {
		log.Printf("Failed to mark keyframe %s processing: %v", keyframeID, err)
	}
}

// markVideoProcessing flips only the video's ai_labeling status from pending
// to processing. Aggregate label fields are still the evaluator's alone.
func (s *DispatcherService) markVideoProcessing(ctx context.Context, videoID string) error {
	video, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if video.ProcessingStatus.AILabeling != model.VideoLabelingPending {
		return nil
	}
	video.ProcessingStatus.AILabeling = model.VideoLabelingProcessing
	return s.store.PutVideo(ctx, video)
}

func (s *DispatcherService) reportFrame(ctx context.Context, videoID, keyframeID string) {
	if s.hub == nil {
		return
	}
	keyframe, err := s.store.GetKeyframe(ctx, keyframeID)
	if err != nil {
		return
	}
	s.hub.BroadcastFrameLabeled(videoID, keyframeID, keyframe.ProcessingStatus.AILabeling)
}
