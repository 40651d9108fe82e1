package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/clipsight/api/internal/client"
	"github.com/clipsight/api/internal/model"
	"github.com/clipsight/api/internal/store"
)

// EvaluatorService reconciles a video's independently-completing keyframes
// into one authoritative labeling state. It is the only component that
// rewrites a video's aggregate fields, and it serializes itself per video
// so two passes over the same video never interleave.
type EvaluatorService struct {
	store            store.Store
	vision           client.VisionLabeler
	hub              ProgressBroadcaster
	defaultThreshold float64

	videoLocks sync.Map // video ID → *sync.Mutex
}

func NewEvaluatorService(assetStore store.Store, vision client.VisionLabeler, hub ProgressBroadcaster, defaultThreshold float64) *EvaluatorService {
	if defaultThreshold <= 0 || defaultThreshold > 1 {
		defaultThreshold = 0.75
	}
	return &EvaluatorService{
		store:            assetStore,
		vision:           vision,
		hub:              hub,
		defaultThreshold: defaultThreshold,
	}
}

// DefaultThreshold returns the configured completion threshold
func (s *EvaluatorService) DefaultThreshold() float64 {
	return s.defaultThreshold
}

// Evaluate runs one evaluator pass over a single video. Store failures on
// the video itself propagate as a hard error; everything else is expressed
// in the returned evaluation.
func (s *EvaluatorService) Evaluate(ctx context.Context, videoID string, threshold float64) (model.VideoEvaluation, error) {
	video, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		return model.VideoEvaluation{}, err
	}
	return s.evaluateVideo(ctx, video, threshold)
}

// EvaluateAll sweeps every video still pending or processing labeling that
// has at least one keyframe. Failures are isolated per video: one broken
// video yields an error entry in the results and the sweep continues.
func (s *EvaluatorService) EvaluateAll(ctx context.Context, threshold float64) ([]model.VideoEvaluation, error) {
	ids, err := s.store.ListVideoIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos for sweep: %w", err)
	}

	var results []model.VideoEvaluation
	for _, id := range ids {
		video, err := s.store.GetVideo(ctx, id)
		if err != nil {
			results = append(results, model.VideoEvaluation{
				VideoID: id,
				Status:  model.EvaluationError,
				Reason:  err.Error(),
			})
			continue
		}

		if video.ProcessingStatus.AILabeling != model.VideoLabelingPending &&
			video.ProcessingStatus.AILabeling != model.VideoLabelingProcessing {
			continue
		}
		if video.KeyframeCount == 0 {
			continue
		}

		eval, err := s.evaluateVideo(ctx, video, threshold)
		if err != nil {
			results = append(results, model.VideoEvaluation{
				VideoID: id,
				Status:  model.EvaluationError,
				Reason:  err.Error(),
			})
			continue
		}
		results = append(results, eval)
	}
	return results, nil
}

func (s *EvaluatorService) evaluateVideo(ctx context.Context, video *model.VideoAsset, threshold float64) (model.VideoEvaluation, error) {
	if threshold <= 0 || threshold > 1 {
		threshold = s.defaultThreshold
	}

	unlock := s.lockVideo(video.ID)
	defer unlock()

	keyframes, err := s.store.ListKeyframes(ctx, video.ID)
	if err != nil {
		return model.VideoEvaluation{}, err
	}

	total := len(keyframes)
	if total == 0 {
		return model.VideoEvaluation{
			VideoID: video.ID,
			Status:  model.EvaluationSkipped,
			Reason:  "video has no keyframes",
		}, nil
	}

	var completed, retryable []*model.KeyframeStill
	for _, kf := range keyframes {
		switch kf.ProcessingStatus.AILabeling {
		case model.LabelingCompleted:
			completed = append(completed, kf)
		case model.LabelingFailed:
			if !kf.IsTerminalFailed() {
				retryable = append(retryable, kf)
			}
		}
	}

	ratio := float64(len(completed)) / float64(total)
	eval := model.VideoEvaluation{
		VideoID:                video.ID,
		CompletedKeyframes:     len(completed),
		TotalKeyframes:         total,
		CompletionRatioPercent: ratio * 100,
	}

	if ratio >= threshold {
		if err := s.finalize(ctx, video, completed); err != nil {
			return model.VideoEvaluation{}, err
		}
		eval.Status = model.EvaluationCompleted
		return eval, nil
	}

	if len(retryable) > 0 {
		retried, err := s.escalateRetries(ctx, video, retryable)
		if err != nil {
			return model.VideoEvaluation{}, err
		}
		eval.Status = model.EvaluationRetried
		eval.RetriedKeyframes = retried
		eval.Reason = fmt.Sprintf("%d failed keyframes re-dispatched", len(retried))
		return eval, nil
	}

	// Not an error: either still-pending frames will resolve, or the video
	// is stuck below threshold with its retry budget spent. The periodic
	// sweep re-evaluates either way.
	eval.Status = model.EvaluationInsufficient
	eval.Reason = fmt.Sprintf("completion %.0f%% below threshold %.0f%% with no eligible retries", ratio*100, threshold*100)
	return eval, nil
}

// finalize aggregates per-frame labels and overwrites the video's aggregate
// fields. The overwrite is idempotent: re-running on an unchanged keyframe
// set produces an identical label set, and the first completion timestamp
// is preserved.
func (s *EvaluatorService) finalize(ctx context.Context, video *model.VideoAsset, completed []*model.KeyframeStill) error {
	sets := make([]*model.LabelSet, 0, len(completed))
	for _, kf := range completed {
		if kf.AILabels != nil {
			sets = append(sets, kf.AILabels)
		}
	}
	aggregated := model.AggregateLabelSets(sets)

	video.AILabels = aggregated
	video.LabelingComplete = true
	video.ProcessingStatus.AILabeling = model.VideoLabelingCompleted
	if video.Timestamps.LabeledAI == nil {
		now := time.Now()
		video.Timestamps.LabeledAI = &now
	}

	if err := s.store.PutVideo(ctx, video); err != nil {
		return fmt.Errorf("failed to finalize video %s: %w", video.ID, err)
	}

	if s.hub != nil {
		s.hub.BroadcastComplete(video.ID, aggregated)
	}
	log.Printf("Video %s labeling complete: %d/%d keyframes", video.ID, len(completed), video.KeyframeCount)
	return nil
}

// escalateRetries increments each eligible frame's retry count, moves it
// back to processing and re-invokes the label worker once per frame,
// concurrently. The video stays in processing while retries are in flight.
func (s *EvaluatorService) escalateRetries(ctx context.Context, video *model.VideoAsset, retryable []*model.KeyframeStill) ([]string, error) {
	retried := make([]string, 0, len(retryable))
	for _, kf := range retryable {
		kf.RetryCount++
		kf.ProcessingStatus.AILabeling = model.LabelingProcessing
		if err := s.store.PutKeyframe(ctx, kf); err != nil {
			return nil, fmt.Errorf("failed to escalate keyframe %s: %w", kf.ID, err)
		}
		retried = append(retried, kf.ID)
	}

	if video.ProcessingStatus.AILabeling == model.VideoLabelingPending {
		video.ProcessingStatus.AILabeling = model.VideoLabelingProcessing
		if err := s.store.PutVideo(ctx, video); err != nil {
			return nil, fmt.Errorf("failed to mark video %s processing: %w", video.ID, err)
		}
	}

	var wg sync.WaitGroup
	for _, id := range retried {
		wg.Add(1)
		go func(keyframeID string) {
			defer wg.Done()
			if err := s.vision.LabelKeyframe(ctx, keyframeID); err != nil {
				log.Printf("Retry labeling for keyframe %s failed: %v", keyframeID, err)
			}
		}(id)
	}
	wg.Wait()

	if s.hub != nil {
		s.hub.BroadcastRetry(video.ID, retried)
	}
	return retried, nil
}

// lockVideo serializes evaluation per video. Entries are never evicted; one
// mutex per video ever evaluated lives for the process lifetime.
// TODO: drop a video's entry once it reaches labeling_complete.
func (s *EvaluatorService) lockVideo(videoID string) func() {
	muIface, _ := s.videoLocks.LoadOrStore(videoID, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Summarize rolls a batch of evaluations up into response counts
func Summarize(results []model.VideoEvaluation) *model.EvaluateResponse {
	resp := &model.EvaluateResponse{
		Evaluated: len(results),
		Results:   results,
	}
	if resp.Results == nil {
		resp.Results = []model.VideoEvaluation{}
	}
	for _, r := range results {
		switch r.Status {
		case model.EvaluationCompleted:
			resp.Completed++
		case model.EvaluationRetried:
			resp.Retried++
		case model.EvaluationInsufficient:
			resp.Insufficient++
		case model.EvaluationSkipped:
			resp.Skipped++
		case model.EvaluationError:
			resp.Errors++
		}
	}
	return resp
}
