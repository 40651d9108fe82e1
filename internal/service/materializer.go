package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/clipsight/api/internal/client"
	"github.com/clipsight/api/internal/model"
	"github.com/clipsight/api/internal/store"
)

const (
	TaskTypeLabelDispatch = "labeling:dispatch"
	TaskTypeLabelSweep    = "labeling:sweep"
)

// LabelDispatchPayload is the asynq task payload for a labeling batch
type LabelDispatchPayload struct {
	VideoID     string   `json:"videoId"`
	KeyframeIDs []string `json:"keyframeIds"`
}

// TaskEnqueuer is the slice of asynq.Client the materializer needs
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// MaterializerService turns extracted frame descriptors into persisted
// keyframe documents linked to their parent video, then hands the batch to
// the labeling dispatcher via the task queue.
type MaterializerService struct {
	store   store.Store
	storage client.StorageClient
	tasks   TaskEnqueuer
}

func NewMaterializerService(assetStore store.Store, storage client.StorageClient, tasks TaskEnqueuer) *MaterializerService {
	return &MaterializerService{
		store:   assetStore,
		storage: storage,
		tasks:   tasks,
	}
}

// MaterializeKeyframes creates one keyframe document per descriptor, updates
// the parent video's link fields, and enqueues label dispatch for the batch.
// Each keyframe is persisted independently so a crash mid-batch leaves a
// consistent subset rather than a torn write. If the video update fails after
// keyframes were persisted, the error is returned but the keyframes are kept:
// that is a recoverable inconsistency, not a reason to drop work.
func (s *MaterializerService) MaterializeKeyframes(ctx context.Context, videoID string, descriptors []model.FrameDescriptor) (*model.MaterializeResponse, error) {
	video, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	stills := make([]model.KeyframeStill, 0, len(descriptors))
	keyframeIDs := make([]string, 0, len(descriptors))

	for _, desc := range descriptors {
		storageURL := desc.StorageURL
		if storageURL == "" && s.storage != nil {
			storageURL = s.storage.GetPublicURL(fmt.Sprintf("stills/%s/%s", videoID, desc.Filename))
		}

		keyframe := &model.KeyframeStill{
			ID:            uuid.New().String(),
			ParentVideoID: video.ID,
			ProjectID:     video.ProjectID,
			Timestamp:     desc.Timestamp,
			FrameNumber:   desc.FrameNumber,
			Filename:      desc.Filename,
			StorageURL:    storageURL,
			ProcessingStatus: model.KeyframeProcessingStatus{
				AILabeling: model.LabelingPending,
			},
			RetryCount: 0,
			CreatedAt:  now,
		}

		if err := s.store.PutKeyframe(ctx, keyframe); err != nil {
			return nil, fmt.Errorf("failed to persist keyframe %d: %w", desc.Index, err)
		}
		if err := s.store.AppendKeyframe(ctx, videoID, keyframe.ID); err != nil {
			return nil, fmt.Errorf("failed to index keyframe %d: %w", desc.Index, err)
		}

		stills = append(stills, *keyframe)
		keyframeIDs = append(keyframeIDs, keyframe.ID)
	}

	// Link step: single video rewrite after all keyframes exist. The
	// denormalized stills list is written here once and never mutated by
	// the dispatcher or evaluator.
	video.KeyframeStills = stills
	video.KeyframeCount = len(stills)
	video.ProcessingStatus.KeyframeExtraction = model.ExtractionCompleted
	video.ProcessingStatus.AILabeling = model.VideoLabelingPending
	video.Timestamps.KeyframesExtracted = &now

	if err := s.store.PutVideo(ctx, video); err != nil {
		return nil, fmt.Errorf("keyframes persisted but video link update failed for %s: %w", videoID, err)
	}

	triggered := s.enqueueDispatch(videoID, keyframeIDs)

	return &model.MaterializeResponse{
		VideoID:             videoID,
		KeyframesCreated:    len(stills),
		AILabelingTriggered: triggered,
	}, nil
}

func (s *MaterializerService) enqueueDispatch(videoID string, keyframeIDs []string) bool {
	payload, err := json.Marshal(LabelDispatchPayload{
		VideoID:     videoID,
		KeyframeIDs: keyframeIDs,
	})
	if err != nil {
		log.Printf("Failed to marshal dispatch payload for video %s: %v", videoID, err)
		return false
	}

	task := asynq.NewTask(TaskTypeLabelDispatch, payload)
	_, err = s.tasks.Enqueue(task,
		asynq.Queue("labeling"),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		log.Printf("Failed to enqueue label dispatch for video %s: %v", videoID, err)
		return false
	}
	return true
}
