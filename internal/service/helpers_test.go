package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/clipsight/api/internal/model"
	"github.com/clipsight/api/internal/store"
)

// fakeVision is a scriptable label worker. Each call is recorded; behavior
// per keyframe comes from fn. The default fn mimics the real worker's side
// effect: write labels and the completed status to the keyframe document.
type fakeVision struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, keyframeID string) error
}

func (f *fakeVision) LabelKeyframe(ctx context.Context, keyframeID string) error {
	f.mu.Lock()
	f.calls = append(f.calls, keyframeID)
	f.mu.Unlock()
	if f.fn == nil {
		return nil
	}
	return f.fn(ctx, keyframeID)
}

func (f *fakeVision) IsConfigured() bool { return true }

func (f *fakeVision) callCount(keyframeID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.calls {
		if id == keyframeID {
			n++
		}
	}
	return n
}

func (f *fakeVision) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// completingVision returns a worker fn that writes labels and completed
// status, as the real worker does on success.
func completingVision(assetStore store.Store, labels *model.LabelSet) func(ctx context.Context, keyframeID string) error {
	return func(ctx context.Context, keyframeID string) error {
		kf, err := assetStore.GetKeyframe(ctx, keyframeID)
		if err != nil {
			return err
		}
		kf.AILabels = labels
		kf.ProcessingStatus.AILabeling = model.LabelingCompleted
		return assetStore.PutKeyframe(ctx, kf)
	}
}

// noopHub satisfies ProgressBroadcaster without a running hub loop
type noopHub struct{}

func (noopHub) BroadcastFrameLabeled(videoID, keyframeID string, status model.LabelingStatus) {}
func (noopHub) BroadcastRetry(videoID string, keyframeIDs []string)                           {}
func (noopHub) BroadcastComplete(videoID string, labels *model.LabelSet)                      {}
func (noopHub) BroadcastError(videoID, code, message string)                                  {}

// fakeEnqueuer records enqueued tasks instead of talking to Redis
type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: uuid.New().String(), Type: task.Type()}, nil
}

func seedVideo(t *testing.T, assetStore store.Store, status model.VideoLabelingStatus) *model.VideoAsset {
	t.Helper()
	video := &model.VideoAsset{
		ID:        uuid.New().String(),
		ProjectID: uuid.New().String(),
		Title:     "test video",
		ProcessingStatus: model.VideoProcessingStatus{
			KeyframeExtraction: model.ExtractionCompleted,
			AILabeling:         status,
		},
	}
	if err := assetStore.PutVideo(context.Background(), video); err != nil {
		t.Fatalf("failed to seed video: %v", err)
	}
	return video
}

// seedKeyframe persists one keyframe in the given labeling state and links
// it to the video's index.
func seedKeyframe(t *testing.T, assetStore store.Store, video *model.VideoAsset, frameNumber int, status model.LabelingStatus, retryCount int, labels *model.LabelSet) *model.KeyframeStill {
	t.Helper()
	kf := &model.KeyframeStill{
		ID:            uuid.New().String(),
		ParentVideoID: video.ID,
		ProjectID:     video.ProjectID,
		Timestamp:     float64(frameNumber) * 2.5,
		FrameNumber:   frameNumber,
		Filename:      "frame.jpg",
		AILabels:      labels,
		ProcessingStatus: model.KeyframeProcessingStatus{
			AILabeling: status,
		},
		RetryCount: retryCount,
		CreatedAt:  time.Now(),
	}
	ctx := context.Background()
	if err := assetStore.PutKeyframe(ctx, kf); err != nil {
		t.Fatalf("failed to seed keyframe: %v", err)
	}
	if err := assetStore.AppendKeyframe(ctx, video.ID, kf.ID); err != nil {
		t.Fatalf("failed to index keyframe: %v", err)
	}
	return kf
}

// refreshVideoCount syncs the seeded video's KeyframeCount with its index
func refreshVideoCount(t *testing.T, assetStore store.Store, video *model.VideoAsset) {
	t.Helper()
	ctx := context.Background()
	keyframes, err := assetStore.ListKeyframes(ctx, video.ID)
	if err != nil {
		t.Fatalf("failed to list keyframes: %v", err)
	}
	video.KeyframeCount = len(keyframes)
	if err := assetStore.PutVideo(ctx, video); err != nil {
		t.Fatalf("failed to update video: %v", err)
	}
}
