package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/clipsight/api/internal/service"
)

// LabelingWorker processes label-dispatch tasks enqueued by the materializer
type LabelingWorker struct {
	dispatcher *service.DispatcherService
}

func NewLabelingWorker(dispatcher *service.DispatcherService) *LabelingWorker {
	return &LabelingWorker{dispatcher: dispatcher}
}

// ProcessTask handles one labeling batch. The hero frame is labeled first,
// synchronously; the remaining frames fan out inside the dispatcher. The
// task only errors on malformed payloads; per-frame failures live on the
// keyframe documents.
func (w *LabelingWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.LabelDispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal dispatch payload: %w", err)
	}

	log.Printf("Dispatching labeling for video %s (%d keyframes)", payload.VideoID, len(payload.KeyframeIDs))

	if err := w.dispatcher.DispatchBatch(ctx, payload.VideoID, payload.KeyframeIDs); err != nil {
		return fmt.Errorf("label dispatch for video %s failed: %w", payload.VideoID, err)
	}

	log.Printf("Label dispatch for video %s finished", payload.VideoID)
	return nil
}
