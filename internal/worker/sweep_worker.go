package worker

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"github.com/clipsight/api/internal/service"
)

// SweepWorker runs the periodic completion sweep: the evaluator in scan-all
// mode, scheduled by the asynq scheduler. Videos stuck below threshold stay
// insufficient and are simply picked up again on the next sweep.
type SweepWorker struct {
	evaluator *service.EvaluatorService
}

func NewSweepWorker(evaluator *service.EvaluatorService) *SweepWorker {
	return &SweepWorker{evaluator: evaluator}
}

func (w *SweepWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	results, err := w.evaluator.EvaluateAll(ctx, w.evaluator.DefaultThreshold())
	if err != nil {
		return err
	}

	summary := service.Summarize(results)
	log.Printf("Labeling sweep: %d evaluated, %d completed, %d retried, %d insufficient, %d errors",
		summary.Evaluated, summary.Completed, summary.Retried, summary.Insufficient, summary.Errors)
	return nil
}
