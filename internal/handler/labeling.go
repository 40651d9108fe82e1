package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clipsight/api/internal/model"
	"github.com/clipsight/api/internal/service"
	"github.com/clipsight/api/internal/store"
	"github.com/clipsight/api/pkg/response"
)

type LabelingHandler struct {
	evaluator *service.EvaluatorService
	store     store.Store
	validator *validator.Validate
}

func NewLabelingHandler(evaluator *service.EvaluatorService, assetStore store.Store, v *validator.Validate) *LabelingHandler {
	return &LabelingHandler{
		evaluator: evaluator,
		store:     assetStore,
		validator: v,
	}
}

// Evaluate handles POST /api/labeling/evaluate, the evaluation trigger.
// Accepts either a single video ID or scanAll mode.
func (h *LabelingHandler) Evaluate(c *fiber.Ctx) error {
	var req model.EvaluateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if req.VideoID == "" && !req.ScanAll {
		return response.ValidationError(c, "Either videoId or scanAll is required", nil)
	}

	threshold := req.CompletionThreshold
	if threshold == 0 {
		threshold = h.evaluator.DefaultThreshold()
	}

	if req.ScanAll {
		results, err := h.evaluator.EvaluateAll(c.Context(), threshold)
		if err != nil {
			return response.ServiceError(c, err.Error())
		}
		return response.OK(c, service.Summarize(results))
	}

	eval, err := h.evaluator.Evaluate(c.Context(), req.VideoID, threshold)
	if err != nil {
		if err == store.ErrNotFound {
			return response.NotFound(c, "Video not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, service.Summarize([]model.VideoEvaluation{eval}))
}

// GetVideo handles GET /api/videos/:videoId. Returns the video document with its
// labeling status and aggregate labels.
func (h *LabelingHandler) GetVideo(c *fiber.Ctx) error {
	videoID := c.Params("videoId")
	if videoID == "" {
		return response.ValidationError(c, "Video ID is required", nil)
	}

	video, err := h.store.GetVideo(c.Context(), videoID)
	if err != nil {
		if err == store.ErrNotFound {
			return response.NotFound(c, "Video not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, video)
}
