package handler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/clipsight/api/internal/client"
	"github.com/clipsight/api/internal/model"
	"github.com/clipsight/api/internal/service"
	"github.com/clipsight/api/internal/store"
	"github.com/clipsight/api/pkg/response"
)

type KeyframeHandler struct {
	materializer *service.MaterializerService
	store        store.Store
	storage      client.StorageClient
	validator    *validator.Validate
}

func NewKeyframeHandler(materializer *service.MaterializerService, assetStore store.Store, storage client.StorageClient, v *validator.Validate) *KeyframeHandler {
	return &KeyframeHandler{
		materializer: materializer,
		store:        assetStore,
		storage:      storage,
		validator:    v,
	}
}

// Materialize handles POST /api/videos/:videoId/keyframes, the
// materialization trigger for a batch of extracted frame descriptors.
func (h *KeyframeHandler) Materialize(c *fiber.Ctx) error {
	// Params alias fasthttp's reusable request buffer; this ID outlives the
	// request as a store index key, so it must be copied.
	videoID := utils.CopyString(c.Params("videoId"))
	if videoID == "" {
		return response.ValidationError(c, "Video ID is required", nil)
	}

	var req model.MaterializeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.materializer.MaterializeKeyframes(c.Context(), videoID, req.FrameDescriptors)
	if err != nil {
		if err == store.ErrNotFound {
			return response.NotFound(c, "Video not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// List handles GET /api/videos/:videoId/keyframes. Returns per-frame labeling
// diagnostics, terminal-failed frames included.
func (h *KeyframeHandler) List(c *fiber.Ctx) error {
	videoID := c.Params("videoId")
	if videoID == "" {
		return response.ValidationError(c, "Video ID is required", nil)
	}

	if _, err := h.store.GetVideo(c.Context(), videoID); err != nil {
		if err == store.ErrNotFound {
			return response.NotFound(c, "Video not found")
		}
		return response.ServiceError(c, err.Error())
	}

	keyframes, err := h.store.ListKeyframes(c.Context(), videoID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{
		"videoId":   videoID,
		"count":     len(keyframes),
		"keyframes": keyframes,
	})
}

// Get handles GET /api/keyframes/:keyframeId. Returns one keyframe document,
// with a presigned still URL when storage is configured.
func (h *KeyframeHandler) Get(c *fiber.Ctx) error {
	keyframeID := c.Params("keyframeId")
	if keyframeID == "" {
		return response.ValidationError(c, "Keyframe ID is required", nil)
	}

	keyframe, err := h.store.GetKeyframe(c.Context(), keyframeID)
	if err != nil {
		if err == store.ErrNotFound {
			return response.NotFound(c, "Keyframe not found")
		}
		return response.ServiceError(c, err.Error())
	}

	signedURL := ""
	if h.storage != nil && keyframe.Filename != "" {
		key := "stills/" + keyframe.ParentVideoID + "/" + keyframe.Filename
		if url, err := h.storage.GetSignedURL(c.Context(), key, 15*time.Minute); err == nil {
			signedURL = url
		}
	}

	return response.OK(c, fiber.Map{
		"keyframe":  keyframe,
		"signedUrl": signedURL,
	})
}
