package store

import (
	"context"
	"errors"

	"github.com/clipsight/api/internal/model"
)

// ErrNotFound is returned when a requested document does not exist
var ErrNotFound = errors.New("document not found")

// Store is the asset store client: typed read/write access to video and
// keyframe documents keyed by opaque IDs. There is no partial-update
// primitive: callers read-modify-write. Keyframe writes touch only that
// keyframe's document, so concurrent labelers never clobber each other;
// video documents are only rewritten by the materializer (link step) and
// the completion evaluator.
type Store interface {
	GetVideo(ctx context.Context, id string) (*model.VideoAsset, error)
	PutVideo(ctx context.Context, video *model.VideoAsset) error
	// ListVideoIDs returns every known video ID, for scan-all evaluation.
	ListVideoIDs(ctx context.Context) ([]string, error)

	GetKeyframe(ctx context.Context, id string) (*model.KeyframeStill, error)
	PutKeyframe(ctx context.Context, keyframe *model.KeyframeStill) error
	// AppendKeyframe records a keyframe ID in the video's canonical child
	// index, preserving extraction order.
	AppendKeyframe(ctx context.Context, videoID, keyframeID string) error
	// ListKeyframes returns the video's keyframe documents in index order.
	ListKeyframes(ctx context.Context, videoID string) ([]*model.KeyframeStill, error)
}
