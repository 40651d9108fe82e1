package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/clipsight/api/internal/model"
)

// RedisStore implements Store on top of Redis. Documents are JSON blobs at
// video:{id} and keyframe:{id}; video:{id}:keyframes is an ordered list of
// child IDs and videos:index is the registry set backing ListVideoIDs.
type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

func videoKey(id string) string    { return fmt.Sprintf("video:%s", id) }
func keyframeKey(id string) string { return fmt.Sprintf("keyframe:%s", id) }
func keyframeIndexKey(videoID string) string {
	return fmt.Sprintf("video:%s:keyframes", videoID)
}

const videoRegistryKey = "videos:index"

func (s *RedisStore) GetVideo(ctx context.Context, id string) (*model.VideoAsset, error) {
	data, err := s.redis.Get(ctx, videoKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read video %s: %w", id, err)
	}

	var video model.VideoAsset
	if err := json.Unmarshal(data, &video); err != nil {
		return nil, fmt.Errorf("failed to decode video %s: %w", id, err)
	}
	return &video, nil
}

func (s *RedisStore) PutVideo(ctx context.Context, video *model.VideoAsset) error {
	data, err := json.Marshal(video)
	if err != nil {
		return fmt.Errorf("failed to encode video %s: %w", video.ID, err)
	}
	if err := s.redis.Set(ctx, videoKey(video.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write video %s: %w", video.ID, err)
	}
	if err := s.redis.SAdd(ctx, videoRegistryKey, video.ID).Err(); err != nil {
		return fmt.Errorf("failed to index video %s: %w", video.ID, err)
	}
	return nil
}

func (s *RedisStore) ListVideoIDs(ctx context.Context) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, videoRegistryKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) GetKeyframe(ctx context.Context, id string) (*model.KeyframeStill, error) {
	data, err := s.redis.Get(ctx, keyframeKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read keyframe %s: %w", id, err)
	}

	var keyframe model.KeyframeStill
	if err := json.Unmarshal(data, &keyframe); err != nil {
		return nil, fmt.Errorf("failed to decode keyframe %s: %w", id, err)
	}
	return &keyframe, nil
}

func (s *RedisStore) PutKeyframe(ctx context.Context, keyframe *model.KeyframeStill) error {
	data, err := json.Marshal(keyframe)
	if err != nil {
		return fmt.Errorf("failed to encode keyframe %s: %w", keyframe.ID, err)
	}
	if err := s.redis.Set(ctx, keyframeKey(keyframe.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write keyframe %s: %w", keyframe.ID, err)
	}
	return nil
}

func (s *RedisStore) AppendKeyframe(ctx context.Context, videoID, keyframeID string) error {
	if err := s.redis.RPush(ctx, keyframeIndexKey(videoID), keyframeID).Err(); err != nil {
		return fmt.Errorf("failed to index keyframe %s: %w", keyframeID, err)
	}
	return nil
}

func (s *RedisStore) ListKeyframes(ctx context.Context, videoID string) ([]*model.KeyframeStill, error) {
	ids, err := s.redis.LRange(ctx, keyframeIndexKey(videoID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keyframes for video %s: %w", videoID, err)
	}

	keyframes := make([]*model.KeyframeStill, 0, len(ids))
	for _, id := range ids {
		kf, err := s.GetKeyframe(ctx, id)
		if err != nil {
			if err == ErrNotFound {
				// Index entry without a document is a structural
				// inconsistency; surface it to the caller.
				return nil, fmt.Errorf("keyframe %s indexed for video %s but missing: %w", id, videoID, ErrNotFound)
			}
			return nil, err
		}
		keyframes = append(keyframes, kf)
	}
	return keyframes, nil
}
