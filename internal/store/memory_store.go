package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/clipsight/api/internal/model"
)

// MemoryStore is an in-process Store used by tests and as a development
// fallback when Redis is not reachable. Documents are stored as JSON so
// reads return independent copies, matching RedisStore semantics.
type MemoryStore struct {
	mu        sync.RWMutex
	videos    map[string][]byte
	keyframes map[string][]byte
	index     map[string][]string
	videoIDs  []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		videos:    make(map[string][]byte),
		keyframes: make(map[string][]byte),
		index:     make(map[string][]string),
	}
}

func (s *MemoryStore) GetVideo(ctx context.Context, id string) (*model.VideoAsset, error) {
	s.mu.RLock()
	data, ok := s.videos[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	var video model.VideoAsset
	if err := json.Unmarshal(data, &video); err != nil {
		return nil, err
	}
	return &video, nil
}

func (s *MemoryStore) PutVideo(ctx context.Context, video *model.VideoAsset) error {
	data, err := json.Marshal(video)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.videos[video.ID]; !exists {
		s.videoIDs = append(s.videoIDs, video.ID)
	}
	s.videos[video.ID] = data
	return nil
}

func (s *MemoryStore) ListVideoIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.videoIDs))
	copy(ids, s.videoIDs)
	return ids, nil
}

func (s *MemoryStore) GetKeyframe(ctx context.Context, id string) (*model.KeyframeStill, error) {
	s.mu.RLock()
	data, ok := s.keyframes[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	var keyframe model.KeyframeStill
	if err := json.Unmarshal(data, &keyframe); err != nil {
		return nil, err
	}
	return &keyframe, nil
}

func (s *MemoryStore) PutKeyframe(ctx context.Context, keyframe *model.KeyframeStill) error {
	data, err := json.Marshal(keyframe)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.keyframes[keyframe.ID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) AppendKeyframe(ctx context.Context, videoID, keyframeID string) error {
	s.mu.Lock()
	s.index[videoID] = append(s.index[videoID], keyframeID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListKeyframes(ctx context.Context, videoID string) ([]*model.KeyframeStill, error) {
	s.mu.RLock()
	ids := make([]string, len(s.index[videoID]))
	copy(ids, s.index[videoID])
	s.mu.RUnlock()

	keyframes := make([]*model.KeyframeStill, 0, len(ids))
	for _, id := range ids {
		kf, err := s.GetKeyframe(ctx, id)
		if err != nil {
			return nil, err
		}
		keyframes = append(keyframes, kf)
	}
	return keyframes, nil
}
