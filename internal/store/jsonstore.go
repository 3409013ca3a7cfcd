package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/AliBars19/apollova-publisher/pkg/models"
)

// JSONStore keeps the whole video collection in one JSON file. A mutex
// serializes every operation so concurrent writers (admin publish requests
// and the dispatch loop) cannot lose updates.
type JSONStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONStore creates a store backed by the given file. The file is
// created on first write; a missing file reads as an empty collection.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) List(ctx context.Context) ([]*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *JSONStore) Get(ctx context.Context, id string) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	videos, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, v := range videos {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, models.ErrVideoNotFound
}

func (s *JSONStore) SaveAll(ctx context.Context, videos []*models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(videos)
}

func (s *JSONStore) Upsert(ctx context.Context, video *models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	videos, err := s.load()
	if err != nil {
		return err
	}

	video.UpdatedAt = time.Now()
	replaced := false
	for i, v := range videos {
		if v.ID == video.ID {
			videos[i] = video
			replaced = true
			break
		}
	}
	if !replaced {
		if video.CreatedAt.IsZero() {
			video.CreatedAt = video.UpdatedAt
		}
		videos = append(videos, video)
	}

	return s.write(videos)
}

func (s *JSONStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	videos, err := s.load()
	if err != nil {
		return err
	}

	kept := videos[:0]
	found := false
	for _, v := range videos {
		if v.ID == id {
			found = true
			continue
		}
		kept = append(kept, v)
	}
	if !found {
		return models.ErrVideoNotFound
	}

	return s.write(kept)
}

// load must be called with the mutex held.
func (s *JSONStore) load() ([]*models.Video, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*models.Video{}, nil
		}
		return nil, fmt.Errorf("failed to read video store: %w", err)
	}
	if len(b) == 0 {
		return []*models.Video{}, nil
	}

	var videos []*models.Video
	if err := json.Unmarshal(b, &videos); err != nil {
		return nil, fmt.Errorf("failed to decode video store: %w", err)
	}
	return videos, nil
}

// write must be called with the mutex held. Writes a temp file then renames
// it into place so a crashed write never truncates the collection.
func (s *JSONStore) write(videos []*models.Video) error {
	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].CreatedAt.Before(videos[j].CreatedAt)
	})

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	b, err := json.MarshalIndent(videos, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode video store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("failed to write video store: %w", err)
	}
	return os.Rename(tmp, s.path)
}
