package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"taskdash/internal/models"
	"taskdash/internal/storage"
)

const SnapshotKey = "tasks"

type LoadStatus int

const (
	// LoadOK means the snapshot was present and decoded.
	LoadOK LoadStatus = iota
	// LoadMissing means no snapshot has been written yet.
	LoadMissing
	// LoadRecovered means the snapshot could not be read or decoded and
	// an empty collection was substituted.
	LoadRecovered
)

func (s LoadStatus) String() string {
	switch s {
	case LoadOK:
		return "ok"
	case LoadMissing:
		return "missing"
	case LoadRecovered:
		return "recovered"
	default:
		return "unknown"
	}
}

type LoadResult struct {
	Tasks  []models.Task
	Status LoadStatus
	Cause  error
}

// Store persists the whole task collection as one JSON array.
type Store struct {
	kv  storage.KeyValueStore
	key string
}

func NewStore(kv storage.KeyValueStore) *Store {
	return &Store{kv: kv, key: SnapshotKey}
}

// Load never fails: unreadable or malformed content yields an empty
// collection tagged LoadRecovered.
func (s *Store) Load(ctx context.Context) LoadResult {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return LoadResult{Tasks: []models.Task{}, Status: LoadMissing}
		}
		log.Printf("[tasks] Error loading tasks from store: %v", err)
		return LoadResult{Tasks: []models.Task{}, Status: LoadRecovered, Cause: err}
	}

	if len(data) == 0 {
		return LoadResult{Tasks: []models.Task{}, Status: LoadMissing}
	}

	var tasks []models.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		log.Printf("[tasks] Error parsing stored tasks, starting empty: %v", err)
		return LoadResult{Tasks: []models.Task{}, Status: LoadRecovered, Cause: err}
	}

	if tasks == nil {
		tasks = []models.Task{}
	}

	return LoadResult{Tasks: tasks, Status: LoadOK}
}

func (s *Store) Save(ctx context.Context, tasks []models.Task) error {
	if tasks == nil {
		tasks = []models.Task{}
	}

	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to serialize tasks: %w", err)
	}

	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to save tasks: %w", err)
	}

	return nil
}
