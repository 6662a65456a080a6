package taskstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	task      PendingTask
	expiresAt time.Time
}

// MemoryStore keeps pending tasks in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Put(_ context.Context, task PendingTask, ttl time.Duration) error {
	now := s.now()
	task = prepare(task, now)

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[task.TaskID]; ok && s.live(old, now) {
		task.CreatedAt = old.task.CreatedAt
	}
	e := memoryEntry{task: task}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	s.entries[task.TaskID] = e
	return nil
}

func (s *MemoryStore) Get(_ context.Context, taskID string) (*PendingTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[taskID]
	if !ok || !s.live(e, s.now()) {
		return nil, ErrNotFound
	}
	t := e.task
	return &t, nil
}

func (s *MemoryStore) Delete(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, taskID)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]PendingTask, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PendingTask, 0, len(s.entries))
	for id, e := range s.entries {
		if !s.live(e, now) {
			delete(s.entries, id)
			continue
		}
		out = append(out, e.task)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) live(e memoryEntry, now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}
