package stubserver

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"storyforge/types"
)

// ErrNotFound is returned for unknown job or story ids.
var ErrNotFound = errors.New("record not found")

// JobRecord is a stored job plus the bookkeeping the backend keeps around
// it: ownership, draft expiry, and whether finalize has run.
type JobRecord struct {
	Job       *types.Job `json:"job"`
	UserID    string     `json:"userId"`
	Finalized bool       `json:"finalized"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// StoryRecord is a persisted story plus its owner.
type StoryRecord struct {
	Story  *types.Story `json:"story"`
	UserID string       `json:"userId"`
}

// Store persists jobs and stories. Two implementations: the in-memory map
// (default) and Redis.
type Store interface {
	SaveJob(ctx context.Context, rec *JobRecord) error
	GetJob(ctx context.Context, jobID string) (*JobRecord, error)
	DeleteJob(ctx context.Context, jobID string) error
	JobIDs(ctx context.Context) ([]string, error)

	SaveStory(ctx context.Context, rec *StoryRecord) error
	GetStory(ctx context.Context, storyID string) (*StoryRecord, error)
	ListStories(ctx context.Context, userID string) ([]types.Story, error)

	Close() error
}

// MemoryStore keeps everything in maps behind an RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]*JobRecord
	stories map[string]*StoryRecord
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]*JobRecord),
		stories: make(map[string]*StoryRecord),
	}
}

func (m *MemoryStore) SaveJob(ctx context.Context, rec *JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.Job = rec.Job.Clone()
	m.jobs[rec.Job.JobID] = &cp
	return nil
}

func (m *MemoryStore) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	cp.Job = rec.Job.Clone()
	return &cp, nil
}

func (m *MemoryStore) DeleteJob(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	return nil
}

func (m *MemoryStore) JobIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.jobs))
	for id := range m.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) SaveStory(ctx context.Context, rec *StoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stories[rec.Story.ID] = rec
	return nil
}

func (m *MemoryStore) GetStory(ctx context.Context, storyID string) (*StoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.stories[storyID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) ListStories(ctx context.Context, userID string) ([]types.Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.Story
	for _, rec := range m.stories {
		if rec.UserID == userID {
			out = append(out, *rec.Story)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
