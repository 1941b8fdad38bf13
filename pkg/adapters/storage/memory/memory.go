package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/mythgate/internal/domain"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InMemoryStateStorage implements StateStorage using in-memory maps.
// Values are stored serialized so callers never share mutable state.
type InMemoryStateStorage struct {
	reports map[string]entry
	jobs    map[string]entry
	jobTTL  time.Duration
	now     func() time.Time
	mu      sync.RWMutex
}

// NewInMemoryStateStorage creates a new in-memory state storage
func NewInMemoryStateStorage(jobTTL time.Duration) *InMemoryStateStorage {
	return &InMemoryStateStorage{
		reports: make(map[string]entry),
		jobs:    make(map[string]entry),
		jobTTL:  jobTTL,
		now:     time.Now,
	}
}

// SaveReport caches a report under key for ttl
func (s *InMemoryStateStorage) SaveReport(ctx context.Context, key string, report *domain.Report, ttl time.Duration) error {
	return s.put(s.reports, key, report, ttl)
}

// GetReport returns a cached report or domain.ErrNotFound
func (s *InMemoryStateStorage) GetReport(ctx context.Context, key string) (*domain.Report, error) {
	var report domain.Report
	if err := s.get(s.reports, key, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// SaveJob stores job state
func (s *InMemoryStateStorage) SaveJob(ctx context.Context, job *domain.Job) error {
	return s.put(s.jobs, job.ID, job, s.jobTTL)
}

// GetJob returns job state or domain.ErrNotFound
func (s *InMemoryStateStorage) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := s.get(s.jobs, id, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Ping always succeeds
func (s *InMemoryStateStorage) Ping(ctx context.Context) error {
	return nil
}

func (s *InMemoryStateStorage) put(m map[string]entry, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	e := entry{data: data}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m[key] = e
	return nil
}

func (s *InMemoryStateStorage) get(m map[string]entry, key string, v interface{}) error {
	s.mu.RLock()
	e, ok := m[key]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	if e.expired(s.now()) {
		s.mu.Lock()
		delete(m, key)
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}

	if err := json.Unmarshal(e.data, v); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return nil
}
