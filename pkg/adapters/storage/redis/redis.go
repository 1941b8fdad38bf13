package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/mythgate/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StateStorage implements StateStorage using Redis
type StateStorage struct {
	client *redis.Client
	logger *zap.Logger
	jobTTL time.Duration
}

// NewStateStorage creates a new Redis state storage
func NewStateStorage(client *redis.Client, jobTTL time.Duration, logger *zap.Logger) *StateStorage {
	return &StateStorage{
		client: client,
		logger: logger,
		jobTTL: jobTTL,
	}
}

// SaveReport caches a report with TTL
func (s *StateStorage) SaveReport(ctx context.Context, key string, report *domain.Report, ttl time.Duration) error {
	if err := s.set(ctx, getReportKey(key), report, ttl); err != nil {
		return err
	}

	s.logger.Debug("report cached",
		zap.String("key", key),
		zap.Duration("ttl", ttl))

	return nil
}

// GetReport retrieves a cached report
func (s *StateStorage) GetReport(ctx context.Context, key string) (*domain.Report, error) {
	var report domain.Report
	if err := s.get(ctx, getReportKey(key), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// SaveJob saves job state to Redis
func (s *StateStorage) SaveJob(ctx context.Context, job *domain.Job) error {
	if err := s.set(ctx, getJobKey(job.ID), job, s.jobTTL); err != nil {
		return err
	}

	s.logger.Debug("job saved",
		zap.String("job_id", job.ID),
		zap.String("status", string(job.Status)))

	return nil
}

// GetJob retrieves job state from Redis
func (s *StateStorage) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := s.get(ctx, getJobKey(id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Ping checks the Redis connection
func (s *StateStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *StateStorage) set(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	return nil
}

func (s *StateStorage) get(ctx context.Context, key string, v interface{}) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, key)
		}
		return fmt.Errorf("failed to get state: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return nil
}

// getReportKey returns the Redis key for a cached report
func getReportKey(key string) string {
	return fmt.Sprintf("mythgate:report:%s", key)
}

// getJobKey returns the Redis key for a job
func getJobKey(id string) string {
	return fmt.Sprintf("mythgate:job:%s", id)
}
