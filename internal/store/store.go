package store

import (
	"context"
	"errors"

	"github.com/seantiz/pdf2zh-engine/internal/model"
)

// ErrInvalidTransition is returned when a job status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// JobStats holds aggregate translation statistics.
type JobStats struct {
	Total          int            `json:"total"`
	CountByStatus  map[string]int `json:"count_by_status"`
	CountByService map[string]int `json:"count_by_service"`
	AvgDurationMS  float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for the job history ledger.
type Store interface {
	CreateJob(ctx context.Context, j *model.JobRecord) error
	GetJob(ctx context.Context, id string) (*model.JobRecord, error)
	ListJobs(ctx context.Context, limit, offset int) ([]*model.JobRecord, int, error)
	FinishJob(ctx context.Context, j *model.JobRecord) error
	GetJobStats(ctx context.Context) (*JobStats, error)
	InsertEvent(ctx context.Context, jobID string, seq int, ev model.Event) error
	GetEvents(ctx context.Context, jobID string) ([]model.EventRecord, error)
	Close() error
}
