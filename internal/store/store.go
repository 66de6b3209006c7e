// Package store persists generation runs and their checkpointed sample
// points, so an interrupted run can resume without recomputing finished work.
package store

import (
	"context"

	"github.com/stephenschott/affluence-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the dataset pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Points
	InsertPendingPoints(ctx context.Context, runID string, points []model.StoredPoint) error
	PendingPoints(ctx context.Context, runID string) ([]model.StoredPoint, error)
	CompletePoint(ctx context.Context, pointID string, features map[string]float64, demographics *model.RegionDemographics) error
	DropPoint(ctx context.Context, pointID string) error
	CompletedPoints(ctx context.Context, runID string) ([]model.StoredPoint, error)
	PointCounts(ctx context.Context, runID string) (map[model.PointStatus]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
