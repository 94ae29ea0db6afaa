// Package store persists recorded search response snapshots.
package store

import (
	"context"
	"time"

	"github.com/sells-group/medsearch/internal/model"
)

// SnapshotFilter specifies criteria for listing snapshots.
type SnapshotFilter struct {
	Query  string `json:"query,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for recorded responses.
type Store interface {
	SaveSnapshot(ctx context.Context, query string, body []byte, resultCount int) (*model.Snapshot, error)
	// LatestSnapshot returns the newest snapshot for query, or nil if none.
	LatestSnapshot(ctx context.Context, query string) (*model.Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error)
	ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]model.Snapshot, error)
	DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 50

func listLimit(f SnapshotFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}
