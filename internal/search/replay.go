package search

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/medsearch/internal/model"
	"github.com/sells-group/medsearch/pkg/cappsule"
)

// SnapshotReader looks up recorded responses.
type SnapshotReader interface {
	LatestSnapshot(ctx context.Context, query string) (*model.Snapshot, error)
}

// ReplayFetcher serves searches from recorded snapshots instead of the
// network.
type ReplayFetcher struct {
	snapshots SnapshotReader
}

// NewReplayFetcher creates a Fetcher backed by recorded snapshots.
func NewReplayFetcher(snapshots SnapshotReader) *ReplayFetcher {
	return &ReplayFetcher{snapshots: snapshots}
}

// Search returns the most recent snapshot recorded for query.
func (f *ReplayFetcher) Search(ctx context.Context, query string) (*cappsule.SearchResponse, error) {
	snap, err := f.snapshots.LatestSnapshot(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "replay: load snapshot")
	}
	if snap == nil {
		return nil, eris.Errorf("replay: no snapshot recorded for %q", query)
	}

	results, err := snap.Results()
	if err != nil {
		return nil, eris.Wrapf(err, "replay: parse snapshot %s", snap.ID)
	}
	return &cappsule.SearchResponse{Query: query, Results: results, Body: snap.Body}, nil
}
