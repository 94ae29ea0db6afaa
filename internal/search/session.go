// Package search runs medicine queries against a Fetcher and feeds the
// results into a selection.State.
package search

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/medsearch/internal/model"
	"github.com/sells-group/medsearch/internal/selection"
	"github.com/sells-group/medsearch/pkg/cappsule"
)

// Fetcher retrieves search results for a query. cappsule.Client satisfies it.
type Fetcher interface {
	Search(ctx context.Context, query string) (*cappsule.SearchResponse, error)
}

// Recorder persists raw response bodies for later replay.
type Recorder interface {
	SaveSnapshot(ctx context.Context, query string, body []byte, resultCount int) (*model.Snapshot, error)
}

// Outcome describes what a Search call did to the session state.
type Outcome string

const (
	OutcomeApplied Outcome = "applied" // results replaced, defaults derived
	OutcomeStale   Outcome = "stale"   // a newer search was issued first
	OutcomeFailed  Outcome = "failed"  // fetch or parse failed; state unchanged
	OutcomeSkipped Outcome = "skipped" // empty query
)

// Session is one user's search context: a query history of length one and
// the selection state derived from the latest results.
type Session struct {
	ID        string
	CreatedAt time.Time

	state    *selection.State
	fetcher  Fetcher
	recorder Recorder

	mu       sync.Mutex
	issued   uint64
	cancel   context.CancelFunc
	query    string
	lastUsed time.Time
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithRecorder records every applied response body.
func WithRecorder(r Recorder) SessionOption {
	return func(s *Session) {
		s.recorder = r
	}
}

// NewSession creates a session with empty state.
func NewSession(id string, fetcher Fetcher, opts ...SessionOption) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:        id,
		CreatedAt: now,
		state:     selection.NewState(),
		fetcher:   fetcher,
		lastUsed:  now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the session's selection state.
func (s *Session) State() *selection.State {
	return s.state
}

// Snapshot is a session's applied query together with the state derived
// from its results.
type Snapshot struct {
	Query string
	State selection.Snapshot
}

// Snapshot copies the query and selection state together, so the two
// always belong to the same search.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Query: s.query, State: s.state.Snapshot()}
}

// LastUsed returns when the session was last searched or touched.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Touch marks the session as used now.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastUsed = time.Now().UTC()
	s.mu.Unlock()
}

// Search fetches results for query and, if no newer search has been issued
// in the meantime, replaces the session's results and derives the default
// selections. Issuing a search cancels the one before it. Failures are
// logged and leave the state as it was.
func (s *Session) Search(ctx context.Context, query string) Outcome {
	if query == "" {
		return OutcomeSkipped
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.issued++
	id := s.issued
	s.cancel = cancel
	s.lastUsed = time.Now().UTC()
	s.mu.Unlock()

	log := zap.L().With(
		zap.String("session", s.ID),
		zap.String("query", query),
		zap.Uint64("request", id),
	)

	resp, err := s.fetcher.Search(ctx, query)

	s.mu.Lock()
	if latest := s.issued; id != latest {
		s.mu.Unlock()
		log.Debug("dropping stale search response", zap.Uint64("latest", latest))
		return OutcomeStale
	}
	if err != nil {
		s.mu.Unlock()
		log.Error("search failed", zap.Error(err))
		return OutcomeFailed
	}
	s.state.Replace(resp.Results)
	s.query = query
	s.cancel = nil
	s.mu.Unlock()

	log.Info("search applied", zap.Int("results", len(resp.Results)))

	if s.recorder != nil && len(resp.Body) > 0 {
		if _, err := s.recorder.SaveSnapshot(ctx, query, resp.Body, len(resp.Results)); err != nil {
			log.Warn("failed to record search snapshot", zap.Error(err))
		}
	}
	return OutcomeApplied
}
