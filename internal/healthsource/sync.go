package healthsource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	glycoerrors "github.com/hpungsan/glyco/internal/errors"
)

// DefaultAuthTimeout bounds RequestAuthorization when no timeout is configured.
const DefaultAuthTimeout = 30 * time.Second

// MergeResult reports what a merge did with a batch of samples.
type MergeResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// Merger receives fetched samples. The record store implements it.
type Merger interface {
	Merge(ctx context.Context, samples []Sample) (MergeResult, error)
}

// SyncResult describes one sync run.
type SyncResult struct {
	RunID   string `json:"run_id"`
	Source  string `json:"source"`
	Fetched int    `json:"fetched"`
	MergeResult
}

// Syncer connects to a Source and merges its history into a Merger.
type Syncer struct {
	source      Source
	merger      Merger
	log         *zap.Logger
	authTimeout time.Duration
	connected   atomic.Bool
}

// NewSyncer wires a source to a merger. authTimeout <= 0 uses DefaultAuthTimeout.
func NewSyncer(source Source, merger Merger, authTimeout time.Duration, log *zap.Logger) *Syncer {
	if authTimeout <= 0 {
		authTimeout = DefaultAuthTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{source: source, merger: merger, log: log, authTimeout: authTimeout}
}

// Connected reports whether the last authorization request succeeded.
func (s *Syncer) Connected() bool { return s.connected.Load() }

// Source returns the wrapped source.
func (s *Syncer) Source() Source { return s.source }

// Connect requests authorization once, bounded by the auth timeout.
// A denial or timeout leaves the syncer disconnected and returns false.
// No retry is attempted.
func (s *Syncer) Connect(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.authTimeout)
	defer cancel()

	ok, err := s.source.RequestAuthorization(ctx)
	if err != nil {
		s.connected.Store(false)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.log.Warn("health source authorization timed out",
				zap.String("source", s.source.Name()), zap.Duration("timeout", s.authTimeout))
			return false, nil
		}
		if errors.Is(err, context.Canceled) {
			return false, glycoerrors.NewCancelled("authorization")
		}
		s.log.Warn("health source authorization failed", zap.String("source", s.source.Name()), zap.Error(err))
		return false, nil
	}
	s.connected.Store(ok)
	s.log.Info("health source authorization", zap.String("source", s.source.Name()), zap.Bool("granted", ok))
	return ok, nil
}

// Sync fetches up to limit samples and merges them. It connects first when
// needed; a denial is NOT_CONNECTED. A fetch failure is logged and treated
// as an empty fetch.
func (s *Syncer) Sync(ctx context.Context, limit int) (*SyncResult, error) {
	if !s.Connected() {
		ok, err := s.Connect(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, glycoerrors.NewNotConnected(s.source.Name())
		}
	}

	result := &SyncResult{
		RunID:  ulid.Make().String(),
		Source: s.source.Name(),
	}
	log := s.log.With(zap.String("run_id", result.RunID), zap.String("source", result.Source))

	samples, err := s.source.FetchHistory(ctx, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, glycoerrors.NewCancelled("sync")
		}
		log.Warn("health source fetch failed", zap.Error(err))
		samples = nil
	}
	result.Fetched = len(samples)
	if len(samples) == 0 {
		log.Debug("health source returned no samples")
		return result, nil
	}

	merged, err := s.merger.Merge(ctx, samples)
	if err != nil {
		return nil, err
	}
	result.MergeResult = merged
	log.Info("health source synced",
		zap.Int("fetched", result.Fetched), zap.Int("added", merged.Added), zap.Int("skipped", merged.Skipped))
	return result, nil
}

// Latest returns the source's newest sample, or nil when unavailable.
// Fetch failures are logged and reported as nil.
func (s *Syncer) Latest(ctx context.Context) *Sample {
	sample, err := s.source.FetchLatest(ctx)
	if err != nil {
		s.log.Warn("health source latest fetch failed", zap.String("source", s.source.Name()), zap.Error(err))
		return nil
	}
	return sample
}
