// Package store is the single owner of health records. It persists the full
// collection to a key-value backend after every mutation and notifies
// subscribers with the complete post-mutation snapshot.
package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hpungsan/glyco/internal/errors"
	"github.com/hpungsan/glyco/internal/healthsource"
	"github.com/hpungsan/glyco/internal/kv"
	"github.com/hpungsan/glyco/internal/record"
)

// Key is the kv key holding the encoded record collection.
const Key = "health_records"

// Mutation names used in logs and metrics.
const (
	opAddInsulin = "add_insulin"
	opAddGlucose = "add_glucose"
	opDelete     = "delete"
	opDeleteAll  = "delete_all"
	opMerge      = "merge"
)

// entry pairs a record with its insertion sequence for tie-breaking.
type entry struct {
	rec record.Record
	seq uint64
}

// Store holds records in insertion order. All mutations, their persistence
// and the resulting notifications run under mu, in the order issued.
type Store struct {
	mu      sync.Mutex
	kv      kv.Store
	entries []entry
	ids     map[string]struct{}
	seq     uint64

	subsMu sync.Mutex
	subs   []*Subscription

	log     *zap.Logger
	metrics *metrics
	now     func() time.Time
}

// Option configures a Store.
type Option func(*options)

type options struct {
	log *zap.Logger
	reg prometheus.Registerer
	now func() time.Time
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithRegisterer registers store metrics on reg instead of a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// WithClock overrides the clock used when a mutation has no timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Open loads the persisted collection from backend. An undecodable payload
// is logged and the store starts empty; a backend read error is returned.
func Open(ctx context.Context, backend kv.Store, opts ...Option) (*Store, error) {
	o := options{log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{
		kv:      backend,
		ids:     make(map[string]struct{}),
		log:     o.log,
		metrics: newMetrics(o.reg),
		now:     o.now,
	}

	payload, found, err := backend.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	if found {
		records, err := record.DecodeSnapshot(payload)
		if err != nil {
			s.log.Warn("discarding undecodable record snapshot", zap.Error(err), zap.Int("bytes", len(payload)))
			records = nil
		}
		for _, r := range records {
			s.seq++
			s.entries = append(s.entries, entry{rec: r, seq: s.seq})
			s.ids[r.ID] = struct{}{}
		}
	}
	s.metrics.records.Set(float64(len(s.entries)))
	s.log.Debug("record store opened", zap.Int("records", len(s.entries)), zap.String("driver", string(backend.Driver())))
	return s, nil
}

// AddInsulin records a dose. A zero at means now. units <= 0 is INVALID_UNITS.
func (s *Store) AddInsulin(ctx context.Context, units int, at time.Time) (record.Record, error) {
	return s.add(ctx, opAddInsulin, record.Insulin{Units: units}, at)
}

// AddGlucose records a reading in mg/dL. A zero at means now.
// Non-positive or non-finite values are INVALID_VALUE.
func (s *Store) AddGlucose(ctx context.Context, value float64, at time.Time) (record.Record, error) {
	return s.add(ctx, opAddGlucose, record.Glucose{Value: value}, at)
}

func (s *Store) add(ctx context.Context, op string, k record.Kind, at time.Time) (record.Record, error) {
	if err := record.Validate(k); err != nil {
		s.metrics.mutation(op, "invalid")
		return record.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if at.IsZero() {
		at = s.now()
	}
	r := record.New(k, at)
	next := append(s.cloneEntries(), entry{rec: r, seq: s.seq + 1})
	if err := s.commitLocked(ctx, op, next); err != nil {
		return record.Record{}, err
	}
	s.seq++
	return r, nil
}

// Delete removes the record with id. It returns false, without persisting or
// notifying, when no such record exists.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; !ok {
		s.metrics.mutation(opDelete, "noop")
		return false, nil
	}
	next := make([]entry, 0, len(s.entries)-1)
	for _, e := range s.entries {
		if e.rec.ID != id {
			next = append(next, e)
		}
	}
	if err := s.commitLocked(ctx, opDelete, next); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteAll empties the collection, persists and notifies.
func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(ctx, opDeleteAll, nil)
}

// Merge inserts external samples as glucose records keyed by the sample id.
// Samples whose id already exists, or that are invalid, are skipped. Nothing
// is ever removed. Persistence and notification happen only if a record was added.
func (s *Store) Merge(ctx context.Context, samples []healthsource.Sample) (healthsource.MergeResult, error) {
	var result healthsource.MergeResult

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cloneEntries()
	seq := s.seq
	seen := make(map[string]struct{}, len(samples))
	for _, smp := range samples {
		_, exists := s.ids[smp.ID]
		_, dup := seen[smp.ID]
		if exists || dup || !validSample(smp) {
			result.Skipped++
			continue
		}
		seen[smp.ID] = struct{}{}
		seq++
		next = append(next, entry{
			rec: record.WithID(smp.ID, record.Glucose{Value: smp.Value}, smp.Date),
			seq: seq,
		})
		result.Added++
	}

	if result.Added == 0 {
		s.metrics.mutation(opMerge, "noop")
		return result, nil
	}
	if err := s.commitLocked(ctx, opMerge, next); err != nil {
		return healthsource.MergeResult{}, err
	}
	s.seq = seq
	s.metrics.mergeAdded.Add(float64(result.Added))
	return result, nil
}

func validSample(smp healthsource.Sample) bool {
	return smp.ID != "" && !smp.Date.IsZero() &&
		smp.Value > 0 && !math.IsNaN(smp.Value) && !math.IsInf(smp.Value, 0)
}

// Snapshot returns the collection newest first. Equal timestamps are ordered
// most recent insertion first.
func (s *Store) Snapshot() []record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Get returns the record with id.
func (s *Store) Get(id string) (record.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.rec.ID == id {
			return e.rec, true
		}
	}
	return record.Record{}, false
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) snapshotLocked() []record.Record {
	sorted := s.cloneEntries()
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.rec.Date.Equal(b.rec.Date) {
			return a.rec.Date.After(b.rec.Date)
		}
		return a.seq > b.seq
	})
	out := make([]record.Record, len(sorted))
	for i, e := range sorted {
		out[i] = e.rec
	}
	return out
}

func (s *Store) cloneEntries() []entry {
	return append([]entry(nil), s.entries...)
}

// commitLocked persists next and, only on success, installs it and notifies.
// Caller must hold mu.
func (s *Store) commitLocked(ctx context.Context, op string, next []entry) error {
	records := make([]record.Record, len(next))
	for i, e := range next {
		records[i] = e.rec
	}

	start := time.Now()
	payload, err := record.EncodeSnapshot(records)
	if err == nil {
		err = s.kv.Put(ctx, Key, payload)
	}
	s.metrics.persistTime.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.mutation(op, "error")
		s.log.Error("persist records failed", zap.String("op", op), zap.Error(err))
		return errors.NewInternal(fmt.Errorf("persist records: %w", err))
	}

	s.entries = next
	s.ids = make(map[string]struct{}, len(next))
	for _, e := range next {
		s.ids[e.rec.ID] = struct{}{}
	}
	s.metrics.records.Set(float64(len(next)))
	s.metrics.mutation(op, "ok")
	s.log.Debug("records persisted", zap.String("op", op), zap.Int("records", len(next)))

	s.notifyLocked()
	return nil
}
