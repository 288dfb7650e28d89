package viewmodel

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/glyco/internal/config"
	"github.com/hpungsan/glyco/internal/errors"
	"github.com/hpungsan/glyco/internal/healthsource"
	"github.com/hpungsan/glyco/internal/kv"
	"github.com/hpungsan/glyco/internal/record"
	"github.com/hpungsan/glyco/internal/report"
	"github.com/hpungsan/glyco/internal/share"
	"github.com/hpungsan/glyco/internal/store"
)

// SugarUnitKey is the kv key of the display unit preference.
const SugarUnitKey = "sugar_unit"

// GlucoseOnly keeps glucose readings, newest first.
func GlucoseOnly(records []record.Record) []record.Record {
	out := make([]record.Record, 0, len(records))
	for _, r := range records {
		if _, ok := r.Glucose(); ok {
			out = append(out, r)
		}
	}
	return out
}

// SettingsDeps are the collaborators of the settings screen. Syncer and
// Publisher may be nil when no health source or share target is configured.
type SettingsDeps struct {
	Store      *store.Store
	KV         kv.Store
	Syncer     *healthsource.Syncer
	Publisher  share.Publisher
	Config     *config.Config
	ExportsDir string
	Location   *time.Location
	Log        *zap.Logger
	Clock      func() time.Time
}

// Settings is the settings-screen model: health source connection, glucose
// display unit and report export.
type Settings struct {
	deps    SettingsDeps
	glucose *ViewModel[[]record.Record]

	mu        sync.Mutex
	closed    bool
	connected bool
	unit      string
}

// ExportInput selects where a report goes.
type ExportInput struct {
	Path  string // optional; default under the exports dir
	Share bool   // also publish through the configured publisher
}

// ExportOutput describes an exported report.
type ExportOutput struct {
	*report.WriteOutput
	Unit   string        `json:"unit"`
	Shared *share.Shared `json:"shared,omitempty"`
}

// NewSettings loads the saved unit preference, falling back to config.
func NewSettings(ctx context.Context, deps SettingsDeps) (*Settings, error) {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Config == nil {
		deps.Config = config.DefaultConfig()
	}

	unit := report.NormalizeUnit(deps.Config.SugarUnit)
	saved, found, err := deps.KV.Get(ctx, SugarUnitKey)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if found {
		unit = report.NormalizeUnit(string(saved))
	}

	s := &Settings{deps: deps, unit: unit}
	if deps.Syncer != nil {
		s.connected = deps.Syncer.Connected()
	}
	s.glucose = New(deps.Store, GlucoseOnly)
	return s, nil
}

// Connected reports the health source connection state.
func (s *Settings) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// SourceName names the configured health source, or "none".
func (s *Settings) SourceName() string {
	if s.deps.Syncer == nil {
		return "none"
	}
	return s.deps.Syncer.Source().Name()
}

// Connect requests authorization from the health source. A result arriving
// after Close is dropped.
func (s *Settings) Connect(ctx context.Context) (bool, error) {
	if s.deps.Syncer == nil {
		return false, errors.NewNotConnected("none")
	}
	ok, err := s.deps.Syncer.Connect(ctx)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.deps.Log.Debug("dropping authorization result after close")
		return ok, nil
	}
	s.connected = ok
	return ok, nil
}

// Sync merges up to report_history_limit samples from the health source.
func (s *Settings) Sync(ctx context.Context) (*healthsource.SyncResult, error) {
	return s.SyncLimit(ctx, s.deps.Config.ReportHistoryLimit)
}

// SyncLimit merges up to limit samples from the health source.
func (s *Settings) SyncLimit(ctx context.Context, limit int) (*healthsource.SyncResult, error) {
	if s.deps.Syncer == nil {
		return nil, errors.NewNotConnected("none")
	}
	res, err := s.deps.Syncer.Sync(ctx, limit)
	s.mu.Lock()
	if !s.closed {
		s.connected = s.deps.Syncer.Connected()
	}
	s.mu.Unlock()
	return res, err
}

// SugarUnit returns "mg/dL" or "mmol/L".
func (s *Settings) SugarUnit() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unit
}

// SetSugarUnit saves the display unit preference.
func (s *Settings) SetSugarUnit(ctx context.Context, unit string) error {
	var normalized string
	switch {
	case unit == report.UnitMgdl || unit == "mgdl":
		normalized = report.UnitMgdl
	case unit == report.UnitMmol || unit == "mmol":
		normalized = report.UnitMmol
	default:
		return errors.NewInvalidRequest("sugar unit must be mg/dL or mmol/L")
	}
	if err := s.deps.KV.Put(ctx, SugarUnitKey, []byte(normalized)); err != nil {
		return errors.NewInternal(err)
	}
	s.mu.Lock()
	s.unit = normalized
	s.mu.Unlock()
	return nil
}

// Glucose returns the glucose readings shown in the settings data section.
func (s *Settings) Glucose() []record.Record {
	return s.glucose.Projection()
}

// ExportReport writes the glucose report and optionally publishes it. When
// the health source is connected, recent samples are merged first; a failed
// sync is logged and the export continues with local data.
func (s *Settings) ExportReport(ctx context.Context, in ExportInput) (*ExportOutput, error) {
	if s.Connected() {
		if _, err := s.Sync(ctx); err != nil {
			s.deps.Log.Warn("sync before export failed", zap.Error(err))
		}
	}

	unit := s.SugarUnit()
	doc := report.Build(s.exportRecords(), s.deps.Clock(), report.Options{RowsPerPage: s.deps.Config.RowsPerPage})
	written, err := report.Write(ctx, s.deps.Config, doc, report.WriteInput{
		Path:       in.Path,
		ExportsDir: s.deps.ExportsDir,
		Locale:     s.deps.Config.Locale,
		Unit:       unit,
		Location:   s.deps.Location,
	})
	if err != nil {
		return nil, err
	}

	out := &ExportOutput{WriteOutput: written, Unit: unit}
	if in.Share && s.deps.Publisher != nil {
		shared, err := s.deps.Publisher.Publish(ctx, written.Path)
		if err != nil {
			return nil, errors.NewExportFailed(err)
		}
		out.Shared = shared
	}
	s.deps.Log.Info("report exported",
		zap.String("report_id", written.ReportID), zap.String("path", written.Path), zap.Int("count", written.Count))
	return out, nil
}

// exportRecords returns the live glucose projection, or reads the store
// directly once the projection is frozen by Close.
func (s *Settings) exportRecords() []record.Record {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return GlucoseOnly(s.deps.Store.Snapshot())
	}
	return s.glucose.Projection()
}

// Close releases the glucose subscription; in-flight results are dropped.
func (s *Settings) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.glucose.Close()
}
