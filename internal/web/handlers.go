package web

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/glyco/internal/config"
	"github.com/hpungsan/glyco/internal/errors"
	"github.com/hpungsan/glyco/internal/healthsource"
	"github.com/hpungsan/glyco/internal/intake"
	"github.com/hpungsan/glyco/internal/record"
	"github.com/hpungsan/glyco/internal/report"
	"github.com/hpungsan/glyco/internal/viewmodel"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	deps     Deps
	cfg      *config.Config
	log      *zap.Logger
	renderer *Renderer

	records *viewmodel.ViewModel[[]viewmodel.DayGroup]
	home    *viewmodel.ViewModel[viewmodel.Home]
}

// NewHandlers creates the handlers and subscribes their view models.
func NewHandlers(deps Deps, renderer *Renderer) *Handlers {
	if deps.Config == nil {
		deps.Config = config.DefaultConfig()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Handlers{
		deps:     deps,
		cfg:      deps.Config,
		log:      deps.Log,
		renderer: renderer,
		records:  viewmodel.NewRecords(deps.Store, deps.Clock, deps.Location, viewmodel.LabelsFor(deps.Config.Locale)),
		home:     viewmodel.NewHome(deps.Store),
	}
}

// Close releases the view model subscriptions.
func (h *Handlers) Close() {
	h.records.Close()
	h.home.Close()
}

func (h *Handlers) unit() string {
	if h.deps.Settings != nil {
		return h.deps.Settings.SugarUnit()
	}
	return report.NormalizeUnit(h.cfg.SugarUnit)
}

func (h *Handlers) connected() bool {
	return h.deps.Settings != nil && h.deps.Settings.Connected()
}

// HandleHome handles GET / — latest readings and the glucose trend.
func (h *Handlers) HandleHome(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, r, "home", HomePageData{
		PageData:  h.renderer.pageData("Home", "home", h.cfg.Locale),
		Home:      h.home.Projection(),
		Unit:      h.unit(),
		Connected: h.connected(),
	})
}

// HandleRecords handles GET /records — records grouped by day.
func (h *Handlers) HandleRecords(w http.ResponseWriter, r *http.Request) {
	// Refresh so "Today"/"Yesterday" follow the wall clock
	days := h.records.Refresh()
	total := 0
	for _, d := range days {
		total += len(d.Records)
	}
	h.renderer.renderPage(w, r, "records", RecordsPageData{
		PageData: h.renderer.pageData("Records", "records", h.cfg.Locale),
		Days:     days,
		Total:    total,
		Unit:     h.unit(),
	})
}

// HandleAddInsulin handles POST /records/insulin — manual dose entry.
func (h *Handlers) HandleAddInsulin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	units, err := intake.ParseUnits(r.FormValue("units"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	rec, err := h.records.AddInsulin(r.Context(), units, time.Time{})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.mutated(w, r, http.StatusCreated, rec, "/records")
}

// HandleAddGlucose handles POST /records/glucose — manual reading entry in
// the current display unit.
func (h *Handlers) HandleAddGlucose(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	value, err := intake.ParseGlucose(r.FormValue("value"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	unit := h.unit()
	if u := r.FormValue("unit"); u != "" {
		unit = report.NormalizeUnit(u)
	}
	if unit == report.UnitMmol {
		value *= healthsource.MmolToMgdl
	}
	rec, err := h.records.AddGlucose(r.Context(), value, time.Time{})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.mutated(w, r, http.StatusCreated, rec, "/records")
}

// HandleDelete handles DELETE /records/{id} and POST /records/{id}/delete.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("record ID is required"))
		return
	}

	removed, err := h.records.Delete(r.Context(), id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if !removed {
		h.renderer.renderError(w, r, errors.NewNotFound(id))
		return
	}
	h.mutated(w, r, http.StatusOK, map[string]any{"deleted": true, "id": id}, "/records")
}

// HandleDeleteAll handles POST /records/delete-all.
func (h *Handlers) HandleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}
	if err := h.records.DeleteAll(r.Context()); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.mutated(w, r, http.StatusOK, map[string]any{"deleted_all": true}, "/settings")
}

// HandleSettings handles GET /settings.
func (h *Handlers) HandleSettings(w http.ResponseWriter, r *http.Request) {
	h.renderSettings(w, r, nil, nil)
}

func (h *Handlers) renderSettings(w http.ResponseWriter, r *http.Request, sync *healthsource.SyncResult, export *viewmodel.ExportOutput) {
	data := SettingsPageData{
		PageData:  h.renderer.pageData("Settings", "settings", h.cfg.Locale),
		Source:    "none",
		Connected: h.connected(),
		Unit:      h.unit(),
		Sync:      sync,
		Export:    export,
	}
	if h.deps.Settings != nil {
		data.Glucose = h.deps.Settings.Glucose()
		data.Source = h.deps.Settings.SourceName()
	}
	h.renderer.renderPage(w, r, "settings", data)
}

// HandleSetUnit handles POST /settings/unit.
func (h *Handlers) HandleSetUnit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	if h.deps.Settings == nil {
		h.renderer.renderError(w, r, errors.NewInternal(nil))
		return
	}
	if err := h.deps.Settings.SetSugarUnit(r.Context(), r.FormValue("unit")); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.mutated(w, r, http.StatusOK, map[string]any{"unit": h.unit()}, "/settings")
}

// HandleConnect handles POST /settings/connect — request health source access.
func (h *Handlers) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if h.deps.Settings == nil {
		h.renderer.renderError(w, r, errors.NewNotConnected("none"))
		return
	}
	ok, err := h.deps.Settings.Connect(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.mutated(w, r, http.StatusOK, map[string]any{"connected": ok}, "/settings")
}

// HandleSync handles POST /settings/sync — merge recent health source samples.
func (h *Handlers) HandleSync(w http.ResponseWriter, r *http.Request) {
	if h.deps.Settings == nil {
		h.renderer.renderError(w, r, errors.NewNotConnected("none"))
		return
	}
	limit := parseIntParam(r, "limit", h.cfg.HistoryLimit)
	if limit <= 0 {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("limit must be positive"))
		return
	}
	res, err := h.deps.Settings.SyncLimit(r.Context(), limit)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, res)
		return
	}
	h.renderSettings(w, r, res, nil)
}

// HandleExport handles POST /settings/export — write the glucose report.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	if h.deps.Settings == nil {
		h.renderer.renderError(w, r, errors.NewExportFailed(nil))
		return
	}
	out, err := h.deps.Settings.ExportReport(r.Context(), viewmodel.ExportInput{
		Path:  r.FormValue("path"),
		Share: r.FormValue("share") == "true",
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, out)
		return
	}
	h.renderSettings(w, r, nil, out)
}

// HandleAPIRecords handles GET /api/records — the records list as JSON.
func (h *Handlers) HandleAPIRecords(w http.ResponseWriter, r *http.Request) {
	days := h.records.Refresh()
	if n := parseIntParam(r, "days", 0); n > 0 && len(days) > n {
		days = days[:n]
	}
	renderJSON(w, http.StatusOK, map[string]any{"days": days})
}

// HandleAPISummary handles GET /api/summary — the home summary as JSON.
func (h *Handlers) HandleAPISummary(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]any{
		"summary":   h.home.Projection(),
		"unit":      h.unit(),
		"connected": h.connected(),
	})
}

// mutated answers a successful mutation: JSON body, htmx redirect or a plain
// redirect to next.
func (h *Handlers) mutated(w http.ResponseWriter, r *http.Request, status int, body any, next string) {
	if rec, ok := body.(record.Record); ok {
		body = map[string]any{"record": rec}
	}

	// HTMX request: redirect via HX-Redirect header
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", next)
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, status, body)
		return
	}

	http.Redirect(w, r, next, http.StatusFound)
}

// parseIntParam parses an integer query or form parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.FormValue(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
