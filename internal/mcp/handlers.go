package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/glyco/internal/config"
	"github.com/hpungsan/glyco/internal/errors"
	"github.com/hpungsan/glyco/internal/healthsource"
	"github.com/hpungsan/glyco/internal/intake"
	"github.com/hpungsan/glyco/internal/record"
	"github.com/hpungsan/glyco/internal/report"
	"github.com/hpungsan/glyco/internal/store"
	"github.com/hpungsan/glyco/internal/viewmodel"
)

// Deps are the collaborators shared by every tool handler.
type Deps struct {
	Store    *store.Store
	Settings *viewmodel.Settings // required for health_sync and report_export
	Config   *config.Config
	Location *time.Location
	Clock    func() time.Time
	Log      *zap.Logger
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps    Deps
	records *viewmodel.ViewModel[[]viewmodel.DayGroup]
	home    *viewmodel.ViewModel[viewmodel.Home]
}

// NewHandlers creates the handlers and their view models. Call Close when done.
func NewHandlers(deps Deps) *Handlers {
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
		deps:    deps,
		records: viewmodel.NewRecords(deps.Store, deps.Clock, deps.Location, viewmodel.LabelsFor(deps.Config.Locale)),
		home:    viewmodel.NewHome(deps.Store),
	}
}

// Close releases the view model subscriptions.
func (h *Handlers) Close() {
	h.records.Close()
	h.home.Close()
}

// Request types for each tool

// AddInsulinRequest represents the arguments for record_add_insulin.
type AddInsulinRequest struct {
	Units int    `json:"units"`
	At    string `json:"at,omitempty"`
}

// AddGlucoseRequest represents the arguments for record_add_glucose.
type AddGlucoseRequest struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
	At    string  `json:"at,omitempty"`
}

// VoiceInsulinRequest represents the arguments for record_voice_insulin.
type VoiceInsulinRequest struct {
	Text string `json:"text"`
}

// DeleteRequest represents the arguments for record_delete.
type DeleteRequest struct {
	ID string `json:"id"`
}

// DeleteAllRequest represents the arguments for record_delete_all.
type DeleteAllRequest struct {
	Confirm bool `json:"confirm"`
}

// ListRequest represents the arguments for record_list.
type ListRequest struct {
	Days int `json:"days,omitempty"`
}

// SyncRequest represents the arguments for health_sync.
type SyncRequest struct {
	Limit int `json:"limit,omitempty"`
}

// ExportRequest represents the arguments for report_export.
type ExportRequest struct {
	Path  string `json:"path,omitempty"`
	Share bool   `json:"share,omitempty"`
}

// RecordView is the JSON shape of a record in tool output.
type RecordView struct {
	ID    string    `json:"id"`
	Kind  string    `json:"kind"`
	Units int       `json:"units,omitempty"`
	Value float64   `json:"value,omitempty"`
	Date  time.Time `json:"date"`
}

func toView(r record.Record) RecordView {
	v := RecordView{ID: r.ID, Kind: r.KindName(), Date: r.Date}
	switch k := r.Kind.(type) {
	case record.Insulin:
		v.Units = k.Units
	case record.Glucose:
		v.Value = k.Value
	}
	return v
}

func toViews(records []record.Record) []RecordView {
	out := make([]RecordView, len(records))
	for i, r := range records {
		out[i] = toView(r)
	}
	return out
}

// Handler implementations

// HandleAddInsulin handles the record_add_insulin tool call.
func (h *Handlers) HandleAddInsulin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AddInsulinRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	at, err := parseAt(input.At)
	if err != nil {
		return errorResult(err), nil
	}
	r, err := h.records.AddInsulin(ctx, input.Units, at)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(toView(r))
}

// HandleAddGlucose handles the record_add_glucose tool call.
func (h *Handlers) HandleAddGlucose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AddGlucoseRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	at, err := parseAt(input.At)
	if err != nil {
		return errorResult(err), nil
	}
	value := input.Value
	if report.NormalizeUnit(input.Unit) == report.UnitMmol {
		value *= healthsource.MmolToMgdl
	}
	r, err := h.records.AddGlucose(ctx, value, at)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(toView(r))
}

// VoiceInsulinResult is the output of record_voice_insulin.
type VoiceInsulinResult struct {
	Record  RecordView `json:"record"`
	Message string     `json:"message"`
}

// HandleVoiceInsulin handles the record_voice_insulin tool call.
func (h *Handlers) HandleVoiceInsulin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[VoiceInsulinRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	units, err := intake.ParseVoiceUnits(input.Text)
	if err != nil {
		return errorResult(err), nil
	}
	r, err := h.records.AddInsulin(ctx, units, time.Time{})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(VoiceInsulinResult{
		Record:  toView(r),
		Message: intake.Confirmation(units, h.deps.Config.Locale),
	})
}

// HandleDelete handles the record_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}
	removed, err := h.records.Delete(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	if !removed {
		return errorResult(errors.NewNotFound(input.ID)), nil
	}
	return successResult(map[string]any{"id": input.ID, "deleted": true})
}

// HandleDeleteAll handles the record_delete_all tool call.
func (h *Handlers) HandleDeleteAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteAllRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if !input.Confirm {
		return errorResult(errors.NewInvalidRequest("confirm must be true")), nil
	}
	if err := h.records.DeleteAll(ctx); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"deleted_all": true})
}

// DayView is one day group in record_list output.
type DayView struct {
	Day     string       `json:"day"`
	Label   string       `json:"label"`
	Records []RecordView `json:"records"`
}

// ListResult is the output of record_list.
type ListResult struct {
	Days  []DayView `json:"days"`
	Total int       `json:"total"`
}

// HandleList handles the record_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Days < 0 {
		return errorResult(errors.NewInvalidRequest("days must not be negative")), nil
	}

	groups := h.records.Refresh()
	out := ListResult{Days: make([]DayView, 0, len(groups))}
	for _, g := range groups {
		out.Total += len(g.Records)
	}
	if input.Days > 0 && len(groups) > input.Days {
		groups = groups[:input.Days]
	}
	for _, g := range groups {
		out.Days = append(out.Days, DayView{
			Day:     g.Day.Format("2006-01-02"),
			Label:   g.Label,
			Records: toViews(g.Records),
		})
	}
	return successResult(out)
}

// SummaryResult is the output of record_summary.
type SummaryResult struct {
	LatestGlucose *RecordView  `json:"latest_glucose"`
	LatestInsulin *RecordView  `json:"latest_insulin"`
	Trend         []RecordView `json:"trend"`
	Unit          string       `json:"unit"`
}

// HandleSummary handles the record_summary tool call.
func (h *Handlers) HandleSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := h.home.Projection()
	out := SummaryResult{Trend: toViews(p.Trend), Unit: report.UnitMgdl}
	if p.LatestGlucose != nil {
		v := toView(*p.LatestGlucose)
		out.LatestGlucose = &v
	}
	if p.LatestInsulin != nil {
		v := toView(*p.LatestInsulin)
		out.LatestInsulin = &v
	}
	if h.deps.Settings != nil {
		out.Unit = h.deps.Settings.SugarUnit()
	}
	return successResult(out)
}

// HandleSync handles the health_sync tool call.
func (h *Handlers) HandleSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SyncRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.deps.Settings == nil {
		return errorResult(errors.NewNotConnected("none")), nil
	}
	if input.Limit < 0 {
		return errorResult(errors.NewInvalidRequest("limit must not be negative")), nil
	}
	limit := input.Limit
	if limit == 0 {
		limit = h.deps.Config.HistoryLimit
	}
	res, err := h.deps.Settings.SyncLimit(ctx, limit)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(res)
}

// HandleExport handles the report_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.deps.Settings == nil {
		return errorResult(errors.NewExportFailed(nil)), nil
	}
	out, err := h.deps.Settings.ExportReport(ctx, viewmodel.ExportInput{Path: input.Path, Share: input.Share})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var gErr *errors.GlycoError
	if stderrors.As(err, &gErr) {
		msg := gErr.Message
		// Keep wrapper context such as "sync: " in front of the message
		if full := err.Error(); full != gErr.Error() {
			msg = strings.TrimSuffix(full, gErr.Error()) + gErr.Message
		}
		errorObj := map[string]any{
			"code":    gErr.Code,
			"message": msg,
			"status":  gErr.Status,
		}
		// Internal details may carry paths or driver errors
		if gErr.Code != errors.ErrInternal && gErr.Details != nil {
			errorObj["details"] = gErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
