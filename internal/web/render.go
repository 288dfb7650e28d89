package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/glyco/internal/config"
	"github.com/hpungsan/glyco/internal/errors"
	"github.com/hpungsan/glyco/internal/healthsource"
	"github.com/hpungsan/glyco/internal/record"
	"github.com/hpungsan/glyco/internal/report"
	"github.com/hpungsan/glyco/internal/viewmodel"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "home", "records", "settings"
	Lang    string
	Dir     string // "rtl" for Arabic
}

// HomePageData is the template data for the home summary page.
type HomePageData struct {
	PageData
	Home      viewmodel.Home
	Unit      string
	Connected bool
}

// RecordsPageData is the template data for the records list page.
type RecordsPageData struct {
	PageData
	Days  []viewmodel.DayGroup
	Total int
	Unit  string
}

// SettingsPageData is the template data for the settings page.
type SettingsPageData struct {
	PageData
	Source    string
	Connected bool
	Unit      string
	Glucose   []record.Record
	Sync      *healthsource.SyncResult
	Export    *viewmodel.ExportOutput
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	log       *zap.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
// Times are shown in loc.
func NewRenderer(templateFS fs.FS, version string, loc *time.Location, log *zap.Logger) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	funcMap := template.FuncMap{
		"formatTime": func(t time.Time) string { return t.In(loc).Format("15:04") },
		"formatDate": func(t time.Time) string { return t.In(loc).Format("2006-01-02 15:04") },
		"glucose":    glucoseText,
		"units":      insulinUnits,
		"isInsulin":  func(r record.Record) bool { _, ok := r.Insulin(); return ok },
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"home":     "home.html",
		"records":  "records.html",
		"settings": "settings.html",
		"error":    "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		log:       log,
	}
}

// pageData fills the common page fields for locale.
func (r *Renderer) pageData(title, nav, locale string) PageData {
	p := PageData{Title: title, Version: r.version, Nav: nav, Lang: "en", Dir: "ltr"}
	if config.IsArabic(locale) {
		p.Lang, p.Dir = "ar", "rtl"
	}
	return p
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// For HTMX requests, only the "content" block is rendered to avoid duplicating the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	block := "layout"
	if req != nil && req.Header.Get("HX-Request") == "true" {
		block = "content"
	}
	r.renderBlock(w, status, name, block, data)
}

// renderBlock renders a specific named block from a page template.
func (r *Renderer) renderBlock(w http.ResponseWriter, status int, page, block string, data any) {
	t, ok := r.templates[page]
	if !ok {
		r.log.Error("template not found", zap.String("template", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.log.Error("template execution failed", zap.String("template", page), zap.String("block", block), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var gErr *errors.GlycoError
	if !stderrors.As(err, &gErr) {
		r.log.Error("unhandled error", zap.Error(err))
		gErr = errors.NewInternal(nil)
	}

	status := gErr.Status
	message := gErr.Message

	// HTMX request: return HTML fragment
	if req.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(gErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	// Full error page
	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData:   PageData{Title: fmt.Sprintf("Error %d", status), Version: r.version, Lang: "en", Dir: "ltr"},
		StatusCode: status,
		Message:    message,
	})
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// glucoseText formats a glucose record's value in unit, or "" for insulin.
func glucoseText(r record.Record, unit string) string {
	g, ok := r.Glucose()
	if !ok {
		return ""
	}
	return report.FormatValue(g.Value, unit)
}

func insulinUnits(r record.Record) int {
	if ins, ok := r.Insulin(); ok {
		return ins.Units
	}
	return 0
}
