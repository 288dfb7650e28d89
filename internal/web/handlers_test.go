package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hpungsan/glyco/internal/config"
	"github.com/hpungsan/glyco/internal/healthsource"
	"github.com/hpungsan/glyco/internal/kv"
	"github.com/hpungsan/glyco/internal/store"
	"github.com/hpungsan/glyco/internal/viewmodel"
)

var testNow = time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC)

type testServer struct {
	handler    http.Handler
	store      *store.Store
	exportsDir string
}

// setupTest builds the full server over an in-memory store. A non-empty
// healthFile enables the JSONL health source.
func setupTest(t *testing.T, healthFile string) *testServer {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return testNow }

	reg := prometheus.NewRegistry()
	backend := kv.NewMemory()
	st, err := store.Open(ctx, backend, store.WithClock(clock), store.WithRegisterer(reg))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}

	cfg := config.DefaultConfig()
	var syncer *healthsource.Syncer
	if healthFile != "" {
		syncer = healthsource.NewSyncer(healthsource.NewFile(healthFile, nil), st, time.Second, nil)
	}
	exportsDir := filepath.Join(t.TempDir(), "exports")
	settings, err := viewmodel.NewSettings(ctx, viewmodel.SettingsDeps{
		Store:      st,
		KV:         backend,
		Syncer:     syncer,
		Config:     cfg,
		ExportsDir: exportsDir,
		Location:   time.UTC,
		Clock:      clock,
	})
	if err != nil {
		t.Fatalf("NewSettings: %v", err)
	}

	srv, h, err := NewServer(Deps{
		Store:    st,
		Settings: settings,
		Config:   cfg,
		Location: time.UTC,
		Clock:    clock,
		Gatherer: reg,
	}, "test", "127.0.0.1", 0)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() {
		h.Close()
		settings.Close()
	})
	return &testServer{handler: srv.Handler, store: st, exportsDir: exportsDir}
}

func (ts *testServer) do(method, target string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

var jsonHeaders = map[string]string{"Accept": "application/json"}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return out
}

// --- HandleHome ---

func TestHandleHome_Empty(t *testing.T) {
	ts := setupTest(t, "")
	rec := ts.do("GET", "/", nil, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "No readings yet") {
		t.Error("expected empty-state text")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected security headers")
	}
}

func TestHandleHome_ShowsLatest(t *testing.T) {
	ts := setupTest(t, "")
	ctx := context.Background()
	if _, err := ts.store.AddGlucose(ctx, 142, testNow.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := ts.store.AddInsulin(ctx, 7, testNow.Add(-2*time.Hour)); err != nil {
		t.Fatal(err)
	}

	body := ts.do("GET", "/", nil, nil).Body.String()
	if !strings.Contains(body, "142") {
		t.Error("expected latest glucose 142 in page")
	}
	if !strings.Contains(body, "7 <span class=\"unit\">units") {
		t.Error("expected latest insulin dose in page")
	}
}

// --- Records ---

func TestHandleAddInsulin_FormRedirects(t *testing.T) {
	ts := setupTest(t, "")
	rec := ts.do("POST", "/records/insulin", url.Values{"units": {"٤"}}, nil)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/records" {
		t.Errorf("Location = %q, want /records", loc)
	}
	if ts.store.Len() != 1 {
		t.Fatalf("store.Len() = %d, want 1", ts.store.Len())
	}
	ins, _ := ts.store.Snapshot()[0].Insulin()
	if ins.Units != 4 {
		t.Errorf("units = %d, want 4", ins.Units)
	}
}

func TestHandleAddInsulin_Invalid(t *testing.T) {
	ts := setupTest(t, "")
	rec := ts.do("POST", "/records/insulin", url.Values{"units": {"abc"}}, jsonHeaders)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	errObj := decodeJSON(t, rec)["error"].(map[string]any)
	if errObj["code"] != "VALIDATION" {
		t.Errorf("code = %v, want VALIDATION", errObj["code"])
	}
	if ts.store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0", ts.store.Len())
	}
}

func TestHandleAddGlucose_ConvertsMmol(t *testing.T) {
	ts := setupTest(t, "")
	rec := ts.do("POST", "/records/glucose", url.Values{"value": {"6.5"}, "unit": {"mmol/L"}}, jsonHeaders)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	g, ok := ts.store.Snapshot()[0].Glucose()
	if !ok {
		t.Fatal("expected a glucose record")
	}
	want := 6.5 * healthsource.MmolToMgdl
	if g.Value < want-1e-9 || g.Value > want+1e-9 {
		t.Errorf("value = %v, want %v", g.Value, want)
	}
}

func TestHandleRecords_GroupsByDay(t *testing.T) {
	ts := setupTest(t, "")
	ctx := context.Background()
	if _, err := ts.store.AddGlucose(ctx, 101, testNow.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := ts.store.AddGlucose(ctx, 202, testNow.Add(-24*time.Hour)); err != nil {
		t.Fatal(err)
	}

	rec := ts.do("GET", "/records", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	today := strings.Index(body, "Today")
	yesterday := strings.Index(body, "Yesterday")
	if today < 0 || yesterday < 0 || today > yesterday {
		t.Errorf("expected Today before Yesterday in page")
	}
	if !strings.Contains(body, "(2)") {
		t.Error("expected total count")
	}
}

func TestHandleRecords_HTMXRendersContentOnly(t *testing.T) {
	ts := setupTest(t, "")
	body := ts.do("GET", "/records", nil, map[string]string{"HX-Request": "true"}).Body.String()
	if strings.Contains(body, "<html") {
		t.Error("htmx response should not include layout")
	}
	if !strings.Contains(body, "No records yet") {
		t.Error("expected content block")
	}
}

func TestHandleDelete(t *testing.T) {
	ts := setupTest(t, "")
	r, err := ts.store.AddInsulin(context.Background(), 3, time.Time{})
	if err != nil {
		t.Fatal(err)
	}

	rec := ts.do("DELETE", "/records/"+r.ID, nil, jsonHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if decodeJSON(t, rec)["deleted"] != true {
		t.Error("expected deleted=true")
	}

	rec = ts.do("POST", "/records/"+r.ID+"/delete", url.Values{}, jsonHeaders)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestHandleDelete_HTMXRedirect(t *testing.T) {
	ts := setupTest(t, "")
	r, err := ts.store.AddGlucose(context.Background(), 99, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	rec := ts.do("DELETE", "/records/"+r.ID, nil, map[string]string{"HX-Request": "true"})
	if rec.Header().Get("HX-Redirect") != "/records" {
		t.Errorf("HX-Redirect = %q, want /records", rec.Header().Get("HX-Redirect"))
	}
}

func TestHandleDeleteAll_RequiresConfirm(t *testing.T) {
	ts := setupTest(t, "")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := ts.store.AddInsulin(ctx, i+1, time.Time{}); err != nil {
			t.Fatal(err)
		}
	}

	rec := ts.do("POST", "/records/delete-all", url.Values{}, jsonHeaders)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if ts.store.Len() != 3 {
		t.Fatalf("store.Len() = %d, want 3", ts.store.Len())
	}

	rec = ts.do("POST", "/records/delete-all", url.Values{"confirm": {"true"}}, nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if ts.store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0", ts.store.Len())
	}
}

// --- Settings ---

func TestHandleSetUnit(t *testing.T) {
	ts := setupTest(t, "")
	if _, err := ts.store.AddGlucose(context.Background(), 180.182, testNow.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	rec := ts.do("POST", "/settings/unit", url.Values{"unit": {"mmol"}}, jsonHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if decodeJSON(t, rec)["unit"] != "mmol/L" {
		t.Error("expected unit mmol/L")
	}

	body := ts.do("GET", "/settings", nil, nil).Body.String()
	if !strings.Contains(body, "10.0") {
		t.Error("expected glucose shown in mmol/L")
	}

	rec = ts.do("POST", "/settings/unit", url.Values{"unit": {"grains"}}, jsonHeaders)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSync_NoSource(t *testing.T) {
	ts := setupTest(t, "")
	rec := ts.do("POST", "/settings/sync", url.Values{}, jsonHeaders)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestHandleSync_MergesFileSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "health.jsonl")
	lines := `{"id":"a","value":120,"date":"2025-06-02T08:00:00Z"}
{"id":"b","value":135,"date":"2025-06-02T09:00:00Z"}
`
	if err := os.WriteFile(path, []byte(lines), 0600); err != nil {
		t.Fatal(err)
	}
	ts := setupTest(t, path)

	rec := ts.do("POST", "/settings/sync", url.Values{}, jsonHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if decodeJSON(t, rec)["added"] != float64(2) {
		t.Errorf("added = %v, want 2", decodeJSON(t, rec)["added"])
	}

	body := ts.do("POST", "/settings/sync", url.Values{}, nil).Body.String()
	if !strings.Contains(body, "added 0") {
		t.Error("expected idempotent resync summary in page")
	}
}

func TestHandleExport(t *testing.T) {
	ts := setupTest(t, "")
	if _, err := ts.store.AddGlucose(context.Background(), 150, testNow.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	rec := ts.do("POST", "/settings/export", url.Values{}, jsonHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	out := decodeJSON(t, rec)
	if out["count"] != float64(1) {
		t.Errorf("count = %v, want 1", out["count"])
	}
	path, _ := out["path"].(string)
	if filepath.Dir(path) != ts.exportsDir {
		t.Errorf("path = %q, want it in %q", path, ts.exportsDir)
	}
}

func TestHandleExport_RejectsOutsidePath(t *testing.T) {
	ts := setupTest(t, "")
	rec := ts.do("POST", "/settings/export", url.Values{"path": {filepath.Join(t.TempDir(), "r.html")}}, jsonHeaders)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- JSON API and metrics ---

func TestHandleAPIRecords(t *testing.T) {
	ts := setupTest(t, "")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := ts.store.AddGlucose(ctx, float64(100+i), testNow.Add(time.Duration(-i)*24*time.Hour)); err != nil {
			t.Fatal(err)
		}
	}

	out := decodeJSON(t, ts.do("GET", "/api/records?days=2", nil, nil))
	days := out["days"].([]any)
	if len(days) != 2 {
		t.Fatalf("days = %d, want 2", len(days))
	}
	if days[0].(map[string]any)["label"] != "Today" {
		t.Errorf("first label = %v, want Today", days[0].(map[string]any)["label"])
	}
}

func TestHandleAPISummary(t *testing.T) {
	ts := setupTest(t, "")
	if _, err := ts.store.AddInsulin(context.Background(), 5, time.Time{}); err != nil {
		t.Fatal(err)
	}
	out := decodeJSON(t, ts.do("GET", "/api/summary", nil, nil))
	summary := out["summary"].(map[string]any)
	if summary["latest_insulin"] == nil {
		t.Error("expected latest_insulin")
	}
	if out["connected"] != false {
		t.Errorf("connected = %v, want false", out["connected"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTest(t, "")
	if _, err := ts.store.AddInsulin(context.Background(), 2, time.Time{}); err != nil {
		t.Fatal(err)
	}
	rec := ts.do("GET", "/metrics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "glyco_store_records 1") {
		t.Errorf("expected glyco_store_records gauge in metrics output")
	}
}

func TestStaticCSS(t *testing.T) {
	ts := setupTest(t, "")
	rec := ts.do("GET", "/static/style.css", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	ts := setupTest(t, "")
	if rec := ts.do("GET", "/nope", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
