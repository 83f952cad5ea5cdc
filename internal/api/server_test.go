package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ripplz/QuakeReport/internal/config"
	"github.com/Ripplz/QuakeReport/internal/loader"
	"github.com/Ripplz/QuakeReport/internal/metrics"
	"github.com/Ripplz/QuakeReport/internal/source"
	"github.com/Ripplz/QuakeReport/internal/store"
)

const feedBody = `{"type":"FeatureCollection","features":[
  {"properties":{"mag":5.2,"place":"12km NE of Example City","time":1700000000000,"url":"http://x/1"}},
  {"properties":{"mag":3.1,"place":"Example Town","time":1700000100000,"url":"http://x/2"}}
]}`

var quietLogger = log.New(io.Discard, "", 0)

type testEnv struct {
	srv      *Server
	loader   *loader.Loader
	upstream *httptest.Server
	queries  chan string
	release  chan struct{}
	online   atomic.Bool
}

func newTestEnv(t *testing.T, blocking bool) *testEnv {
	t.Helper()
	env := &testEnv{queries: make(chan string, 8)}
	env.online.Store(true)
	if blocking {
		env.release = make(chan struct{})
	}
	env.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.queries <- r.URL.RawQuery
		if env.release != nil {
			<-env.release
		}
		_, _ = w.Write([]byte(feedBody))
	}))
	t.Cleanup(env.upstream.Close)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	fetcher := source.NewHTTPFetcher(source.Options{Metrics: m, Logger: quietLogger})
	env.loader = loader.New(context.Background(), fetcher, m, quietLogger)
	board := NewBoard()
	env.loader.Register(board.Observe)

	settings, err := store.OpenSettings(filepath.Join(t.TempDir(), "prefs.json"), store.Settings{MinMagnitude: "2.5", OrderBy: "time"})
	if err != nil {
		t.Fatalf("open settings: %v", err)
	}
	env.srv = NewServer(Options{
		Server:   config.ServerConfig{CORSOrigins: []string{"*"}},
		Feed:     config.FeedConfig{BaseURL: env.upstream.URL + "/query", Limit: 10},
		Loader:   env.loader,
		Board:    board,
		Settings: settings,
		Probe:    source.ConnectivityFunc(func(context.Context) bool { return env.online.Load() }),
		Gatherer: reg,
		Logger:   quietLogger,
	})
	return env
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeSnapshot(t *testing.T, rr *httptest.ResponseRecorder) Snapshot {
	t.Helper()
	var s Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&s); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return s
}

func TestRefreshDeliversToBoard(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodPost, "/api/earthquakes/refresh", "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rr.Code, rr.Body)
	}
	env.loader.Wait()

	if q := <-env.queries; q != "format=geojson&eventtype=earthquake&limit=10&minmag=2.5&orderby=time" {
		t.Errorf("unexpected upstream query %q", q)
	}

	snap := decodeSnapshot(t, env.do(t, http.MethodGet, "/api/earthquakes", ""))
	if snap.State != "delivered" {
		t.Errorf("Expected state 'delivered', got '%s'", snap.State)
	}
	if len(snap.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(snap.Records))
	}
	first := snap.Records[0]
	if first.Offset != "12km NE of" || first.Primary != "Example City" || first.Magnitude != 5.2 {
		t.Errorf("unexpected first record %+v", first)
	}
	if !first.Time.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("unexpected time %v", first.Time)
	}
	if snap.UpdatedAt == nil || snap.LoadID == "" {
		t.Errorf("expected load id and timestamp, got %+v", snap)
	}
}

func TestRefreshConflictWhileLoading(t *testing.T) {
	env := newTestEnv(t, true)

	if rr := env.do(t, http.MethodPost, "/api/earthquakes/refresh", ""); rr.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rr.Code)
	}
	<-env.queries
	if rr := env.do(t, http.MethodPost, "/api/earthquakes/refresh", ""); rr.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", rr.Code)
	}
	snap := decodeSnapshot(t, env.do(t, http.MethodGet, "/api/earthquakes", ""))
	if snap.State != "loading" {
		t.Errorf("Expected state 'loading', got '%s'", snap.State)
	}
	close(env.release)
	env.loader.Wait()
}

func TestRefreshOffline(t *testing.T) {
	env := newTestEnv(t, false)
	env.online.Store(false)

	rr := env.do(t, http.MethodPost, "/api/earthquakes/refresh", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rr.Code)
	}
	snap := decodeSnapshot(t, env.do(t, http.MethodGet, "/api/earthquakes", ""))
	if snap.Reason != "network_unavailable" {
		t.Errorf("Expected reason 'network_unavailable', got '%s'", snap.Reason)
	}
	if snap.State != "delivered" {
		t.Errorf("Expected state 'delivered', got '%s'", snap.State)
	}
	if snap.LoadID == "" {
		t.Error("expected a load id")
	}
	select {
	case q := <-env.queries:
		t.Fatalf("unexpected upstream request %q", q)
	default:
	}
}

func TestRefreshOfflineWhileLoading(t *testing.T) {
	env := newTestEnv(t, true)

	if rr := env.do(t, http.MethodPost, "/api/earthquakes/refresh", ""); rr.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rr.Code)
	}
	<-env.queries
	env.online.Store(false)

	if rr := env.do(t, http.MethodPost, "/api/earthquakes/refresh", ""); rr.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", rr.Code, rr.Body)
	}
	snap := decodeSnapshot(t, env.do(t, http.MethodGet, "/api/earthquakes", ""))
	if snap.State != "loading" || snap.UpdatedAt != nil || snap.Reason != "" {
		t.Fatalf("board must stay untouched while loading, got %+v", snap)
	}

	close(env.release)
	env.loader.Wait()
	snap = decodeSnapshot(t, env.do(t, http.MethodGet, "/api/earthquakes", ""))
	if snap.State != "delivered" || len(snap.Records) != 2 {
		t.Fatalf("expected the fetched result, got %+v", snap)
	}
}

func TestRefreshAfterAbandon(t *testing.T) {
	env := newTestEnv(t, false)
	env.loader.Abandon()

	for _, online := range []bool{true, false} {
		env.online.Store(online)
		rr := env.do(t, http.MethodPost, "/api/earthquakes/refresh", "")
		if rr.Code != http.StatusConflict {
			t.Fatalf("online=%v: Expected 409, got %d", online, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), ErrAbandoned.Error()) {
			t.Errorf("online=%v: unexpected body %s", online, rr.Body)
		}
	}

	snap := decodeSnapshot(t, env.do(t, http.MethodGet, "/api/earthquakes", ""))
	if snap.State != "abandoned" || snap.UpdatedAt != nil {
		t.Fatalf("abandoned loader must not notify, got %+v", snap)
	}
	select {
	case q := <-env.queries:
		t.Fatalf("unexpected upstream request %q", q)
	default:
	}
}

func TestResetClearsBoard(t *testing.T) {
	env := newTestEnv(t, false)
	env.do(t, http.MethodPost, "/api/earthquakes/refresh", "")
	env.loader.Wait()

	if rr := env.do(t, http.MethodDelete, "/api/earthquakes", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rr.Code)
	}
	snap := decodeSnapshot(t, env.do(t, http.MethodGet, "/api/earthquakes", ""))
	if snap.State != "idle" || len(snap.Records) != 0 || snap.Reason != "" {
		t.Fatalf("expected cleared board, got %+v", snap)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodPut, "/api/settings", `{"min_magnitude":"4.5","order_by":"magnitude"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body)
	}
	if rr := env.do(t, http.MethodPut, "/api/settings", `{"min_magnitude":"x","order_by":"time"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
	if rr := env.do(t, http.MethodPut, "/api/settings", `{`); rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}

	var got store.Settings
	if err := json.NewDecoder(env.do(t, http.MethodGet, "/api/settings", "").Body).Decode(&got); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if got.MinMagnitude != "4.5" || got.OrderBy != "magnitude" {
		t.Fatalf("unexpected settings %+v", got)
	}

	env.do(t, http.MethodPost, "/api/earthquakes/refresh", "")
	env.loader.Wait()
	if q := <-env.queries; !strings.HasSuffix(q, "minmag=4.5&orderby=magnitude") {
		t.Errorf("refresh did not use new settings: %q", q)
	}
}

func TestMetricsAndHealth(t *testing.T) {
	env := newTestEnv(t, false)
	env.do(t, http.MethodPost, "/api/earthquakes/refresh", "")
	env.loader.Wait()

	rr := env.do(t, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rr.Code, rr.Body)
	}
	rr = env.do(t, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	for _, want := range []string{
		`quakereport_fetch_total{result="ok"} 1`,
		`quakereport_loads_total{outcome="delivered"} 1`,
		`quakereport_records_decoded_total 2`,
	} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, false)
	req := httptest.NewRequest(http.MethodOptions, "/api/earthquakes", nil)
	req.Header.Set("Origin", "https://viewer.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rr := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Expected allow origin '*', got '%s'", got)
	}
}
