package stream

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dylan7474/planetaryLogger/internal/elements"
	"github.com/dylan7474/planetaryLogger/internal/propagation"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func testStore() *elements.Store {
	store := elements.NewStore()
	store.Set(&elements.Set{
		Source:    "test",
		FetchedAt: time.Now().Add(-time.Hour),
		Bodies: []elements.Body{
			{Name: "Earth", ID: "399", Elements: elements.OrbitalElements{
				Eccentricity: 0.0167, SemiMajorAxisAU: 1, Epoch: epoch,
			}},
			{Name: "Broken", ID: "0", Elements: elements.OrbitalElements{
				Eccentricity: 0.1, SemiMajorAxisAU: 0, Epoch: epoch,
			}},
		},
	})
	return store
}

func testHandler(store *elements.Store, config Config) *Handler {
	gen := propagation.NewGenerator(propagation.Config{Workers: 2}, testLogger())
	return NewHandler(gen, store, config, testLogger())
}

func get(h *Handler, ctx context.Context, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream/positions"+query, nil).WithContext(ctx)
	req.RemoteAddr = "10.0.0.1:12345"
	w := httptest.NewRecorder()
	h.HandlePositions(w, req)
	return w
}

// events decodes every "data:" message of an SSE body in order.
func events(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, block := range strings.Split(body, "\n\n") {
		if block == "" {
			continue
		}
		if strings.HasPrefix(block, "retry: ") {
			continue
		}
		data, ok := strings.CutPrefix(block, "data: ")
		if !ok {
			t.Fatalf("unexpected SSE block: %q", block)
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			t.Fatalf("invalid JSON in SSE data line %q: %v", data, err)
		}
		out = append(out, msg)
	}
	return out
}

func TestStreamLongitudes(t *testing.T) {
	h := testHandler(testStore(), Config{})
	w := get(h, context.Background(), "?start=2024-01-01&end=2024-01-03")

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}
	if !strings.HasPrefix(w.Body.String(), "retry: ") {
		t.Errorf("body does not start with a retry hint: %q", w.Body.String())
	}

	msgs := events(t, w.Body.String())
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want metadata + 3 rows + end", len(msgs))
	}

	meta := msgs[0]
	if meta["type"] != "metadata" || meta["source"] != "test" || meta["mode"] != "longitude" {
		t.Errorf("metadata = %v", meta)
	}
	if meta["days"].(float64) != 3 {
		t.Errorf("days = %v, want 3", meta["days"])
	}
	if age := meta["set_age_seconds"].(float64); age < 3600 {
		t.Errorf("set_age_seconds = %v, want >= 3600", age)
	}

	for i, want := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		row := msgs[i+1]
		if row["type"] != "row" || row["date"] != want {
			t.Errorf("row %d = %v, want date %s", i, row, want)
		}
		lons := row["longitudes"].([]any)
		if len(lons) != 2 || lons[1] != nil {
			t.Errorf("row %d longitudes = %v, want [x null]", i, lons)
		}
	}
	if lon := msgs[1]["longitudes"].([]any)[0].(float64); lon != 0 {
		t.Errorf("Earth longitude at epoch = %v, want 0", lon)
	}

	end := msgs[4]
	if end["type"] != "end" || end["rows"].(float64) != 3 {
		t.Errorf("end = %v, want rows 3", end)
	}
	if c := h.limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("limiter count after stream = %d, want 0", c)
	}
}

func TestStreamVectors(t *testing.T) {
	h := testHandler(testStore(), Config{RowsPerSecond: 1000})
	w := get(h, context.Background(), "?start=2024-01-01&mode=vector")

	msgs := events(t, w.Body.String())
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	row := msgs[1]
	if _, ok := row["longitudes"]; ok {
		t.Error("vector row carries longitudes")
	}
	pos := row["positions"].([]any)
	earth := pos[0].(map[string]any)
	if x := earth["x"].(float64); x < 0.98 || x > 0.99 {
		t.Errorf("Earth x = %v, want ~0.9833", x)
	}
	if pos[1] != nil {
		t.Errorf("broken body position = %v, want null", pos[1])
	}
}

func TestStreamCancelled(t *testing.T) {
	h := testHandler(testStore(), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := get(h, ctx, "?start=2024-01-01&end=2024-12-31")
	for _, msg := range events(t, w.Body.String()) {
		if msg["type"] == "end" || msg["type"] == "error" {
			t.Errorf("cancelled stream sent %v", msg)
		}
	}
	if c := h.limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("limiter count after cancel = %d, want 0", c)
	}
}

func TestStreamNotReady(t *testing.T) {
	h := testHandler(elements.NewStore(), Config{})
	w := get(h, context.Background(), "?start=2024-01-01")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestInvalidQueryParams(t *testing.T) {
	h := testHandler(testStore(), Config{MaxDays: 10})

	tests := []struct {
		name  string
		query string
	}{
		{"missing start", ""},
		{"bad start", "?start=2024-13-01"},
		{"bad end", "?start=2024-01-01&end=tomorrow"},
		{"bad mode", "?start=2024-01-01&mode=polar"},
		{"reversed", "?start=2024-02-01&end=2024-01-01"},
		{"too many days", "?start=2024-01-01&end=2024-01-11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(h, context.Background(), tt.query)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
		})
	}

	if w := get(h, context.Background(), "?start=2024-01-01&end=2024-01-10"); w.Code != http.StatusOK {
		t.Errorf("range at the limit: status = %d, want 200", w.Code)
	}
}

func TestRateLimitHTTPResponse(t *testing.T) {
	h := testHandler(testStore(), Config{MaxConcurrentPerIP: 1})

	// Hold the only slot for this IP.
	release, ok := h.limiter.acquire("10.0.0.1")
	if !ok {
		t.Fatal("acquire should succeed")
	}

	w := get(h, context.Background(), "?start=2024-01-01")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	release()
	if w := get(h, context.Background(), "?start=2024-01-01"); w.Code != http.StatusOK {
		t.Errorf("after release: status = %d, want 200", w.Code)
	}
}

func TestStreamLimiter(t *testing.T) {
	limiter := newStreamLimiter(3, 5)

	var releases []func()
	for i := 0; i < 3; i++ {
		release, ok := limiter.acquire("10.0.0.1")
		if !ok {
			t.Fatalf("acquire %d should succeed", i+1)
		}
		releases = append(releases, release)
	}
	if _, ok := limiter.acquire("10.0.0.1"); ok {
		t.Error("acquire beyond per-IP limit should fail")
	}

	// Other IPs share the global cap.
	for _, ip := range []string{"10.0.0.2", "10.0.0.3"} {
		if _, ok := limiter.acquire(ip); !ok {
			t.Errorf("%s should not be limited below the global cap", ip)
		}
	}
	if _, ok := limiter.acquire("10.0.0.4"); ok {
		t.Error("acquire beyond global limit should fail")
	}

	// Releasing twice frees one slot only.
	releases[0]()
	releases[0]()
	if c := limiter.count("10.0.0.1"); c != 2 {
		t.Errorf("count = %d, want 2", c)
	}
	if _, ok := limiter.acquire("10.0.0.4"); !ok {
		t.Error("acquire after release should succeed")
	}
	if _, ok := limiter.acquire("10.0.0.5"); ok {
		t.Error("double release must not free a second slot")
	}
}

func TestStreamLimiterConcurrent(t *testing.T) {
	limiter := newStreamLimiter(100, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if release, ok := limiter.acquire("10.0.0.1"); ok {
				defer release()
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if c := limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("count after all released = %d, want 0", c)
	}
}
