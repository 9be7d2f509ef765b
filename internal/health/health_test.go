package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dylan7474/planetaryLogger/internal/elements"
)

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok\n" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	store := elements.NewStore()
	handler := Readyz(store)

	probe := func() int {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		return w.Code
	}

	if code := probe(); code != http.StatusServiceUnavailable {
		t.Errorf("empty store: status = %d, want 503", code)
	}

	store.Set(&elements.Set{FetchedAt: time.Now()})
	if code := probe(); code != http.StatusServiceUnavailable {
		t.Errorf("set without bodies: status = %d, want 503", code)
	}

	store.Set(&elements.Set{FetchedAt: time.Now(), Bodies: []elements.Body{{Name: "Mars", ID: "499"}}})
	if code := probe(); code != http.StatusOK {
		t.Errorf("loaded store: status = %d, want 200", code)
	}
}
