package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok\n" {
		t.Errorf("Healthz = %d %q", w.Code, w.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	var r Readiness

	w := httptest.NewRecorder()
	r.Readyz(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("before ready: status = %d, want 503", w.Code)
	}

	r.SetReady(true)
	w = httptest.NewRecorder()
	r.Readyz(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ready\n" {
		t.Errorf("after ready: %d %q", w.Code, w.Body.String())
	}
}
