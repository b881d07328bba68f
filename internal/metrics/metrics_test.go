package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_RecordsDurationAndCount(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/get-doc", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest("POST", "/get-doc", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/get-doc", "200")); v < 1 {
		t.Errorf("expected http_requests_total >= 1, got %f", v)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds to have observations")
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/implicit", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("body"))
	})

	tests := []struct {
		path   string
		status string
	}{
		{"/status", "503"},
		{"/implicit", "200"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", tc.path, http.NoBody))
			if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", tc.path, tc.status)); v < 1 {
				t.Errorf("expected requests_total for %s with status %s >= 1, got %f", tc.path, tc.status, v)
			}
		})
	}
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/known", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope/123", http.NoBody))
	if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unknown", "404")); v < 1 {
		t.Errorf("unmatched route should be labelled unknown, got %f", v)
	}
}

func TestObserveFetch(t *testing.T) {
	before := testutil.CollectAndCount(FetchDuration)
	ObserveFetch("detail", time.Now(), nil)
	ObserveFetch("detail", time.Now(), errors.New("boom"))
	if after := testutil.CollectAndCount(FetchDuration); after < before+1 {
		t.Errorf("expected new fetch series, before=%d after=%d", before, after)
	}

	PayloadLoadsTotal.WithLabelValues("index", LayerMemory).Inc()
	if v := testutil.ToFloat64(PayloadLoadsTotal.WithLabelValues("index", LayerMemory)); v < 1 {
		t.Errorf("payload_loads_total = %f", v)
	}
}
