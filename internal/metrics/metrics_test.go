package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/store/memory"
)

func TestInstrumentDriver_CountsOutcomes(t *testing.T) {
	ctx := context.Background()
	m := New()
	spec := domain.CategorySchema()
	d := InstrumentDriver(memory.NewDriver(zerolog.Nop()), m)
	require.NoError(t, d.EnsureCollection(ctx, spec))

	_, err := d.InsertOne(ctx, spec, map[string]any{"name": "Go", "slug": "go"})
	require.NoError(t, err)
	_, err = d.InsertOne(ctx, spec, map[string]any{"name": "Go", "slug": "go-2"})
	require.ErrorIs(t, err, domain.ErrConflict)
	_, err = d.FindOne(ctx, spec, query.Eq{Field: "slug", Value: "missing"}, nil)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.Equal(t, 1.0, testutil.ToFloat64(m.StoreOps.WithLabelValues("memory", "categories", "insert_one", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.StoreOps.WithLabelValues("memory", "categories", "insert_one", "conflict")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.StoreOps.WithLabelValues("memory", "categories", "find_one", "not_found")))
}

func TestInstrumentDriver_NilMetrics(t *testing.T) {
	d := memory.NewDriver(zerolog.Nop())
	require.Same(t, d, InstrumentDriver(d, nil))
}

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/posts/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts/hello", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/posts/{slug}", "418")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "inkwell_http_requests_total"))
}

func TestObserve_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveLike(true)
	m.ObserveAuth("login", nil)

	m = New()
	m.ObserveLike(true)
	m.ObserveLike(false)
	m.ObserveLike(true)
	require.Equal(t, 2.0, testutil.ToFloat64(m.Likes.WithLabelValues("liked")))
}
