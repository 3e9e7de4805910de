package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/stevemurr/dashstate/metrics"
	"github.com/stevemurr/dashstate/schema"
	"github.com/stevemurr/dashstate/shadow"
	"github.com/stevemurr/dashstate/store"
)

func TestShadowCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewShadow(reg)

	slots := store.NewMemoryStoreWithQuota(64)
	slots.Set("updates", "garbage")
	slots.Set("updates_backup", "[]")
	s := shadow.New(slots, shadow.WithRecorder(m))

	shape := schema.Records(schema.Req("id", schema.String))
	s.Load("updates", shape, []any{})
	s.Load("updates", shape, []any{})
	s.Save("updates", strings.Repeat("x", 100))

	if got := testutil.ToFloat64(m.Recoveries.WithLabelValues("updates", "primary_invalid")); got != 1 {
		t.Fatalf("expected 1 recovery, got %v", got)
	}
	if got := testutil.ToFloat64(m.Loads.WithLabelValues("updates", "primary")); got != 1 {
		t.Fatalf("expected 1 primary load, got %v", got)
	}
	if got := testutil.ToFloat64(m.Loads.WithLabelValues("updates", "backup")); got != 1 {
		t.Fatalf("expected 1 backup load, got %v", got)
	}
	if got := testutil.ToFloat64(m.WriteFailures.WithLabelValues("updates")); got != 1 {
		t.Fatalf("expected 1 write failure, got %v", got)
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewShadow(reg)
	m.Recovered("users", shadow.PrimaryMissing)

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `dashstate_shadow_recoveries_total{branch="primary_missing",collection="users"} 1`) {
		t.Fatalf("recovery counter missing from output:\n%s", body)
	}
}
