package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecorderCounts(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	recorder, err := NewRecorder(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewRecorder error: %v", err)
	}

	ctx := context.Background()
	recorder.RecordLookup(ctx, "/math", false)
	recorder.RecordLookup(ctx, "/math", true)
	recorder.RecordRender(ctx, "/math", 5*time.Millisecond, "")
	recorder.RecordRender(ctx, "/math", time.Millisecond, "typeset")
	recorder.RecordPersistFailure(ctx, "svg")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect error: %v", err)
	}

	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}

	if totals["mathhub.lookup.total"] != 2 {
		t.Fatalf("expected 2 lookups, got %d", totals["mathhub.lookup.total"])
	}
	if totals["mathhub.render.total"] != 2 {
		t.Fatalf("expected 2 renders, got %d", totals["mathhub.render.total"])
	}
	if totals["mathhub.render.errors"] != 1 {
		t.Fatalf("expected 1 render error, got %d", totals["mathhub.render.errors"])
	}
	if totals["mathhub.cache.persist_failures"] != 1 {
		t.Fatalf("expected 1 persist failure, got %d", totals["mathhub.cache.persist_failures"])
	}
}

func TestSetupNoneAndUnknown(t *testing.T) {
	provider, err := Setup("none")
	if err != nil {
		t.Fatalf("setup none: %v", err)
	}
	if provider.Handler != nil {
		t.Fatalf("none exporter should not expose a handler")
	}
	provider.Recorder.RecordLookup(context.Background(), "/math", true)
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if _, err := Setup("statsd"); err == nil {
		t.Fatalf("unknown exporter should fail")
	}
}

func TestSetupPrometheusServesMetrics(t *testing.T) {
	provider, err := Setup("prometheus")
	if err != nil {
		t.Fatalf("setup prometheus: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	provider.Recorder.RecordLookup(context.Background(), "/math", true)

	rec := httptest.NewRecorder()
	provider.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/-/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "mathhub_lookup_total") {
		t.Fatalf("prometheus output missing lookup counter: %s", body)
	}
}
