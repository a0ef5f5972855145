package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounterAndGauge(t *testing.T) {
	c := NewMetricsCollector()

	ctr := c.Counter("test_total", "test counter", "")
	ctr.Inc()
	ctr.Add(2)
	if ctr.Value() != 3 {
		t.Fatalf("expected 3, got %d", ctr.Value())
	}

	// Same name returns the same counter.
	if c.Counter("test_total", "test counter", "") != ctr {
		t.Fatal("expected identical counter instance")
	}

	g := c.Gauge("test_gauge", "test gauge", "")
	g.Set(5)
	g.Dec()
	if g.Value() != 4 {
		t.Fatalf("expected 4, got %d", g.Value())
	}
}

func TestHandlerRendersPrometheusText(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("mcpbot_test_total", "A test counter", "").Add(7)
	h := c.Histogram("mcpbot_test_seconds", "A test histogram", "", []float64{1, 5})
	h.Observe(0.5)
	h.Observe(3)

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"mcpbot_uptime_seconds",
		"# TYPE mcpbot_test_total counter",
		"mcpbot_test_total 7",
		`mcpbot_test_seconds_bucket{le="1"} 1`,
		`mcpbot_test_seconds_bucket{le="5"} 2`,
		"mcpbot_test_seconds_count 2",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("output missing %q:\n%s", want, body)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
}
