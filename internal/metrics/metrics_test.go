package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"emotrack/internal/metrics"
)

func TestHandlerExposesCollectors(t *testing.T) {
	metrics.DetectionsTotal.WithLabelValues("Happy").Inc()
	metrics.SessionsTotal.WithLabelValues(metrics.OutcomeStopped).Inc()

	srv := httptest.NewServer(metrics.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, name := range []string{
		"emotrack_sessions_active",
		`emotrack_detections_total{label="Happy"}`,
		`emotrack_sessions_total{outcome="stopped"}`,
		"emotrack_frame_analysis_seconds_bucket",
	} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("expected %s in metrics output", name)
		}
	}
}

func TestCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(metrics.SnapshotsWritten)
	metrics.SnapshotsWritten.Inc()
	if got := testutil.ToFloat64(metrics.SnapshotsWritten); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}
