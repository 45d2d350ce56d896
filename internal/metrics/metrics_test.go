package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesCollectors(t *testing.T) {
	RecordTick("scheduled", "success", 120*time.Millisecond)
	RecordTick("scheduled", "skipped_disabled", 0)
	RecordProviderAttempt("2xx")
	RecordProviderRetry()
	RecordRead("cache")
	RecordSnapshot(50, time.Unix(1714564800, 0))
	RecordHistoryTrimmed(5)
	RecordHTTPRequest("GET", "", 200, time.Millisecond)

	server := httptest.NewServer(Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	for _, want := range []string{
		`marketsync_scheduler_ticks_total{mode="scheduled",outcome="success"}`,
		`marketsync_scheduler_ticks_total{mode="scheduled",outcome="skipped_disabled"}`,
		`marketsync_provider_attempts_total{status="2xx"}`,
		`marketsync_read_snapshots_total{source="cache"}`,
		`marketsync_scheduler_snapshot_assets 50`,
		`marketsync_scheduler_last_success_timestamp_seconds 1.7145648e+09`,
		`marketsync_http_requests_total{method="GET",route="unmatched",status="200"}`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
