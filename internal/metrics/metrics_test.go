package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsRecordAndExpose(t *testing.T) {
	t.Parallel()
	m := New()

	m.AppBlocked("com.a")
	m.AppBlocked("com.a")
	m.ObserveBridgeCall("lock", nil)
	m.ObserveBridgeCall("lock", errors.New("no agent"))
	m.ObserveReconcile("ok", 10*time.Millisecond, 3, 2)
	m.WatchAgent(func() bool { return true })

	m.ObserveRequest(http.MethodGet, "/v1/locks", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`focusguard_apps_blocked_total{package="com.a"} 2`,
		`focusguard_bridge_failures_total{op="lock"} 1`,
		`focusguard_bridge_calls_total{op="lock"} 2`,
		"focusguard_locked_packages 3",
		"focusguard_bridge_agent_connected 1",
		`focusguard_http_requests_total{method="GET",route="/v1/locks",status="200"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in exposition", want)
		}
	}
}
