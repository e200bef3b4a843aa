package observability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func accessRouter(buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AccessLog(zerolog.New(buf)))
	r.Use(AccessMetrics())
	r.GET("/memory/:addr", func(c *gin.Context) {
		TagMemoryAccess(c, 0x1000, 4)
		c.JSON(http.StatusConflict, gin.H{"error": "fail"})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func lastEvent(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var event map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &event); err != nil {
		t.Fatalf("decode log line %q: %v", lines[len(lines)-1], err)
	}
	return event
}

func TestAccessLogCarriesMemoryRange(t *testing.T) {
	var buf bytes.Buffer
	r := accessRouter(&buf)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/memory/0x1000", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusConflict)
	}

	event := lastEvent(t, &buf)
	if event["route"] != "/memory/:addr" {
		t.Fatalf("unexpected route: got=%v want=%v", event["route"], "/memory/:addr")
	}
	if event["address"] != "0x00001000" {
		t.Fatalf("unexpected address: got=%v want=%v", event["address"], "0x00001000")
	}
	if event["length"] != float64(4) {
		t.Fatalf("unexpected length: got=%v want=%v", event["length"], 4)
	}
	if event["level"] != "info" {
		t.Fatalf("unexpected level: got=%v want=%v", event["level"], "info")
	}

	buf.Reset()
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	event = lastEvent(t, &buf)
	if _, ok := event["address"]; ok {
		t.Fatalf("untagged route should not log an address: %v", event)
	}
	if event["level"] != "debug" {
		t.Fatalf("unexpected level: got=%v want=%v", event["level"], "debug")
	}
}

func TestAccessMetricsCollapsesUnmatchedRoutes(t *testing.T) {
	RegisterMetrics()
	var buf bytes.Buffer
	r := accessRouter(&buf)

	counter := httpRequests.WithLabelValues(http.MethodGet, unmatchedRoute, "404")
	before := testutil.ToFloat64(counter)
	for _, path := range []string{"/a", "/b/c", "/nope/0x10"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}
	if got := testutil.ToFloat64(counter); got != before+3 {
		t.Fatalf("unexpected unmatched count: got=%v want=%v", got, before+3)
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/a", "404")); got != 0 {
		t.Fatalf("raw path leaked into labels: %v", got)
	}
}
