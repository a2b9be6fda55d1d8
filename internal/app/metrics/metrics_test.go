package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	io_prometheus_client "github.com/prometheus/client_model/go"
)

func TestInstrumentHandlerRecordsMetrics(t *testing.T) {
	handler := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/actors/v2/abc123/messages", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	if !metricCounterGreaterOrEqual(t, "abaco_http_requests_total", map[string]string{
		"method": "GET",
		"path":   "/actors/v2/:id/messages",
		"status": "202",
	}, 1) {
		t.Fatalf("expected http request counter to increment")
	}

	if !metricHistogramCountGreaterOrEqual(t, "abaco_http_request_duration_seconds", map[string]string{
		"method": "GET",
		"path":   "/actors/v2/:id/messages",
	}, 1) {
		t.Fatalf("expected http duration histogram to record samples")
	}
}

func TestRecordExecution(t *testing.T) {
	RecordExecution("SUBMITTED")
	if !metricCounterGreaterOrEqual(t, "abaco_actors_executions_total", map[string]string{
		"status": "SUBMITTED",
	}, 1) {
		t.Fatal("expected execution counter to increase")
	}

	RecordExecution("")
	if !metricCounterGreaterOrEqual(t, "abaco_actors_executions_total", map[string]string{
		"status": "unknown",
	}, 1) {
		t.Fatal("expected unknown status to be used for empty input")
	}
}

func TestRecordWorkerCommand(t *testing.T) {
	RecordWorkerCommand("ensure", false)
	if !metricCounterGreaterOrEqual(t, "abaco_workers_commands_total", map[string]string{
		"kind":          "ensure",
		"stop_existing": "false",
	}, 1) {
		t.Fatal("expected ensure command counter to increase")
	}

	RecordWorkerCommand("rollout", true)
	if !metricCounterGreaterOrEqual(t, "abaco_workers_commands_total", map[string]string{
		"kind":          "rollout",
		"stop_existing": "true",
	}, 1) {
		t.Fatal("expected rollout command counter to increase")
	}
}

func TestRecordMessageQueueDepth(t *testing.T) {
	RecordMessageQueueDepth("T_abc", 3)
	if !metricGaugeEquals(t, "abaco_actors_message_queue_depth", map[string]string{
		"actor_db_id": "T_abc",
	}, 3) {
		t.Fatal("expected queue depth gauge to be set")
	}

	RecordMessageQueueDepth("", 0)
	if !metricGaugeEquals(t, "abaco_actors_message_queue_depth", map[string]string{
		"actor_db_id": "unknown",
	}, 0) {
		t.Fatal("expected unknown label for empty actor id")
	}
}

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/", "/"},
		{"/healthz", "/healthz"},
		{"/actors/v2", "/actors/v2"},
		{"/actors/v2/abc", "/actors/v2"},
		{"/actors/v2/abc/messages", "/actors/v2/:id/messages"},
		{"/actors/v2/abc/executions/e1/logs", "/actors/v2/:id/executions/e1/logs"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := canonicalPath(tt.input); got != tt.expected {
				t.Errorf("canonicalPath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStatusRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}
	sr.WriteHeader(http.StatusNotFound)
	if sr.status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", sr.status)
	}

	rec2 := httptest.NewRecorder()
	sr2 := &statusRecorder{ResponseWriter: rec2, status: 0}
	n, err := sr2.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 bytes written, got %d", n)
	}
	if sr2.status != http.StatusOK {
		t.Errorf("expected default status 200, got %d", sr2.status)
	}
}

func TestHandler(t *testing.T) {
	h := Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected non-empty metrics response")
	}
}

func TestObservationHooks(t *testing.T) {
	hooks := ObservationHooks("abaco", "sweep", "run")
	if hooks.OnStart == nil || hooks.OnComplete == nil {
		t.Fatal("expected non-nil hooks")
	}
	hooks.OnStart(nil, map[string]string{"actor_db_id": "T_abc"})
	hooks.OnComplete(nil, map[string]string{"actor_db_id": "T_abc"}, nil, 0)
}

func TestMetaLabel(t *testing.T) {
	if metaLabel(nil) != "unknown" {
		t.Fatal("expected unknown for nil map")
	}
	if metaLabel(map[string]string{"actor_db_id": "T_1"}) != "T_1" {
		t.Fatal("expected actor_db_id to be used")
	}
}

func metricCounterGreaterOrEqual(t *testing.T, name string, labels map[string]string, min float64) bool {
	t.Helper()
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) && metric.GetCounter() != nil {
				return metric.GetCounter().GetValue() >= min
			}
		}
	}
	return false
}

func metricGaugeEquals(t *testing.T, name string, labels map[string]string, expected float64) bool {
	t.Helper()
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) && metric.GetGauge() != nil {
				return metric.GetGauge().GetValue() == expected
			}
		}
	}
	return false
}

func metricHistogramCountGreaterOrEqual(t *testing.T, name string, labels map[string]string, min uint64) bool {
	t.Helper()
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) && metric.GetHistogram() != nil {
				return metric.GetHistogram().GetSampleCount() >= min
			}
		}
	}
	return false
}

func labelsMatch(metric *io_prometheus_client.Metric, labels map[string]string) bool {
	if len(metric.GetLabel()) < len(labels) {
		return false
	}
	matched := 0
	for _, lbl := range metric.GetLabel() {
		if val, ok := labels[lbl.GetName()]; ok && val == lbl.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}
