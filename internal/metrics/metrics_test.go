package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestMetrics(t *testing.T) {
	m := New()

	m.LedgerOp("create_expense", OutcomeOK)
	m.LedgerOp("create_expense", OutcomeOK)
	m.LedgerOp("settle", OutcomeRejected)
	m.ActivityFailed()
	m.ObserveRPC("/fairkeep.v1.LedgerService/Settle", "ok", 20*time.Millisecond)

	body := scrape(t, m)
	for _, want := range []string{
		`fairkeep_ledger_operations_total{operation="create_expense",outcome="ok"} 2`,
		`fairkeep_ledger_operations_total{operation="settle",outcome="rejected"} 1`,
		`fairkeep_activity_failures_total 1`,
		`fairkeep_rpc_requests_total{code="ok",procedure="/fairkeep.v1.LedgerService/Settle"} 1`,
		`fairkeep_rpc_duration_seconds_count{procedure="/fairkeep.v1.LedgerService/Settle"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.LedgerOp("settle", OutcomeOK)
	m.ActivityFailed()
	m.ObserveRPC("p", "ok", time.Second)
}
