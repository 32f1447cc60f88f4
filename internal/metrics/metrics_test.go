package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名・ラベルのメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestRecordLogin_CountsByMethodAndResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin("password", "success")
	c.RecordLogin("password", "success")
	c.RecordLogin("password", "invalid_credentials")

	m := findMetric(t, reg, "binna_login_attempts_total", map[string]string{"method": "password", "result": "success"})
	if v := m.GetCounter().GetValue(); v != 2 {
		t.Errorf("success = %v, want 2", v)
	}
	m = findMetric(t, reg, "binna_login_attempts_total", map[string]string{"result": "invalid_credentials"})
	if v := m.GetCounter().GetValue(); v != 1 {
		t.Errorf("invalid_credentials = %v, want 1", v)
	}
}

func TestRecordGuardDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGuardDecision("redirect_login")

	m := findMetric(t, reg, "binna_route_guard_decisions_total", map[string]string{"decision": "redirect_login"})
	if v := m.GetCounter().GetValue(); v != 1 {
		t.Errorf("value = %v, want 1", v)
	}
}

func TestRecordOrderCreated_ObservesAmountInRiyals(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOrderCreated(15000)

	m := findMetric(t, reg, "binna_orders_created_total", nil)
	if v := m.GetCounter().GetValue(); v != 1 {
		t.Errorf("orders = %v, want 1", v)
	}
	h := findMetric(t, reg, "binna_order_amount_sar", nil).GetHistogram()
	if h.GetSampleSum() != 150 {
		t.Errorf("sample sum = %v, want 150", h.GetSampleSum())
	}
}

func TestRecordPaymentAndEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPaymentCallback("webhook", "paid")
	c.RecordEventPublished("order.created", true)
	c.RecordEventPublished("order.created", false)
	c.RecordSessionsCleaned(7)
	c.RecordHTTPResponse("GET", 404)

	if v := findMetric(t, reg, "binna_payment_callbacks_total", map[string]string{"source": "webhook", "status": "paid"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("payment callbacks = %v", v)
	}
	if v := findMetric(t, reg, "binna_events_published_total", map[string]string{"result": "error"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("event errors = %v", v)
	}
	if v := findMetric(t, reg, "binna_sessions_cleaned_total", nil).GetCounter().GetValue(); v != 7 {
		t.Errorf("sessions cleaned = %v", v)
	}
	if v := findMetric(t, reg, "binna_http_responses_total", map[string]string{"status_code": "404"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("http responses = %v", v)
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordOrderCreated(100)

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), "binna_orders_created_total 1") {
		t.Errorf("expected orders counter in output:\n%s", body)
	}
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}
