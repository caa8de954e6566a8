package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordGatewayRequest_CountsByMethodAndClassification はメソッドと分類ごとに集計されることを検証する。
func TestRecordGatewayRequest_CountsByMethodAndClassification(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGatewayRequest("GET", "ok", 10*time.Millisecond)
	c.RecordGatewayRequest("GET", "ok", 20*time.Millisecond)
	c.RecordGatewayRequest("POST", "unauthorized", 5*time.Millisecond)

	mf := findFamily(t, reg, "campuslink_gateway_requests_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		method := labelValue(m, "method")
		class := labelValue(m, "classification")
		val := m.GetCounter().GetValue()
		switch {
		case method == "GET" && class == "ok":
			if val != 2 {
				t.Errorf("GET/ok = %v, want 2", val)
			}
		case method == "POST" && class == "unauthorized":
			if val != 1 {
				t.Errorf("POST/unauthorized = %v, want 1", val)
			}
		default:
			t.Errorf("unexpected labels: %s/%s", method, class)
		}
	}

	latency := findFamily(t, reg, "campuslink_gateway_request_duration_seconds")
	var samples uint64
	for _, m := range latency.GetMetric() {
		samples += m.GetHistogram().GetSampleCount()
	}
	if samples != 3 {
		t.Errorf("latency sample_count = %d, want 3", samples)
	}
}

// TestRecordForcedLogout_IncrementsCounter は強制ログアウトカウンタが増加することを検証する。
func TestRecordForcedLogout_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordForcedLogout()

	mf := findFamily(t, reg, "campuslink_forced_logouts_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("forced_logouts_total = %v, want 1", val)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(403)

	mf := findFamily(t, reg, "campuslink_http_status_total")
	for _, m := range mf.GetMetric() {
		val := m.GetCounter().GetValue()
		switch labelValue(m, "status_code") {
		case "200":
			if val != 2 {
				t.Errorf("status 200 = %v, want 2", val)
			}
		case "403":
			if val != 1 {
				t.Errorf("status 403 = %v, want 1", val)
			}
		default:
			t.Errorf("unexpected label: %s", labelValue(m, "status_code"))
		}
	}
}

// TestRecordNewsImport はニュース取り込みの成功件数と失敗理由が記録されることを検証する。
func TestRecordNewsImport(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNewsImported(3)
	c.RecordNewsImported(2)
	c.RecordNewsImportFailure("fetch")

	imported := findFamily(t, reg, "campuslink_news_imported_total")
	if val := imported.GetMetric()[0].GetCounter().GetValue(); val != 5 {
		t.Errorf("news_imported_total = %v, want 5", val)
	}
	failed := findFamily(t, reg, "campuslink_news_import_fail_total")
	if got := labelValue(failed.GetMetric()[0], "reason"); got != "fetch" {
		t.Errorf("reason = %q, want fetch", got)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat はHandlerがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordGatewayRequest("GET", "ok", time.Millisecond)
	c.RecordHTTPStatus(200)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, metric := range []string{
		"campuslink_gateway_requests_total",
		"campuslink_gateway_request_duration_seconds",
		"campuslink_http_status_total",
	} {
		if !strings.Contains(string(body), metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestWriteTextfile_WritesMetrics はtextfile形式で書き出されることを検証する。
func TestWriteTextfile_WritesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordForcedLogout()

	path := filepath.Join(t.TempDir(), "campuslink.prom")
	if err := WriteTextfile(path, reg); err != nil {
		t.Fatalf("WriteTextfile returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read textfile: %v", err)
	}
	if !strings.Contains(string(data), "campuslink_forced_logouts_total 1") {
		t.Errorf("textfile missing forced logout counter:\n%s", data)
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はインターフェース実装を検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	var _ MetricsCollector = NewCollector(prometheus.NewRegistry())
	var _ MetricsCollector = Noop{}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordForcedLogout()
	c2.RecordForcedLogout()
	c2.RecordForcedLogout()

	v1 := findFamily(t, reg1, "campuslink_forced_logouts_total").GetMetric()[0].GetCounter().GetValue()
	v2 := findFamily(t, reg2, "campuslink_forced_logouts_total").GetMetric()[0].GetCounter().GetValue()
	if v1 != 1 || v2 != 2 {
		t.Errorf("reg1 = %v, reg2 = %v, want 1 and 2", v1, v2)
	}
}
