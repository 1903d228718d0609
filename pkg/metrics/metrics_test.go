package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCounterVec(t *testing.T) {
	before := getCounterVecValue(t, PurchaseTotal, "sold_out")

	PurchaseTotal.WithLabelValues("sold_out").Inc()
	PurchaseTotal.WithLabelValues("sold_out").Inc()
	PurchaseTotal.WithLabelValues("success").Inc()

	if got := getCounterVecValue(t, PurchaseTotal, "sold_out") - before; got != 2 {
		t.Errorf("sold_out计数错误: expected=2, got=%f", got)
	}
}

func TestGaugeVec(t *testing.T) {
	CircuitBreakerState.WithLabelValues("seckill-cache").Set(1)

	var metric dto.Metric
	if err := CircuitBreakerState.WithLabelValues("seckill-cache").Write(&metric); err != nil {
		t.Fatalf("读取Gauge失败: %v", err)
	}
	if metric.GetGauge().GetValue() != 1 {
		t.Errorf("Gauge值错误: expected=1, got=%f", metric.GetGauge().GetValue())
	}
}

func TestObserveSince(t *testing.T) {
	before := getHistogramCount(t, CacheWarmDuration)

	ObserveSince(CacheWarmDuration, time.Now().Add(-20*time.Millisecond))

	if got := getHistogramCount(t, CacheWarmDuration) - before; got != 1 {
		t.Errorf("Histogram样本数错误: expected=1, got=%d", got)
	}
}

func TestHandler(t *testing.T) {
	StockReserveTotal.WithLabelValues("ok").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "seckill_stock_reserve_total") {
		t.Error("/metrics输出缺少seckill_stock_reserve_total")
	}
}

func TestResult(t *testing.T) {
	if Result(true) != "success" || Result(false) != "failure" {
		t.Error("Result标签值错误")
	}
}

func getCounterVecValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var metric dto.Metric
	if err := vec.WithLabelValues(labels...).Write(&metric); err != nil {
		t.Fatalf("读取Counter失败: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func getHistogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var metric dto.Metric
	if err := h.Write(&metric); err != nil {
		t.Fatalf("读取Histogram失败: %v", err)
	}
	return metric.GetHistogram().GetSampleCount()
}
