package application

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wyfcoding/pkg/metrics"
)

// ReconcileMetrics 对账指标，nil 接收者上的记录为空操作
type ReconcileMetrics struct {
	duration   *prometheus.HistogramVec
	reconciled *prometheus.CounterVec
}

// NewReconcileMetrics 在共享注册表上创建对账指标，m 为 nil 时返回 nil
func NewReconcileMetrics(m *metrics.Metrics) *ReconcileMetrics {
	if m == nil {
		return nil
	}
	return &ReconcileMetrics{
		duration: m.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "reconcile_duration_seconds",
			Help:      "Statistics reconciliation run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{}),
		reconciled: m.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "reconciled_products_total",
			Help:      "Products whose statistics were rebuilt, by outcome",
		}, []string{"status"}),
	}
}

func (m *ReconcileMetrics) observe(d time.Duration, reconciled, failed int) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues().Observe(d.Seconds())
	m.reconciled.WithLabelValues("success").Add(float64(reconciled))
	m.reconciled.WithLabelValues("failed").Add(float64(failed))
}
