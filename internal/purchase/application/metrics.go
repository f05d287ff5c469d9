package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/wyfcoding/pkg/metrics"
)

// PurchaseMetrics 购买指标，nil 接收者上的记录为空操作
type PurchaseMetrics struct {
	completed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	units     *prometheus.CounterVec
	revenue   *prometheus.CounterVec
}

// NewPurchaseMetrics 在共享注册表上创建购买指标，m 为 nil 时返回 nil
func NewPurchaseMetrics(m *metrics.Metrics) *PurchaseMetrics {
	if m == nil {
		return nil
	}
	return &PurchaseMetrics{
		completed: m.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "purchases_total",
			Help:      "Total committed purchases",
		}, []string{}),
		failed: m.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "purchase_failures_total",
			Help:      "Rejected or failed purchases by error code",
		}, []string{"code"}),
		units: m.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "units_sold_total",
			Help:      "Sum of committed purchase quantities",
		}, []string{}),
		revenue: m.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "revenue_total",
			Help:      "Sum of committed purchase amounts",
		}, []string{}),
	}
}

func (m *PurchaseMetrics) recordPurchase(quantity int, amount float64) {
	if m == nil {
		return
	}
	m.completed.WithLabelValues().Inc()
	m.units.WithLabelValues().Add(float64(quantity))
	m.revenue.WithLabelValues().Add(amount)
}

func (m *PurchaseMetrics) recordFailure(code string) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(code).Inc()
}
