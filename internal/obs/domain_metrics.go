package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CouponResolutionsTotal counts coupon preview outcomes by result.
	CouponResolutionsTotal *prometheus.CounterVec
	// CouponRedemptionsTotal counts coupon redemption outcomes by result.
	CouponRedemptionsTotal *prometheus.CounterVec
	// InvoicesCreatedTotal counts persisted invoices by whether a coupon was applied.
	InvoicesCreatedTotal *prometheus.CounterVec
	// PackageQuotesTotal counts package quotes by price ending.
	PackageQuotesTotal *prometheus.CounterVec
	// DBQueryDuration records SQL round trips in milliseconds.
	DBQueryDuration *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CouponResolutionsTotal = registerCounterVec(reg, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_resolutions_total",
			Help:      "Coupon preview outcomes, labelled by applied or the inapplicability reason.",
		}, "result")
		CouponRedemptionsTotal = registerCounterVec(reg, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_redemptions_total",
			Help:      "Coupon redemption task outcomes.",
		}, "result")
		InvoicesCreatedTotal = registerCounterVec(reg, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_created_total",
			Help:      "Invoices persisted, labelled by coupon usage.",
		}, "coupon")
		PackageQuotesTotal = registerCounterVec(reg, prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "package_quotes_total",
			Help:      "Package price computations by price ending.",
		}, "ending")
		DBQueryDuration = registerHistogramVec(reg, prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_ms",
			Help:      "Latency of SQL statements in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, "operation")
	})
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	if existing := mustRegisterCollector(reg, c); existing != nil {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			return v
		}
	}
	return c
}

func registerHistogramVec(reg prometheus.Registerer, opts prometheus.HistogramOpts, labels ...string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	if existing := mustRegisterCollector(reg, h); existing != nil {
		if v, ok := existing.(*prometheus.HistogramVec); ok {
			return v
		}
	}
	return h
}

// mustRegisterCollector registers collector and returns the already registered
// collector when an identical one exists.
func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector) prometheus.Collector {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
	return nil
}
