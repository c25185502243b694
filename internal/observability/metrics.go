package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tally"

// Metrics 账本与看板同步相关的 prometheus 指标。
// nil 指针上的方法都是空操作，测试可直接传 nil。
type Metrics struct {
	registry *prometheus.Registry

	Contributions     *prometheus.CounterVec
	ContributedAmount *prometheus.CounterVec
	Mutations         *prometheus.CounterVec
	SyncRuns          prometheus.Counter
	SyncDashboards    *prometheus.CounterVec
	SyncDuration      prometheus.Histogram
	ProgressDrift     prometheus.Gauge
	ReportsPosted     prometheus.Counter
	EventsCoalesced   prometheus.Counter
	EventsDropped     *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// NewMetrics 创建并注册指标；reg 为空时新建独立的 Registry
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		Contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contributions_total",
			Help:      "Total number of recorded contributions",
		}, []string{"action"}),
		ContributedAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contributed_amount_total",
			Help:      "Sum of contributed amounts",
		}, []string{"action"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Ledger and catalog mutations by kind and result",
		}, []string{"kind", "result"}),
		SyncRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Total number of bulk dashboard sync runs",
		}),
		SyncDashboards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_dashboards_total",
			Help:      "Dashboards processed by bulk sync, by outcome",
		}, []string{"outcome"}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of bulk dashboard sync runs",
			Buckets:   prometheus.DefBuckets,
		}),
		ProgressDrift: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "progress_drift_targets",
			Help:      "Targets whose cached progress differs from the ledger sum at the last check",
		}),
		ReportsPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daily_reports_posted_total",
			Help:      "Total number of posted daily reports",
		}),
		EventsCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_events_coalesced_total",
			Help:      "Tenant change events merged into an already pending sync",
		}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because a subscriber was not keeping up",
		}, []string{"type"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	reg.MustRegister(
		m.Contributions,
		m.ContributedAmount,
		m.Mutations,
		m.SyncRuns,
		m.SyncDashboards,
		m.SyncDuration,
		m.ProgressDrift,
		m.ReportsPosted,
		m.EventsCoalesced,
		m.EventsDropped,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Registry 返回底层 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveContribution(action string, amount int64) {
	if m == nil {
		return
	}
	m.Contributions.WithLabelValues(action).Inc()
	m.ContributedAmount.WithLabelValues(action).Add(float64(amount))
}

func (m *Metrics) ObserveMutation(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Mutations.WithLabelValues(kind, result).Inc()
}

// ObserveSync 记录一次批量同步的结果
func (m *Metrics) ObserveSync(updated, pruned, skipped int, d time.Duration) {
	if m == nil {
		return
	}
	m.SyncRuns.Inc()
	m.SyncDashboards.WithLabelValues("updated").Add(float64(updated))
	m.SyncDashboards.WithLabelValues("pruned").Add(float64(pruned))
	m.SyncDashboards.WithLabelValues("skipped").Add(float64(skipped))
	m.SyncDuration.Observe(d.Seconds())
}

func (m *Metrics) SetDrift(n int) {
	if m == nil {
		return
	}
	m.ProgressDrift.Set(float64(n))
}

func (m *Metrics) ObserveReport() {
	if m == nil {
		return
	}
	m.ReportsPosted.Inc()
}

func (m *Metrics) ObserveCoalesced() {
	if m == nil {
		return
	}
	m.EventsCoalesced.Inc()
}

func (m *Metrics) ObserveDroppedEvent(eventType string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(eventType).Inc()
}

// Middleware 记录 echo 请求的次数与耗时
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			path := c.Path()
			m.HTTPRequests.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			m.HTTPDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
