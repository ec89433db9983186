package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 块执行结果标签
const (
	OutcomeSuccess    = "success"
	OutcomeFailed     = "failed"
	OutcomeIncomplete = "incomplete"
	OutcomeFault      = "fault"
)

// Metrics 执行引擎的 Prometheus 指标；nil 接收者上的方法均为空操作
type Metrics struct {
	registry        *prometheus.Registry
	blocks          *prometheus.CounterVec
	retries         prometheus.Counter
	connectFailures prometheus.Counter
	frameIncomplete prometheus.Counter
	blockDuration   prometheus.Histogram
}

// New 创建独立注册表上的指标集合
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		blocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "netshell",
				Name:      "blocks_total",
				Help:      "Total executed command blocks by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netshell",
			Name:      "retries_total",
			Help:      "Total corrected-command retries",
		}),
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netshell",
			Name:      "connect_failures_total",
			Help:      "Total failed session establishments",
		}),
		frameIncomplete: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netshell",
			Name:      "frame_incomplete_total",
			Help:      "Total blocks whose response ended without a prompt",
		}),
		blockDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netshell",
			Name:      "block_duration_seconds",
			Help:      "Block execution latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
	}
	m.registry.MustRegister(
		m.blocks,
		m.retries,
		m.connectFailures,
		m.frameIncomplete,
		m.blockDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// RegisterActiveSessions 注册活跃会话数量 gauge
func (m *Metrics) RegisterActiveSessions(fn func() int) {
	if m == nil || fn == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "netshell",
			Name:      "active_sessions",
			Help:      "Currently leased device sessions",
		},
		func() float64 { return float64(fn()) },
	))
}

// ObserveBlock 记录一个块的执行结果与耗时
func (m *Metrics) ObserveBlock(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.blocks.WithLabelValues(kind, outcome).Inc()
	m.blockDuration.Observe(d.Seconds())
	if outcome == OutcomeIncomplete {
		m.frameIncomplete.Inc()
	}
}

func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) IncConnectFailure() {
	if m == nil {
		return
	}
	m.connectFailures.Inc()
}

// Registry 返回底层注册表（测试中读取指标）
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 的 HTTP 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
