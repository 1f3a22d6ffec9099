package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "collectivo"

// Metrics 服务指标
type Metrics struct {
	ledgerOps          *prometheus.CounterVec
	rejections         *prometheus.CounterVec
	proposalsResolved  *prometheus.CounterVec
	chainEvents        *prometheus.CounterVec
	rpcRequestDuration *prometheus.HistogramVec
}

// New 在 reg 上注册全部指标
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ledgerOps: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_operations_total",
				Help:      "Accepted ledger and governance operations by operation and boundary",
			},
			[]string{"operation", "boundary"},
		),
		rejections: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_rejections_total",
				Help:      "Rejected commands by operation and error kind",
			},
			[]string{"operation", "kind"},
		),
		proposalsResolved: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proposals_resolved_total",
				Help:      "Proposals that reached a terminal status",
			},
			[]string{"status"},
		),
		chainEvents: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chain_events_total",
				Help:      "Chain events ingested by type and result",
			},
			[]string{"event_type", "result"},
		),
		rpcRequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_request_duration_seconds",
				Help:      "Duration of Sui json-rpc <method> in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "result"},
		),
	}
}

// Nop 不注册到全局的指标，测试和命令行工具使用
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

// LedgerOp 记录一次成功的写操作
func (m *Metrics) LedgerOp(operation, boundary string) {
	m.ledgerOps.WithLabelValues(operation, boundary).Inc()
}

// Rejection 记录一次校验失败
func (m *Metrics) Rejection(operation, kind string) {
	m.rejections.WithLabelValues(operation, kind).Inc()
}

// ProposalResolved 记录提案进入终态
func (m *Metrics) ProposalResolved(status string) {
	m.proposalsResolved.WithLabelValues(status).Inc()
}

// ChainEvent 记录事件处理结果
func (m *Metrics) ChainEvent(eventType, result string) {
	m.chainEvents.WithLabelValues(eventType, result).Inc()
}

// ObserveRPC 记录 RPC 耗时
func (m *Metrics) ObserveRPC(method string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.rpcRequestDuration.WithLabelValues(method, result).Observe(time.Since(start).Seconds())
}
