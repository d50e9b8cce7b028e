// Package telemetry wires the operational surface described in SPEC_FULL
// §4.8: per-book prometheus counters/gauges and a gobreaker-backed
// alerter that prevents a stuck instrument from flooding the log/metric
// sink with repeated PoolExhausted/PriceIndexCollision events.
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matchcore/lob/internal/common"
)

// Metrics implements matching.Metrics (and is usable directly by
// marketbook/risk call sites that want the same counters).
type Metrics struct {
	ticker string

	ordersTotal  *prometheus.CounterVec
	tradesTotal  prometheus.Counter
	rejectsTotal *prometheus.CounterVec
	restingDepth *prometheus.GaugeVec
	poolInUse    *prometheus.GaugeVec
	poolCapacity *prometheus.GaugeVec
}

// NewMetrics registers this instrument's collectors against reg. Several
// instruments may share one registerer: the labeled vectors registered by
// the first instrument are reused by later ones, each writing its own
// ticker label, while the trades counter carries the ticker as a constant
// label and registers once per instrument.
func NewMetrics(reg prometheus.Registerer, ticker common.TickerId) *Metrics {
	tickerLabel := strconv.FormatUint(uint64(ticker), 10)

	m := &Metrics{
		ticker: tickerLabel,
		ordersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchcore_orders_total",
			Help: "ADD requests processed, labeled by result.",
		}, []string{"ticker", "result"}),
		tradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "matchcore_trades_total",
			Help:        "Trade ticks emitted.",
			ConstLabels: prometheus.Labels{"ticker": tickerLabel},
		}),
		rejectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchcore_rejects_total",
			Help: "Rejections, labeled by error kind.",
		}, []string{"ticker", "kind"}),
		restingDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matchcore_resting_depth",
			Help: "Aggregate resting qty per side.",
		}, []string{"ticker", "side"}),
		poolInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matchcore_pool_inuse",
			Help: "Slots currently acquired, per pool.",
		}, []string{"ticker", "pool"}),
		poolCapacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matchcore_pool_capacity",
			Help: "Fixed pool capacity.",
		}, []string{"ticker", "pool"}),
	}

	register := func(c prometheus.Collector) prometheus.Collector {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				panic(err)
			}
			return are.ExistingCollector
		}
		return c
	}
	m.ordersTotal = register(m.ordersTotal).(*prometheus.CounterVec)
	m.tradesTotal = register(m.tradesTotal).(prometheus.Counter)
	m.rejectsTotal = register(m.rejectsTotal).(*prometheus.CounterVec)
	m.restingDepth = register(m.restingDepth).(*prometheus.GaugeVec)
	m.poolInUse = register(m.poolInUse).(*prometheus.GaugeVec)
	m.poolCapacity = register(m.poolCapacity).(*prometheus.GaugeVec)
	return m
}

func (m *Metrics) IncOrders(result string) {
	m.ordersTotal.WithLabelValues(m.ticker, result).Inc()
}

func (m *Metrics) IncTrades() {
	m.tradesTotal.Inc()
}

func (m *Metrics) IncRejects(kind string) {
	m.rejectsTotal.WithLabelValues(m.ticker, kind).Inc()
}

func (m *Metrics) SetRestingDepth(side common.Side, qty int64) {
	m.restingDepth.WithLabelValues(m.ticker, side.String()).Set(float64(qty))
}

func (m *Metrics) SetPoolUsage(name string, inUse, capacity int) {
	m.poolInUse.WithLabelValues(m.ticker, name).Set(float64(inUse))
	m.poolCapacity.WithLabelValues(m.ticker, name).Set(float64(capacity))
}
