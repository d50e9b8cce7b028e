package telemetry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/matchcore/lob/internal/common"
)

var errAlertRaised = errors.New("alert raised")

// Alerter implements matching.Alerter. Each (ticker, kind) pair gets its
// own gobreaker.CircuitBreaker; every Alert call is reported to the
// breaker as a failure, which trips it open on the very first call. While
// open, later calls short-circuit silently (still counted via metrics,
// never re-logged); once the breaker's timeout elapses it lets exactly
// one probe request through, which re-logs and re-opens — a periodic
// keep-alive instead of a continuous flood.
type Alerter struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker

	probeInterval time.Duration
	logger        *zap.Logger
	metrics       *Metrics
}

// NewAlerter builds an Alerter. probeInterval controls how often a
// sustained fault re-surfaces in the logs once the first alert fires.
func NewAlerter(probeInterval time.Duration, logger *zap.Logger, metrics *Metrics) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Alerter{
		breakers:      make(map[string]*gobreaker.CircuitBreaker),
		probeInterval: probeInterval,
		logger:        logger.Named("alerts"),
		metrics:       metrics,
	}
}

func alertKey(ticker common.TickerId, kind common.Kind) string {
	return fmt.Sprintf("%d:%s", ticker, kind)
}

func (a *Alerter) breakerFor(ticker common.TickerId, kind common.Kind) *gobreaker.CircuitBreaker {
	k := alertKey(ticker, kind)
	a.mu.Lock()
	defer a.mu.Unlock()
	if cb, ok := a.breakers[k]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        k,
		MaxRequests: 1,
		Timeout:     a.probeInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})
	a.breakers[k] = cb
	return cb
}

// Alert reports one PoolExhausted or PriceIndexCollision occurrence for
// the given ticker.
func (a *Alerter) Alert(kind common.Kind, ticker common.TickerId) {
	if a.metrics != nil {
		a.metrics.IncRejects(string(kind))
	}
	cb := a.breakerFor(ticker, kind)
	_, _ = cb.Execute(func() (interface{}, error) {
		a.logger.Error("operational alert", zap.String("kind", string(kind)), zap.Uint32("ticker", uint32(ticker)))
		return nil, errAlertRaised
	})
}
