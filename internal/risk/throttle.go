package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/matchcore/lob/internal/common"
)

// Throttle bounds request ingress rate ahead of the risk gate (D5,
// spec §4.10): a per-client token bucket plus a per-instrument sliding
// window. Either one tripping rejects the request with RateLimited
// before it is ever counted against the client's risk exposure.
type Throttle struct {
	mu      sync.Mutex
	clients map[common.ClientId]*rate.Limiter

	perClientRPS   rate.Limit
	perClientBurst int

	instrumentLimiter *limiter.Limiter
	instrumentRate    limiter.Rate

	logger *zap.Logger
}

// NewThrottle builds a Throttle. perClientRPS/perClientBurst size the
// token bucket; instrumentRate sizes the per-ticker sliding window
// shared across all clients of that instrument.
func NewThrottle(perClientRPS float64, perClientBurst int, instrumentRate limiter.Rate, logger *zap.Logger) *Throttle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Throttle{
		clients:           make(map[common.ClientId]*rate.Limiter),
		perClientRPS:      rate.Limit(perClientRPS),
		perClientBurst:    perClientBurst,
		instrumentLimiter: limiter.New(memory.NewStore(), instrumentRate),
		instrumentRate:    instrumentRate,
		logger:            logger.Named("throttle"),
	}
}

func (t *Throttle) clientLimiter(client common.ClientId) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.clients[client]
	if !ok {
		l = rate.NewLimiter(t.perClientRPS, t.perClientBurst)
		t.clients[client] = l
	}
	return l
}

// Allow reports whether a request from client, against ticker, may proceed.
func (t *Throttle) Allow(ctx context.Context, ticker common.TickerId, client common.ClientId) bool {
	if !t.clientLimiter(client).Allow() {
		t.logger.Warn("client throttled", zap.Uint32("client", uint32(client)))
		return false
	}

	tickerKey := fmt.Sprintf("t:%d", ticker)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
	defer cancel()
	result, err := t.instrumentLimiter.Get(ctx, tickerKey)
	if err != nil {
		// limiter store unavailable: fail open rather than block trading
		// on an operational dependency outside the matching core.
		t.logger.Error("instrument limiter unavailable", zap.Error(err))
		return true
	}
	if result.Reached {
		t.logger.Warn("instrument throttled", zap.Uint32("ticker", uint32(ticker)))
		return false
	}
	return true
}
