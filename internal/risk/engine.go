package risk

import (
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/matchcore/lob/internal/common"
)

func key(ticker common.TickerId, client common.ClientId) string {
	return fmt.Sprintf("%d:%d", ticker, client)
}

// Gate is the pre-trade acceptance check (C8). It implements
// matching.RiskGate. RiskConfig per (ticker, client) is served from a
// go-cache instance (D6) so a control-plane update never requires
// restarting the owning book's goroutine; exposure and realised P&L are
// tracked in an ordinary map guarded by a mutex, since those are written
// by the book's own goroutine on every fill, not by the control plane.
type Gate struct {
	configs *gocache.Cache

	mu        sync.RWMutex
	positions map[string]*Position

	logger *zap.Logger
}

// NewGate builds a Gate with no default expiry on cached configs: a
// config lives until explicitly replaced by SetConfig.
func NewGate(logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		configs:   gocache.New(gocache.NoExpiration, 10*time.Minute),
		positions: make(map[string]*Position),
		logger:    logger.Named("risk"),
	}
}

// SetConfig installs the RiskConfig for (ticker, client), replacing any
// prior value atomically.
func (g *Gate) SetConfig(ticker common.TickerId, client common.ClientId, cfg common.RiskConfig) {
	g.configs.Set(key(ticker, client), cfg, gocache.NoExpiration)
	g.logger.Info("risk config updated",
		zap.Uint32("ticker", uint32(ticker)), zap.Uint32("client", uint32(client)),
		zap.String("config", cfg.String()))
}

func (g *Gate) config(ticker common.TickerId, client common.ClientId) (common.RiskConfig, bool) {
	v, ok := g.configs.Get(key(ticker, client))
	if !ok {
		return common.RiskConfig{}, false
	}
	return v.(common.RiskConfig), true
}

func (g *Gate) position(ticker common.TickerId, client common.ClientId) *Position {
	k := key(ticker, client)
	g.mu.RLock()
	p, ok := g.positions[k]
	g.mu.RUnlock()
	if ok {
		return p
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.positions[k]; ok {
		return p
	}
	p = &Position{}
	g.positions[k] = p
	return p
}

// Check runs the three ordered pre-trade checks from §4.6: order size,
// worst-case post-fill position, realised loss. The first failure wins.
// A (ticker, client) pair with no configured RiskConfig is accepted
// unconditionally — absence of configuration is a provisioning choice
// outside the gate's remit, not itself a rejection.
func (g *Gate) Check(ticker common.TickerId, client common.ClientId, side common.Side, price common.Price, qty common.Qty) error {
	cfg, ok := g.config(ticker, client)
	if !ok {
		return nil
	}

	if qty > cfg.MaxOrderSize {
		g.logger.Warn("risk reject: order size", zap.Uint32("ticker", uint32(ticker)), zap.Uint32("client", uint32(client)))
		return common.RiskReject("Check", string(ViolationOrderSize))
	}

	pos := g.position(ticker, client)
	worstCase := pos.Qty + int64(common.SideValue(side))*int64(qty)
	if worstCase > int64(cfg.MaxPosition) || worstCase < -int64(cfg.MaxPosition) {
		g.logger.Warn("risk reject: position", zap.Uint32("ticker", uint32(ticker)), zap.Uint32("client", uint32(client)))
		return common.RiskReject("Check", string(ViolationPosition))
	}

	if pos.Realized < -cfg.MaxLoss {
		g.logger.Warn("risk reject: realised loss", zap.Uint32("ticker", uint32(ticker)), zap.Uint32("client", uint32(client)))
		return common.RiskReject("Check", string(ViolationRealizedPnL))
	}

	return nil
}

// RecordFill updates the tracked position and realised P&L for (ticker,
// client) after a fill the owning book reported back. signedDelta is the
// position change (+qty for a buy fill, -qty for a sell fill);
// realizedDelta is the cash P&L realised by this fill, if any.
func (g *Gate) RecordFill(ticker common.TickerId, client common.ClientId, signedDelta int64, realizedDelta float64) {
	pos := g.position(ticker, client)
	g.mu.Lock()
	pos.Qty += signedDelta
	pos.Realized += realizedDelta
	g.mu.Unlock()
}
