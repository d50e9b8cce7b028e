package matching

import (
	"go.uber.org/zap"

	"github.com/matchcore/lob/internal/common"
	"github.com/matchcore/lob/internal/pool"
)

// RiskGate is the pre-trade acceptance check (C8). Implementations live in
// package risk; Book only depends on this narrow interface to avoid a
// cycle between the two packages.
type RiskGate interface {
	Check(ticker common.TickerId, client common.ClientId, side common.Side, price common.Price, qty common.Qty) error

	// RecordFill updates the tracked position backing future Check calls.
	// signedDelta is positive for a BUY fill, negative for a SELL fill;
	// realizedDelta is left zero by the book itself, since realized P&L
	// needs cost-basis accounting beyond what an Order record carries —
	// it is a control-plane input fed in from outside the book.
	RecordFill(ticker common.TickerId, client common.ClientId, signedDelta int64, realizedDelta float64)
}

// Metrics receives counters for ADD/CANCEL outcomes and book depth. A nil
// Metrics is a valid, silent no-op.
type Metrics interface {
	IncOrders(result string)
	IncTrades()
	IncRejects(kind string)
	SetRestingDepth(side common.Side, qty int64)
	SetPoolUsage(name string, inUse, capacity int)
}

// Alerter receives the loud telemetry events called out in the error
// handling design: PoolExhausted and PriceIndexCollision. A nil Alerter is
// a valid, silent no-op.
type Alerter interface {
	Alert(kind common.Kind, ticker common.TickerId)
}

// Config sizes one book's arenas and indices.
type Config struct {
	Ticker            common.TickerId
	OrderPoolCapacity int
	LevelPoolCapacity int
	MaxPriceLevels    int
	MaxClients        int
}

// Book is the exchange-side order book and matching engine for one
// instrument (C6). A Book is confined to a single goroutine; it holds no
// internal lock.
type Book struct {
	ticker common.TickerId

	orders *pool.Pool[Order]
	levels *pool.Pool[Level]

	buyIndex  *PriceIndex
	sellIndex *PriceIndex
	clients   *ClientIndex

	// sideHeads[SideIndex(side)] is the head level handle for that side's
	// circular list of active price levels, HandleInvalid when the side
	// is empty.
	sideHeads [3]pool.Handle

	nextMarketOrderId common.OrderId
	seq               uint64

	// totalAdded and totalRemoved track quantity entering and leaving the
	// book over its lifetime, for the mass-balance self-check: at any
	// point totalAdded-totalRemoved must equal the currently resting
	// quantity across both sides.
	totalAdded   uint64
	totalRemoved uint64

	risk    RiskGate
	metrics Metrics
	alerter Alerter
	logger  *zap.Logger
}

// NewBook constructs a Book with the given fixed capacities.
func NewBook(cfg Config, risk RiskGate, metrics Metrics, alerter Alerter, logger *zap.Logger) *Book {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Book{
		ticker:    cfg.Ticker,
		orders:    pool.New[Order](cfg.OrderPoolCapacity),
		levels:    pool.New[Level](cfg.LevelPoolCapacity),
		buyIndex:  NewPriceIndex(cfg.MaxPriceLevels),
		sellIndex: NewPriceIndex(cfg.MaxPriceLevels),
		clients:   NewClientIndex(cfg.MaxClients),
		risk:      risk,
		metrics:   metrics,
		alerter:   alerter,
		logger:    logger.Named("book"),
	}
	b.sideHeads[common.SideIndex(common.SideBuy)] = pool.HandleInvalid
	b.sideHeads[common.SideIndex(common.SideSell)] = pool.HandleInvalid
	return b
}

func (b *Book) priceIndex(side common.Side) *PriceIndex {
	if side == common.SideBuy {
		return b.buyIndex
	}
	return b.sellIndex
}

func (b *Book) opposite(side common.Side) common.Side {
	if side == common.SideBuy {
		return common.SideSell
	}
	return common.SideBuy
}

func (b *Book) bestLevel(side common.Side) pool.Handle {
	return b.sideHeads[common.SideIndex(side)]
}

// crosses reports whether an incoming order of side/price crosses the
// resting best level on the opposite side.
func crosses(side common.Side, incoming common.Price, bestPrice common.Price) bool {
	if side == common.SideBuy {
		return bestPrice <= incoming
	}
	return bestPrice >= incoming
}

// more reports whether price a is strictly more aggressive than price b on
// the given side (a would sit ahead of b in the side list).
func more(side common.Side, a, b common.Price) bool {
	if side == common.SideBuy {
		return a > b
	}
	return a < b
}

func (b *Book) nextSeq() uint64 {
	b.seq++
	return b.seq
}

func (b *Book) setMetricsDepth() {
	if b.metrics == nil {
		return
	}
	b.metrics.SetRestingDepth(common.SideBuy, b.aggregateSideQty(common.SideBuy))
	b.metrics.SetRestingDepth(common.SideSell, b.aggregateSideQty(common.SideSell))
	b.metrics.SetPoolUsage("order", b.orders.InUse(), b.orders.Capacity())
	b.metrics.SetPoolUsage("level", b.levels.InUse(), b.levels.Capacity())
}

func (b *Book) aggregateSideQty(side common.Side) int64 {
	var total int64
	h := b.sideHeads[common.SideIndex(side)]
	if h == pool.HandleInvalid {
		return 0
	}
	start := h
	for {
		lvl := b.levels.Get(h)
		total += int64(b.aggregateLevelQty(h))
		h = lvl.NextLevel
		if h == start {
			break
		}
	}
	return total
}

func (b *Book) aggregateLevelQty(levelHandle pool.Handle) common.Qty {
	lvl := b.levels.Get(levelHandle)
	if lvl.Head == pool.HandleInvalid {
		return 0
	}
	var total common.Qty
	start := lvl.Head
	h := start
	for {
		o := b.orders.Get(h)
		total += o.Qty
		h = o.NextAtPrice
		if h == start {
			break
		}
	}
	return total
}

// insertLevel splices a freshly-acquired, fully-populated level into the
// side's circular list, keeping it strictly monotonic by aggressiveness.
func (b *Book) insertLevel(side common.Side, h pool.Handle) {
	headIdx := common.SideIndex(side)
	head := b.sideHeads[headIdx]
	newLvl := b.levels.Get(h)

	if head == pool.HandleInvalid {
		newLvl.PrevLevel = h
		newLvl.NextLevel = h
		b.sideHeads[headIdx] = h
		return
	}

	// Walk from head to find the first level less aggressive than h; insert
	// before it. If h is the most aggressive, it becomes the new head.
	cur := head
	for {
		curLvl := b.levels.Get(cur)
		if more(side, newLvl.Price, curLvl.Price) {
			break
		}
		cur = curLvl.NextLevel
		if cur == head {
			break
		}
	}

	curLvl := b.levels.Get(cur)
	prev := curLvl.PrevLevel
	prevLvl := b.levels.Get(prev)

	newLvl.NextLevel = cur
	newLvl.PrevLevel = prev
	prevLvl.NextLevel = h
	curLvl.PrevLevel = h

	if more(side, newLvl.Price, curLvl.Price) && cur == head {
		b.sideHeads[headIdx] = h
	}
}

// removeLevel unlinks h from the side's circular list.
func (b *Book) removeLevel(side common.Side, h pool.Handle) {
	headIdx := common.SideIndex(side)
	lvl := b.levels.Get(h)
	if lvl.NextLevel == h {
		b.sideHeads[headIdx] = pool.HandleInvalid
		return
	}
	prev := b.levels.Get(lvl.PrevLevel)
	next := b.levels.Get(lvl.NextLevel)
	prev.NextLevel = lvl.NextLevel
	next.PrevLevel = lvl.PrevLevel
	if b.sideHeads[headIdx] == h {
		b.sideHeads[headIdx] = lvl.NextLevel
	}
}

// appendFIFO appends order handle oh to the FIFO of level lh.
func (b *Book) appendFIFO(lh, oh pool.Handle) {
	lvl := b.levels.Get(lh)
	o := b.orders.Get(oh)
	if lvl.Head == pool.HandleInvalid {
		o.PrevAtPrice = oh
		o.NextAtPrice = oh
		lvl.Head = oh
		return
	}
	head := b.orders.Get(lvl.Head)
	tail := b.orders.Get(head.PrevAtPrice)
	o.PrevAtPrice = head.PrevAtPrice
	o.NextAtPrice = lvl.Head
	tail.NextAtPrice = oh
	head.PrevAtPrice = oh
}

// removeFIFO unlinks order handle oh from level lh's FIFO.
func (b *Book) removeFIFO(lh, oh pool.Handle) {
	lvl := b.levels.Get(lh)
	o := b.orders.Get(oh)
	if o.NextAtPrice == oh {
		lvl.Head = pool.HandleInvalid
		return
	}
	prev := b.orders.Get(o.PrevAtPrice)
	next := b.orders.Get(o.NextAtPrice)
	prev.NextAtPrice = o.NextAtPrice
	next.PrevAtPrice = o.PrevAtPrice
	if lvl.Head == oh {
		lvl.Head = o.NextAtPrice
	}
}

// locateOrCreateLevel returns the handle of the live level at (side,
// price), creating and splicing one in if none exists yet.
func (b *Book) locateOrCreateLevel(op string, side common.Side, price common.Price) (pool.Handle, error) {
	idx := b.priceIndex(side)
	if h, ok := idx.Get(price); ok {
		return h, nil
	}
	h, err := b.levels.Acquire(op)
	if err != nil {
		b.alert(common.KindPoolExhausted)
		return pool.HandleInvalid, err
	}
	lvl := b.levels.Get(h)
	lvl.Side = side
	lvl.Price = price
	lvl.Head = pool.HandleInvalid
	lvl.NextPriority = 0

	if err := idx.Put(op, price, h); err != nil {
		b.levels.Release(h)
		b.alert(common.KindPriceIndexCollision)
		return pool.HandleInvalid, err
	}
	b.insertLevel(side, h)
	return h, nil
}

// destroyLevelIfEmpty releases lh back to the pool and clears it from the
// price index and side list once its FIFO has drained.
func (b *Book) destroyLevelIfEmpty(lh pool.Handle) {
	lvl := b.levels.Get(lh)
	if lvl.Head != pool.HandleInvalid {
		return
	}
	b.removeLevel(lvl.Side, lh)
	b.priceIndex(lvl.Side).Delete(lvl.Price)
	b.levels.Release(lh)
}

// Ticker returns the instrument this book serves.
func (b *Book) Ticker() common.TickerId { return b.ticker }

// SideHead returns the head level handle for side's circular list,
// HandleInvalid when that side is empty. Exposed for package validate's
// pretty-printer and integrity checker.
func (b *Book) SideHead(side common.Side) pool.Handle {
	return b.sideHeads[common.SideIndex(side)]
}

// Level returns the level record at h. Exposed for package validate.
func (b *Book) Level(h pool.Handle) *Level { return b.levels.Get(h) }

// Order returns the order record at h. Exposed for package validate.
func (b *Book) Order(h pool.Handle) *Order { return b.orders.Get(h) }

// ClientHandle returns the resting order handle for (client,
// clientOrderId), if any. Exposed for package validate.
func (b *Book) ClientHandle(client common.ClientId, clientOrderId common.OrderId) (pool.Handle, bool) {
	return b.clients.Get(client, clientOrderId)
}

// PriceIndexLookup returns the level handle side's price index has on file
// for price, if any. Exposed for package validate.
func (b *Book) PriceIndexLookup(side common.Side, price common.Price) (pool.Handle, bool) {
	return b.priceIndex(side).Get(price)
}

// PriceIndexPrices returns every price currently occupying a slot in
// side's price index. Exposed for package validate.
func (b *Book) PriceIndexPrices(side common.Side) []common.Price {
	return b.priceIndex(side).Prices()
}

// LifetimeAdded returns the cumulative quantity accepted onto the book
// since construction. Exposed for package validate.
func (b *Book) LifetimeAdded() uint64 { return b.totalAdded }

// LifetimeRemoved returns the cumulative quantity that has left the book,
// via fills and cancels, since construction. Exposed for package validate.
func (b *Book) LifetimeRemoved() uint64 { return b.totalRemoved }

func (b *Book) alert(kind common.Kind) {
	if b.alerter != nil {
		b.alerter.Alert(kind, b.ticker)
	}
}

func (b *Book) incReject(kind common.Kind) {
	if b.metrics != nil {
		b.metrics.IncRejects(string(kind))
	}
}
