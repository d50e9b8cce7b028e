// Package marketbook implements the participant-side market-by-order
// mirror book (C7): it applies the public update stream emitted by the
// exchange book and maintains a reconstructed order book plus a
// continuously updated BBO.
package marketbook

import (
	"go.uber.org/zap"

	"github.com/matchcore/lob/internal/common"
	"github.com/matchcore/lob/internal/matching"
	"github.com/matchcore/lob/internal/pool"
)

// Config sizes one mirror book's arenas.
type Config struct {
	Ticker            common.TickerId
	OrderPoolCapacity int
	LevelPoolCapacity int
	MaxPriceLevels    int
}

// Book is the reconstructed mirror for one instrument. It reuses the
// exact Order/Level/PriceIndex shapes from the matching package: the
// invariants stated for C3 hold identically on both sides of the wire.
type Book struct {
	ticker common.TickerId

	orders *pool.Pool[matching.Order]
	levels *pool.Pool[matching.Level]

	buyIndex  *matching.PriceIndex
	sellIndex *matching.PriceIndex

	// byMarketId indexes resting orders by market-order-id, the only key
	// the public stream carries. A map is used rather than a dense
	// MAX_ORDER_IDS-wide array: the mirror only ever holds as many
	// entries as currently rest, a small fraction of the id space.
	byMarketId map[common.OrderId]pool.Handle

	sideHeads [3]pool.Handle

	lastSeq uint64
	stale   bool

	bbo    BBO
	onBBO  func(BBO)
	logger *zap.Logger
}

// NewBook constructs an empty mirror book.
func NewBook(cfg Config, onBBOChanged func(BBO), logger *zap.Logger) *Book {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Book{
		ticker:     cfg.Ticker,
		orders:     pool.New[matching.Order](cfg.OrderPoolCapacity),
		levels:     pool.New[matching.Level](cfg.LevelPoolCapacity),
		buyIndex:   matching.NewPriceIndex(cfg.MaxPriceLevels),
		sellIndex:  matching.NewPriceIndex(cfg.MaxPriceLevels),
		byMarketId: make(map[common.OrderId]pool.Handle),
		bbo:        NewInvalidBBO(),
		onBBO:      onBBOChanged,
		logger:     logger.Named("marketbook"),
	}
	b.sideHeads[common.SideIndex(common.SideBuy)] = pool.HandleInvalid
	b.sideHeads[common.SideIndex(common.SideSell)] = pool.HandleInvalid
	return b
}

// Stale reports whether the book has detected a sequence gap and is
// waiting for a CLEAR + SNAPSHOT resync.
func (b *Book) Stale() bool {
	return b.stale
}

// BBO returns the most recently computed best-bid/offer.
func (b *Book) BBO() BBO {
	return b.bbo
}

func (b *Book) priceIndex(side common.Side) *matching.PriceIndex {
	if side == common.SideBuy {
		return b.buyIndex
	}
	return b.sellIndex
}

// Apply consumes one PublicUpdate. On SequenceGap it marks the book stale
// and returns the error without mutating state further; callers should
// stop feeding updates until a resync arrives: a SNAPSHOT_START (which
// wipes local state, rebases the sequence counter to the snapshot's
// baseline and lifts the stale mark), one ADD per currently resting
// order, then SNAPSHOT_END.
func (b *Book) Apply(u matching.PublicUpdate) error {
	resyncing := u.Kind == matching.UpdateClear || u.Kind == matching.UpdateSnapshotStart
	if b.stale && !resyncing {
		return common.SequenceGap("Apply", "book stale, awaiting resync")
	}

	if !resyncing {
		if u.Seq != b.lastSeq+1 {
			b.stale = true
			b.logger.Warn("sequence gap detected", zap.Uint64("expected", b.lastSeq+1), zap.Uint64("got", u.Seq))
			return common.SequenceGap("Apply", "non-contiguous sequence number")
		}
		b.lastSeq = u.Seq
	}

	switch u.Kind {
	case matching.UpdateClear:
		b.onClear()
	case matching.UpdateAdd:
		b.onAdd(u)
	case matching.UpdateModify:
		b.onModify(u)
	case matching.UpdateCancel:
		b.onCancel(u)
	case matching.UpdateTrade:
		b.onTrade(u)
	case matching.UpdateSnapshotStart:
		// A snapshot discards whatever partial state preceded it and
		// rebases the sequence counter to this run's starting point,
		// regardless of how far behind the book had fallen. The stale
		// mark is lifted here so the run's ADDs and SNAPSHOT_END pass
		// the guard above and go through the normal sequence check.
		b.onClear()
		b.lastSeq = u.Seq
		b.stale = false
	case matching.UpdateSnapshotEnd:
		b.stale = false
	}

	b.recomputeBBO()
	return nil
}

func (b *Book) onClear() {
	for _, side := range []common.Side{common.SideBuy, common.SideSell} {
		start := b.sideHeads[common.SideIndex(side)]
		cur := start
		for cur != pool.HandleInvalid {
			lvl := b.levels.Get(cur)
			next := lvl.NextLevel
			wrapped := next == start
			for lvl.Head != pool.HandleInvalid {
				oh := lvl.Head
				o := b.orders.Get(oh)
				delete(b.byMarketId, o.MarketOrderId)
				b.removeFIFO(cur, oh)
				b.orders.Release(oh)
			}
			b.priceIndex(side).Delete(lvl.Price)
			b.levels.Release(cur)
			if wrapped {
				break
			}
			cur = next
		}
		b.sideHeads[common.SideIndex(side)] = pool.HandleInvalid
	}
	b.lastSeq = 0
}

func (b *Book) onAdd(u matching.PublicUpdate) {
	lh, ok := b.priceIndex(u.Side).Get(u.Price)
	if !ok {
		var err error
		lh, err = b.levels.Acquire("onAdd")
		if err != nil {
			b.logger.Error("mirror level pool exhausted", zap.Error(err))
			return
		}
		lvl := b.levels.Get(lh)
		lvl.Side = u.Side
		lvl.Price = u.Price
		lvl.Head = pool.HandleInvalid
		if err := b.priceIndex(u.Side).Put("onAdd", u.Price, lh); err != nil {
			b.levels.Release(lh)
			b.logger.Error("mirror price index collision", zap.Error(err))
			return
		}
		b.insertLevel(u.Side, lh)
	}

	oh, err := b.orders.Acquire("onAdd")
	if err != nil {
		b.logger.Error("mirror order pool exhausted", zap.Error(err))
		return
	}
	o := b.orders.Get(oh)
	o.Ticker = b.ticker
	o.MarketOrderId = u.MarketOrderId
	o.Side = u.Side
	o.Price = u.Price
	o.Qty = u.Qty
	o.Priority = u.Priority

	b.appendFIFO(lh, oh)
	b.byMarketId[u.MarketOrderId] = oh
}

func (b *Book) onModify(u matching.PublicUpdate) {
	oh, ok := b.byMarketId[u.MarketOrderId]
	if !ok {
		return
	}
	b.orders.Get(oh).Qty = u.Qty
}

func (b *Book) onCancel(u matching.PublicUpdate) {
	b.removeByMarketId(u.MarketOrderId)
}

func (b *Book) onTrade(u matching.PublicUpdate) {
	oh, ok := b.byMarketId[u.MarketOrderId]
	if !ok {
		return
	}
	o := b.orders.Get(oh)
	if u.Qty >= o.Qty {
		b.removeByMarketId(u.MarketOrderId)
		return
	}
	o.Qty -= u.Qty
}

func (b *Book) removeByMarketId(marketOrderId common.OrderId) {
	oh, ok := b.byMarketId[marketOrderId]
	if !ok {
		return
	}
	o := b.orders.Get(oh)
	lh, ok := b.priceIndex(o.Side).Get(o.Price)
	if !ok {
		delete(b.byMarketId, marketOrderId)
		return
	}
	b.removeFIFO(lh, oh)
	delete(b.byMarketId, marketOrderId)
	b.orders.Release(oh)

	lvl := b.levels.Get(lh)
	if lvl.Head == pool.HandleInvalid {
		b.removeLevel(o.Side, lh)
		b.priceIndex(o.Side).Delete(o.Price)
		b.levels.Release(lh)
	}
}

func (b *Book) recomputeBBO() {
	next := BBO{BidPrice: common.PriceInvalid, BidQty: common.QtyInvalid, AskPrice: common.PriceInvalid, AskQty: common.QtyInvalid}

	if h := b.sideHeads[common.SideIndex(common.SideBuy)]; h != pool.HandleInvalid {
		lvl := b.levels.Get(h)
		next.BidPrice = lvl.Price
		next.BidQty = b.aggregateLevelQty(h)
	}
	if h := b.sideHeads[common.SideIndex(common.SideSell)]; h != pool.HandleInvalid {
		lvl := b.levels.Get(h)
		next.AskPrice = lvl.Price
		next.AskQty = b.aggregateLevelQty(h)
	}

	if !next.Equal(b.bbo) {
		b.bbo = next
		if b.onBBO != nil {
			b.onBBO(next)
		}
	}
}

func (b *Book) aggregateLevelQty(lh pool.Handle) common.Qty {
	lvl := b.levels.Get(lh)
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
