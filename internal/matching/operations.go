package matching

import (
	"go.uber.org/zap"

	"github.com/matchcore/lob/internal/common"
	"github.com/matchcore/lob/internal/pool"
)

// Result bundles everything one request produced: the client-facing
// responses and the public updates to fan out to mirror books.
type Result struct {
	Responses []ClientResponse
	Updates   []PublicUpdate
}

func (r *Result) emit(u PublicUpdate) {
	r.Updates = append(r.Updates, u)
}

func (r *Result) respond(c ClientResponse) {
	r.Responses = append(r.Responses, c)
}

// Add runs the full ADD pipeline: validation, risk gate, match, rest.
func (b *Book) Add(req ClientRequest) *Result {
	res := &Result{}

	if req.Side == common.SideInvalid || req.Price == common.PriceInvalid || req.Qty == 0 {
		b.incReject(common.KindInvalidOrder)
		if b.metrics != nil {
			b.metrics.IncOrders("rejected")
		}
		res.respond(ClientResponse{Kind: ResponseReject, ClientOrderId: req.ClientOrderId, Reason: ReasonInvalidOrder})
		return res
	}

	if _, exists := b.clients.Get(req.Client, req.ClientOrderId); exists {
		b.incReject(common.KindDuplicateOrderId)
		if b.metrics != nil {
			b.metrics.IncOrders("rejected")
		}
		res.respond(ClientResponse{Kind: ResponseReject, ClientOrderId: req.ClientOrderId, Reason: ReasonDuplicateOrderId})
		return res
	}

	if b.risk != nil {
		if err := b.risk.Check(req.Ticker, req.Client, req.Side, req.Price, req.Qty); err != nil {
			b.incReject(common.KindRiskReject)
			if b.metrics != nil {
				b.metrics.IncOrders("rejected")
			}
			res.respond(ClientResponse{Kind: ResponseReject, ClientOrderId: req.ClientOrderId, Reason: ReasonFromError(err)})
			return res
		}
	}

	marketOrderId := b.nextMarketOrderId
	b.nextMarketOrderId++

	b.totalAdded += uint64(req.Qty)
	remaining := b.match(req, marketOrderId, req.Qty, res)

	if remaining > 0 {
		if err := b.rest(req, marketOrderId, remaining, res); err != nil {
			// The unrested remainder never entered the book.
			b.totalAdded -= uint64(remaining)
			reason := ReasonFromError(err)
			if b.metrics != nil {
				b.metrics.IncOrders("rejected")
			}
			res.respond(ClientResponse{Kind: ResponseReject, ClientOrderId: req.ClientOrderId, Reason: reason})
			return res
		}
	}

	if b.metrics != nil {
		b.metrics.IncOrders("accepted")
	}
	res.respond(ClientResponse{Kind: ResponseAccept, ClientOrderId: req.ClientOrderId, MarketOrderId: marketOrderId})
	b.setMetricsDepth()
	return res
}

// signedDelta converts a fill quantity into the signed position delta it
// represents for the side that received it: a BUY fill increases
// position, a SELL fill decreases it.
func signedDelta(side common.Side, qty common.Qty) int64 {
	if side == common.SideBuy {
		return int64(qty)
	}
	return -int64(qty)
}

// match walks the opposite side while the incoming order crosses, filling
// resting orders in price-time priority order (§4.4 Matching algorithm).
func (b *Book) match(req ClientRequest, marketOrderId common.OrderId, qty common.Qty, res *Result) common.Qty {
	oppSide := b.opposite(req.Side)

	for qty > 0 {
		bestLevelHandle := b.bestLevel(oppSide)
		if bestLevelHandle == pool.HandleInvalid {
			break
		}
		bestLvl := b.levels.Get(bestLevelHandle)
		if !crosses(req.Side, req.Price, bestLvl.Price) {
			break
		}

		headHandle := bestLvl.Head
		resting := b.orders.Get(headHandle)

		fillQty := qty
		if resting.Qty < fillQty {
			fillQty = resting.Qty
		}
		tradePrice := resting.Price

		res.emit(PublicUpdate{Kind: UpdateTrade, Ticker: req.Ticker, Seq: b.nextSeq(),
			MarketOrderId: marketOrderId, Side: req.Side, Price: tradePrice, Qty: fillQty})
		res.emit(PublicUpdate{Kind: UpdateTrade, Ticker: req.Ticker, Seq: b.nextSeq(),
			MarketOrderId: resting.MarketOrderId, Side: oppSide, Price: tradePrice, Qty: fillQty})

		res.respond(ClientResponse{Kind: ResponseFill, ClientOrderId: resting.ClientOrderId,
			MarketOrderId: resting.MarketOrderId, Price: tradePrice, Qty: fillQty, Remaining: resting.Qty - fillQty})

		qty -= fillQty
		resting.Qty -= fillQty
		// Each trade leg removes fillQty from the book: once for the
		// incoming side's consumed quantity (which never rests), once
		// for the resting order's reduced quantity.
		b.totalRemoved += uint64(fillQty) * 2
		if b.metrics != nil {
			b.metrics.IncTrades()
		}
		if b.risk != nil {
			b.risk.RecordFill(req.Ticker, req.Client, signedDelta(req.Side, fillQty), 0)
			b.risk.RecordFill(req.Ticker, resting.Client, signedDelta(oppSide, fillQty), 0)
		}

		if resting.Qty == 0 {
			b.removeFIFO(bestLevelHandle, headHandle)
			b.clients.Delete(resting.Client, resting.ClientOrderId)
			b.orders.Release(headHandle)
			b.destroyLevelIfEmpty(bestLevelHandle)
			continue
		}

		res.emit(PublicUpdate{Kind: UpdateModify, Ticker: req.Ticker, Seq: b.nextSeq(),
			MarketOrderId: resting.MarketOrderId, Side: oppSide, Price: resting.Price,
			Qty: resting.Qty, Priority: resting.Priority})
		break
	}

	return qty
}

// rest appends the unfilled remainder of an incoming order as a new
// resting order.
func (b *Book) rest(req ClientRequest, marketOrderId common.OrderId, qty common.Qty, res *Result) error {
	levelHandle, err := b.locateOrCreateLevel("ADD", req.Side, req.Price)
	if err != nil {
		return err
	}
	lvl := b.levels.Get(levelHandle)

	orderHandle, err := b.orders.Acquire("ADD")
	if err != nil {
		b.destroyLevelIfEmpty(levelHandle)
		b.alert(common.KindPoolExhausted)
		return err
	}

	priority := lvl.NextPriority
	lvl.NextPriority++

	o := b.orders.Get(orderHandle)
	o.Ticker = req.Ticker
	o.Client = req.Client
	o.ClientOrderId = req.ClientOrderId
	o.MarketOrderId = marketOrderId
	o.Side = req.Side
	o.Price = req.Price
	o.Qty = qty
	o.Priority = priority

	b.appendFIFO(levelHandle, orderHandle)
	b.clients.Set(req.Client, req.ClientOrderId, orderHandle)

	res.emit(PublicUpdate{Kind: UpdateAdd, Ticker: req.Ticker, Seq: b.nextSeq(),
		MarketOrderId: marketOrderId, Side: req.Side, Price: req.Price, Qty: qty, Priority: priority})
	return nil
}

// Cancel removes a resting order addressed by (client, clientOrderId).
func (b *Book) Cancel(ticker common.TickerId, client common.ClientId, clientOrderId common.OrderId) *Result {
	res := &Result{}

	orderHandle, ok := b.clients.Get(client, clientOrderId)
	if !ok {
		b.incReject(common.KindUnknownOrder)
		res.respond(ClientResponse{Kind: ResponseCancelReject, ClientOrderId: clientOrderId, Reason: ReasonUnknownOrder})
		return res
	}

	o := b.orders.Get(orderHandle)
	levelHandle, _ := b.priceIndex(o.Side).Get(o.Price)
	b.totalRemoved += uint64(o.Qty)

	b.removeFIFO(levelHandle, orderHandle)
	b.clients.Delete(client, clientOrderId)
	marketOrderId := o.MarketOrderId
	side := o.Side
	price := o.Price
	b.orders.Release(orderHandle)
	if levelHandle != pool.HandleInvalid {
		b.destroyLevelIfEmpty(levelHandle)
	}

	res.emit(PublicUpdate{Kind: UpdateCancel, Ticker: ticker, Seq: b.nextSeq(),
		MarketOrderId: marketOrderId, Side: side, Price: price})
	res.respond(ClientResponse{Kind: ResponseCanceled, ClientOrderId: clientOrderId, MarketOrderId: marketOrderId})
	b.setMetricsDepth()
	return res
}

// Snapshot answers a resync request (SPEC_FULL §4.9): it walks both sides
// in level/FIFO order and returns SNAPSHOT_START, one ADD-shaped update
// per currently resting order, then SNAPSHOT_END, all tagged with
// correlationId so the request and this reply can be tied together in
// logs. It only reads the book; no order or level state is mutated.
func (b *Book) Snapshot(correlationId [16]byte) []PublicUpdate {
	updates := make([]PublicUpdate, 0, 2+b.orders.InUse())
	updates = append(updates, PublicUpdate{
		Kind: UpdateSnapshotStart, Ticker: b.ticker, Seq: b.nextSeq(), CorrelationId: correlationId,
	})

	for _, side := range []common.Side{common.SideBuy, common.SideSell} {
		start := b.sideHeads[common.SideIndex(side)]
		if start == pool.HandleInvalid {
			continue
		}
		h := start
		for {
			lvl := b.levels.Get(h)
			if lvl.Head != pool.HandleInvalid {
				oh := lvl.Head
				for {
					o := b.orders.Get(oh)
					updates = append(updates, PublicUpdate{
						Kind: UpdateAdd, Ticker: b.ticker, Seq: b.nextSeq(),
						MarketOrderId: o.MarketOrderId, Side: o.Side, Price: o.Price,
						Qty: o.Qty, Priority: o.Priority, CorrelationId: correlationId,
					})
					oh = o.NextAtPrice
					if oh == lvl.Head {
						break
					}
				}
			}
			h = lvl.NextLevel
			if h == start {
				break
			}
		}
	}

	updates = append(updates, PublicUpdate{
		Kind: UpdateSnapshotEnd, Ticker: b.ticker, Seq: b.nextSeq(), CorrelationId: correlationId,
	})
	return updates
}

// Clear resets the book to empty, releasing every outstanding order and
// level. Used before replaying a snapshot during resync recovery.
func (b *Book) Clear(ticker common.TickerId, logger *zap.Logger) *Result {
	res := &Result{}
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
				b.clients.Delete(o.Client, o.ClientOrderId)
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
	b.totalAdded = 0
	b.totalRemoved = 0
	res.emit(PublicUpdate{Kind: UpdateClear, Ticker: ticker, Seq: b.nextSeq()})
	if logger != nil {
		logger.Info("book cleared", zap.Uint32("ticker", uint32(ticker)))
	}
	return res
}
