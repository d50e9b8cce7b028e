// Package matching implements the exchange-side limit order book: the
// arena-backed order and price-level records, the price and per-client
// indices, and the price-time-priority matching algorithm.
package matching

import (
	"fmt"

	"github.com/matchcore/lob/internal/common"
	"github.com/matchcore/lob/internal/pool"
)

// Order is the intrusive node for a resting order. PrevAtPrice/NextAtPrice
// link peer orders at the same price level into a circular doubly-linked
// FIFO; a single-element queue has both links pointing at itself.
type Order struct {
	Ticker        common.TickerId
	Client        common.ClientId
	ClientOrderId common.OrderId
	MarketOrderId common.OrderId
	Side          common.Side
	Price         common.Price
	Qty           common.Qty
	Priority      common.Priority

	PrevAtPrice pool.Handle
	NextAtPrice pool.Handle
}

func (o *Order) String() string {
	return fmt.Sprintf("Order{ticker:%d client:%d client-oid:%d market-oid:%d side:%s price:%d qty:%d prio:%d prev:%d next:%d}",
		o.Ticker, o.Client, o.ClientOrderId, o.MarketOrderId, o.Side, o.Price, o.Qty, o.Priority,
		o.PrevAtPrice, o.NextAtPrice)
}
