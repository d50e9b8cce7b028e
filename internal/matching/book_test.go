package matching

import (
	"testing"

	"github.com/matchcore/lob/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBook() *Book {
	return NewBook(Config{
		Ticker:            0,
		OrderPoolCapacity: 64,
		LevelPoolCapacity: 16,
		MaxPriceLevels:    32,
		MaxClients:        8,
	}, nil, nil, nil, nil)
}

func newReq(client common.ClientId, clientOrderId common.OrderId, side common.Side, price common.Price, qty common.Qty) ClientRequest {
	return ClientRequest{Kind: RequestNew, Client: client, ClientOrderId: clientOrderId, Ticker: 0, Side: side, Price: price, Qty: qty}
}

func TestBook_SimpleCrossFullFill(t *testing.T) {
	b := newTestBook()

	res := b.Add(newReq(1, 1, common.SideBuy, 100, 10))
	require.Len(t, res.Responses, 1)
	assert.Equal(t, ResponseAccept, res.Responses[0].Kind)

	res = b.Add(newReq(2, 2, common.SideSell, 100, 10))
	var trades int
	for _, u := range res.Updates {
		if u.Kind == UpdateTrade {
			trades++
			assert.Equal(t, common.Price(100), u.Price)
			assert.Equal(t, common.Qty(10), u.Qty)
		}
	}
	assert.Equal(t, 2, trades, "one trade tick per participant")

	_, ok := b.clients.Get(1, 1)
	assert.False(t, ok, "buy side fully filled, must not remain in client index")
	_, ok = b.clients.Get(2, 2)
	assert.False(t, ok, "sell side fully filled, must not remain in client index")
}

func TestBook_PartialFillRemainderRests(t *testing.T) {
	b := newTestBook()

	b.Add(newReq(1, 1, common.SideBuy, 100, 10))
	res := b.Add(newReq(2, 2, common.SideSell, 100, 4))

	h, ok := b.clients.Get(1, 1)
	require.True(t, ok)
	assert.Equal(t, common.Qty(6), b.orders.Get(h).Qty)

	var modified bool
	for _, u := range res.Updates {
		if u.Kind == UpdateModify {
			modified = true
			assert.Equal(t, common.Qty(6), u.Qty)
		}
	}
	assert.True(t, modified)
}

func TestBook_PriceTimePriority(t *testing.T) {
	b := newTestBook()

	b.Add(newReq(1, 1, common.SideBuy, 100, 5))
	b.Add(newReq(2, 2, common.SideBuy, 100, 5))
	b.Add(newReq(3, 3, common.SideSell, 100, 6))

	_, ok := b.clients.Get(1, 1)
	assert.False(t, ok, "o1 fully filled first by priority")

	h2, ok := b.clients.Get(2, 2)
	require.True(t, ok, "o2 remains resting")
	assert.Equal(t, common.Qty(4), b.orders.Get(h2).Qty)
}

func TestBook_MultiLevelSweep(t *testing.T) {
	b := newTestBook()

	b.Add(newReq(1, 1, common.SideSell, 101, 3))
	b.Add(newReq(2, 2, common.SideSell, 102, 4))

	res := b.Add(newReq(3, 3, common.SideBuy, 103, 5))

	// one FILL per resting sell hit (101, then 102), then the ACCEPT
	require.Len(t, res.Responses, 3)
	assert.Equal(t, ResponseAccept, res.Responses[2].Kind)

	_, ok := b.clients.Get(1, 1)
	assert.False(t, ok, "level at 101 fully consumed")

	h2, ok := b.clients.Get(2, 2)
	require.True(t, ok, "level at 102 partially consumed")
	assert.Equal(t, common.Qty(2), b.orders.Get(h2).Qty)
}

func TestBook_PoolExhaustionThenCancelRecovers(t *testing.T) {
	b := NewBook(Config{
		Ticker:            0,
		OrderPoolCapacity: 1,
		LevelPoolCapacity: 1,
		MaxPriceLevels:    4,
		MaxClients:        4,
	}, nil, nil, nil, nil)

	res := b.Add(newReq(1, 1, common.SideBuy, 100, 1))
	require.Equal(t, ResponseAccept, res.Responses[0].Kind)

	res = b.Add(newReq(2, 2, common.SideBuy, 101, 1))
	require.Equal(t, ResponseReject, res.Responses[0].Kind)
	assert.Equal(t, ReasonPoolExhausted, res.Responses[0].Reason)

	res = b.Cancel(0, 1, 1)
	require.Equal(t, ResponseCanceled, res.Responses[0].Kind)

	res = b.Add(newReq(2, 2, common.SideBuy, 101, 1))
	require.Equal(t, ResponseAccept, res.Responses[0].Kind, "freed slot must allow the next ADD")
}

func TestBook_NegativePriceOrderedCorrectly(t *testing.T) {
	b := newTestBook()

	b.Add(newReq(1, 1, common.SideBuy, -50, 1))
	b.Add(newReq(2, 2, common.SideBuy, -10, 1))

	headHandle := b.bestLevel(common.SideBuy)
	lvl := b.levels.Get(headHandle)
	assert.Equal(t, common.Price(-10), lvl.Price, "less negative (higher) price is the best bid")
}

func TestBook_DuplicateClientOrderIdRejected(t *testing.T) {
	b := newTestBook()
	b.Add(newReq(1, 1, common.SideBuy, 100, 1))
	res := b.Add(newReq(1, 1, common.SideBuy, 100, 1))
	require.Equal(t, ResponseReject, res.Responses[0].Kind)
	assert.Equal(t, ReasonDuplicateOrderId, res.Responses[0].Reason)
}

func TestBook_QtyZeroRejected(t *testing.T) {
	b := newTestBook()
	res := b.Add(newReq(1, 1, common.SideBuy, 100, 0))
	require.Equal(t, ResponseReject, res.Responses[0].Kind)
	assert.Equal(t, ReasonInvalidOrder, res.Responses[0].Reason)
}

func TestBook_CancelUnknownOrderRejected(t *testing.T) {
	b := newTestBook()
	res := b.Cancel(0, 1, 999)
	require.Equal(t, ResponseCancelReject, res.Responses[0].Kind)
	assert.Equal(t, ReasonUnknownOrder, res.Responses[0].Reason)
}

func TestBook_SelfCrossAllowed(t *testing.T) {
	b := newTestBook()
	b.Add(newReq(1, 1, common.SideBuy, 100, 5))
	res := b.Add(newReq(1, 2, common.SideSell, 100, 5))

	var trades int
	for _, u := range res.Updates {
		if u.Kind == UpdateTrade {
			trades++
		}
	}
	assert.Equal(t, 2, trades, "self-trade is not prevented by the core")
}

func TestBook_SnapshotEmitsStartAddsEndInLevelFIFOOrder(t *testing.T) {
	b := newTestBook()
	b.Add(newReq(1, 1, common.SideBuy, 100, 10))
	b.Add(newReq(1, 2, common.SideBuy, 100, 4))
	b.Add(newReq(1, 3, common.SideBuy, 99, 2))
	b.Add(newReq(2, 1, common.SideSell, 101, 7))

	correlationId := [16]byte{1, 2, 3}
	snapshot := b.Snapshot(correlationId)

	require.Len(t, snapshot, 6) // START + 4 resting orders + END
	assert.Equal(t, UpdateSnapshotStart, snapshot[0].Kind)
	assert.Equal(t, UpdateSnapshotEnd, snapshot[len(snapshot)-1].Kind)

	var marketOrderIds []common.OrderId
	for _, u := range snapshot[1 : len(snapshot)-1] {
		assert.Equal(t, UpdateAdd, u.Kind)
		marketOrderIds = append(marketOrderIds, u.MarketOrderId)
	}
	// level order (BUY 100 before BUY 99), then FIFO order within a level
	// (client-order 1 before client-order 2, both at 100).
	assert.Equal(t, []common.OrderId{0, 1, 2, 3}, marketOrderIds)

	for _, u := range snapshot {
		assert.Equal(t, correlationId, u.CorrelationId)
	}

	// Seq increases strictly and is unbroken across the run.
	for i := 1; i < len(snapshot); i++ {
		assert.Equal(t, snapshot[i-1].Seq+1, snapshot[i].Seq)
	}
}

func TestBook_SnapshotDoesNotMutateRestingState(t *testing.T) {
	b := newTestBook()
	b.Add(newReq(1, 1, common.SideBuy, 100, 10))

	b.Snapshot([16]byte{})
	b.Snapshot([16]byte{})

	h, ok := b.clients.Get(1, 1)
	require.True(t, ok)
	assert.Equal(t, common.Qty(10), b.orders.Get(h).Qty)
	assert.Equal(t, uint64(10), b.LifetimeAdded())
	assert.Equal(t, uint64(0), b.LifetimeRemoved())
}
