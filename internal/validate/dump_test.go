package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchcore/lob/internal/common"
	"github.com/matchcore/lob/internal/matching"
)

func newTestBook() *matching.Book {
	return matching.NewBook(matching.Config{
		Ticker:            0,
		OrderPoolCapacity: 64,
		LevelPoolCapacity: 16,
		MaxPriceLevels:    32,
		MaxClients:        8,
	}, nil, nil, nil, nil)
}

func newReq(client common.ClientId, clientOrderId common.OrderId, side common.Side, price common.Price, qty common.Qty) matching.ClientRequest {
	return matching.ClientRequest{Kind: matching.RequestNew, Client: client, ClientOrderId: clientOrderId, Ticker: 0, Side: side, Price: price, Qty: qty}
}

func TestDump_ListsOneLinePerLevel(t *testing.T) {
	b := newTestBook()
	b.Add(newReq(1, 1, common.SideBuy, 100, 10))
	b.Add(newReq(1, 2, common.SideBuy, 99, 5))
	b.Add(newReq(2, 1, common.SideSell, 101, 7))

	var sb strings.Builder
	Dump(&sb, b, 0)
	out := sb.String()

	assert.Contains(t, out, "BUY 100 qty=10 orders=1")
	assert.Contains(t, out, "BUY 99 qty=5 orders=1")
	assert.Contains(t, out, "SELL 101 qty=7 orders=1")
}

func TestDump_VerboseIncludesOrderLines(t *testing.T) {
	b := newTestBook()
	b.Add(newReq(1, 1, common.SideBuy, 100, 10))

	var sb strings.Builder
	Dump(&sb, b, 1)
	assert.Contains(t, sb.String(), "Order{")
}

func TestValidate_CleanBookHasNoViolations(t *testing.T) {
	b := newTestBook()
	b.Add(newReq(1, 1, common.SideBuy, 100, 10))
	b.Add(newReq(1, 2, common.SideBuy, 99, 5))
	b.Add(newReq(2, 1, common.SideSell, 101, 7))
	b.Add(newReq(2, 2, common.SideSell, 102, 3))

	assert.Empty(t, Validate(b))
}

func TestValidate_SideListStaysMonotonicAfterLevelsConsumed(t *testing.T) {
	b := newTestBook()
	b.Add(newReq(1, 1, common.SideBuy, 100, 5))
	b.Add(newReq(1, 2, common.SideBuy, 99, 5))
	b.Add(newReq(1, 3, common.SideBuy, 98, 5))

	require.Empty(t, Validate(b))

	b.Add(newReq(2, 1, common.SideSell, 90, 5))
	b.Add(newReq(2, 2, common.SideSell, 91, 5))

	assert.Empty(t, Validate(b))
}

func TestValidate_ClientIndexRoundTripsAfterPartialFill(t *testing.T) {
	b := newTestBook()
	b.Add(newReq(1, 1, common.SideBuy, 100, 10))
	b.Add(newReq(2, 1, common.SideSell, 100, 4))

	assert.Empty(t, Validate(b))
}

func TestValidate_EmptyBookHasNoViolations(t *testing.T) {
	b := newTestBook()
	assert.Empty(t, Validate(b))
}

func TestValidate_MassBalanceHoldsAcrossFillsAndCancels(t *testing.T) {
	b := newTestBook()
	b.Add(newReq(1, 1, common.SideBuy, 100, 10))
	b.Add(newReq(1, 2, common.SideBuy, 99, 5))
	b.Add(newReq(2, 1, common.SideSell, 100, 4)) // partial fill against client 1's first order
	b.Cancel(0, 1, 2)                            // cancel the untouched BUY 99 order

	assert.Empty(t, Validate(b))
	assert.Equal(t, b.LifetimeAdded()-b.LifetimeRemoved(), uint64(6)) // 10-4 resting at 100
}

func TestValidate_LevelAndFIFOLinksRoundTripOnMultiOrderLevel(t *testing.T) {
	b := newTestBook()
	b.Add(newReq(1, 1, common.SideBuy, 100, 10))
	b.Add(newReq(1, 2, common.SideBuy, 100, 5))
	b.Add(newReq(1, 3, common.SideBuy, 100, 3))
	b.Add(newReq(2, 1, common.SideSell, 101, 1))

	assert.Empty(t, Validate(b))
}

func TestValidate_PriceIndexRoundTripsAfterLevelChurn(t *testing.T) {
	b := newTestBook()
	b.Add(newReq(1, 1, common.SideBuy, 100, 10))
	b.Cancel(0, 1, 1) // drains the only order, level and price-index slot freed
	b.Add(newReq(1, 2, common.SideBuy, 100, 4))

	h, ok := b.PriceIndexLookup(common.SideBuy, 100)
	require.True(t, ok)
	lvl := b.Level(h)
	assert.Equal(t, common.Price(100), lvl.Price)
	assert.Empty(t, Validate(b))
}
