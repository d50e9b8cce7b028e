package marketbook

import (
	"fmt"

	"github.com/matchcore/lob/internal/common"
)

// BBO is the best-bid/best-offer summary exposed to strategies: the best
// price on each side plus the aggregate resting qty at that price.
type BBO struct {
	BidPrice common.Price
	BidQty   common.Qty
	AskPrice common.Price
	AskQty   common.Qty
}

// NewInvalidBBO returns a BBO with both sides at the invalid sentinel.
func NewInvalidBBO() BBO {
	return BBO{
		BidPrice: common.PriceInvalid,
		BidQty:   common.QtyInvalid,
		AskPrice: common.PriceInvalid,
		AskQty:   common.QtyInvalid,
	}
}

// String renders "BBO{bid_qty@bid_priceXask_price@ask_qty}", mirroring the
// original source's toString() format.
func (b BBO) String() string {
	return fmt.Sprintf("BBO{%d@%dX%d@%d}", b.BidQty, b.BidPrice, b.AskPrice, b.AskQty)
}

func (b BBO) Equal(o BBO) bool {
	return b.BidPrice == o.BidPrice && b.BidQty == o.BidQty &&
		b.AskPrice == o.AskPrice && b.AskQty == o.AskQty
}
