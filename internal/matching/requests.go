package matching

import "github.com/matchcore/lob/internal/common"

// RequestKind tags a ClientRequest variant.
type RequestKind int8

const (
	RequestNew RequestKind = iota
	RequestCancel
)

// ClientRequest is the tagged union accepted on the inbound channel: NEW
// carries the full order fields, CANCEL only the lookup key. Side and Qty
// are only required when Kind is RequestNew (0); Price's `ne` tag
// compares against common.PriceInvalid's literal value, since struct
// tags can't reference a package constant.
type ClientRequest struct {
	Kind          RequestKind
	Client        common.ClientId
	ClientOrderId common.OrderId
	Ticker        common.TickerId
	Side          common.Side  `validate:"required_if=Kind 0,oneof=-1 0 1"`
	Price         common.Price `validate:"ne=9223372036854775807"`
	Qty           common.Qty   `validate:"required_if=Kind 0"`
	Algo          common.AlgoType
}

// ResponseKind tags a ClientResponse variant.
type ResponseKind int8

const (
	ResponseAccept ResponseKind = iota
	ResponseReject
	ResponseFill
	ResponseCanceled
	ResponseCancelReject
)

// ClientResponse is the tagged union emitted on the outbound per-client
// channel.
type ClientResponse struct {
	Kind          ResponseKind
	ClientOrderId common.OrderId
	MarketOrderId common.OrderId
	Reason        RejectReason
	Price         common.Price
	Qty           common.Qty
	Remaining     common.Qty
}
