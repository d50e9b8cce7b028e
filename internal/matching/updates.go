package matching

import (
	"fmt"

	"github.com/matchcore/lob/internal/common"
)

// UpdateKind tags a PublicUpdate variant.
type UpdateKind int8

const (
	UpdateClear UpdateKind = iota
	UpdateAdd
	UpdateModify
	UpdateCancel
	UpdateTrade
	UpdateSnapshotStart
	UpdateSnapshotEnd
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateClear:
		return "CLEAR"
	case UpdateAdd:
		return "ADD"
	case UpdateModify:
		return "MODIFY"
	case UpdateCancel:
		return "CANCEL"
	case UpdateTrade:
		return "TRADE"
	case UpdateSnapshotStart:
		return "SNAPSHOT_START"
	case UpdateSnapshotEnd:
		return "SNAPSHOT_END"
	default:
		return "UNKNOWN"
	}
}

// PublicUpdate is one entry in the per-ticker, totally ordered, gap-free
// stream the exchange book emits and the participant book consumes.
// Each fill yields two TRADE updates, one per participant, each carrying
// that participant's MarketOrderId; no separate aggregate trade tick is
// emitted.
type PublicUpdate struct {
	Kind          UpdateKind
	Ticker        common.TickerId
	Seq           uint64
	MarketOrderId common.OrderId
	Side          common.Side
	Price         common.Price
	Qty           common.Qty
	Priority      common.Priority

	// CorrelationId ties a SNAPSHOT_START..SNAPSHOT_END run together; zero
	// value (uuid.Nil) outside a resync cycle.
	CorrelationId [16]byte
}

func (u PublicUpdate) String() string {
	return fmt.Sprintf("Update{%s ticker:%d seq:%d oid:%d side:%s price:%d qty:%d prio:%d}",
		u.Kind, u.Ticker, u.Seq, u.MarketOrderId, u.Side, u.Price, u.Qty, u.Priority)
}

// RejectReason classifies a client-visible rejection, independent of the
// internal BookError.Kind plumbing so the wire-facing response does not
// leak internal error wrapping.
type RejectReason string

const (
	ReasonInvalidOrder     RejectReason = "InvalidOrder"
	ReasonDuplicateOrderId RejectReason = "DuplicateOrderId"
	ReasonRiskReject       RejectReason = "RiskReject"
	ReasonUnknownOrder     RejectReason = "UnknownOrder"
	ReasonPoolExhausted    RejectReason = "PoolExhausted"
	ReasonPriceCollision   RejectReason = "PriceIndexCollision"
	ReasonRateLimited      RejectReason = "RateLimited"
)

// ReasonFromError maps an internal BookError to the wire-facing reason.
func ReasonFromError(err error) RejectReason {
	be, ok := common.AsBookError(err)
	if !ok {
		return ReasonInvalidOrder
	}
	switch be.Kind {
	case common.KindInvalidOrder:
		return ReasonInvalidOrder
	case common.KindDuplicateOrderId:
		return ReasonDuplicateOrderId
	case common.KindRiskReject:
		if be.Reason == "RateLimited" {
			return ReasonRateLimited
		}
		return ReasonRiskReject
	case common.KindUnknownOrder:
		return ReasonUnknownOrder
	case common.KindPoolExhausted:
		return ReasonPoolExhausted
	case common.KindPriceIndexCollision:
		return ReasonPriceCollision
	default:
		return ReasonInvalidOrder
	}
}
