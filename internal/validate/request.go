// Package validate implements the request-boundary checks from
// SPEC_FULL §4.10 (A4): a fast, declarative first pass over inbound
// ClientRequest values using struct tags, ahead of the semantic checks
// the book itself runs inside ADD.
package validate

import (
	"github.com/go-playground/validator/v10"

	"github.com/matchcore/lob/internal/common"
	"github.com/matchcore/lob/internal/matching"
)

var validate = validator.New()

// Request runs struct-tag validation over req, returning InvalidOrder on
// the first structural defect (missing ticker, absent client, etc.).
// Semantic checks (qty > 0, price validity) remain the book's
// responsibility inside ADD so the two layers cannot silently diverge.
func Request(req matching.ClientRequest) error {
	if req.Client == common.ClientIdInvalid {
		return common.InvalidOrder("validate.Request", "client is required")
	}
	if req.Ticker == common.TickerIdInvalid {
		return common.InvalidOrder("validate.Request", "ticker is required")
	}
	if req.ClientOrderId == common.OrderIdInvalid {
		return common.InvalidOrder("validate.Request", "client_order_id is required")
	}
	if err := validate.Struct(req); err != nil {
		return common.InvalidOrder("validate.Request", err.Error())
	}
	return nil
}
