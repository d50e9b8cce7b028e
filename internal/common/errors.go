package common

import "fmt"

// Kind identifies one of the error categories an operation reports. An
// operation fails all-or-nothing and surfaces exactly one Kind.
type Kind string

const (
	KindInvalidOrder        Kind = "InvalidOrder"
	KindDuplicateOrderId    Kind = "DuplicateOrderId"
	KindRiskReject          Kind = "RiskReject"
	KindUnknownOrder        Kind = "UnknownOrder"
	KindPoolExhausted       Kind = "PoolExhausted"
	KindPriceIndexCollision Kind = "PriceIndexCollision"
	KindSequenceGap         Kind = "SequenceGap"
)

// BookError is the error type surfaced across the book, the gate and the
// market mirror. It follows the same (Op, Err)-wrapping shape as
// ServiceError/RepositoryError, with a Kind added for programmatic dispatch
// and an optional Reason sub-code (used for RiskReject's RateLimited case).
type BookError struct {
	Kind   Kind
	Op     string
	Reason string
	Err    error
}

func (e *BookError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Op, e.Kind, e.Reason)
	}
	return fmt.Sprintf("[%s:%s]", e.Op, e.Kind)
}

func (e *BookError) Unwrap() error {
	return e.Err
}

// IsKind reports whether e is non-nil and tagged with k; most callers
// switch on Kind directly via AsBookError instead.
func (e *BookError) IsKind(k Kind) bool {
	return e != nil && e.Kind == k
}

func newKindError(kind Kind, op, reason string) *BookError {
	return &BookError{Kind: kind, Op: op, Reason: reason}
}

func InvalidOrder(op, reason string) *BookError { return newKindError(KindInvalidOrder, op, reason) }
func DuplicateOrderId(op string) *BookError     { return newKindError(KindDuplicateOrderId, op, "") }
func RiskReject(op, reason string) *BookError   { return newKindError(KindRiskReject, op, reason) }
func UnknownOrder(op string) *BookError         { return newKindError(KindUnknownOrder, op, "") }
func PoolExhausted(op string) *BookError        { return newKindError(KindPoolExhausted, op, "") }
func PriceIndexCollision(op string) *BookError  { return newKindError(KindPriceIndexCollision, op, "") }
func SequenceGap(op, reason string) *BookError  { return newKindError(KindSequenceGap, op, reason) }

// RateLimited builds a RiskReject with the RateLimited sub-reason (D5):
// throttling happens ahead of the risk gate but is reported through the
// same Kind so callers only need to branch on Kind, not on pipeline stage.
func RateLimited(op string) *BookError {
	return newKindError(KindRiskReject, op, "RateLimited")
}

// AsBookError extracts a *BookError from err, if any.
func AsBookError(err error) (*BookError, bool) {
	be, ok := err.(*BookError)
	return be, ok
}
