// Package risk implements the pre-trade acceptance gate (C8): three
// ordered checks against per-(ticker, client) limits, backed by a hot
// configuration cache (entries do not expire) so a control-plane limit update never
// requires restarting a book's goroutine.
package risk

// Position tracks a client's signed exposure and realised P&L for one
// instrument. The gate reads it on every check; the book driver updates
// it after every fill it reports back.
type Position struct {
	Qty      int64 // signed: positive long, negative short
	Realized float64
}

// Violation names which of the three ordered checks failed, or the
// pre-gate throttling check (D5) that runs ahead of it.
type Violation string

const (
	ViolationNone        Violation = ""
	ViolationOrderSize   Violation = "max_order_size"
	ViolationPosition    Violation = "max_position"
	ViolationRealizedPnL Violation = "max_loss"
	ViolationRateLimited Violation = "rate_limited"
)
