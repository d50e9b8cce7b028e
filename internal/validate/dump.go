package validate

import (
	"fmt"
	"io"

	"github.com/matchcore/lob/internal/common"
	"github.com/matchcore/lob/internal/matching"
	"github.com/matchcore/lob/internal/pool"
)

// Dumper exposes the read-only book state the pretty-printer and
// validator need to walk; matching.Book implements it (see the exported
// accessors in the matching package's book.go).
type Dumper interface {
	Ticker() common.TickerId
	SideHead(side common.Side) pool.Handle
	Level(h pool.Handle) *matching.Level
	Order(h pool.Handle) *matching.Order
	ClientHandle(client common.ClientId, clientOrderId common.OrderId) (pool.Handle, bool)
	PriceIndexLookup(side common.Side, price common.Price) (pool.Handle, bool)
	PriceIndexPrices(side common.Side) []common.Price
	LifetimeAdded() uint64
	LifetimeRemoved() uint64
}

// Dump renders the book as a multi-line listing: one line per price
// level, and at verbose>0, one line per resting order. No stability
// contract — this is for logs and debugging only.
func Dump(w io.Writer, d Dumper, verbose int) {
	for _, side := range []common.Side{common.SideBuy, common.SideSell} {
		start := d.SideHead(side)
		if start == pool.HandleInvalid {
			continue
		}
		h := start
		for {
			lvl := d.Level(h)
			count, qty := 0, common.Qty(0)
			walkFIFO(d, lvl.Head, func(_ pool.Handle, o *matching.Order) {
				count++
				qty += o.Qty
			})
			fmt.Fprintf(w, "%s %d qty=%d orders=%d\n", side, lvl.Price, qty, count)
			if verbose > 0 {
				walkFIFO(d, lvl.Head, func(_ pool.Handle, o *matching.Order) {
					fmt.Fprintf(w, "  %s\n", o)
				})
			}
			h = lvl.NextLevel
			if h == start {
				break
			}
		}
	}
}

func walkFIFO(d Dumper, head pool.Handle, fn func(pool.Handle, *matching.Order)) {
	if head == pool.HandleInvalid {
		return
	}
	h := head
	for {
		o := d.Order(h)
		fn(h, o)
		h = o.NextAtPrice
		if h == head {
			break
		}
	}
}

// Violation describes one invariant breach found by Validate.
type Violation struct {
	Rule   string
	Detail string
}

// Validate checks invariants 1-7 from spec §3 plus mass-balance and
// index-round-trip consistency. Intended for tests and an optional
// runtime self-check hook; never called on the hot path.
func Validate(d Dumper) []Violation {
	var violations []Violation
	var totalRestingQty uint64
	pricesSeen := map[common.Side]map[common.Price]bool{
		common.SideBuy:  {},
		common.SideSell: {},
	}

	for _, side := range []common.Side{common.SideBuy, common.SideSell} {
		start := d.SideHead(side)
		if start == pool.HandleInvalid {
			continue
		}
		h := start
		var prevPrice common.Price
		first := true
		for {
			lvl := d.Level(h)

			if lvl.Side != side {
				violations = append(violations, Violation{"level-side-matches-list", fmt.Sprintf("level at %d found in %s list but tagged %s", lvl.Price, side, lvl.Side)})
			}

			if !first {
				if side == common.SideBuy && !(prevPrice > lvl.Price) {
					violations = append(violations, Violation{"side-list-monotonic", fmt.Sprintf("BUY side not strictly descending at %d", lvl.Price)})
				}
				if side == common.SideSell && !(prevPrice < lvl.Price) {
					violations = append(violations, Violation{"side-list-monotonic", fmt.Sprintf("SELL side not strictly ascending at %d", lvl.Price)})
				}
			}
			prevPrice = lvl.Price
			first = false

			// invariant 4 (levels): the side-level list's circular links
			// must agree in both directions.
			prevLvl := d.Level(lvl.PrevLevel)
			if prevLvl.NextLevel != h {
				violations = append(violations, Violation{"level-circular-consistency", fmt.Sprintf("level at %d: prev.next does not point back to self", lvl.Price)})
			}
			nextLvl := d.Level(lvl.NextLevel)
			if nextLvl.PrevLevel != h {
				violations = append(violations, Violation{"level-circular-consistency", fmt.Sprintf("level at %d: next.prev does not point back to self", lvl.Price)})
			}

			// invariant 6 plus the bidirectional level/price-index
			// round trip: a live level's price must resolve back to
			// this exact level handle, and the index's own handle must
			// resolve back to a level tagged with the same side/price.
			idxHandle, ok := d.PriceIndexLookup(side, lvl.Price)
			if !ok {
				violations = append(violations, Violation{"price-index-liveness", fmt.Sprintf("live level at %d/%s has no price index entry", lvl.Price, side)})
			} else if idxHandle != h {
				violations = append(violations, Violation{"level-price-index-roundtrip", fmt.Sprintf("level at %d/%s: price index points to a different handle", lvl.Price, side)})
			} else {
				back := d.Level(idxHandle)
				if back.Price != lvl.Price || back.Side != side {
					violations = append(violations, Violation{"level-price-index-roundtrip", fmt.Sprintf("level at %d/%s: index handle resolves to level %d/%s", lvl.Price, side, back.Price, back.Side)})
				}
			}
			pricesSeen[side][lvl.Price] = true

			if lvl.Head == pool.HandleInvalid {
				violations = append(violations, Violation{"level-nonempty", fmt.Sprintf("level at %d present with empty FIFO", lvl.Price)})
			} else {
				var lastPriority common.Priority
				firstOrder := true
				walkFIFO(d, lvl.Head, func(oh pool.Handle, o *matching.Order) {
					if o.Price != lvl.Price || o.Side != lvl.Side {
						violations = append(violations, Violation{"order-matches-level", fmt.Sprintf("order %d at level %d/%s has price %d side %s", o.MarketOrderId, lvl.Price, lvl.Side, o.Price, o.Side)})
					}
					if !firstOrder && o.Priority <= lastPriority {
						violations = append(violations, Violation{"fifo-priority-increasing", fmt.Sprintf("order %d priority %d not increasing from %d", o.MarketOrderId, o.Priority, lastPriority)})
					}
					lastPriority = o.Priority
					firstOrder = false

					// invariant 4 (orders): the FIFO's circular links
					// must agree in both directions.
					prev := d.Order(o.PrevAtPrice)
					if prev.NextAtPrice != oh {
						violations = append(violations, Violation{"fifo-circular-consistency", fmt.Sprintf("order %d: prev.next does not point back to self", o.MarketOrderId)})
					}
					next := d.Order(o.NextAtPrice)
					if next.PrevAtPrice != oh {
						violations = append(violations, Violation{"fifo-circular-consistency", fmt.Sprintf("order %d: next.prev does not point back to self", o.MarketOrderId)})
					}

					h2, ok := d.ClientHandle(o.Client, o.ClientOrderId)
					if !ok {
						violations = append(violations, Violation{"client-index-roundtrip", fmt.Sprintf("resting order %d missing from client index", o.MarketOrderId)})
					} else if d.Order(h2) != o {
						violations = append(violations, Violation{"client-index-roundtrip", fmt.Sprintf("client index for order %d points elsewhere", o.MarketOrderId)})
					}
					if o.Qty == 0 {
						violations = append(violations, Violation{"resting-qty-positive", fmt.Sprintf("order %d resting with qty 0", o.MarketOrderId)})
					}
					totalRestingQty += uint64(o.Qty)
				})
			}

			h = lvl.NextLevel
			if h == start {
				break
			}
		}
	}

	// invariant 6, converse direction: every occupied price-index slot
	// must correspond to a level actually present in the side list just
	// walked above.
	for _, side := range []common.Side{common.SideBuy, common.SideSell} {
		for _, price := range d.PriceIndexPrices(side) {
			if !pricesSeen[side][price] {
				violations = append(violations, Violation{"price-index-liveness", fmt.Sprintf("price index holds %d/%s with no corresponding live level", price, side)})
			}
		}
	}

	added, removed := d.LifetimeAdded(), d.LifetimeRemoved()
	if added < removed || added-removed != totalRestingQty {
		violations = append(violations, Violation{"mass-balance", fmt.Sprintf("lifetime added=%d removed=%d imply resting=%d, but book holds %d", added, removed, added-removed, totalRestingQty)})
	}

	return violations
}
