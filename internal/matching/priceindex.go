package matching

import (
	"github.com/matchcore/lob/internal/common"
	"github.com/matchcore/lob/internal/pool"
)

// PriceIndex is a direct-addressed map from price to a level handle, sized
// MaxPriceLevels. The slot is price mod MaxPriceLevels after casting to
// unsigned; a slot already occupied by a different price is a collision,
// detected and rejected rather than allowed to corrupt the book. One
// PriceIndex is owned per side.
type PriceIndex struct {
	capacity int
	occupied []bool
	price    []common.Price
	handle   []pool.Handle
}

// NewPriceIndex builds an index with the given fixed capacity
// (MaxPriceLevels).
func NewPriceIndex(capacity int) *PriceIndex {
	return &PriceIndex{
		capacity: capacity,
		occupied: make([]bool, capacity),
		price:    make([]common.Price, capacity),
		handle:   make([]pool.Handle, capacity),
	}
}

func (idx *PriceIndex) slot(p common.Price) int {
	return int(uint64(p) % uint64(idx.capacity))
}

// Get returns the level handle for p, or (HandleInvalid, false) if no live
// level exists at that price.
func (idx *PriceIndex) Get(p common.Price) (pool.Handle, bool) {
	s := idx.slot(p)
	if !idx.occupied[s] || idx.price[s] != p {
		return pool.HandleInvalid, false
	}
	return idx.handle[s], true
}

// Put inserts the (price, handle) pair. It fails with PriceIndexCollision
// if the slot is already occupied by a different, still-live price.
func (idx *PriceIndex) Put(op string, p common.Price, h pool.Handle) error {
	s := idx.slot(p)
	if idx.occupied[s] && idx.price[s] != p {
		return common.PriceIndexCollision(op)
	}
	idx.occupied[s] = true
	idx.price[s] = p
	idx.handle[s] = h
	return nil
}

// Delete clears the entry for p, if present.
func (idx *PriceIndex) Delete(p common.Price) {
	s := idx.slot(p)
	if idx.occupied[s] && idx.price[s] == p {
		idx.occupied[s] = false
		idx.handle[s] = pool.HandleInvalid
	}
}

// Prices returns every price currently occupying a slot, in no particular
// order. Used by package validate to check the index has no entries that
// don't correspond to a live level.
func (idx *PriceIndex) Prices() []common.Price {
	var out []common.Price
	for s, occ := range idx.occupied {
		if occ {
			out = append(out, idx.price[s])
		}
	}
	return out
}
