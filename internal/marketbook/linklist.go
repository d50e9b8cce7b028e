package marketbook

import (
	"github.com/matchcore/lob/internal/common"
	"github.com/matchcore/lob/internal/pool"
)

// more reports whether price a is strictly more aggressive than price b on
// the given side, mirroring the exchange-side ordering rule exactly so
// the two books agree on level order.
func more(side common.Side, a, b common.Price) bool {
	if side == common.SideBuy {
		return a > b
	}
	return a < b
}

func (b *Book) insertLevel(side common.Side, h pool.Handle) {
	headIdx := common.SideIndex(side)
	head := b.sideHeads[headIdx]
	newLvl := b.levels.Get(h)

	if head == pool.HandleInvalid {
		newLvl.PrevLevel = h
		newLvl.NextLevel = h
		b.sideHeads[headIdx] = h
		return
	}

	cur := head
	for {
		curLvl := b.levels.Get(cur)
		if more(side, newLvl.Price, curLvl.Price) {
			break
		}
		cur = curLvl.NextLevel
		if cur == head {
			break
		}
	}

	curLvl := b.levels.Get(cur)
	prev := curLvl.PrevLevel
	prevLvl := b.levels.Get(prev)

	newLvl.NextLevel = cur
	newLvl.PrevLevel = prev
	prevLvl.NextLevel = h
	curLvl.PrevLevel = h

	if more(side, newLvl.Price, curLvl.Price) && cur == head {
		b.sideHeads[headIdx] = h
	}
}

func (b *Book) removeLevel(side common.Side, h pool.Handle) {
	headIdx := common.SideIndex(side)
	lvl := b.levels.Get(h)
	if lvl.NextLevel == h {
		b.sideHeads[headIdx] = pool.HandleInvalid
		return
	}
	prev := b.levels.Get(lvl.PrevLevel)
	next := b.levels.Get(lvl.NextLevel)
	prev.NextLevel = lvl.NextLevel
	next.PrevLevel = lvl.PrevLevel
	if b.sideHeads[headIdx] == h {
		b.sideHeads[headIdx] = lvl.NextLevel
	}
}

func (b *Book) appendFIFO(lh, oh pool.Handle) {
	lvl := b.levels.Get(lh)
	o := b.orders.Get(oh)
	if lvl.Head == pool.HandleInvalid {
		o.PrevAtPrice = oh
		o.NextAtPrice = oh
		lvl.Head = oh
		return
	}
	head := b.orders.Get(lvl.Head)
	tail := b.orders.Get(head.PrevAtPrice)
	o.PrevAtPrice = head.PrevAtPrice
	o.NextAtPrice = lvl.Head
	tail.NextAtPrice = oh
	head.PrevAtPrice = oh
}

func (b *Book) removeFIFO(lh, oh pool.Handle) {
	lvl := b.levels.Get(lh)
	o := b.orders.Get(oh)
	if o.NextAtPrice == oh {
		lvl.Head = pool.HandleInvalid
		return
	}
	prev := b.orders.Get(o.PrevAtPrice)
	next := b.orders.Get(o.NextAtPrice)
	prev.NextAtPrice = o.NextAtPrice
	next.PrevAtPrice = o.PrevAtPrice
	if lvl.Head == oh {
		lvl.Head = o.NextAtPrice
	}
}
