package matching

import (
	"fmt"

	"github.com/matchcore/lob/internal/common"
	"github.com/matchcore/lob/internal/pool"
)

// Level is the intrusive node for one price level: a FIFO of resting
// orders at that exact (side, price), plus links into the side's
// circular doubly-linked list of active levels, ordered by aggressiveness
// (descending price for BUY, ascending for SELL).
type Level struct {
	Side  common.Side
	Price common.Price

	Head pool.Handle // head of the FIFO at this price, HandleInvalid if empty

	PrevLevel pool.Handle
	NextLevel pool.Handle

	// NextPriority is the monotonically increasing priority counter for
	// this (side, price) pair. It restarts at zero whenever the level is
	// recreated after becoming empty; that restart is intentional.
	NextPriority common.Priority
}

func (l *Level) String() string {
	return fmt.Sprintf("Level{side:%s price:%d head:%d prev:%d next:%d}",
		l.Side, l.Price, l.Head, l.PrevLevel, l.NextLevel)
}
