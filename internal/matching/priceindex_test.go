package matching

import (
	"testing"

	"github.com/matchcore/lob/internal/common"
	"github.com/matchcore/lob/internal/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceIndex_PutGetDelete(t *testing.T) {
	idx := NewPriceIndex(16)

	_, ok := idx.Get(100)
	assert.False(t, ok)

	require.NoError(t, idx.Put("test", 100, pool.Handle(3)))
	h, ok := idx.Get(100)
	require.True(t, ok)
	assert.Equal(t, pool.Handle(3), h)

	idx.Delete(100)
	_, ok = idx.Get(100)
	assert.False(t, ok)
}

func TestPriceIndex_CollisionDetected(t *testing.T) {
	idx := NewPriceIndex(4) // price mod 4: 100->0, 104->0

	require.NoError(t, idx.Put("test", 100, pool.Handle(1)))
	err := idx.Put("test", 104, pool.Handle(2))
	require.Error(t, err)
	be, ok := common.AsBookError(err)
	require.True(t, ok)
	assert.Equal(t, common.KindPriceIndexCollision, be.Kind)

	// the original mapping must remain intact
	h, ok := idx.Get(100)
	require.True(t, ok)
	assert.Equal(t, pool.Handle(1), h)
}

func TestPriceIndex_DeleteThenReuseSlot(t *testing.T) {
	idx := NewPriceIndex(4)
	require.NoError(t, idx.Put("test", 100, pool.Handle(1)))
	idx.Delete(100)
	require.NoError(t, idx.Put("test", 104, pool.Handle(2)))
	h, ok := idx.Get(104)
	require.True(t, ok)
	assert.Equal(t, pool.Handle(2), h)
}
