package pool

import (
	"testing"

	"github.com/matchcore/lob/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	qty int
}

func TestPool_AcquireReleaseRoundTrip(t *testing.T) {
	p := New[record](4)
	assert.Equal(t, 4, p.Capacity())
	assert.Equal(t, 0, p.InUse())

	h, err := p.Acquire("test.acquire")
	require.NoError(t, err)
	assert.Equal(t, 1, p.InUse())

	p.Get(h).qty = 7
	assert.Equal(t, 7, p.Get(h).qty)

	p.Release(h)
	assert.Equal(t, 0, p.InUse())
}

func TestPool_ExhaustionAndRecovery(t *testing.T) {
	p := New[record](2)

	h1, err := p.Acquire("test.acquire")
	require.NoError(t, err)
	_, err = p.Acquire("test.acquire")
	require.NoError(t, err)

	_, err = p.Acquire("test.acquire")
	require.Error(t, err)
	be, ok := common.AsBookError(err)
	require.True(t, ok)
	assert.Equal(t, common.KindPoolExhausted, be.Kind)

	p.Release(h1)
	h3, err := p.Acquire("test.acquire")
	require.NoError(t, err, "releasing one slot must allow the next acquire")
	assert.NotEqual(t, HandleInvalid, h3)
}

func TestPool_HandlesStableAcrossReuse(t *testing.T) {
	p := New[record](1)

	h1, err := p.Acquire("test.acquire")
	require.NoError(t, err)
	p.Get(h1).qty = 42
	p.Release(h1)

	h2, err := p.Acquire("test.acquire")
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "single-slot pool must reissue the same handle")
	assert.Equal(t, 0, p.Get(h2).qty, "reacquired slot must be zeroed")
}

func TestPool_ReleaseOutOfRangePanics(t *testing.T) {
	p := New[record](1)
	assert.Panics(t, func() {
		p.Release(Handle(99))
	})
}
