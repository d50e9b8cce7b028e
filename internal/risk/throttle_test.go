package risk

import (
	"context"
	"testing"

	limiter "github.com/ulule/limiter/v3"
	"go.uber.org/zap"

	"github.com/stretchr/testify/assert"
)

func TestThrottle_PerClientBucketTrips(t *testing.T) {
	th := NewThrottle(1, 1, limiter.Rate{Limit: 1000, Period: 1}, zap.NewNop())
	ctx := context.Background()

	assert.True(t, th.Allow(ctx, 0, 1), "first request within burst must pass")
	assert.False(t, th.Allow(ctx, 0, 1), "second immediate request must exceed the 1-token burst")
}

func TestThrottle_DistinctClientsIndependent(t *testing.T) {
	th := NewThrottle(1, 1, limiter.Rate{Limit: 1000, Period: 1}, zap.NewNop())
	ctx := context.Background()

	assert.True(t, th.Allow(ctx, 0, 1))
	assert.True(t, th.Allow(ctx, 0, 2), "a different client must have its own bucket")
}
