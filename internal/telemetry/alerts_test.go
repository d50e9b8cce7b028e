package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/matchcore/lob/internal/common"
)

func newObservedAlerter(t *testing.T, probeInterval time.Duration) (*Alerter, *observer.ObservedLogs) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core)
	return NewAlerter(probeInterval, logger, nil), logs
}

func TestAlerter_FirstAlertLogsImmediately(t *testing.T) {
	a, logs := newObservedAlerter(t, time.Hour)
	a.Alert(common.KindPoolExhausted, 0)
	assert.Equal(t, 1, logs.Len())
}

func TestAlerter_RepeatsSuppressedUntilProbe(t *testing.T) {
	a, logs := newObservedAlerter(t, time.Hour)
	a.Alert(common.KindPoolExhausted, 0)
	a.Alert(common.KindPoolExhausted, 0)
	a.Alert(common.KindPoolExhausted, 0)
	assert.Equal(t, 1, logs.Len(), "sustained fault on the same ticker must not flood the log")
}

func TestAlerter_DistinctTickersIndependent(t *testing.T) {
	a, logs := newObservedAlerter(t, time.Hour)
	a.Alert(common.KindPoolExhausted, 0)
	a.Alert(common.KindPoolExhausted, 1)
	assert.Equal(t, 2, logs.Len(), "each instrument gets its own breaker")
}
