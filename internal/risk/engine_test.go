package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/matchcore/lob/internal/common"
)

// GateTestSuite exercises the ordered §4.6 checks end to end.
type GateTestSuite struct {
	suite.Suite
	gate *Gate
}

func (s *GateTestSuite) SetupTest() {
	s.gate = NewGate(zap.NewNop())
	s.gate.SetConfig(0, 1, common.RiskConfig{MaxOrderSize: 10, MaxPosition: 20, MaxLoss: 100})
}

func (s *GateTestSuite) TestOrderSizeCheck() {
	tests := []struct {
		name    string
		qty     common.Qty
		wantErr bool
	}{
		{"within limit", 5, false},
		{"at limit", 10, false},
		{"exceeds limit", 11, true},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			err := s.gate.Check(0, 1, common.SideBuy, 100, tt.qty)
			if tt.wantErr {
				require.Error(s.T(), err)
				be, ok := common.AsBookError(err)
				require.True(s.T(), ok)
				assert.Equal(s.T(), common.KindRiskReject, be.Kind)
				assert.Equal(s.T(), string(ViolationOrderSize), be.Reason)
			} else {
				assert.NoError(s.T(), err)
			}
		})
	}
}

func (s *GateTestSuite) TestPositionCheck() {
	s.gate.RecordFill(0, 1, 15, 0)
	err := s.gate.Check(0, 1, common.SideBuy, 100, 10)
	require.Error(s.T(), err)
	be, _ := common.AsBookError(err)
	assert.Equal(s.T(), string(ViolationPosition), be.Reason)

	err = s.gate.Check(0, 1, common.SideSell, 100, 10)
	assert.NoError(s.T(), err, "a reducing trade must not trip the position limit")
}

func (s *GateTestSuite) TestRealizedLossCheck() {
	s.gate.RecordFill(0, 1, 0, -150)
	err := s.gate.Check(0, 1, common.SideBuy, 100, 1)
	require.Error(s.T(), err)
	be, _ := common.AsBookError(err)
	assert.Equal(s.T(), string(ViolationRealizedPnL), be.Reason)
}

func (s *GateTestSuite) TestUnconfiguredPairAccepted() {
	err := s.gate.Check(5, 99, common.SideBuy, 100, 1_000_000)
	assert.NoError(s.T(), err)
}

func (s *GateTestSuite) TestConfigUpdateTakesEffectImmediately() {
	s.gate.SetConfig(0, 1, common.RiskConfig{MaxOrderSize: 1, MaxPosition: 1, MaxLoss: 1})
	err := s.gate.Check(0, 1, common.SideBuy, 100, 2)
	require.Error(s.T(), err)
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateTestSuite))
}
