package sizing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gocopy/clob/types"
	"github.com/betbot/gocopy/internal/domain"
)

func TestSizeBelowMin(t *testing.T) {
	s := NewSizer(DefaultConfig())

	plan, reason := s.Size(9, 0.50, types.SideBuy, "tok")
	assert.Nil(t, plan)
	assert.Equal(t, domain.StatusBelowMin, reason)
}

func TestSizeSmallTier(t *testing.T) {
	s := NewSizer(DefaultConfig())

	// 300 份 × 0.02 × 1.0 = 6 份，无价格缓冲
	plan, reason := s.Size(300, 0.50, types.SideBuy, "tok")
	require.NotNil(t, plan)
	assert.Empty(t, reason)
	assert.InDelta(t, 6.0, plan.Size, 1e-9)
	assert.InDelta(t, 0.50, plan.Price, 1e-9)
	assert.Equal(t, Immediate, plan.Discipline)
}

func TestSizeMidTierBuffer(t *testing.T) {
	s := NewSizer(DefaultConfig())

	plan, _ := s.Size(1500, 0.50, types.SideBuy, "tok")
	require.NotNil(t, plan)
	assert.InDelta(t, 30.0, plan.Size, 1e-9)
	assert.InDelta(t, 0.51, plan.Price, 1e-9)
}

func TestSizeTopTier(t *testing.T) {
	s := NewSizer(DefaultConfig())

	// 5000 份命中最高档：乘数 1.25，买入价加 0.01
	plan, _ := s.Size(5000, 0.60, types.SideBuy, "tok")
	require.NotNil(t, plan)
	assert.InDelta(t, 5000*0.02*1.25, plan.Size, 1e-9)
	assert.InDelta(t, 0.61, plan.Price, 1e-9)
}

func TestSizeSellBufferSubtracts(t *testing.T) {
	s := NewSizer(DefaultConfig())

	plan, _ := s.Size(1500, 0.50, types.SideSell, "tok")
	require.NotNil(t, plan)
	assert.InDelta(t, 0.49, plan.Price, 1e-9)
}

func TestSizeSportBuffer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SportBuffer = func(tokenID string) float64 {
		if tokenID == "nba" {
			return 0.01
		}
		return 0
	}
	s := NewSizer(cfg)

	plan, _ := s.Size(1500, 0.50, types.SideBuy, "nba")
	require.NotNil(t, plan)
	assert.InDelta(t, 0.52, plan.Price, 1e-9)

	plan, _ = s.Size(1500, 0.50, types.SideBuy, "politics")
	require.NotNil(t, plan)
	assert.InDelta(t, 0.51, plan.Price, 1e-9)
}

func TestClampPrice(t *testing.T) {
	assert.Equal(t, 0.01, ClampPrice(0.001))
	assert.Equal(t, 0.99, ClampPrice(1.2))
	assert.Equal(t, 0.55, ClampPrice(0.55))
}

func TestSizePriceClamped(t *testing.T) {
	s := NewSizer(DefaultConfig())

	plan, _ := s.Size(5000, 0.985, types.SideBuy, "tok")
	require.NotNil(t, plan)
	assert.Equal(t, 0.99, plan.Price)

	plan, _ = s.Size(5000, 0.015, types.SideSell, "tok")
	require.NotNil(t, plan)
	assert.Equal(t, 0.01, plan.Price)
}

func TestDeadlineAt(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	assert.Equal(t, now.Add(61*time.Second), DeadlineAt(now, true))
	assert.Equal(t, now.Add(1800*time.Second), DeadlineAt(now, false))
}

func TestDisciplineOrderType(t *testing.T) {
	assert.Equal(t, types.OrderTypeFAK, Immediate.OrderType())
	assert.Equal(t, types.OrderTypeGTD, Deadline.OrderType())
}

func TestCustomMinShares(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tiers[len(cfg.Tiers)-1].MinShares = 50

	s := NewSizer(cfg)
	plan, reason := s.Size(40, 0.50, types.SideBuy, "tok")
	assert.Nil(t, plan)
	assert.Equal(t, domain.StatusBelowMin, reason)

	plan, _ = s.Size(60, 0.50, types.SideBuy, "tok")
	assert.NotNil(t, plan)
}
