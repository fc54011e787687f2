package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestGuard() (*Guard, *time.Time) {
	g := NewGuard(DefaultGuardConfig())
	now := time.Unix(1_700_000_000, 0)
	g.SetClock(func() time.Time { return now })
	return g, &now
}

func TestSmallTradeFastPath(t *testing.T) {
	g, _ := newTestGuard()

	for i := 0; i < 100; i++ {
		v := g.Check("tok", 1999)
		assert.Equal(t, Allow, v.Decision)
	}
	// 小额不计入窗口：后续大额从零开始计数
	v := g.Check("tok", 2000)
	assert.Equal(t, FetchDepth, v.Decision)
}

func TestLargeTradeRequiresDepth(t *testing.T) {
	g, _ := newTestGuard()

	v := g.Check("tok", 5000)
	assert.Equal(t, FetchDepth, v.Decision)
}

func TestConsecutiveLargeTrips(t *testing.T) {
	g, now := newTestGuard()

	for i := 0; i < 4; i++ {
		v := g.Check("tok", 3000)
		assert.Equal(t, FetchDepth, v.Decision, "第 %d 次", i+1)
		*now = now.Add(time.Second)
	}
	v := g.Check("tok", 3000)
	assert.Equal(t, Block, v.Decision)
	assert.Equal(t, ReasonTrip, v.Reason)

	// 熔断后任何份额都被拒绝
	v = g.Check("tok", 1)
	assert.Equal(t, Block, v.Decision)
	assert.Equal(t, ReasonTripped, v.Reason)
}

func TestWindowPruning(t *testing.T) {
	g, now := newTestGuard()

	// 4 次大额后窗口滑过，最早的条目被剔除
	for i := 0; i < 4; i++ {
		g.Check("tok", 3000)
		*now = now.Add(10 * time.Second)
	}
	// 距第一次已过 40s：恰好在窗口边界的条目不保留
	v := g.Check("tok", 3000)
	assert.Equal(t, FetchDepth, v.Decision)
}

func TestWindowBoundaryHalfOpen(t *testing.T) {
	g, now := newTestGuard()

	for i := 0; i < 4; i++ {
		g.Check("tok", 3000)
	}
	// 第 5 次恰好在 now-W 处：前四条全部出窗，计数重新为 1
	*now = now.Add(40 * time.Second)
	v := g.Check("tok", 3000)
	assert.Equal(t, FetchDepth, v.Decision)
}

func TestTripCooldownExpiry(t *testing.T) {
	g, now := newTestGuard()

	for i := 0; i < 5; i++ {
		g.Check("tok", 3000)
	}
	v := g.Check("tok", 100)
	assert.Equal(t, Block, v.Decision)

	// 冷却期内仍拒绝
	*now = now.Add(5*time.Hour - time.Second)
	v = g.Check("tok", 100)
	assert.Equal(t, Block, v.Decision)
	assert.Equal(t, ReasonTripped, v.Reason)

	// 冷却期满：状态清零，小额放行
	*now = now.Add(2 * time.Second)
	v = g.Check("tok", 100)
	assert.Equal(t, Allow, v.Decision)

	// 窗口也被清空，大额重新计数
	v = g.Check("tok", 3000)
	assert.Equal(t, FetchDepth, v.Decision)
}

func TestTokensIsolated(t *testing.T) {
	g, _ := newTestGuard()

	for i := 0; i < 5; i++ {
		g.Check("a", 3000)
	}
	v := g.Check("a", 3000)
	assert.Equal(t, Block, v.Decision)

	// 另一个 token 不受影响
	v = g.Check("b", 3000)
	assert.Equal(t, FetchDepth, v.Decision)
}
