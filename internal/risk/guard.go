package risk

import (
	"time"
)

// Decision 风控裁决类型
type Decision int

const (
	// Allow 放行（小额快路径，不触碰窗口）
	Allow Decision = iota
	// FetchDepth 需要调用方查询盘口深度后再判定
	FetchDepth
	// Block 拒绝，附带原因
	Block
)

// Verdict 风控裁决结果
type Verdict struct {
	Decision Decision
	Reason   string
}

// 拒绝原因
const (
	ReasonTripped      = "TRIPPED"
	ReasonLowLiquidity = "LOW_LIQUIDITY"
	ReasonTrip         = "TRIP"
)

// GuardConfig 风控配置（运行期固定）
type GuardConfig struct {
	// LargeTradeShares 大额交易阈值（份额）
	LargeTradeShares float64

	// ConsecutiveTrigger 窗口内触发熔断的大额交易次数
	ConsecutiveTrigger int

	// SequenceWindow 大额交易计数的滑动窗口
	SequenceWindow time.Duration

	// MinDepthUSD 大额交易要求的近端盘口最小美元深度
	MinDepthUSD float64

	// TripDuration 熔断冷却时长
	TripDuration time.Duration
}

// DefaultGuardConfig 默认风控参数
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		LargeTradeShares:   2000,
		ConsecutiveTrigger: 5,
		SequenceWindow:     40 * time.Second,
		MinDepthUSD:        200,
		TripDuration:       5 * time.Hour,
	}
}

// tokenState 单个 token 的风控状态（惰性创建，进程生命周期内不销毁）
type tokenState struct {
	largeTimes []time.Time
	tripped    bool
	trippedAt  time.Time
}

// Guard 四层风控：熔断冷却 → 小额快路径 → 深度检查 → 连续大额熔断。
//
// 状态仅由订单引擎的 worker goroutine 读写，无需加锁。
type Guard struct {
	cfg    GuardConfig
	tokens map[string]*tokenState
	now    func() time.Time
}

// NewGuard 创建风控守卫
func NewGuard(cfg GuardConfig) *Guard {
	if cfg.ConsecutiveTrigger <= 0 {
		cfg = DefaultGuardConfig()
	}
	return &Guard{
		cfg:    cfg,
		tokens: make(map[string]*tokenState),
		now:    time.Now,
	}
}

// SetClock 替换时钟（测试用）
func (g *Guard) SetClock(now func() time.Time) {
	g.now = now
}

// Config 返回风控配置
func (g *Guard) Config() GuardConfig {
	return g.cfg
}

// Check 对 (token, 鲸鱼份额) 做一次裁决
func (g *Guard) Check(tokenID string, whaleShares float64) Verdict {
	now := g.now()

	st, ok := g.tokens[tokenID]
	if !ok {
		st = &tokenState{}
		g.tokens[tokenID] = st
	}

	// 1. 熔断冷却期内直接拒绝
	if st.tripped {
		if now.Sub(st.trippedAt) < g.cfg.TripDuration {
			return Verdict{Decision: Block, Reason: ReasonTripped}
		}
		st.tripped = false
		st.largeTimes = st.largeTimes[:0]
	}

	// 2. 小额快路径：不查深度、不计入窗口
	if whaleShares < g.cfg.LargeTradeShares {
		return Verdict{Decision: Allow}
	}

	// 3. 裁剪窗口（半开区间：恰好在 now−W 的条目被剔除）并记录本次
	cutoff := now.Add(-g.cfg.SequenceWindow)
	kept := st.largeTimes[:0]
	for _, t := range st.largeTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	st.largeTimes = append(kept, now)

	// 4. 达到连续触发次数则熔断
	if len(st.largeTimes) >= g.cfg.ConsecutiveTrigger {
		st.tripped = true
		st.trippedAt = now
		return Verdict{Decision: Block, Reason: ReasonTrip}
	}

	// 5. 未达阈值：要求调用方查盘口深度后回填
	return Verdict{Decision: FetchDepth}
}
