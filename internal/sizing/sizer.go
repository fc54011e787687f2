package sizing

import (
	"time"

	"github.com/betbot/gocopy/clob/types"
	"github.com/betbot/gocopy/internal/domain"
)

// Discipline 订单时效纪律
type Discipline int

const (
	// Immediate 立即成交剩余取消（FAK）
	Immediate Discipline = iota
	// Deadline 限时挂单（GTD），截止时间由 DeadlineAt 计算
	Deadline
)

// OrderType 转换为 CLOB 订单类型
func (d Discipline) OrderType() types.OrderType {
	if d == Deadline {
		return types.OrderTypeGTD
	}
	return types.OrderTypeFAK
}

// Tier 跟单档位，按 MinShares 降序排列
type Tier struct {
	MinShares      float64
	PriceBuffer    float64
	Discipline     Discipline
	SizeMultiplier float64
}

// DefaultTiers 默认档位表。
// 最低档的 MinShares 即最小跟单阈值（MIN_WHALE_SHARES_TO_COPY）。
func DefaultTiers() []Tier {
	return []Tier{
		{MinShares: 4000, PriceBuffer: 0.01, Discipline: Immediate, SizeMultiplier: 1.25},
		{MinShares: 1000, PriceBuffer: 0.01, Discipline: Immediate, SizeMultiplier: 1.0},
		{MinShares: 10, PriceBuffer: 0, Discipline: Immediate, SizeMultiplier: 1.0},
	}
}

// Config 仓位配置
type Config struct {
	// ScalingRatio 鲸鱼份额到本地份额的全局缩放比例
	ScalingRatio float64

	// Tiers 档位表，按 MinShares 降序
	Tiers []Tier

	// SportBuffer 体育市场额外价格缓冲查询，缺失返回 0
	SportBuffer func(tokenID string) float64
}

// DefaultConfig 默认仓位配置
func DefaultConfig() Config {
	return Config{
		ScalingRatio: 0.02,
		Tiers:        DefaultTiers(),
	}
}

// Plan 仓位方案
type Plan struct {
	Size       float64
	Price      float64
	Discipline Discipline
	Tier       Tier
}

// Sizer 档位仓位计算器。纯函数式，无状态，可并发调用。
type Sizer struct {
	cfg Config
}

// NewSizer 创建仓位计算器
func NewSizer(cfg Config) *Sizer {
	if cfg.ScalingRatio <= 0 {
		cfg.ScalingRatio = 0.02
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = DefaultTiers()
	}
	return &Sizer{cfg: cfg}
}

// Size 计算本地下单方案。
// 低于最低档位时返回 (nil, BELOW_MIN)。
func (s *Sizer) Size(whaleShares, whalePrice float64, side types.Side, tokenID string) (*Plan, string) {
	var tier *Tier
	for i := range s.cfg.Tiers {
		if s.cfg.Tiers[i].MinShares <= whaleShares {
			tier = &s.cfg.Tiers[i]
			break
		}
	}
	if tier == nil {
		return nil, domain.StatusBelowMin
	}

	localSize := whaleShares * s.cfg.ScalingRatio * tier.SizeMultiplier

	sportBuffer := 0.0
	if s.cfg.SportBuffer != nil {
		sportBuffer = s.cfg.SportBuffer(tokenID)
	}

	buffer := tier.PriceBuffer + sportBuffer
	localPrice := whalePrice + buffer
	if side == types.SideSell {
		localPrice = whalePrice - buffer
	}
	localPrice = ClampPrice(localPrice)

	return &Plan{
		Size:       localSize,
		Price:      localPrice,
		Discipline: tier.Discipline,
		Tier:       *tier,
	}, ""
}

// ClampPrice 把价格夹到交易所允许的 [0.01, 0.99] 区间
func ClampPrice(p float64) float64 {
	if p < 0.01 {
		return 0.01
	}
	if p > 0.99 {
		return 0.99
	}
	return p
}

// DeadlineAt 计算 GTD 订单的截止时间：比赛进行中 61 秒，否则 30 分钟
func DeadlineAt(now time.Time, isLive bool) time.Time {
	if isLive {
		return now.Add(61 * time.Second)
	}
	return now.Add(1800 * time.Second)
}
