package marketcache

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/gocopy/clob/client"
	"github.com/betbot/gocopy/pkg/cache"
)

var mcLog = logrus.WithField("component", "marketcache")

// sportLivePriceBuffer 体育盘口波动大，进行中的比赛追价时多让一分
const sportLivePriceBuffer = 0.01

// Cache Gamma 市场元数据缓存。
//
// 鲸鱼事件只携带 token id，比赛是否进行中、市场类目等
// 元数据从 Gamma 拉取后短期缓存，避免热点 token 反复查询。
type Cache struct {
	gamma *client.GammaClient
	items *cache.InMemoryCache[string, *client.GammaMarket]
	ttl   time.Duration

	// FetchTimeout 单次 Gamma 查询预算
	FetchTimeout time.Duration
}

// New 创建市场元数据缓存
func New(gamma *client.GammaClient) *Cache {
	return &Cache{
		gamma:        gamma,
		items:        cache.NewInMemoryCache[string, *client.GammaMarket](5 * time.Minute),
		ttl:          5 * time.Minute,
		FetchTimeout: 2 * time.Second,
	}
}

// Market 查询 token 对应的市场，未命中时同步拉取。
// 拉取失败返回 nil，调用方按元数据缺失处理。
func (c *Cache) Market(ctx context.Context, tokenID string) *client.GammaMarket {
	if m, ok := c.items.Get(tokenID); ok {
		return m
	}

	fctx, cancel := context.WithTimeout(ctx, c.FetchTimeout)
	defer cancel()

	m, err := c.gamma.FetchMarketByToken(fctx, tokenID)
	if err != nil {
		mcLog.WithError(err).WithField("token", tokenID).Debug("Gamma 市场查询失败")
		return nil
	}

	c.items.Set(tokenID, m, c.ttl)

	// 同一市场的对手 token 共享元数据，一并写入
	if ids, err := m.TokenIDs(); err == nil {
		for _, id := range ids {
			c.items.Set(id, m, c.ttl)
		}
	}
	return m
}

// IsLive 比赛是否正在进行。元数据缺失时按非进行中处理。
func (c *Cache) IsLive(ctx context.Context, tokenID string) bool {
	m := c.Market(ctx, tokenID)
	if m == nil {
		return false
	}
	return m.IsLive(time.Now())
}

// SportBuffer 体育市场的额外价格缓冲。
// 进行中的体育比赛返回缓冲值，其余返回 0。
func (c *Cache) SportBuffer(tokenID string) float64 {
	m, ok := c.items.Get(tokenID)
	if !ok || m == nil {
		return 0
	}
	if !strings.EqualFold(m.Category, "sports") {
		return 0
	}
	if !m.IsLive(time.Now()) {
		return 0
	}
	return sportLivePriceBuffer
}
