package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/betbot/gocopy/pkg/ratelimit"
)

// DefaultGammaHost Gamma API 地址
const DefaultGammaHost = "https://gamma-api.polymarket.com"

var (
	gammaRateLimiter   *ratelimit.RateLimitManager
	gammaRateLimitOnce sync.Once
)

// getGammaRateLimiter 获取 Gamma API 速率限制器（单例）
func getGammaRateLimiter() *ratelimit.RateLimitManager {
	gammaRateLimitOnce.Do(func() {
		gammaRateLimiter = ratelimit.NewRateLimitManager()
	})
	return gammaRateLimiter
}

// GammaMarket Gamma API 市场数据结构
type GammaMarket struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	ConditionID   string `json:"conditionId"`
	Slug          string `json:"slug"`
	ClobTokenIDs  string `json:"clobTokenIds"`
	EndDate       string `json:"endDate"`
	StartDate     string `json:"startDate"`
	GameStartTime string `json:"gameStartTime"`
	Category      string `json:"category"`
	Closed        bool   `json:"closed"`
	Active        bool   `json:"active"`
	Liquidity     string `json:"liquidity"`
	Volume        string `json:"volume"`
}

// IsLive 判断比赛是否正在进行（已开赛且市场未关闭）
func (m *GammaMarket) IsLive(now time.Time) bool {
	if m.Closed || m.GameStartTime == "" {
		return false
	}
	start, err := time.Parse(time.RFC3339, m.GameStartTime)
	if err != nil {
		return false
	}
	return now.After(start)
}

// TokenIDs 解析 clobTokenIds 字段（JSON 数组字符串）
func (m *GammaMarket) TokenIDs() ([]string, error) {
	if m.ClobTokenIDs == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &ids); err != nil {
		return nil, errors.Wrap(err, "解析 clobTokenIds 失败")
	}
	return ids, nil
}

// GammaClient Gamma API 客户端
type GammaClient struct {
	http *resty.Client
}

// NewGammaClient 创建 Gamma API 客户端
func NewGammaClient(host string) *GammaClient {
	if host == "" {
		host = DefaultGammaHost
	}

	http := resty.New().
		SetBaseURL(host).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(8 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "gocopy-clob")

	return &GammaClient{http: http}
}

// FetchMarketByToken 按条件代币 ID 获取市场数据
func (g *GammaClient) FetchMarketByToken(ctx context.Context, tokenID string) (*GammaMarket, error) {
	if err := getGammaRateLimiter().Wait(ctx, "gamma:markets:get"); err != nil {
		return nil, errors.Wrap(err, "速率限制等待失败")
	}

	var markets []GammaMarket
	resp, err := g.http.R().
		SetContext(ctx).
		SetQueryParam("clob_token_ids", tokenID).
		SetResult(&markets).
		Get("/markets")
	if err != nil {
		return nil, errors.Wrap(err, "请求 Gamma API 失败")
	}
	if resp.IsError() {
		return nil, errors.Errorf("Gamma API 错误 %d: %s", resp.StatusCode(), resp.String())
	}
	if len(markets) == 0 {
		return nil, errors.Errorf("未找到市场: token=%s", tokenID)
	}

	return &markets[0], nil
}

// FetchMarketBySlug 按 slug 获取市场数据
func (g *GammaClient) FetchMarketBySlug(ctx context.Context, slug string) (*GammaMarket, error) {
	if err := getGammaRateLimiter().Wait(ctx, "gamma:markets:get"); err != nil {
		return nil, errors.Wrap(err, "速率限制等待失败")
	}

	var markets []GammaMarket
	resp, err := g.http.R().
		SetContext(ctx).
		SetQueryParam("slug", slug).
		SetResult(&markets).
		Get("/markets")
	if err != nil {
		return nil, errors.Wrap(err, "请求 Gamma API 失败")
	}
	if resp.IsError() {
		return nil, errors.Errorf("Gamma API 错误 %d: %s", resp.StatusCode(), resp.String())
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("未找到市场: %s", slug)
	}

	return &markets[0], nil
}
