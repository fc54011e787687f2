package client

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/betbot/gocopy/clob/types"
)

// GetServerTime 获取服务器时间（Unix 秒）
func (c *Client) GetServerTime(ctx context.Context) (int64, error) {
	resp, err := c.httpClient.get(EndpointTime, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("获取服务器时间失败: %w", err)
	}

	var t int64
	if err := parseResponse(resp, &t); err != nil {
		return 0, fmt.Errorf("解析服务器时间失败: %w", err)
	}
	return t, nil
}

// GetOrderBook 获取订单簿
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*types.OrderBookSummary, error) {
	// 速率限制：等待直到允许请求
	if err := c.rateLimiter.Wait(ctx, "clob:book:get"); err != nil {
		return nil, fmt.Errorf("速率限制等待失败: %w", err)
	}

	params := map[string]string{
		"token_id": tokenID,
	}

	resp, err := c.httpClient.get(EndpointGetOrderBook, nil, params)
	if err != nil {
		return nil, fmt.Errorf("获取订单簿失败: %w", err)
	}

	var book types.OrderBookSummary
	if err := parseResponse(resp, &book); err != nil {
		return nil, fmt.Errorf("解析订单簿失败: %w", err)
	}

	return &book, nil
}

// GetMidpoint 获取中间价
func (c *Client) GetMidpoint(ctx context.Context, tokenID string) (float64, error) {
	if err := c.rateLimiter.Wait(ctx, "clob:book:get"); err != nil {
		return 0, fmt.Errorf("速率限制等待失败: %w", err)
	}

	params := map[string]string{
		"token_id": tokenID,
	}

	resp, err := c.httpClient.get(EndpointGetMidpoint, nil, params)
	if err != nil {
		return 0, fmt.Errorf("获取中间价失败: %w", err)
	}

	var result struct {
		Mid string `json:"mid"`
	}
	if err := parseResponse(resp, &result); err != nil {
		return 0, fmt.Errorf("解析中间价失败: %w", err)
	}

	return strconv.ParseFloat(result.Mid, 64)
}

// GetPrice 获取指定方向的最优价格
func (c *Client) GetPrice(ctx context.Context, tokenID string, side types.Side) (float64, error) {
	if err := c.rateLimiter.Wait(ctx, "clob:book:get"); err != nil {
		return 0, fmt.Errorf("速率限制等待失败: %w", err)
	}

	params := map[string]string{
		"token_id": tokenID,
		"side":     string(side),
	}

	resp, err := c.httpClient.get(EndpointGetPrice, nil, params)
	if err != nil {
		return 0, fmt.Errorf("获取价格失败: %w", err)
	}

	var result struct {
		Price string `json:"price"`
	}
	if err := parseResponse(resp, &result); err != nil {
		return 0, fmt.Errorf("解析价格失败: %w", err)
	}

	return strconv.ParseFloat(result.Price, 64)
}

// GetLastTradePrice 获取最新成交价
func (c *Client) GetLastTradePrice(ctx context.Context, tokenID string) (*types.MarketPrice, error) {
	if err := c.rateLimiter.Wait(ctx, "clob:book:get"); err != nil {
		return nil, fmt.Errorf("速率限制等待失败: %w", err)
	}

	params := map[string]string{
		"token_id": tokenID,
	}

	resp, err := c.httpClient.get(EndpointGetLastTradePrice, nil, params)
	if err != nil {
		return nil, fmt.Errorf("获取最新成交价失败: %w", err)
	}

	var result struct {
		Price string `json:"price"`
		Side  string `json:"side"`
	}
	if err := parseResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("解析最新成交价失败: %w", err)
	}

	price, err := strconv.ParseFloat(result.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("无效的成交价 %q: %w", result.Price, err)
	}

	return &types.MarketPrice{Price: price}, nil
}

// GetTickSize 获取价格精度（带缓存，tick size 只会变小不会变大）
func (c *Client) GetTickSize(ctx context.Context, tokenID string) (types.TickSize, error) {
	if cached, ok := c.tickSizes[tokenID]; ok {
		return cached, nil
	}

	if err := c.rateLimiter.Wait(ctx, "clob:book:get"); err != nil {
		return "", fmt.Errorf("速率限制等待失败: %w", err)
	}

	params := map[string]string{
		"token_id": tokenID,
	}

	resp, err := c.httpClient.get(EndpointGetTickSize, nil, params)
	if err != nil {
		return "", fmt.Errorf("获取 tick size 失败: %w", err)
	}

	var result struct {
		MinimumTickSize float64 `json:"minimum_tick_size"`
	}
	if err := parseResponse(resp, &result); err != nil {
		return "", fmt.Errorf("解析 tick size 失败: %w", err)
	}

	tickSize := types.TickSize(strconv.FormatFloat(result.MinimumTickSize, 'f', -1, 64))
	if _, ok := RoundingConfig[tickSize]; !ok {
		return "", fmt.Errorf("未知的 tick size: %v", result.MinimumTickSize)
	}

	c.tickSizes[tokenID] = tickSize
	return tickSize, nil
}

// GetNegRisk 查询是否为负风险市场（带缓存）
func (c *Client) GetNegRisk(ctx context.Context, tokenID string) (bool, error) {
	if cached, ok := c.negRisk[tokenID]; ok {
		return cached, nil
	}

	if err := c.rateLimiter.Wait(ctx, "clob:book:get"); err != nil {
		return false, fmt.Errorf("速率限制等待失败: %w", err)
	}

	params := map[string]string{
		"token_id": tokenID,
	}

	resp, err := c.httpClient.get(EndpointGetNegRisk, nil, params)
	if err != nil {
		return false, fmt.Errorf("获取 neg risk 失败: %w", err)
	}

	var result struct {
		NegRisk bool `json:"neg_risk"`
	}
	if err := parseResponse(resp, &result); err != nil {
		return false, fmt.Errorf("解析 neg risk 失败: %w", err)
	}

	c.negRisk[tokenID] = result.NegRisk
	return result.NegRisk, nil
}

// TopLevels 返回订单簿最优 n 档（bids 价格从高到低，asks 价格从低到高）
//
// CLOB API 返回的档位顺序不保证最优在前，这里统一重排。
func TopLevels(book *types.OrderBookSummary, n int) (bids, asks []types.OrderSummary) {
	bids = append([]types.OrderSummary(nil), book.Bids...)
	asks = append([]types.OrderSummary(nil), book.Asks...)

	sort.Slice(bids, func(i, j int) bool {
		pi, _ := strconv.ParseFloat(bids[i].Price, 64)
		pj, _ := strconv.ParseFloat(bids[j].Price, 64)
		return pi > pj
	})
	sort.Slice(asks, func(i, j int) bool {
		pi, _ := strconv.ParseFloat(asks[i].Price, 64)
		pj, _ := strconv.ParseFloat(asks[j].Price, 64)
		return pi < pj
	})

	if len(bids) > n {
		bids = bids[:n]
	}
	if len(asks) > n {
		asks = asks[:n]
	}
	return bids, asks
}

// DepthUSD 计算档位列表的美元深度总和（price × size）
func DepthUSD(levels []types.OrderSummary) float64 {
	total := 0.0
	for _, lv := range levels {
		price, err1 := strconv.ParseFloat(lv.Price, 64)
		size, err2 := strconv.ParseFloat(lv.Size, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		total += price * size
	}
	return total
}
