package services

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gocopy/clob/client"
	"github.com/betbot/gocopy/clob/types"
)

var traderLog = logrus.WithField("component", "trader")

// OrderIntent 一次下单意图（引擎和重试器共用）
type OrderIntent struct {
	TokenID   string
	Side      types.Side
	Size      float64
	Price     float64
	OrderType types.OrderType

	// Expiration GTD 订单的过期时间戳（秒），FAK 填 0
	Expiration int64
}

// ExecutionResult 下单执行结果
type ExecutionResult struct {
	// Success 订单被交易所接受（FAK 被 kill 时仍为 true）
	Success bool

	// FilledSize 本次成交的份额数
	FilledSize float64

	// OrderID 交易所返回的订单 ID
	OrderID string

	// Raw 原始响应，审计用
	Raw *types.OrderResponse
}

// Trader 签名并提交订单。实现必须是并发安全的。
type Trader interface {
	SignAndPost(ctx context.Context, intent *OrderIntent) (*ExecutionResult, error)
}

// BookFetcher 查询盘口快照
type BookFetcher interface {
	FetchBook(ctx context.Context, tokenID string) (*types.OrderBookSummary, error)
}

// ClobTrader 经由 CLOB 客户端的真实下单通道
type ClobTrader struct {
	client *client.Client
}

// NewClobTrader 创建真实下单通道
func NewClobTrader(c *client.Client) *ClobTrader {
	return &ClobTrader{client: c}
}

// SignAndPost 构建、签名并提交订单，按方向解析成交份额
func (t *ClobTrader) SignAndPost(ctx context.Context, intent *OrderIntent) (*ExecutionResult, error) {
	userOrder := &types.UserOrder{
		TokenID: intent.TokenID,
		Price:   intent.Price,
		Size:    intent.Size,
		Side:    intent.Side,
	}
	if intent.OrderType == types.OrderTypeGTD {
		exp := intent.Expiration
		userOrder.Expiration = &exp
	}

	resp, err := t.client.CreateAndPostOrder(ctx, userOrder, intent.OrderType)
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.ErrorMsg != "" {
		return nil, errors.Errorf("订单被拒绝: %s", resp.ErrorMsg)
	}

	return &ExecutionResult{
		Success:    true,
		FilledSize: filledSize(resp, intent.Side),
		OrderID:    resp.OrderID,
		Raw:        resp,
	}, nil
}

// FetchBook 查询盘口
func (t *ClobTrader) FetchBook(ctx context.Context, tokenID string) (*types.OrderBookSummary, error) {
	return t.client.GetOrderBook(ctx, tokenID)
}

// filledSize 从订单响应解析成交份额。
// 买单收到 outcome token（takingAmount），卖单付出 outcome token（makingAmount）。
func filledSize(resp *types.OrderResponse, side types.Side) float64 {
	raw := resp.TakingAmount
	if side == types.SideSell {
		raw = resp.MakingAmount
	}
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

// MockTrader 干跑通道：不发任何 HTTP 请求，按意图价格合成全额成交
type MockTrader struct{}

// SignAndPost 合成一次全额成交
func (t *MockTrader) SignAndPost(ctx context.Context, intent *OrderIntent) (*ExecutionResult, error) {
	traderLog.WithFields(logrus.Fields{
		"token": intent.TokenID,
		"side":  intent.Side,
		"size":  intent.Size,
		"price": intent.Price,
		"type":  intent.OrderType,
	}).Info("📝 [干跑] 模拟下单，全额成交")

	return &ExecutionResult{
		Success:    true,
		FilledSize: intent.Size,
		OrderID:    "mock",
	}, nil
}
