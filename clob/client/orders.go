package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/betbot/gocopy/clob/signing"
	"github.com/betbot/gocopy/clob/types"
)

// PostOrder 提交订单
func (c *Client) PostOrder(ctx context.Context, order *types.SignedOrder, orderType types.OrderType, deferExec bool) (*types.OrderResponse, error) {
	if err := c.CanL2Auth(); err != nil {
		return nil, err
	}

	// 速率限制：等待直到允许请求
	if err := c.rateLimiter.Wait(ctx, "clob:order:post"); err != nil {
		return nil, fmt.Errorf("速率限制等待失败: %w", err)
	}

	orderPayload := types.NewOrder{
		Order:     *order,
		Owner:     c.authConfig.Creds.Key,
		OrderType: orderType,
		DeferExec: deferExec,
	}

	// HMAC 消息必须与实际发送的请求体一致
	bodyBytes, err := json.Marshal(orderPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化订单载荷失败: %w", err)
	}
	bodyStr := string(bodyBytes)

	l2HeaderArgs := &types.L2HeaderArgs{
		Method:      "POST",
		RequestPath: EndpointPostOrder,
		Body:        &bodyStr,
	}

	headers, err := signing.CreateL2Headers(
		c.authConfig.PrivateKey,
		c.authConfig.Creds,
		l2HeaderArgs,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("创建 L2 认证头失败: %w", err)
	}

	resp, err := c.httpClient.post(EndpointPostOrder, signing.L2HeaderMap(headers), orderPayload)
	if err != nil {
		return nil, fmt.Errorf("提交订单失败: %w", err)
	}

	var orderResp types.OrderResponse
	if err := parseResponse(resp, &orderResp); err != nil {
		return nil, fmt.Errorf("解析订单响应失败: %w", err)
	}

	return &orderResp, nil
}

// CreateAndPostOrder 构建、签名并提交订单（自动解析 tick size 和 neg risk）
func (c *Client) CreateAndPostOrder(ctx context.Context, userOrder *types.UserOrder, orderType types.OrderType) (*types.OrderResponse, error) {
	tickSize, err := c.GetTickSize(ctx, userOrder.TokenID)
	if err != nil {
		return nil, fmt.Errorf("获取 tick size 失败: %w", err)
	}

	negRisk, err := c.GetNegRisk(ctx, userOrder.TokenID)
	if err != nil {
		return nil, fmt.Errorf("获取 neg risk 失败: %w", err)
	}

	builder := NewOrderBuilder(c, types.SignatureTypeBrowser, c.authConfig.Funder)
	signed, err := builder.BuildOrder(userOrder, &types.CreateOrderOptions{
		TickSize: tickSize,
		NegRisk:  &negRisk,
	})
	if err != nil {
		return nil, err
	}

	return c.PostOrder(ctx, signed, orderType, false)
}

// CancelOrder 取消订单
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*types.OrderResponse, error) {
	if err := c.CanL2Auth(); err != nil {
		return nil, err
	}

	if err := c.rateLimiter.Wait(ctx, "clob:order:delete"); err != nil {
		return nil, fmt.Errorf("速率限制等待失败: %w", err)
	}

	params := map[string]string{
		"orderID": orderID,
	}

	l2HeaderArgs := &types.L2HeaderArgs{
		Method:      "DELETE",
		RequestPath: EndpointCancelOrder,
		Body:        nil,
	}

	headers, err := signing.CreateL2Headers(
		c.authConfig.PrivateKey,
		c.authConfig.Creds,
		l2HeaderArgs,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("创建 L2 认证头失败: %w", err)
	}

	if httpDebug {
		fmt.Printf("[HTTP DEBUG] CancelOrder: orderID=%s\n", orderID)
	}

	resp, err := c.httpClient.delete(EndpointCancelOrder, signing.L2HeaderMap(headers), params)
	if err != nil {
		return nil, fmt.Errorf("取消订单失败: %w", err)
	}

	var orderResp types.OrderResponse
	if err := parseResponse(resp, &orderResp); err != nil {
		return nil, fmt.Errorf("解析取消响应失败: %w", err)
	}

	return &orderResp, nil
}

// GetOrder 查询单个订单
func (c *Client) GetOrder(ctx context.Context, orderID string) (*types.OpenOrder, error) {
	if err := c.CanL2Auth(); err != nil {
		return nil, err
	}

	if err := c.rateLimiter.Wait(ctx, "data:general"); err != nil {
		return nil, fmt.Errorf("速率限制等待失败: %w", err)
	}

	requestPath := EndpointGetOrder + orderID
	l2HeaderArgs := &types.L2HeaderArgs{
		Method:      "GET",
		RequestPath: requestPath,
		Body:        nil,
	}

	headers, err := signing.CreateL2Headers(
		c.authConfig.PrivateKey,
		c.authConfig.Creds,
		l2HeaderArgs,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("创建 L2 认证头失败: %w", err)
	}

	resp, err := c.httpClient.get(requestPath, signing.L2HeaderMap(headers), nil)
	if err != nil {
		return nil, fmt.Errorf("查询订单失败: %w", err)
	}

	var order types.OpenOrder
	if err := parseResponse(resp, &order); err != nil {
		return nil, fmt.Errorf("解析订单失败: %w", err)
	}

	return &order, nil
}

// GetOpenOrders 查询开放订单（可选按市场过滤）
func (c *Client) GetOpenOrders(ctx context.Context, market string) ([]types.OpenOrder, error) {
	if err := c.CanL2Auth(); err != nil {
		return nil, err
	}

	if err := c.rateLimiter.Wait(ctx, "data:general"); err != nil {
		return nil, fmt.Errorf("速率限制等待失败: %w", err)
	}

	l2HeaderArgs := &types.L2HeaderArgs{
		Method:      "GET",
		RequestPath: EndpointGetOpenOrders,
		Body:        nil,
	}

	headers, err := signing.CreateL2Headers(
		c.authConfig.PrivateKey,
		c.authConfig.Creds,
		l2HeaderArgs,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("创建 L2 认证头失败: %w", err)
	}

	var params map[string]string
	if market != "" {
		params = map[string]string{"market": market}
	}

	resp, err := c.httpClient.get(EndpointGetOpenOrders, signing.L2HeaderMap(headers), params)
	if err != nil {
		return nil, fmt.Errorf("查询开放订单失败: %w", err)
	}

	var orders []types.OpenOrder
	if err := parseResponse(resp, &orders); err != nil {
		return nil, fmt.Errorf("解析开放订单失败: %w", err)
	}

	return orders, nil
}
