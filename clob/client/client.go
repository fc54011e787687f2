package client

import (
	"crypto/ecdsa"
	"net/url"
	"os"
	"strings"

	"github.com/betbot/gocopy/clob/types"
	"github.com/betbot/gocopy/pkg/ratelimit"
)

// Client CLOB 客户端
type Client struct {
	host        string
	chainID     types.Chain
	authConfig  *AuthConfig
	httpClient  *httpClient
	tickSizes   types.TickSizes
	negRisk     types.NegRisk
	feeRates    types.FeeRates
	rateLimiter *ratelimit.RateLimitManager
}

// NewClient 创建新的 CLOB 客户端
func NewClient(
	host string,
	chainID types.Chain,
	privateKey *ecdsa.PrivateKey,
	creds *types.ApiKeyCreds,
	funderAddress string,
) *Client {
	authConfig := &AuthConfig{
		PrivateKey: privateKey,
		ChainID:    chainID,
		Creds:      creds,
		Funder:     funderAddress,
	}

	// 仅在环境变量设置时使用代理
	proxyStr := getProxyURL()
	var proxyURL *url.URL
	useProxy := false
	if proxyStr != "" {
		if parsed, err := url.Parse(proxyStr); err == nil {
			proxyURL = parsed
			useProxy = true
		}
	}

	return &Client{
		host:        strings.TrimSuffix(host, "/"),
		chainID:     chainID,
		authConfig:  authConfig,
		httpClient:  newHTTPClient(host, useProxy, proxyURL),
		tickSizes:   make(types.TickSizes),
		negRisk:     make(types.NegRisk),
		feeRates:    make(types.FeeRates),
		rateLimiter: ratelimit.NewRateLimitManager(),
	}
}

// SetCreds 设置 API 密钥凭证（推导/创建后回填）
func (c *Client) SetCreds(creds *types.ApiKeyCreds) {
	c.authConfig.Creds = creds
}

// getProxyURL 从环境变量获取代理 URL，未设置时返回空字符串（直连）
func getProxyURL() string {
	proxyVars := []string{"HTTP_PROXY", "HTTPS_PROXY", "http_proxy", "https_proxy"}
	for _, v := range proxyVars {
		if val := os.Getenv(v); val != "" {
			return val
		}
	}
	return ""
}

// GetHost 获取主机地址
func (c *Client) GetHost() string {
	return c.host
}

// GetChainID 获取链 ID
func (c *Client) GetChainID() types.Chain {
	return c.chainID
}
