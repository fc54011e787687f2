package feed

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gocopy/internal/domain"
	"github.com/betbot/gocopy/internal/metrics"
)

var feedLog = logrus.WithField("component", "feed")

// SessionConfig WS 会话配置
type SessionConfig struct {
	// URL Polygon 节点的 WSS 端点
	URL string

	// WhaleAddress 目标鲸鱼地址
	WhaleAddress string

	// Contracts 订阅的交易所合约地址，缺省为 CTF + NegRisk 两个交易所
	Contracts []string

	// IdleTimeout 无消息超时，超时后断开重连
	IdleTimeout time.Duration

	// ReconnectDelay 重连间隔
	ReconnectDelay time.Duration

	// HandshakeTimeout 拨号握手超时
	HandshakeTimeout time.Duration
}

// DefaultSessionConfig 默认 WS 会话参数
func DefaultSessionConfig(url, whaleAddress string) SessionConfig {
	return SessionConfig{
		URL:              url,
		WhaleAddress:     whaleAddress,
		Contracts:        []string{CTFExchangeAddress, NegRiskCTFExchangeAddress},
		IdleTimeout:      300 * time.Second,
		ReconnectDelay:   3 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// subscribeRequest eth_subscribe 请求体
type subscribeRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// logFilter 日志订阅过滤器
type logFilter struct {
	Address []string   `json:"address"`
	Topics  []any      `json:"topics"`
}

// Session 鲸鱼成交事件订阅会话。
//
// 断线后无限重连；每个解码出的事件派发到独立 goroutine，
// 读循环永不被下游阻塞。
type Session struct {
	cfg      SessionConfig
	decoder  *Decoder
	dispatch func(*domain.FillEvent)
}

// NewSession 创建订阅会话，dispatch 为事件回调
func NewSession(cfg SessionConfig, dispatch func(*domain.FillEvent)) *Session {
	if len(cfg.Contracts) == 0 {
		cfg.Contracts = []string{CTFExchangeAddress, NegRiskCTFExchangeAddress}
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 300 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Session{
		cfg:      cfg,
		decoder:  NewDecoder(cfg.WhaleAddress),
		dispatch: dispatch,
	}
}

// Decoder 返回会话的解码器
func (s *Session) Decoder() *Decoder {
	return s.decoder
}

// Run 启动订阅循环，直到 ctx 取消才返回
func (s *Session) Run(ctx context.Context) {
	feedLog.WithFields(logrus.Fields{
		"url":   s.cfg.URL,
		"whale": s.cfg.WhaleAddress,
	}).Info("🚀 鲸鱼事件订阅启动")

	for {
		if ctx.Err() != nil {
			feedLog.Info("🛑 鲸鱼事件订阅退出")
			return
		}

		if err := s.runOnce(ctx); err != nil && ctx.Err() == nil {
			metrics.ReconnectCount.Add(1)
			feedLog.WithError(err).Warn("❌ WS 会话中断，准备重连")
		}

		select {
		case <-ctx.Done():
			feedLog.Info("🛑 鲸鱼事件订阅退出")
			return
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
}

// runOnce 一次完整的连接生命周期：拨号、订阅、读泵
func (s *Session) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return errors.Wrap(err, "拨号失败")
	}
	defer conn.Close()

	if err := s.subscribe(conn); err != nil {
		return err
	}
	feedLog.Info("✅ WS 已连接并订阅 OrderFilled 日志")

	// ctx 取消时强制关闭连接，把读循环从阻塞中踢出来
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
			return errors.Wrap(err, "设置读超时失败")
		}
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "读取消息失败")
		}

		if ev, ok := s.decoder.Decode(frame); ok {
			metrics.EventsDecoded.Add(1)
			feedLog.WithFields(logrus.Fields{
				"block":  ev.BlockNumber,
				"side":   ev.Side,
				"shares": ev.Shares,
				"usd":    ev.USDValue,
			}).Info("🐋 捕获鲸鱼成交")
			go s.dispatch(ev)
		}
	}
}

// subscribe 发送 eth_subscribe 并等待确认
func (s *Session) subscribe(conn *websocket.Conn) error {
	req := subscribeRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_subscribe",
		Params: []any{
			"logs",
			logFilter{
				Address: s.cfg.Contracts,
				Topics: []any{
					[]string{OrderFilledTopic},
					nil,
					WhaleTopic(s.cfg.WhaleAddress),
				},
			},
		},
	}
	if err := conn.WriteJSON(req); err != nil {
		return errors.Wrap(err, "发送订阅请求失败")
	}

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var resp struct {
		ID     int    `json:"id"`
		Result string `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := conn.ReadJSON(&resp); err != nil {
		return errors.Wrap(err, "读取订阅响应失败")
	}
	if resp.Error != nil {
		return errors.Errorf("订阅被拒绝: %d %s", resp.Error.Code, resp.Error.Message)
	}
	return nil
}
