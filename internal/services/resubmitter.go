package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/gocopy/clob/types"
	"github.com/betbot/gocopy/internal/audit"
	"github.com/betbot/gocopy/internal/domain"
	"github.com/betbot/gocopy/internal/metrics"
	"github.com/betbot/gocopy/internal/sizing"
	"github.com/betbot/gocopy/pkg/sigchan"
)

var resubmitLog = logrus.WithField("component", "resubmitter")

// ResubmitterConfig 重试链配置
type ResubmitterConfig struct {
	// PriceIncrement 大额链首次重试的价格让步
	PriceIncrement float64

	// LargeShares 大额链的鲸鱼份额阈值（决定预算与让步）
	LargeShares float64

	// Pacing 每次提交后的节流间隔
	Pacing time.Duration
}

// DefaultResubmitterConfig 默认重试链参数
func DefaultResubmitterConfig() ResubmitterConfig {
	return ResubmitterConfig{
		PriceIncrement: 0.01,
		LargeShares:    4000,
		Pacing:         50 * time.Millisecond,
	}
}

// Resubmitter 部分成交残量的重试链。
//
// 队列无界：重试永不拒绝请求，链靠价格触顶与预算耗尽自行收敛。
// 每条链通过队列尾递归推进，attempt 单调递增。
type Resubmitter struct {
	cfg    ResubmitterConfig
	trader Trader
	writer *audit.Writer

	mu    sync.Mutex
	queue []*domain.ResubmitRequest
	wake  *sigchan.Chan

	// terminal 终态回调（测试用，可为 nil）
	terminal func(req *domain.ResubmitRequest, status string)
}

// NewResubmitter 创建重试器
func NewResubmitter(cfg ResubmitterConfig, trader Trader, writer *audit.Writer) *Resubmitter {
	if cfg.PriceIncrement <= 0 {
		cfg.PriceIncrement = 0.01
	}
	if cfg.LargeShares <= 0 {
		cfg.LargeShares = 4000
	}
	if cfg.Pacing <= 0 {
		cfg.Pacing = 50 * time.Millisecond
	}
	return &Resubmitter{
		cfg:    cfg,
		trader: trader,
		writer: writer,
		wake:   sigchan.New(1),
	}
}

// SetTerminalHook 设置终态回调
func (r *Resubmitter) SetTerminalHook(fn func(req *domain.ResubmitRequest, status string)) {
	r.terminal = fn
}

// Enqueue 投递一个重试请求，永不阻塞、永不拒绝
func (r *Resubmitter) Enqueue(req *domain.ResubmitRequest) {
	r.mu.Lock()
	r.queue = append(r.queue, req)
	r.mu.Unlock()

	metrics.ResubmitsQueued.Add(1)
	r.wake.Emit()
}

// QueueLen 当前排队的请求数
func (r *Resubmitter) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Run 启动重试循环，直到 ctx 取消
func (r *Resubmitter) Run(ctx context.Context) {
	resubmitLog.Info("🚀 重试链已启动")
	for {
		req := r.pop()
		if req == nil {
			select {
			case <-ctx.Done():
				resubmitLog.Info("🛑 重试链退出")
				return
			case <-r.wake.C():
				continue
			}
		}

		r.process(ctx, req)

		select {
		case <-ctx.Done():
			resubmitLog.Info("🛑 重试链退出")
			return
		case <-time.After(r.cfg.Pacing):
		}
	}
}

func (r *Resubmitter) pop() *domain.ResubmitRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil
	}
	req := r.queue[0]
	r.queue = r.queue[1:]
	return req
}

// MaxAttempts 鲸鱼份额决定重试预算：大额 5 次，普通 4 次
func (r *Resubmitter) MaxAttempts(whaleShares float64) int {
	if whaleShares >= r.cfg.LargeShares {
		return 5
	}
	return 4
}

// CandidatePrice 计算本次尝试的提交价。
// 价格让步只在大额链的首次重试发生，其余尝试沿用失败价。
func (r *Resubmitter) CandidatePrice(req *domain.ResubmitRequest) float64 {
	increment := 0.0
	if req.WhaleShares >= r.cfg.LargeShares && req.Attempt == 1 {
		increment = r.cfg.PriceIncrement
	}
	candidate := req.FailedPrice + increment
	if req.Side == types.SideSell {
		candidate = req.FailedPrice - increment
	}
	return sizing.ClampPrice(candidate)
}

// exceedsBound 候选价是否越过链的价格边界（买方向上限、卖方向下限）
func exceedsBound(side types.Side, candidate, bound float64) bool {
	if side == types.SideSell {
		return candidate < bound
	}
	return candidate > bound
}

// process 推进链一步：提交一次，按结果终结或续链
func (r *Resubmitter) process(ctx context.Context, req *domain.ResubmitRequest) {
	maxAttempts := r.MaxAttempts(req.WhaleShares)
	isLast := req.Attempt >= maxAttempts
	candidate := r.CandidatePrice(req)

	log := resubmitLog.WithFields(logrus.Fields{
		"chain":     req.ChainID,
		"token":     req.TokenID,
		"attempt":   req.Attempt,
		"max":       maxAttempts,
		"remaining": req.RemainingSize,
		"price":     candidate,
	})

	// 价格触顶：末次尝试豁免（反正是最后一搏）
	if !isLast && exceedsBound(req.Side, candidate, req.MaxPrice) {
		log.WithField("bound", req.MaxPrice).Warn("❌ 重试价格触顶，放弃残量")
		r.finish(req, domain.StatusAbortPriceCeil, candidate)
		return
	}

	intent := &OrderIntent{
		TokenID:   req.TokenID,
		Side:      req.Side,
		Size:      req.RemainingSize,
		Price:     candidate,
		OrderType: types.OrderTypeFAK,
	}
	if isLast {
		intent.OrderType = types.OrderTypeGTD
		intent.Expiration = sizing.DeadlineAt(time.Now(), req.IsLive).Unix()
	}

	result, err := r.trader.SignAndPost(ctx, intent)
	if err != nil {
		log.WithError(err).Warn("❌ 重试提交失败")
		if isLast {
			r.finish(req, domain.StatusExhausted, candidate)
			return
		}
		r.advance(req, candidate, 0)
		return
	}

	if isLast && intent.OrderType == types.OrderTypeGTD {
		log.Info("✅ 末次重试已挂出限时单")
		r.finish(req, domain.StatusGTDSubmitted, candidate)
		return
	}

	filled := result.FilledSize
	if filled >= req.RemainingSize {
		log.WithField("filled", filled).Info("✅ 残量全部成交，链关闭")
		r.finish(req, fmt.Sprintf("FILLED(%.4f)", req.CumulativeFilled+filled), candidate)
		return
	}

	r.advance(req, candidate, filled)
}

// advance 续链：残量扣除本次成交后以 attempt+1 重新入队
func (r *Resubmitter) advance(req *domain.ResubmitRequest, candidate, filled float64) {
	next := *req
	next.Attempt = req.Attempt + 1
	next.FailedPrice = candidate
	next.CumulativeFilled = req.CumulativeFilled + filled
	next.RemainingSize = req.RemainingSize - filled
	r.Enqueue(&next)
}

// finish 记录终态审计行并触发回调
func (r *Resubmitter) finish(req *domain.ResubmitRequest, status string, price float64) {
	if r.writer != nil {
		r.writer.Record(audit.Row{
			Timestamp: time.Now(),
			TokenID:   req.TokenID,
			Shares:    req.WhaleShares,
			Price:     price,
			Side:      req.Side,
			Status:    status,
			IsLive:    req.IsLive,
		})
	}
	if r.terminal != nil {
		r.terminal(req, status)
	}
}
