package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gocopy/clob/client"
	"github.com/betbot/gocopy/clob/types"
	"github.com/betbot/gocopy/internal/audit"
	"github.com/betbot/gocopy/internal/domain"
	"github.com/betbot/gocopy/internal/metrics"
	"github.com/betbot/gocopy/internal/risk"
	"github.com/betbot/gocopy/internal/sizing"
)

var engineLog = logrus.WithField("component", "copy_engine")

// CopyEngineConfig 订单引擎配置
type CopyEngineConfig struct {
	// EnableTrading 交易总开关，关闭时事件不入队
	EnableTrading bool

	// MockTrading 干跑模式：合成成交，不发真实请求
	MockTrading bool

	// QueueSize 事件队列容量，满时立即拒绝
	QueueSize int

	// ReplyTimeout 调用方等待裁决的上限
	ReplyTimeout time.Duration

	// DepthTimeout 盘口深度查询预算
	DepthTimeout time.Duration

	// DepthLevels 深度检查取盘口前几档
	DepthLevels int
}

// DefaultCopyEngineConfig 默认引擎参数
func DefaultCopyEngineConfig() CopyEngineConfig {
	return CopyEngineConfig{
		EnableTrading: false,
		MockTrading:   true,
		QueueSize:     1024,
		ReplyTimeout:  10 * time.Second,
		DepthTimeout:  500 * time.Millisecond,
		DepthLevels:   10,
	}
}

// workItem 队列元素：事件 + 一次性回复通道
type workItem struct {
	event  *domain.FillEvent
	isLive bool
	reply  chan string
}

// CopyEngine 跟单订单引擎。
//
// 单 worker 串行消费事件队列，风控状态因此无需加锁。
// 每个事件恰好产生一条审计记录和一个终态字符串。
type CopyEngine struct {
	cfg         CopyEngineConfig
	guard       *risk.Guard
	sizer       *sizing.Sizer
	trader      Trader
	books       BookFetcher
	resubmitter *Resubmitter
	writer      *audit.Writer
	queue       chan *workItem
}

// NewCopyEngine 创建订单引擎
func NewCopyEngine(
	cfg CopyEngineConfig,
	guard *risk.Guard,
	sizer *sizing.Sizer,
	trader Trader,
	books BookFetcher,
	resubmitter *Resubmitter,
	writer *audit.Writer,
) *CopyEngine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 10 * time.Second
	}
	if cfg.DepthTimeout <= 0 {
		cfg.DepthTimeout = 500 * time.Millisecond
	}
	if cfg.DepthLevels <= 0 {
		cfg.DepthLevels = 10
	}
	return &CopyEngine{
		cfg:         cfg,
		guard:       guard,
		sizer:       sizer,
		trader:      trader,
		books:       books,
		resubmitter: resubmitter,
		writer:      writer,
		queue:       make(chan *workItem, cfg.QueueSize),
	}
}

// Submit 提交一个鲸鱼事件并等待终态。
// 队列满立即返回 QUEUE_ERR；等待超时返回 WORKER_TIMEOUT
//（此时 worker 可能仍会完成下单，迟到的回复被安全丢弃）。
func (e *CopyEngine) Submit(event *domain.FillEvent, isLive bool) string {
	if !e.cfg.EnableTrading {
		e.audit(event, isLive, domain.StatusSkippedDisabled, nil)
		return domain.StatusSkippedDisabled
	}

	item := &workItem{
		event:  event,
		isLive: isLive,
		reply:  make(chan string, 1),
	}

	select {
	case e.queue <- item:
		metrics.EventsSubmitted.Add(1)
	default:
		engineLog.WithField("tx", event.TxHash).Warn("❌ 事件队列已满，提交被拒绝")
		e.audit(event, isLive, domain.StatusQueueErr, nil)
		return domain.StatusQueueErr
	}

	select {
	case status := <-item.reply:
		return status
	case <-time.After(e.cfg.ReplyTimeout):
		engineLog.WithField("tx", event.TxHash).Warn("❌ 等待引擎裁决超时")
		return domain.StatusWorkerTimeout
	}
}

// Run 启动 worker 循环，直到 ctx 取消
func (e *CopyEngine) Run(ctx context.Context) {
	engineLog.Info("🚀 订单引擎已启动")
	for {
		select {
		case <-ctx.Done():
			engineLog.Info("🛑 订单引擎退出")
			return
		case item := <-e.queue:
			e.handle(ctx, item)
		}
	}
}

// handle 处理单个事件：风控 → 深度 → 仓位 → 下单 → 审计 → 回复
func (e *CopyEngine) handle(ctx context.Context, item *workItem) {
	defer func() {
		if r := recover(); r != nil {
			engineLog.WithField("panic", r).Error("❌ 引擎处理崩溃")
		}
	}()

	status, book := e.execute(ctx, item.event, item.isLive)
	e.audit(item.event, item.isLive, status, book)

	// 回复通道带缓冲，发送永不阻塞；调用方已超时离开时回复被丢弃
	item.reply <- status
}

func (e *CopyEngine) execute(ctx context.Context, ev *domain.FillEvent, isLive bool) (string, *types.OrderBookSummary) {
	log := engineLog.WithFields(logrus.Fields{
		"token":  ev.TokenID,
		"side":   ev.Side,
		"shares": ev.Shares,
		"price":  ev.Price,
	})

	// 风控裁决
	verdict := e.guard.Check(ev.TokenID, ev.Shares)
	var book *types.OrderBookSummary
	switch verdict.Decision {
	case risk.Block:
		metrics.OrdersBlocked.Add(1)
		log.WithField("reason", verdict.Reason).Warn("🛑 风控拒绝")
		return domain.BlockedPrefix + verdict.Reason, nil
	case risk.FetchDepth:
		var ok bool
		book, ok = e.checkDepth(ctx, ev)
		if !ok {
			metrics.OrdersBlocked.Add(1)
			log.Warn("🛑 盘口深度不足，大额交易被拒")
			return domain.BlockedPrefix + domain.ReasonLowLiquidity, book
		}
	}

	// 仓位计算
	plan, reason := e.sizer.Size(ev.Shares, ev.Price, ev.Side, ev.TokenID)
	if plan == nil {
		log.WithField("reason", reason).Debug("份额低于跟单阈值，跳过")
		return reason, book
	}

	intent := &OrderIntent{
		TokenID:   ev.TokenID,
		Side:      ev.Side,
		Size:      plan.Size,
		Price:     plan.Price,
		OrderType: plan.Discipline.OrderType(),
	}
	if plan.Discipline == sizing.Deadline {
		intent.Expiration = sizing.DeadlineAt(time.Now(), isLive).Unix()
	}

	trader := e.trader
	if e.cfg.MockTrading {
		trader = &MockTrader{}
	}

	result, err := trader.SignAndPost(ctx, intent)
	if err != nil {
		// 签名或提交失败不重试：鲸鱼的时机已经过去了
		log.WithError(err).Error("❌ 下单失败")
		return domain.StatusSignerErr, book
	}
	metrics.OrdersPosted.Add(1)

	if intent.OrderType == types.OrderTypeGTD {
		log.WithField("size", plan.Size).Info("✅ 限时单已挂出")
		return fmt.Sprintf("PLACED_GTD(%.4f)", plan.Size), e.snapshotBook(ctx, ev.TokenID, book)
	}

	filled := result.FilledSize
	if filled >= plan.Size {
		log.WithField("filled", filled).Info("✅ 跟单全额成交")
		return fmt.Sprintf("FILLED(%.4f)", filled), e.snapshotBook(ctx, ev.TokenID, book)
	}

	// 部分成交：残量转交重试链
	maxPrice := sizing.ClampPrice(ev.Price * 1.02)
	if ev.Side == types.SideSell {
		maxPrice = sizing.ClampPrice(ev.Price * 0.98)
	}
	e.resubmitter.Enqueue(&domain.ResubmitRequest{
		ChainID:          uuid.NewString(),
		TokenID:          ev.TokenID,
		Side:             ev.Side,
		OriginalSize:     plan.Size,
		RemainingSize:    plan.Size - filled,
		CumulativeFilled: filled,
		WhalePrice:       ev.Price,
		FailedPrice:      plan.Price,
		MaxPrice:         maxPrice,
		WhaleShares:      ev.Shares,
		Attempt:          1,
		IsLive:           isLive,
	})
	log.WithFields(logrus.Fields{
		"filled":    filled,
		"remaining": plan.Size - filled,
	}).Info("📝 部分成交，残量转交重试链")
	return domain.StatusPartialResubmit, e.snapshotBook(ctx, ev.TokenID, book)
}

// checkDepth 查询成交方向盘口前 N 档的美元深度。
// 查询失败按深度不足处理。
func (e *CopyEngine) checkDepth(ctx context.Context, ev *domain.FillEvent) (*types.OrderBookSummary, bool) {
	if e.books == nil {
		return nil, false
	}
	dctx, cancel := context.WithTimeout(ctx, e.cfg.DepthTimeout)
	defer cancel()

	book, err := e.books.FetchBook(dctx, ev.TokenID)
	if err != nil {
		engineLog.WithError(err).Warn("❌ 盘口查询失败，按深度不足处理")
		return nil, false
	}

	// 鲸鱼买入吃的是卖盘，卖出砸的是买盘
	bids, asks := client.TopLevels(book, e.cfg.DepthLevels)
	levels := asks
	if ev.Side == types.SideSell {
		levels = bids
	}
	return book, client.DepthUSD(levels) >= e.guard.Config().MinDepthUSD
}

// snapshotBook 下单后的审计盘口快照：已有深度检查的快照时直接沿用，
// 否则查询一次（干跑模式不查），查询失败返回 nil
func (e *CopyEngine) snapshotBook(ctx context.Context, tokenID string, existing *types.OrderBookSummary) *types.OrderBookSummary {
	if existing != nil || e.books == nil || e.cfg.MockTrading {
		return existing
	}
	sctx, cancel := context.WithTimeout(ctx, e.cfg.DepthTimeout)
	defer cancel()
	book, err := e.books.FetchBook(sctx, tokenID)
	if err != nil {
		return nil
	}
	return book
}

// audit 写一条审计记录，盘口快照缺失时相应列留空
func (e *CopyEngine) audit(ev *domain.FillEvent, isLive bool, status string, book *types.OrderBookSummary) {
	if e.writer == nil {
		return
	}
	row := audit.Row{
		Timestamp:   time.Now(),
		BlockNumber: ev.BlockNumber,
		TokenID:     ev.TokenID,
		USDValue:    ev.USDValue,
		Shares:      ev.Shares,
		Price:       ev.Price,
		Side:        ev.Side,
		Status:      status,
		TxHash:      ev.TxHash,
		IsLive:      isLive,
	}
	if book != nil {
		bids, asks := client.TopLevels(book, 1)
		if len(bids) > 0 {
			row.TopBidPrice, row.TopBidSize = bids[0].Price, bids[0].Size
		}
		if len(asks) > 0 {
			row.TopAskPrice, row.TopAskSize = asks[0].Price, asks[0].Size
		}
	}
	e.writer.Record(row)
}
