package services

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gocopy/clob/types"
	"github.com/betbot/gocopy/internal/domain"
	"github.com/betbot/gocopy/internal/risk"
	"github.com/betbot/gocopy/internal/sizing"
)

// scriptedBooks 按脚本返回盘口或错误
type scriptedBooks struct {
	book *types.OrderBookSummary
	err  error
}

func (b *scriptedBooks) FetchBook(_ context.Context, _ string) (*types.OrderBookSummary, error) {
	return b.book, b.err
}

func deepBook() *types.OrderBookSummary {
	return &types.OrderBookSummary{
		Bids: []types.OrderSummary{{Price: "0.59", Size: "1000"}},
		Asks: []types.OrderSummary{{Price: "0.61", Size: "1000"}},
	}
}

func thinBook() *types.OrderBookSummary {
	return &types.OrderBookSummary{
		Bids: []types.OrderSummary{{Price: "0.59", Size: "10"}},
		Asks: []types.OrderSummary{{Price: "0.61", Size: "10"}},
	}
}

func whaleEvent(shares float64) *domain.FillEvent {
	return &domain.FillEvent{
		BlockNumber: 420,
		TxHash:      "0xfeed",
		Side:        types.SideBuy,
		TokenID:     "tok",
		Shares:      shares,
		USDValue:    shares * 0.60,
		Price:       0.60,
	}
}

func newTestEngine(trader Trader, books BookFetcher) (*CopyEngine, *Resubmitter) {
	cfg := DefaultCopyEngineConfig()
	cfg.EnableTrading = true
	cfg.MockTrading = false
	resub := NewResubmitter(DefaultResubmitterConfig(), trader, nil)
	engine := NewCopyEngine(cfg, risk.NewGuard(risk.DefaultGuardConfig()),
		sizing.NewSizer(sizing.DefaultConfig()), trader, books, resub, nil)
	return engine, resub
}

func TestSubmitDisabled(t *testing.T) {
	trader := &scriptedTrader{}
	engine, _ := newTestEngine(trader, nil)
	engine.cfg.EnableTrading = false

	status := engine.Submit(whaleEvent(300), false)
	assert.Equal(t, domain.StatusSkippedDisabled, status)
	assert.Empty(t, trader.intents)
}

func TestSubmitQueueFull(t *testing.T) {
	engine, _ := newTestEngine(&scriptedTrader{}, nil)
	engine.cfg.QueueSize = 1
	engine.queue = make(chan *workItem, 1)

	// 没有 worker 在跑：第一个占满队列，第二个被拒
	engine.queue <- &workItem{}
	status := engine.Submit(whaleEvent(300), false)
	assert.Equal(t, domain.StatusQueueErr, status)
}

func TestSubmitRoundTrip(t *testing.T) {
	trader := &scriptedTrader{fills: []float64{6}}
	engine, _ := newTestEngine(trader, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	status := engine.Submit(whaleEvent(300), false)
	assert.Equal(t, "FILLED(6.0000)", status)
}

func TestSubmitReplyTimeout(t *testing.T) {
	engine, _ := newTestEngine(&scriptedTrader{}, nil)
	engine.cfg.ReplyTimeout = 20 * time.Millisecond

	// worker 不消费：提交进队后只能等超时
	status := engine.Submit(whaleEvent(300), false)
	assert.Equal(t, domain.StatusWorkerTimeout, status)
}

func TestExecuteBelowMin(t *testing.T) {
	trader := &scriptedTrader{}
	engine, _ := newTestEngine(trader, nil)

	status, _ := engine.execute(context.Background(), whaleEvent(9), false)
	assert.Equal(t, domain.StatusBelowMin, status)
	assert.Empty(t, trader.intents)
}

func TestExecuteSmallTradeSkipsDepth(t *testing.T) {
	ev := whaleEvent(1999)
	// 1999 份落在 1000 档：本地 1999 × 0.02 × 1.0 = 39.98 份，脚本全额成交
	trader := &scriptedTrader{fills: []float64{ev.Shares * 0.02}}
	books := &scriptedBooks{err: errors.New("不该被调用")}
	engine, _ := newTestEngine(trader, books)

	// 1999 份低于大额阈值：即使盘口查询会失败也不影响
	status, _ := engine.execute(context.Background(), ev, false)
	assert.Equal(t, "FILLED(39.9800)", status)
}

func TestExecuteLargeTradeDeepBook(t *testing.T) {
	trader := &scriptedTrader{fills: []float64{125}}
	engine, _ := newTestEngine(trader, &scriptedBooks{book: deepBook()})

	status, book := engine.execute(context.Background(), whaleEvent(5000), false)
	assert.Equal(t, "FILLED(125.0000)", status)
	require.NotNil(t, book)
	require.Len(t, trader.intents, 1)
	// 5000 × 0.02 × 1.25
	assert.InDelta(t, 125.0, trader.intents[0].Size, 1e-9)
	assert.InDelta(t, 0.61, trader.intents[0].Price, 1e-9)
}

func TestExecuteLargeTradeThinBook(t *testing.T) {
	trader := &scriptedTrader{}
	engine, _ := newTestEngine(trader, &scriptedBooks{book: thinBook()})

	status, _ := engine.execute(context.Background(), whaleEvent(5000), false)
	assert.Equal(t, domain.BlockedPrefix+domain.ReasonLowLiquidity, status)
	assert.Empty(t, trader.intents)
}

func TestExecuteLargeTradeBookError(t *testing.T) {
	trader := &scriptedTrader{}
	engine, _ := newTestEngine(trader, &scriptedBooks{err: errors.New("超时")})

	// 盘口查询失败按深度不足处理
	status, _ := engine.execute(context.Background(), whaleEvent(5000), false)
	assert.Equal(t, domain.BlockedPrefix+domain.ReasonLowLiquidity, status)
	assert.Empty(t, trader.intents)
}

func TestExecuteSellChecksBidDepth(t *testing.T) {
	trader := &scriptedTrader{}
	book := &types.OrderBookSummary{
		Bids: []types.OrderSummary{{Price: "0.59", Size: "10"}},
		Asks: []types.OrderSummary{{Price: "0.61", Size: "1000"}},
	}
	engine, _ := newTestEngine(trader, &scriptedBooks{book: book})

	ev := whaleEvent(5000)
	ev.Side = types.SideSell
	status, _ := engine.execute(context.Background(), ev, false)
	assert.Equal(t, domain.BlockedPrefix+domain.ReasonLowLiquidity, status)
}

func TestExecuteTrippedBlocks(t *testing.T) {
	trader := &scriptedTrader{}
	engine, _ := newTestEngine(trader, &scriptedBooks{book: deepBook()})

	for i := 0; i < 4; i++ {
		engine.guard.Check("tok", 3000)
	}
	status, _ := engine.execute(context.Background(), whaleEvent(3000), false)
	assert.Equal(t, domain.BlockedPrefix+domain.ReasonTrip, status)
	assert.Empty(t, trader.intents)

	status, _ = engine.execute(context.Background(), whaleEvent(100), false)
	assert.Equal(t, domain.BlockedPrefix+domain.ReasonTripped, status)
}

func TestExecuteSignerError(t *testing.T) {
	trader := &scriptedTrader{errs: []error{errors.New("签名失败")}}
	engine, resub := newTestEngine(trader, nil)

	status, _ := engine.execute(context.Background(), whaleEvent(300), false)
	assert.Equal(t, domain.StatusSignerErr, status)
	// 首发失败不走重试链
	assert.Equal(t, 0, resub.QueueLen())
}

func TestExecutePartialFillEnqueuesResubmit(t *testing.T) {
	trader := &scriptedTrader{fills: []float64{10}}
	engine, resub := newTestEngine(trader, nil)

	// 1500 份 → 本地 30 份，仅成交 10
	status, _ := engine.execute(context.Background(), whaleEvent(1500), false)
	assert.Equal(t, domain.StatusPartialResubmit, status)

	require.Equal(t, 1, resub.QueueLen())
	req := resub.pop()
	assert.Equal(t, "tok", req.TokenID)
	assert.NotEmpty(t, req.ChainID)
	assert.Equal(t, 1, req.Attempt)
	assert.InDelta(t, 30.0, req.OriginalSize, 1e-9)
	assert.InDelta(t, 20.0, req.RemainingSize, 1e-9)
	assert.InDelta(t, 10.0, req.CumulativeFilled, 1e-9)
	assert.InDelta(t, 0.61, req.FailedPrice, 1e-9)
	assert.InDelta(t, 0.60, req.WhalePrice, 1e-9)
	assert.InDelta(t, 0.612, req.MaxPrice, 1e-9)
	assert.InDelta(t, 1500.0, req.WhaleShares, 1e-9)
}

func TestPartialFillChainPriceCeilingAbort(t *testing.T) {
	trader := &scriptedTrader{fills: []float64{50}}
	engine, resub := newTestEngine(trader, &scriptedBooks{book: deepBook()})

	var terminals []string
	resub.SetTerminalHook(func(_ *domain.ResubmitRequest, status string) {
		terminals = append(terminals, status)
	})

	// 5000 份 @ 0.60：首发 0.61，部分成交后残量入链
	status, _ := engine.execute(context.Background(), whaleEvent(5000), false)
	assert.Equal(t, domain.StatusPartialResubmit, status)

	req := resub.pop()
	require.NotNil(t, req)
	assert.InDelta(t, 0.61, req.FailedPrice, 1e-9)
	assert.InDelta(t, 0.612, req.MaxPrice, 1e-9)

	// 大额链首次重试让价到 0.62，越过 0.60 × 1.02 的上限：
	// 链在首次重试就放弃，不再提交
	assert.InDelta(t, 0.62, resub.CandidatePrice(req), 1e-9)
	resub.process(context.Background(), req)

	require.Len(t, trader.intents, 1)
	require.Len(t, terminals, 1)
	assert.Equal(t, domain.StatusAbortPriceCeil, terminals[0])
}

func TestExecuteSellMaxPriceIsFloor(t *testing.T) {
	trader := &scriptedTrader{fills: []float64{10}}
	engine, resub := newTestEngine(trader, nil)

	ev := whaleEvent(1500)
	ev.Side = types.SideSell
	status, _ := engine.execute(context.Background(), ev, false)
	assert.Equal(t, domain.StatusPartialResubmit, status)

	req := resub.pop()
	require.NotNil(t, req)
	assert.InDelta(t, 0.588, req.MaxPrice, 1e-9)
}

func TestExecuteMockModeSynthesizesFill(t *testing.T) {
	real := &scriptedTrader{}
	engine, resub := newTestEngine(real, nil)
	engine.cfg.MockTrading = true

	status, _ := engine.execute(context.Background(), whaleEvent(300), false)
	assert.Equal(t, "FILLED(6.0000)", status)
	// 干跑不碰真实下单器，也不产生残量
	assert.Empty(t, real.intents)
	assert.Equal(t, 0, resub.QueueLen())
}
