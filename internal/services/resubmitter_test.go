package services

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gocopy/clob/types"
	"github.com/betbot/gocopy/internal/domain"
)

// scriptedTrader 按脚本返回执行结果，记录所有下单意图
type scriptedTrader struct {
	intents []*OrderIntent
	fills   []float64
	errs    []error
}

func (t *scriptedTrader) SignAndPost(_ context.Context, intent *OrderIntent) (*ExecutionResult, error) {
	i := len(t.intents)
	t.intents = append(t.intents, intent)
	if i < len(t.errs) && t.errs[i] != nil {
		return nil, t.errs[i]
	}
	fill := 0.0
	if i < len(t.fills) {
		fill = t.fills[i]
	}
	return &ExecutionResult{Success: true, FilledSize: fill, OrderID: "ord"}, nil
}

func newTestResubmitter(trader Trader) (*Resubmitter, *[]string) {
	r := NewResubmitter(DefaultResubmitterConfig(), trader, nil)
	var terminals []string
	r.SetTerminalHook(func(_ *domain.ResubmitRequest, status string) {
		terminals = append(terminals, status)
	})
	return r, &terminals
}

func largeRequest() *domain.ResubmitRequest {
	return &domain.ResubmitRequest{
		TokenID:       "tok",
		Side:          types.SideBuy,
		OriginalSize:  125,
		RemainingSize: 100,
		CumulativeFilled: 25,
		WhalePrice:    0.60,
		FailedPrice:   0.61,
		MaxPrice:      0.612, // 0.60 × 1.02
		WhaleShares:   5000,
		Attempt:       1,
		IsLive:        false,
	}
}

func TestMaxAttempts(t *testing.T) {
	r, _ := newTestResubmitter(&scriptedTrader{})
	assert.Equal(t, 5, r.MaxAttempts(4000))
	assert.Equal(t, 5, r.MaxAttempts(9000))
	assert.Equal(t, 4, r.MaxAttempts(3999))
	assert.Equal(t, 4, r.MaxAttempts(100))
}

func TestCandidatePriceIncrement(t *testing.T) {
	r, _ := newTestResubmitter(&scriptedTrader{})

	// 大额链首次重试让价一分
	req := largeRequest()
	assert.InDelta(t, 0.62, r.CandidatePrice(req), 1e-9)

	// 后续重试沿用失败价
	req.Attempt = 2
	assert.InDelta(t, 0.61, r.CandidatePrice(req), 1e-9)

	// 普通链从不让价
	req = largeRequest()
	req.WhaleShares = 1500
	assert.InDelta(t, 0.61, r.CandidatePrice(req), 1e-9)

	// 卖方向反向让价
	req = largeRequest()
	req.Side = types.SideSell
	assert.InDelta(t, 0.60, r.CandidatePrice(req), 1e-9)
}

func TestCandidatePriceClamped(t *testing.T) {
	r, _ := newTestResubmitter(&scriptedTrader{})

	req := largeRequest()
	req.FailedPrice = 0.985
	assert.Equal(t, 0.99, r.CandidatePrice(req))
}

func TestCeilingAbort(t *testing.T) {
	trader := &scriptedTrader{}
	r, terminals := newTestResubmitter(trader)

	// 候选 0.62 超过上限 0.612，且非末次尝试：放弃
	req := largeRequest()
	r.process(context.Background(), req)

	assert.Empty(t, trader.intents)
	require.Len(t, *terminals, 1)
	assert.Equal(t, domain.StatusAbortPriceCeil, (*terminals)[0])
}

func TestSellFloorAbort(t *testing.T) {
	trader := &scriptedTrader{}
	r, terminals := newTestResubmitter(trader)

	req := largeRequest()
	req.Side = types.SideSell
	req.FailedPrice = 0.585
	req.MaxPrice = 0.588 // 0.60 × 0.98
	r.process(context.Background(), req)

	assert.Empty(t, trader.intents)
	require.Len(t, *terminals, 1)
	assert.Equal(t, domain.StatusAbortPriceCeil, (*terminals)[0])
}

func TestFullFillTerminates(t *testing.T) {
	trader := &scriptedTrader{fills: []float64{100}}
	r, terminals := newTestResubmitter(trader)

	req := largeRequest()
	req.MaxPrice = 0.70
	r.process(context.Background(), req)

	require.Len(t, trader.intents, 1)
	assert.Equal(t, types.OrderTypeFAK, trader.intents[0].OrderType)
	assert.InDelta(t, 0.62, trader.intents[0].Price, 1e-9)
	assert.InDelta(t, 100.0, trader.intents[0].Size, 1e-9)

	require.Len(t, *terminals, 1)
	assert.Contains(t, (*terminals)[0], "FILLED")
	assert.Equal(t, 0, r.QueueLen())
}

func TestPartialFillAdvancesChain(t *testing.T) {
	trader := &scriptedTrader{fills: []float64{40}}
	r, _ := newTestResubmitter(trader)

	req := largeRequest()
	req.MaxPrice = 0.70
	r.process(context.Background(), req)

	require.Equal(t, 1, r.QueueLen())
	next := r.pop()
	assert.Equal(t, 2, next.Attempt)
	assert.InDelta(t, 0.62, next.FailedPrice, 1e-9)
	assert.InDelta(t, 65.0, next.CumulativeFilled, 1e-9)
	assert.InDelta(t, 60.0, next.RemainingSize, 1e-9)
	// 成交守恒：累计 + 残量 = 原始
	assert.InDelta(t, next.OriginalSize, next.CumulativeFilled+next.RemainingSize, 1e-9)
}

func TestSubmitErrorAdvancesWithoutFill(t *testing.T) {
	trader := &scriptedTrader{errs: []error{errors.New("网络抖动")}}
	r, _ := newTestResubmitter(trader)

	req := largeRequest()
	req.MaxPrice = 0.70
	r.process(context.Background(), req)

	require.Equal(t, 1, r.QueueLen())
	next := r.pop()
	assert.Equal(t, 2, next.Attempt)
	assert.InDelta(t, 25.0, next.CumulativeFilled, 1e-9)
	assert.InDelta(t, 100.0, next.RemainingSize, 1e-9)
}

func TestLastAttemptSubmitsGTD(t *testing.T) {
	trader := &scriptedTrader{fills: []float64{0}}
	r, terminals := newTestResubmitter(trader)

	req := largeRequest()
	req.MaxPrice = 0.70
	req.Attempt = 5
	r.process(context.Background(), req)

	require.Len(t, trader.intents, 1)
	assert.Equal(t, types.OrderTypeGTD, trader.intents[0].OrderType)
	assert.NotZero(t, trader.intents[0].Expiration)

	require.Len(t, *terminals, 1)
	assert.Equal(t, domain.StatusGTDSubmitted, (*terminals)[0])
	assert.Equal(t, 0, r.QueueLen())
}

func TestLastAttemptErrorExhausts(t *testing.T) {
	trader := &scriptedTrader{errs: []error{errors.New("签名失败")}}
	r, terminals := newTestResubmitter(trader)

	req := largeRequest()
	req.MaxPrice = 0.70
	req.Attempt = 5
	r.process(context.Background(), req)

	require.Len(t, *terminals, 1)
	assert.Equal(t, domain.StatusExhausted, (*terminals)[0])
}

func TestLastAttemptIgnoresCeiling(t *testing.T) {
	trader := &scriptedTrader{fills: []float64{0}}
	r, terminals := newTestResubmitter(trader)

	// 末次尝试即使候选超上限也提交（反正是 GTD 最后一搏）
	req := largeRequest()
	req.Attempt = 5
	req.FailedPrice = 0.65
	r.process(context.Background(), req)

	require.Len(t, trader.intents, 1)
	require.Len(t, *terminals, 1)
	assert.Equal(t, domain.StatusGTDSubmitted, (*terminals)[0])
}

func TestChainBudgetBound(t *testing.T) {
	// 每次都只成交一点点：链最多走 max_attempts 次提交
	trader := &scriptedTrader{fills: []float64{1, 1, 1, 1, 0}}
	r, terminals := newTestResubmitter(trader)

	req := largeRequest()
	req.MaxPrice = 0.70
	r.process(context.Background(), req)
	for r.QueueLen() > 0 {
		r.process(context.Background(), r.pop())
	}

	assert.LessOrEqual(t, len(trader.intents), 5)
	require.Len(t, *terminals, 1)
	assert.Equal(t, domain.StatusGTDSubmitted, (*terminals)[0])
}
