package domain

// 订单引擎与重试链的终态字符串。
// 所有错误最终收敛为短状态串，经回复通道返回并写入审计日志。
const (
	// StatusQueueErr 引擎队列已满，提交被立即拒绝
	StatusQueueErr = "QUEUE_ERR"

	// StatusWorkerTimeout 调用方等待回复超时（订单可能已经提交）
	StatusWorkerTimeout = "WORKER_TIMEOUT"

	// StatusSkippedDisabled 交易开关关闭，事件未入队
	StatusSkippedDisabled = "SKIPPED_DISABLED"

	// StatusSignerErr 签名或提交失败（本层不重试，鲸鱼时机已过）
	StatusSignerErr = "SIGNER_ERR"

	// StatusPartialResubmit 部分成交，残量已转交重试链
	StatusPartialResubmit = "PARTIAL(sent_resubmit)"

	// StatusBelowMin 鲸鱼份额低于最小跟单阈值
	StatusBelowMin = "BELOW_MIN"

	// StatusAbortPriceCeil 重试链因价格触顶放弃
	StatusAbortPriceCeil = "ABORT_PRICE_CEIL"

	// StatusExhausted 重试预算用尽：末次（GTD）重试提交失败，链关闭
	StatusExhausted = "EXHAUSTED"

	// StatusGTDSubmitted 末次重试已挂出限时单，链关闭
	StatusGTDSubmitted = "GTD_SUBMITTED"

	// BlockedPrefix 风控拒绝状态前缀，后接具体原因
	BlockedPrefix = "BLOCKED_"
)

// 风控拒绝原因
const (
	ReasonTripped      = "TRIPPED"       // 熔断冷却期内
	ReasonLowLiquidity = "LOW_LIQUIDITY" // 盘口深度不足
	ReasonTrip         = "TRIP"          // 本次触发熔断
)
