package domain

import (
	"github.com/betbot/gocopy/clob/types"
)

// ResubmitRequest 重试请求（订单引擎在部分成交时产生，重试器消费）
//
// 不变量：cumulative_filled + remaining_size <= original_size，
// 无新成交时取等号。
type ResubmitRequest struct {
	// ChainID 链标识，同一条重试链的所有尝试共享，用于日志关联（审计行不含此列）
	ChainID          string
	TokenID          string
	Side             types.Side
	OriginalSize     float64
	RemainingSize    float64
	CumulativeFilled float64
	WhalePrice       float64
	FailedPrice      float64
	MaxPrice         float64 // 链构造时固定，通常为 whale_price × 1.02
	WhaleShares      float64 // 用于档位判断
	Attempt          int     // 从 1 开始
	IsLive           bool
}
