package domain

import (
	"github.com/betbot/gocopy/clob/types"
)

// FillEvent 鲸鱼成交事件（由事件解码器产生，订单引擎消费一次后丢弃）
type FillEvent struct {
	// BlockNumber 链上区块号
	BlockNumber uint64

	// TxHash 交易哈希（0x 前缀十六进制）
	TxHash string

	// Side 鲸鱼的方向：哪个 asset id 槽位为零决定买卖
	Side types.Side

	// TokenID 非零资产 ID 的十进制字符串（驻留池共享引用）
	TokenID string

	// Shares 鲸鱼成交的份额数（源数据为 6 位定点）
	Shares float64

	// USDValue 成交名义金额（美元）
	USDValue float64

	// Price 成交单价 = USDValue / Shares，范围 [0.01, 0.99]
	Price float64
}
