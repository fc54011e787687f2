package feed

import "strings"

// Polygon 主网交易所合约与事件签名
const (
	// CTFExchangeAddress CTF 交易所合约地址
	CTFExchangeAddress = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"

	// NegRiskCTFExchangeAddress NegRisk CTF 交易所合约地址
	NegRiskCTFExchangeAddress = "0xC5d563A36AE78145C45a50134d48A1215220f80a"

	// OrderFilledTopic OrderFilled 事件签名哈希
	OrderFilledTopic = "0xd0a08e8c493f9c94f29311604c9de1b4e8c8d4c06bd0c789af57f2d65bfec0f6"
)

// WhaleTopic 把 20 字节地址左填充为 32 字节 topic（小写）
func WhaleTopic(address string) string {
	addr := strings.ToLower(strings.TrimPrefix(address, "0x"))
	return "0x" + strings.Repeat("0", 24) + addr
}
