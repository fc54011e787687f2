package feed

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"strconv"
	"strings"

	"github.com/betbot/gocopy/clob/types"
	"github.com/betbot/gocopy/internal/domain"
)

// sharesScale 源数据为 6 位定点
var sharesScale = big.NewFloat(1e6)

// wsNotification eth_subscription 推送帧
type wsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result logEntry `json:"result"`
	} `json:"params"`
}

// logEntry 链上日志条目
type logEntry struct {
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TransactionHash string   `json:"transactionHash"`
}

// Decoder 把原始 WS 日志帧解码为鲸鱼成交事件。
//
// 解码器永不报错：任何不匹配或畸形输入都静默丢弃，
// 返回 (nil, false)。无状态（驻留池除外），可并发调用。
type Decoder struct {
	whaleTopic string
	interner   *TokenInterner
}

// NewDecoder 创建解码器，whaleAddress 为目标鲸鱼地址
func NewDecoder(whaleAddress string) *Decoder {
	return &Decoder{
		whaleTopic: WhaleTopic(whaleAddress),
		interner:   NewTokenInterner(),
	}
}

// Interner 返回解码器的 token 驻留池
func (d *Decoder) Interner() *TokenInterner {
	return d.interner
}

// Decode 解码一帧。不是目标鲸鱼的 maker 成交或数据畸形时返回 (nil, false)。
func (d *Decoder) Decode(frame []byte) (*domain.FillEvent, bool) {
	var notif wsNotification
	if err := json.Unmarshal(frame, &notif); err != nil {
		return nil, false
	}
	if notif.Method != "eth_subscription" {
		return nil, false
	}

	entry := notif.Params.Result
	if len(entry.Topics) < 3 {
		return nil, false
	}
	if !strings.EqualFold(entry.Topics[2], d.whaleTopic) {
		return nil, false
	}

	// data 布局：0x + 四个 64 字符字
	// [maker_asset_id][taker_asset_id][maker_amount][taker_amount]
	if !strings.HasPrefix(entry.Data, "0x") || len(entry.Data) < 258 {
		return nil, false
	}

	makerAsset, ok := hexWord32(entry.Data[2:66])
	if !ok {
		return nil, false
	}
	takerAsset, ok := hexWord32(entry.Data[66:130])
	if !ok {
		return nil, false
	}
	makerAmount, ok := hexWordInt(entry.Data[130:194])
	if !ok {
		return nil, false
	}
	takerAmount, ok := hexWordInt(entry.Data[194:258])
	if !ok {
		return nil, false
	}

	makerZero := isZero32(makerAsset)
	takerZero := isZero32(takerAsset)
	if makerZero == takerZero {
		// 两边都是 USDC 或都是 outcome token，不是我们要的成交形态
		return nil, false
	}

	var side types.Side
	var tokenRaw [32]byte
	var sharesRaw, usdRaw *big.Int
	if makerZero {
		// maker 付出 USDC，换入 outcome token：鲸鱼买入
		side = types.SideBuy
		tokenRaw = takerAsset
		sharesRaw = takerAmount
		usdRaw = makerAmount
	} else {
		// maker 付出 outcome token，换入 USDC：鲸鱼卖出
		side = types.SideSell
		tokenRaw = makerAsset
		sharesRaw = makerAmount
		usdRaw = takerAmount
	}

	shares := fixedToFloat(sharesRaw)
	if shares <= 0 {
		return nil, false
	}
	usd := fixedToFloat(usdRaw)

	blockNumber, _ := strconv.ParseUint(strings.TrimPrefix(entry.BlockNumber, "0x"), 16, 64)

	return &domain.FillEvent{
		BlockNumber: blockNumber,
		TxHash:      entry.TransactionHash,
		Side:        side,
		TokenID:     d.interner.Intern(tokenRaw),
		Shares:      shares,
		USDValue:    usd,
		Price:       usd / shares,
	}, true
}

func hexWord32(s string) ([32]byte, bool) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return out, false
	}
	copy(out[:], b)
	return out, true
}

func hexWordInt(s string) (*big.Int, bool) {
	n, ok := new(big.Int).SetString(s, 16)
	return n, ok
}

func isZero32(b [32]byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func fixedToFloat(n *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(n), sharesScale).Float64()
	return f
}
