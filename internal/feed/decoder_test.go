package feed

import (
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gocopy/clob/types"
)

const testWhale = "0xAbCd000000000000000000000000000000001234"

func word(n *big.Int) string {
	return fmt.Sprintf("%064x", n)
}

// frame 构造一帧 eth_subscription 推送
func frame(topics []string, data string) []byte {
	t := make([]string, len(topics))
	for i, s := range topics {
		t[i] = `"` + s + `"`
	}
	return []byte(fmt.Sprintf(`{
		"jsonrpc": "2.0",
		"method": "eth_subscription",
		"params": {
			"subscription": "0xsub1",
			"result": {
				"topics": [%s],
				"data": "%s",
				"blockNumber": "0x1a4",
				"transactionHash": "0xfeedbeef"
			}
		}
	}`, strings.Join(t, ","), data))
}

func fillData(makerAsset, takerAsset, makerAmount, takerAmount *big.Int) string {
	return "0x" + word(makerAsset) + word(takerAsset) + word(makerAmount) + word(takerAmount)
}

func whaleTopics() []string {
	return []string{OrderFilledTopic, "0x" + strings.Repeat("11", 32), WhaleTopic(testWhale)}
}

func TestDecodeBuy(t *testing.T) {
	d := NewDecoder(testWhale)

	tokenID := big.NewInt(987654321)
	// maker 槽位为零：鲸鱼用 520 USDC 买入 800 份
	data := fillData(
		big.NewInt(0), tokenID,
		big.NewInt(520_000000), big.NewInt(800_000000),
	)

	ev, ok := d.Decode(frame(whaleTopics(), data))
	require.True(t, ok)
	assert.Equal(t, types.SideBuy, ev.Side)
	assert.Equal(t, "987654321", ev.TokenID)
	assert.InDelta(t, 800.0, ev.Shares, 1e-9)
	assert.InDelta(t, 520.0, ev.USDValue, 1e-9)
	assert.InDelta(t, 0.65, ev.Price, 1e-9)
	assert.Equal(t, uint64(0x1a4), ev.BlockNumber)
	assert.Equal(t, "0xfeedbeef", ev.TxHash)
}

func TestDecodeSell(t *testing.T) {
	d := NewDecoder(testWhale)

	tokenID := big.NewInt(42)
	// taker 槽位为零：鲸鱼卖出 1000 份换回 300 USDC
	data := fillData(
		tokenID, big.NewInt(0),
		big.NewInt(1000_000000), big.NewInt(300_000000),
	)

	ev, ok := d.Decode(frame(whaleTopics(), data))
	require.True(t, ok)
	assert.Equal(t, types.SideSell, ev.Side)
	assert.Equal(t, "42", ev.TokenID)
	assert.InDelta(t, 1000.0, ev.Shares, 1e-9)
	assert.InDelta(t, 0.30, ev.Price, 1e-9)
}

func TestDecodeWhaleFilterCaseInsensitive(t *testing.T) {
	// 配置里地址带大写字母，推送的 topic 全为大写，匹配不区分大小写
	d := NewDecoder(testWhale)
	data := fillData(big.NewInt(0), big.NewInt(7), big.NewInt(1_000000), big.NewInt(2_000000))

	topics := []string{OrderFilledTopic, "0x" + strings.Repeat("11", 32),
		strings.ToUpper(WhaleTopic(testWhale)[2:])}
	topics[2] = "0x" + topics[2]

	_, ok := d.Decode(frame(topics, data))
	assert.True(t, ok)
}

func TestDecodeDropsOtherMaker(t *testing.T) {
	d := NewDecoder(testWhale)
	other := []string{OrderFilledTopic, "0x" + strings.Repeat("11", 32),
		WhaleTopic("0x9999000000000000000000000000000000009999")}
	data := fillData(big.NewInt(0), big.NewInt(7), big.NewInt(1_000000), big.NewInt(2_000000))

	_, ok := d.Decode(frame(other, data))
	assert.False(t, ok)
}

func TestDecodeDropsMalformed(t *testing.T) {
	d := NewDecoder(testWhale)

	cases := map[string][]byte{
		"非 JSON":     []byte("not json"),
		"缺少 topics":  frame([]string{OrderFilledTopic}, fillData(big.NewInt(0), big.NewInt(1), big.NewInt(1), big.NewInt(1))),
		"data 太短":    frame(whaleTopics(), "0x1234"),
		"无 0x 前缀":    frame(whaleTopics(), strings.Repeat("0", 260)),
		"两个资产都非零":    frame(whaleTopics(), fillData(big.NewInt(5), big.NewInt(7), big.NewInt(1_000000), big.NewInt(2_000000))),
		"两个资产都为零":    frame(whaleTopics(), fillData(big.NewInt(0), big.NewInt(0), big.NewInt(1_000000), big.NewInt(2_000000))),
		"份额为零":       frame(whaleTopics(), fillData(big.NewInt(0), big.NewInt(7), big.NewInt(1_000000), big.NewInt(0))),
		"其他订阅方法":     []byte(`{"method":"eth_other","params":{"result":{}}}`),
	}
	for name, f := range cases {
		if _, ok := d.Decode(f); ok {
			t.Errorf("%s: 应被丢弃", name)
		}
	}
}

func TestTokenInterning(t *testing.T) {
	d := NewDecoder(testWhale)
	tokenID := new(big.Int)
	tokenID.SetString("123456789012345678901234567890", 10)

	data := fillData(big.NewInt(0), tokenID, big.NewInt(10_000000), big.NewInt(20_000000))

	ev1, ok := d.Decode(frame(whaleTopics(), data))
	require.True(t, ok)
	ev2, ok := d.Decode(frame(whaleTopics(), data))
	require.True(t, ok)

	assert.Equal(t, "123456789012345678901234567890", ev1.TokenID)
	assert.Equal(t, ev1.TokenID, ev2.TokenID)
	// 重复出现的资产 ID 只做一次十进制转换
	assert.Equal(t, 1, d.Interner().Len())
}

func TestWhaleTopicPadding(t *testing.T) {
	topic := WhaleTopic(testWhale)
	assert.Equal(t, 66, len(topic))
	assert.True(t, strings.HasPrefix(topic, "0x"+strings.Repeat("0", 24)))
	assert.Equal(t, strings.ToLower(testWhale[2:]), topic[26:])
}
