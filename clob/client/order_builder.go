package client

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	orderbuilder "github.com/polymarket/go-order-utils/pkg/builder"
	ordermodel "github.com/polymarket/go-order-utils/pkg/model"
	"github.com/shopspring/decimal"

	"github.com/betbot/gocopy/clob/signing"
	"github.com/betbot/gocopy/clob/types"
)

// ZeroAddress 公开订单的 taker 地址
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// CollateralTokenDecimals USDC 链上精度
const CollateralTokenDecimals = 6

// RoundingConfig 根据 tick size 返回舍入配置
var RoundingConfig = map[types.TickSize]types.RoundConfig{
	types.TickSize01: {
		Price:  1,
		Size:   2,
		Amount: 3,
	},
	types.TickSize001: {
		Price:  2,
		Size:   2,
		Amount: 4,
	},
	types.TickSize0001: {
		Price:  3,
		Size:   2,
		Amount: 5,
	},
	types.TickSize00001: {
		Price:  4,
		Size:   2,
		Amount: 6,
	},
}

// OrderBuilder 订单构建器
type OrderBuilder struct {
	client        *Client
	signatureType types.SignatureType
	funderAddress string
	saltGen       func() int64
}

// NewOrderBuilder 创建新的订单构建器
func NewOrderBuilder(client *Client, signatureType types.SignatureType, funderAddress string) *OrderBuilder {
	return &OrderBuilder{
		client:        client,
		signatureType: signatureType,
		funderAddress: funderAddress,
		saltGen: func() int64 {
			return time.Now().UnixNano()
		},
	}
}

// BuildOrder 构建并签名订单
func (ob *OrderBuilder) BuildOrder(userOrder *types.UserOrder, options *types.CreateOrderOptions) (*types.SignedOrder, error) {
	roundConfig, ok := RoundingConfig[options.TickSize]
	if !ok {
		return nil, fmt.Errorf("不支持的 tick size: %s", options.TickSize)
	}

	if err := ob.client.CanL1Auth(); err != nil {
		return nil, err
	}
	signerAddress := signing.GetAddressFromPrivateKey(ob.client.authConfig.PrivateKey)

	// 确定 maker 地址（代理钱包模式下用 funder，否则用 signer）
	maker := signerAddress.Hex()
	if ob.funderAddress != "" {
		maker = ob.funderAddress
	}

	rawMakerAmt, rawTakerAmt := orderRawAmounts(userOrder.Side, userOrder.Size, userOrder.Price, roundConfig)

	makerAmount := parseUnits(rawMakerAmt, CollateralTokenDecimals)
	takerAmount := parseUnits(rawTakerAmt, CollateralTokenDecimals)

	taker := ZeroAddress
	if userOrder.Taker != nil && *userOrder.Taker != "" {
		taker = *userOrder.Taker
	}

	feeRateBps := 0
	if userOrder.FeeRateBps != nil {
		feeRateBps = *userOrder.FeeRateBps
	}

	nonce := 0
	if userOrder.Nonce != nil {
		nonce = *userOrder.Nonce
	}

	expiration := int64(0)
	if userOrder.Expiration != nil {
		expiration = *userOrder.Expiration
	}

	side := ordermodel.BUY
	if userOrder.Side == types.SideSell {
		side = ordermodel.SELL
	}

	contract := ordermodel.CTFExchange
	if options.NegRisk != nil && *options.NegRisk {
		contract = ordermodel.NegRiskCTFExchange
	}

	orderData := &ordermodel.OrderData{
		Maker:         maker,
		Taker:         taker,
		TokenId:       userOrder.TokenID,
		MakerAmount:   makerAmount.String(),
		TakerAmount:   takerAmount.String(),
		FeeRateBps:    strconv.Itoa(feeRateBps),
		Nonce:         strconv.Itoa(nonce),
		Signer:        signerAddress.Hex(),
		Expiration:    strconv.FormatInt(expiration, 10),
		Side:          side,
		SignatureType: ordermodel.SignatureType(ob.signatureType),
	}

	builder := orderbuilder.NewExchangeOrderBuilderImpl(
		big.NewInt(int64(ob.client.GetChainID())),
		ob.saltGen,
	)
	signed, err := builder.BuildSignedOrder(ob.client.authConfig.PrivateKey, orderData, contract)
	if err != nil {
		return nil, fmt.Errorf("签名订单失败: %w", err)
	}

	return &types.SignedOrder{
		Salt:          signed.Salt.Int64(),
		Maker:         signed.Maker.Hex(),
		Signer:        signed.Signer.Hex(),
		Taker:         signed.Taker.Hex(),
		TokenID:       signed.TokenId.String(),
		MakerAmount:   signed.MakerAmount.String(),
		TakerAmount:   signed.TakerAmount.String(),
		Expiration:    signed.Expiration.String(),
		Nonce:         signed.Nonce.String(),
		FeeRateBps:    signed.FeeRateBps.String(),
		Side:          userOrder.Side,
		SignatureType: int(ob.signatureType),
		Signature:     "0x" + fmt.Sprintf("%x", signed.Signature),
	}, nil
}

// orderRawAmounts 计算订单的 maker/taker 原始金额
//
// ⚠️ 卖出订单的精度要求与买入不同：
//   - maker amount (tokens): 最多 2 位小数
//   - taker amount (USDC): 最多 4 位小数
func orderRawAmounts(side types.Side, size, price float64, rc types.RoundConfig) (rawMakerAmt, rawTakerAmt decimal.Decimal) {
	rawPrice := decimal.NewFromFloat(price).Round(rc.Price)

	if side == types.SideBuy {
		// 买入：taker 获得 tokens，maker 支付 USDC
		rawTakerAmt = decimal.NewFromFloat(size).RoundDown(rc.Size)
		rawMakerAmt = rawTakerAmt.Mul(rawPrice).RoundUp(rc.Amount + 4).RoundDown(rc.Amount)
		return rawMakerAmt, rawTakerAmt
	}

	// 卖出：maker 提供 tokens，taker 支付 USDC
	rawMakerAmt = decimal.NewFromFloat(size).RoundDown(rc.Size).RoundDown(2)
	rawTakerAmt = rawMakerAmt.Mul(rawPrice).RoundDown(4)
	return rawMakerAmt, rawTakerAmt
}

// parseUnits 将金额转换为链上单位（类似 ethers.js 的 parseUnits）
func parseUnits(value decimal.Decimal, decimals int32) *big.Int {
	return value.Shift(decimals).Truncate(0).BigInt()
}
