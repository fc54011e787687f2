package types

// MarketPrice 市场价格
type MarketPrice struct {
	Timestamp int64   `json:"t"`
	Price     float64 `json:"p"`
}

// OrderBookSummary 订单簿摘要
type OrderBookSummary struct {
	Market       string         `json:"market"`
	AssetID      string         `json:"asset_id"`
	Timestamp    string         `json:"timestamp"`
	Bids         []OrderSummary `json:"bids"`
	Asks         []OrderSummary `json:"asks"`
	MinOrderSize string         `json:"min_order_size"`
	TickSize     string         `json:"tick_size"`
	NegRisk      bool           `json:"neg_risk"`
	Hash         string         `json:"hash"`
}

// OrderSummary 订单摘要（单个价格档位）
type OrderSummary struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// TickSizes 价格精度缓存（按 tokenID）
type TickSizes map[string]TickSize

// NegRisk 负风险市场缓存（按 tokenID）
type NegRisk map[string]bool

// FeeRates 手续费率缓存（按 tokenID，基点）
type FeeRates map[string]int

// RoundConfig 舍入配置（价格/数量/金额的小数位数）
type RoundConfig struct {
	Price  int32
	Size   int32
	Amount int32
}
