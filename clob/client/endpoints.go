package client

// API 端点常量
const (
	// Server Time
	EndpointTime = "/time"

	// API Key endpoints
	EndpointCreateAPIKey = "/auth/api-key"
	EndpointDeriveAPIKey = "/auth/derive-api-key"

	// Markets
	EndpointGetOrderBook      = "/book"
	EndpointGetMidpoint       = "/midpoint"
	EndpointGetPrice          = "/price"
	EndpointGetTickSize       = "/tick-size"
	EndpointGetNegRisk        = "/neg-risk"
	EndpointGetLastTradePrice = "/last-trade-price"

	// Order endpoints
	EndpointPostOrder     = "/order"
	EndpointCancelOrder   = "/order"
	EndpointGetOrder      = "/data/order/"
	EndpointGetOpenOrders = "/data/orders"
)
