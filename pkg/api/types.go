package api

// REST and WebSocket wire types. Amounts travel as decimal strings so
// arbitrary-precision values survive JSON number handling in clients.

type OrderInfo struct {
	ID              uint64 `json:"id"`
	Maker           string `json:"maker"`
	MakeAsset       string `json:"makeAsset"`
	TakeAsset       string `json:"takeAsset"`
	MakeAmount      string `json:"makeAmount"`
	TakeAmount      string `json:"takeAmount"`
	RemainingAmount string `json:"remainingAmount"`
	EndDate         int64  `json:"endDate"`
	CreatedAt       int64  `json:"createdAt"`
	Status          string `json:"status"`
}

type OpenOrderRequest struct {
	Maker      string `json:"maker"`
	MakeAsset  string `json:"makeAsset"`
	TakeAsset  string `json:"takeAsset"`
	MakeAmount string `json:"makeAmount"`
	TakeAmount string `json:"takeAmount"`
	EndDate    int64  `json:"endDate"` // unix milliseconds
}

type OpenOrderResponse struct {
	ID uint64 `json:"id"`
}

type TakeOrderRequest struct {
	Taker  string `json:"taker"`
	Amount string `json:"amount"`
}

type TakeOrderResponse struct {
	ID     uint64 `json:"id"`
	Filled string `json:"filled"`
}

type CancelOrderRequest struct {
	Caller string `json:"caller"`
}

type CancelOrderResponse struct {
	ID       uint64 `json:"id"`
	Refunded string `json:"refunded"`
}

type NextIDResponse struct {
	NextID uint64 `json:"nextId"`
}

type RemainingResponse struct {
	ID        uint64 `json:"id"`
	Remaining string `json:"remaining"`
}

type BalanceInfo struct {
	Asset     string `json:"asset"`
	Owner     string `json:"owner"`
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"` // allowance granted to the engine
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest is the client -> server subscription control message.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// WSEvent is the server -> client event envelope.
type WSEvent struct {
	Type string      `json:"type"` // "order_opened", "order_filled", "order_cancelled"
	Data interface{} `json:"data"`
}
