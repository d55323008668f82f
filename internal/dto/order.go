package dto

import "time"

// CreateOrderRequest is the gateway's order submission. Payment is the value
// attached to the call; it must equal Amount exactly or the creation is
// rejected before any state changes.
type CreateOrderRequest struct {
	Item    string  `json:"item"`
	DishIDs []int64 `json:"dishIds"`
	Qtys    []int64 `json:"qtys"`
	Amount  uint64  `json:"amount"`
	Payment uint64  `json:"payment"`
}

type CreateOrderResponse struct {
	TraceID   string    `json:"traceId"`
	OrderID   uint64    `json:"orderId"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderResponse struct {
	ID          uint64    `json:"id"`
	Customer    string    `json:"customer"`
	Merchant    string    `json:"merchant,omitempty"`
	Rider       string    `json:"rider,omitempty"`
	Item        string    `json:"item"`
	Amount      uint64    `json:"amount"`
	PlatformFee uint64    `json:"platformFee"`
	Accepted    bool      `json:"accepted"`
	Picked      bool      `json:"picked"`
	Fulfilled   bool      `json:"fulfilled"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type OrderListResponse struct {
	Count  uint64          `json:"count"`
	Orders []OrderResponse `json:"orders"`
}

type OrderItemsResponse struct {
	OrderID uint64  `json:"orderId"`
	DishIDs []int64 `json:"dishIds"`
	Qtys    []int64 `json:"qtys"`
}

type BalanceResponse struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

type CredentialResponse struct {
	TokenID  uint64    `json:"tokenId"`
	Owner    string    `json:"owner"`
	OrderID  uint64    `json:"orderId"`
	MintedAt time.Time `json:"mintedAt"`
}
