package domain

import "time"

const (
	EventOrderCreated   = "order.created"
	EventOrderAccepted  = "order.accepted"
	EventOrderPicked    = "order.picked"
	EventOrderFulfilled = "order.fulfilled"
)

// OrderEvent is published after a lifecycle transition commits. Publishing is
// best-effort; consumers must tolerate gaps and rely on the ledger getters as
// the source of truth.
type OrderEvent struct {
	Type        string    `json:"type"`
	OrderID     uint64    `json:"orderId"`
	Actor       Address   `json:"actor"`
	Amount      uint64    `json:"amount,omitempty"`
	PlatformFee uint64    `json:"platformFee,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
