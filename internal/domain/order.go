package domain

import "time"

// Order is a permanent ledger entry. IDs are assigned sequentially starting
// at zero and are never reused; merchant and rider are write-once, set at the
// transition that requires them. Amount is fixed at creation.
type Order struct {
	ID          uint64
	Customer    Address
	Merchant    Address
	Rider       Address
	Item        string
	Amount      uint64
	PlatformFee uint64
	Accepted    bool
	Picked      bool
	Fulfilled   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	OrderStatusCreated   = "CREATED"
	OrderStatusAccepted  = "ACCEPTED"
	OrderStatusPicked    = "PICKED"
	OrderStatusFulfilled = "FULFILLED"
)

// Status collapses the three progress flags into the canonical four-stage
// lifecycle. The flags form a total order: fulfilled implies picked implies
// accepted.
func (o Order) Status() string {
	switch {
	case o.Fulfilled:
		return OrderStatusFulfilled
	case o.Picked:
		return OrderStatusPicked
	case o.Accepted:
		return OrderStatusAccepted
	default:
		return OrderStatusCreated
	}
}

func (o Order) CanAccept() bool {
	return !o.Accepted
}

func (o Order) CanPick() bool {
	return o.Accepted && !o.Picked
}

func (o Order) CanFulfill() bool {
	return o.Picked && !o.Fulfilled
}
