package domain

import "time"

// Credential is a non-fungible proof of a completed delivery, minted once per
// fulfilled order. The id/owner pair is immutable after minting.
type Credential struct {
	ID       uint64
	Owner    Address
	OrderID  uint64
	MintedAt time.Time
}
