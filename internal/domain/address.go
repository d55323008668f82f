package domain

// Address is the opaque caller principal bound to every transaction by the
// authentication layer. The ledger only ever compares addresses for equality.
type Address string

const ZeroAddress Address = ""

func (a Address) IsZero() bool {
	return a == ZeroAddress
}
