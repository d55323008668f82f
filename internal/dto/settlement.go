package dto

import "time"

// SettlementResult reports the outcome of a fulfilled order: the three-way
// split of the escrowed amount, the reward paid to the customer, and the id
// of the credential minted for the delivery.
type SettlementResult struct {
	OrderID        uint64 `json:"orderId"`
	PlatformFee    uint64 `json:"platformFee"`
	MerchantPayout uint64 `json:"merchantPayout"`
	RiderPayout    uint64 `json:"riderPayout"`
	RewardPaid     uint64 `json:"rewardPaid"`
	CredentialID   uint64 `json:"credentialId"`
}

type SettlementResponse struct {
	TraceID   string           `json:"traceId"`
	Result    SettlementResult `json:"result"`
	Timestamp time.Time        `json:"timestamp"`
}

type ErrorResponse struct {
	TraceID   string    `json:"traceId"`
	Status    int       `json:"status"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
