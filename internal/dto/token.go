package dto

type TransferRequest struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type TransferResponse struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}
