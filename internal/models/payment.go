package models

import "time"

// Payment is a settlement batch grouping one or more same-payee approved
// claims paid together on one date. Amount always equals the sum of the
// linked claims' amounts.
type Payment struct {
	ID          int64     `json:"id"`
	Payee       string    `json:"payee"`
	Amount      int64     `json:"amount"`
	PaymentDate time.Time `json:"payment_date"`
	ClaimIDs    []int64   `json:"claim_ids"`
	CreatedAt   time.Time `json:"created_at"`
}
