package model

import "github.com/shopspring/decimal"

type SubmitBorrowRequest struct {
	CircleID        string          `json:"circle_id"`
	BorrowerAddress string          `json:"borrower_address"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
	DurationDays    int             `json:"duration_days"`
}

type RejectBorrowRequest struct {
	Reason string `json:"reason"`
}

type RepayLoan struct {
	Amount decimal.Decimal `json:"amount"`
}
