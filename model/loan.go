package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
	RequestStatusRepaid   = "repaid"

	// Disbursing and settling are transient claim states held while a
	// ledger payment is in flight. Exactly one writer can move a request
	// into a claim state, so the payment runs at most once.
	RequestStatusDisbursing = "disbursing"
	RequestStatusSettling   = "settling"
)

type BorrowRequest struct {
	ID              int64           `json:"-"`
	RequestID       string          `json:"request_id"`
	CircleID        string          `json:"circle_id"`
	BorrowerAddress string          `json:"borrower_address"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
	DurationDays    int             `json:"duration_days"`
	Status          string          `json:"status"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	RequestedAt     time.Time       `json:"requested_at"`
	ApprovedAt      time.Time       `json:"approved_at,omitempty"`
	RepaidAt        time.Time       `json:"repaid_at,omitempty"`
}

// Terminal reports whether the request can take no further transition.
func (r *BorrowRequest) Terminal() bool {
	return r.Status == RequestStatusRejected || r.Status == RequestStatusRepaid
}

// AccruedInterest computes the simple interest owed on the request for its
// full duration at the given annual rate.
func (r *BorrowRequest) AccruedInterest(annualRatePct decimal.Decimal) decimal.Decimal {
	return SimpleInterest(r.Amount, annualRatePct, r.DurationDays)
}
