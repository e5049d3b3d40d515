package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CircleStatusPending   = "pending"
	CircleStatusActive    = "active"
	CircleStatusCompleted = "completed"
)

type Circle struct {
	ID                 int64                  `json:"-"`
	CircleID           string                 `json:"circle_id"`
	Name               string                 `json:"name"`
	Description        string                 `json:"description"`
	TotalAmount        decimal.Decimal        `json:"total_amount"`
	ContributionAmount decimal.Decimal        `json:"contribution_amount"`
	DurationDays       int                    `json:"duration_days"`
	InterestRate       decimal.Decimal        `json:"interest_rate"`
	Status             string                 `json:"status"`
	Members            []Member               `json:"members,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	MetaData           map[string]interface{} `json:"meta_data,omitempty"`
}

type Member struct {
	ID                int64           `json:"-"`
	CircleID          string          `json:"circle_id"`
	Address           string          `json:"address"`
	Name              string          `json:"name,omitempty"`
	ContributionsMade int             `json:"contributions_made"`
	TotalContributed  decimal.Decimal `json:"total_contributed"`
	HasActiveLoan     bool            `json:"has_active_loan"`
	JoinedAt          time.Time       `json:"joined_at"`
}

type CircleFilter struct {
	Status  string    `json:"status"`
	Address string    `json:"address"`
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
}

// Joinable reports whether new members may still enter the circle.
// Completed circles are closed to new membership.
func (c *Circle) Joinable() bool {
	return c.Status == CircleStatusPending || c.Status == CircleStatusActive
}

// GetMember returns the member record for the given ledger address, or nil.
func (c *Circle) GetMember(address string) *Member {
	for i := range c.Members {
		if c.Members[i].Address == address {
			return &c.Members[i]
		}
	}
	return nil
}

// TotalContributions sums every member's cumulative contributions.
func (c *Circle) TotalContributions() decimal.Decimal {
	total := decimal.Zero
	for i := range c.Members {
		total = total.Add(c.Members[i].TotalContributed)
	}
	return total
}

// ShouldActivate reports whether a pending circle has met its funding
// threshold: total contributions have reached activationRatio of the pool.
func (c *Circle) ShouldActivate(activationRatio decimal.Decimal) bool {
	if c.Status != CircleStatusPending {
		return false
	}
	if c.TotalAmount.IsZero() {
		return false
	}
	threshold := c.TotalAmount.Mul(activationRatio)
	return c.TotalContributions().GreaterThanOrEqual(threshold)
}

// MatureAt returns the moment the circle's duration elapses.
func (c *Circle) MatureAt() time.Time {
	return c.CreatedAt.AddDate(0, 0, c.DurationDays)
}

// RecordContribution applies a contribution to the member record.
// Contribution count and cumulative amount only ever increase.
func (m *Member) RecordContribution(amount decimal.Decimal) {
	m.ContributionsMade++
	m.TotalContributed = m.TotalContributed.Add(amount)
}
