package model

import (
	"github.com/shopspring/decimal"

	"github.com/blnkfinance/esusu/model"
)

type CreateCircle struct {
	Name               string                 `json:"name"`
	Description        string                 `json:"description"`
	TotalAmount        decimal.Decimal        `json:"total_amount"`
	ContributionAmount decimal.Decimal        `json:"contribution_amount"`
	DurationDays       int                    `json:"duration_days"`
	InterestRate       decimal.Decimal        `json:"interest_rate"`
	MetaData           map[string]interface{} `json:"meta_data"`
}

type JoinCircle struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

type RecordContribution struct {
	Address string `json:"address"`
}

func (c *CreateCircle) ToCircle() model.Circle {
	return model.Circle{
		Name:               c.Name,
		Description:        c.Description,
		TotalAmount:        c.TotalAmount,
		ContributionAmount: c.ContributionAmount,
		DurationDays:       c.DurationDays,
		InterestRate:       c.InterestRate,
		MetaData:           c.MetaData,
	}
}
