/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package model

import (
	"errors"

	"github.com/shopspring/decimal"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func positiveAmount(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("invalid amount type")
	}
	if amount.Sign() <= 0 {
		return errors.New("must be greater than zero")
	}
	return nil
}

func (c *CreateCircle) ValidateCreateCircle() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.TotalAmount, validation.By(positiveAmount)),
		validation.Field(&c.ContributionAmount, validation.By(positiveAmount)),
		validation.Field(&c.DurationDays, validation.Required, validation.Min(1)),
		validation.Field(&c.InterestRate, validation.By(func(value interface{}) error {
			rate, ok := value.(decimal.Decimal)
			if !ok {
				return errors.New("invalid rate type")
			}
			if rate.Sign() < 0 {
				return errors.New("must not be negative")
			}
			return nil
		})),
	)
}

func (j *JoinCircle) ValidateJoinCircle() error {
	return validation.ValidateStruct(j,
		validation.Field(&j.Address, validation.Required),
	)
}

func (r *RecordContribution) ValidateRecordContribution() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Address, validation.Required),
	)
}

func (s *SubmitBorrowRequest) ValidateSubmitBorrowRequest() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.CircleID, validation.Required),
		validation.Field(&s.BorrowerAddress, validation.Required),
		validation.Field(&s.Amount, validation.By(positiveAmount)),
		validation.Field(&s.Reason, validation.Required),
		validation.Field(&s.DurationDays, validation.Required, validation.Min(1)),
	)
}

func (r *RejectBorrowRequest) ValidateRejectBorrowRequest() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason, validation.Required),
	)
}

func (r *RepayLoan) ValidateRepayLoan() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Amount, validation.By(positiveAmount)),
	)
}
