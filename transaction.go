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

package esusu

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/blnkfinance/esusu/internal/notification"
	"github.com/blnkfinance/esusu/model"
)

// RepaymentQuote previews what settling a loan will cost. SimpleInterest is
// the binding figure; CompoundInterest is a display-only estimate.
type RepaymentQuote struct {
	RequestID        string          `json:"request_id"`
	Principal        decimal.Decimal `json:"principal"`
	SimpleInterest   decimal.Decimal `json:"simple_interest"`
	CompoundInterest decimal.Decimal `json:"compound_interest"`
	TotalRepayment   decimal.Decimal `json:"total_repayment"`
}

func (l *Esusu) postTransactionActions(_ context.Context, txn *model.Transaction) {
	go func() {
		err := l.queue.queueWebhook(NewWebhook{
			Event:   EventTransactionApplied,
			Payload: txn,
		})
		if err != nil {
			notification.NotifyError(err)
		}
	}()
}

func (l *Esusu) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	return l.datasource.GetTransaction(ctx, id)
}

func (l *Esusu) GetCircleTransactions(ctx context.Context, circleID string) ([]model.Transaction, error) {
	return l.datasource.GetCircleTransactions(ctx, circleID)
}

func (l *Esusu) GetAddressTransactions(ctx context.Context, address string) ([]model.Transaction, error) {
	return l.datasource.GetAddressTransactions(ctx, address)
}

// GetRepaymentQuote computes the amount owed on a borrow request at its full
// duration, using the circle's interest rate.
func (l *Esusu) GetRepaymentQuote(ctx context.Context, requestID string) (*RepaymentQuote, error) {
	request, err := l.datasource.GetBorrowRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	circle, err := l.datasource.GetCircleByID(ctx, request.CircleID)
	if err != nil {
		return nil, err
	}

	interest := model.SimpleInterest(request.Amount, circle.InterestRate, request.DurationDays)
	return &RepaymentQuote{
		RequestID:        request.RequestID,
		Principal:        request.Amount,
		SimpleInterest:   interest,
		CompoundInterest: model.CompoundInterest(request.Amount, circle.InterestRate, request.DurationDays),
		TotalRepayment:   model.TotalRepayment(request.Amount, interest),
	}, nil
}
