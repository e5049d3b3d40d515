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
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/blnkfinance/esusu/config"
	"github.com/blnkfinance/esusu/gateway"
	"github.com/blnkfinance/esusu/internal/apierror"
	"github.com/blnkfinance/esusu/internal/notification"
	"github.com/blnkfinance/esusu/model"
)

var loanTracer = otel.Tracer("esusu.loans")

const minReasonLength = 10

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.Error(msg, err)
	return err
}

// claimBorrowRequest performs a conditional state move under the circle lock.
// The lock is released before returning; the claim itself keeps other writers
// off the request while the ledger round-trip runs outside the lock.
func (l *Esusu) claimBorrowRequest(ctx context.Context, request *model.BorrowRequest, fromStatus, toStatus string) error {
	locker, err := l.acquireCircleLock(ctx, request.CircleID)
	if err != nil {
		return err
	}
	defer releaseLock(ctx, locker)

	if err := l.datasource.TransitionBorrowRequest(ctx, request.RequestID, fromStatus, toStatus); err != nil {
		return err
	}
	request.Status = toStatus
	return nil
}

func (l *Esusu) postLoanActions(_ context.Context, event string, request *model.BorrowRequest) {
	go func() {
		err := l.queue.queueWebhook(NewWebhook{
			Event:   event,
			Payload: request,
		})
		if err != nil {
			notification.NotifyError(err)
		}
	}()
}

// SubmitBorrowRequest validates a loan request against the circle's lending
// rules and records it as pending. Every failed rule is reported, not just
// the first, so a borrower can fix the whole request in one pass.
func (l *Esusu) SubmitBorrowRequest(ctx context.Context, circleID, borrowerAddress string, amount decimal.Decimal, reason string, durationDays int) (*model.BorrowRequest, error) {
	ctx, span := loanTracer.Start(ctx, "Submitting borrow request")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	circle, err := l.datasource.GetCircleByID(ctx, circleID)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}

	if !model.EligibleToBorrow(circle, borrowerAddress) {
		if circle.Status != model.CircleStatusActive {
			fields["borrower_address"] = fmt.Sprintf("circle is %s; loans are only extended by active circles", circle.Status)
		} else if circle.GetMember(borrowerAddress) == nil {
			fields["borrower_address"] = "address is not a member of this circle"
		} else {
			fields["borrower_address"] = "member already has an active loan"
		}
	}

	capRatio := decimal.NewFromFloat(conf.Policy.BorrowCapRatio)
	maxBorrowable := model.MaxBorrowable(circle, capRatio)
	if amount.Sign() <= 0 {
		fields["amount"] = "amount must be greater than zero"
	} else if amount.GreaterThan(maxBorrowable) {
		fields["amount"] = fmt.Sprintf("amount exceeds the borrow cap of %s", maxBorrowable.String())
	}

	if len(reason) < minReasonLength {
		fields["reason"] = fmt.Sprintf("reason must be at least %d characters", minReasonLength)
	}

	if !allowedDuration(conf.Policy.AllowedDurations, durationDays) {
		fields["duration_days"] = fmt.Sprintf("duration must be one of %v days", conf.Policy.AllowedDurations)
	}

	if len(fields) > 0 {
		return nil, apierror.NewValidationError("Borrow request failed validation", fields)
	}

	request := &model.BorrowRequest{
		CircleID:        circleID,
		BorrowerAddress: borrowerAddress,
		Amount:          amount,
		Reason:          reason,
		DurationDays:    durationDays,
	}
	request, err = l.datasource.RecordBorrowRequest(ctx, request)
	if err != nil {
		return nil, logAndRecordError(span, "record borrow request error ", err)
	}

	l.postLoanActions(ctx, EventLoanRequested, request)
	return request, nil
}

func (l *Esusu) GetBorrowRequest(ctx context.Context, id string) (*model.BorrowRequest, error) {
	return l.datasource.GetBorrowRequest(ctx, id)
}

func (l *Esusu) GetCircleBorrowRequests(ctx context.Context, circleID string) ([]model.BorrowRequest, error) {
	return l.datasource.GetCircleBorrowRequests(ctx, circleID)
}

// ApproveBorrowRequest disburses the loan from the pool to the borrower and
// moves the request to approved. The request is first claimed (pending to
// disbursing) under the circle lock, then the payment runs outside the lock
// so a slow ledger node does not hold the circle. If the payment fails the
// claim is released and the request stays pending for a retry.
func (l *Esusu) ApproveBorrowRequest(ctx context.Context, requestID string) (*model.BorrowRequest, error) {
	ctx, span := loanTracer.Start(ctx, "Approving borrow request")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	request, err := l.datasource.GetBorrowRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != model.RequestStatusPending {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Borrow request '%s' is %s; only pending requests can be approved", requestID, request.Status), nil)
	}

	// Claim the request under the circle lock before paying. A concurrent
	// approval loses the claim and surfaces as a conflict instead of a
	// second disbursement.
	if err := l.claimBorrowRequest(ctx, request, model.RequestStatusPending, model.RequestStatusDisbursing); err != nil {
		return nil, err
	}

	hash, err := l.gateway.SubmitPayment(ctx, conf.Ledger.PoolAddress, request.BorrowerAddress, request.Amount)
	if err != nil {
		span.RecordError(err)
		// Release the claim so the caller may retry once the node recovers.
		if revertErr := l.datasource.TransitionBorrowRequest(ctx, requestID, model.RequestStatusDisbursing, model.RequestStatusPending); revertErr != nil {
			logrus.Error("release claim error ", revertErr)
		}
		return nil, apierror.NewGatewayError("Loan disbursement failed", err, gateway.Retryable(err))
	}

	locker, err := l.acquireCircleLock(ctx, request.CircleID)
	if err != nil {
		return nil, err
	}
	defer releaseLock(ctx, locker)

	request.Status = model.RequestStatusApproved
	request.ApprovedAt = time.Now()
	if err := l.datasource.UpdateBorrowRequest(ctx, request); err != nil {
		return nil, logAndRecordError(span, "update borrow request error ", err)
	}
	if err := l.datasource.SetMemberActiveLoan(ctx, request.CircleID, request.BorrowerAddress, true); err != nil {
		return nil, logAndRecordError(span, "flag active loan error ", err)
	}

	txn := &model.Transaction{
		LedgerHash:  hash,
		Type:        model.TransactionTypeLoan,
		Amount:      request.Amount,
		Source:      conf.Ledger.PoolAddress,
		Destination: request.BorrowerAddress,
		CircleID:    request.CircleID,
	}
	if _, err := l.datasource.RecordTransaction(ctx, txn); err != nil {
		return nil, logAndRecordError(span, "record transaction error ", err)
	}

	l.postTransactionActions(ctx, txn)
	l.postLoanActions(ctx, EventLoanApproved, request)
	return request, nil
}

// RejectBorrowRequest moves a pending request to rejected. Rejection is
// terminal; rejecting an already settled request is a conflict.
func (l *Esusu) RejectBorrowRequest(ctx context.Context, requestID, reason string) (*model.BorrowRequest, error) {
	ctx, span := loanTracer.Start(ctx, "Rejecting borrow request")
	defer span.End()

	request, err := l.datasource.GetBorrowRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	locker, err := l.acquireCircleLock(ctx, request.CircleID)
	if err != nil {
		return nil, err
	}
	defer releaseLock(ctx, locker)

	request, err = l.datasource.GetBorrowRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != model.RequestStatusPending {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Borrow request '%s' is %s; only pending requests can be rejected", requestID, request.Status), nil)
	}

	request.Status = model.RequestStatusRejected
	request.RejectionReason = reason
	if err := l.datasource.UpdateBorrowRequest(ctx, request); err != nil {
		return nil, logAndRecordError(span, "update borrow request error ", err)
	}

	l.postLoanActions(ctx, EventLoanRejected, request)
	return request, nil
}

// RepayLoan settles an approved loan. The amount owed is the principal plus
// simple interest for the requested duration; the offered amount must match
// it within the configured tolerance, one drop by default. On a confirmed
// payment the request moves to repaid and the borrower may borrow again.
func (l *Esusu) RepayLoan(ctx context.Context, requestID string, amount decimal.Decimal) (*model.BorrowRequest, error) {
	ctx, span := loanTracer.Start(ctx, "Repaying loan")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	tolerance, err := decimal.NewFromString(conf.Policy.RepayTolerance)
	if err != nil {
		tolerance = decimal.RequireFromString(config.DefaultRepayTolerance)
	}

	request, err := l.datasource.GetBorrowRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != model.RequestStatusApproved {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Borrow request '%s' is %s; only approved loans can be repaid", requestID, request.Status), nil)
	}

	circle, err := l.datasource.GetCircleByID(ctx, request.CircleID)
	if err != nil {
		return nil, err
	}

	// Interest accrues in exact decimal but settles in cents. The offered
	// amount must match the rounded figure within the tolerance.
	interest := request.AccruedInterest(circle.InterestRate).Round(2)
	owed := model.TotalRepayment(request.Amount, interest)
	if amount.Sub(owed).Abs().GreaterThan(tolerance) {
		return nil, apierror.NewValidationError("Repayment amount does not settle the loan", map[string]string{
			"amount": fmt.Sprintf("expected %s (principal %s plus interest %s)", owed.String(), request.Amount.String(), interest.String()),
		})
	}

	// Claim the loan for settlement so a concurrent repayment cannot pay
	// the pool twice.
	if err := l.claimBorrowRequest(ctx, request, model.RequestStatusApproved, model.RequestStatusSettling); err != nil {
		return nil, err
	}

	hash, err := l.gateway.SubmitPayment(ctx, request.BorrowerAddress, conf.Ledger.PoolAddress, amount)
	if err != nil {
		span.RecordError(err)
		// Release the claim; the loan stays approved and may be settled again.
		if revertErr := l.datasource.TransitionBorrowRequest(ctx, requestID, model.RequestStatusSettling, model.RequestStatusApproved); revertErr != nil {
			logrus.Error("release claim error ", revertErr)
		}
		return nil, apierror.NewGatewayError("Repayment failed", err, gateway.Retryable(err))
	}

	locker, err := l.acquireCircleLock(ctx, request.CircleID)
	if err != nil {
		return nil, err
	}
	defer releaseLock(ctx, locker)

	request.Status = model.RequestStatusRepaid
	request.RepaidAt = time.Now()
	if err := l.datasource.UpdateBorrowRequest(ctx, request); err != nil {
		return nil, logAndRecordError(span, "update borrow request error ", err)
	}
	if err := l.datasource.SetMemberActiveLoan(ctx, request.CircleID, request.BorrowerAddress, false); err != nil {
		return nil, logAndRecordError(span, "clear active loan error ", err)
	}

	txn := &model.Transaction{
		LedgerHash:  hash,
		Type:        model.TransactionTypeRepayment,
		Amount:      amount,
		Source:      request.BorrowerAddress,
		Destination: conf.Ledger.PoolAddress,
		CircleID:    request.CircleID,
	}
	if _, err := l.datasource.RecordTransaction(ctx, txn); err != nil {
		return nil, logAndRecordError(span, "record transaction error ", err)
	}

	l.postTransactionActions(ctx, txn)
	l.postLoanActions(ctx, EventLoanRepaid, request)
	return request, nil
}

func allowedDuration(allowed []int, days int) bool {
	for _, d := range allowed {
		if d == days {
			return true
		}
	}
	return false
}
