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

	"github.com/blnkfinance/esusu/config"
	"github.com/blnkfinance/esusu/gateway"
	"github.com/blnkfinance/esusu/internal/apierror"
	redlock "github.com/blnkfinance/esusu/internal/lock"
	"github.com/blnkfinance/esusu/internal/notification"
	"github.com/blnkfinance/esusu/model"
)

var tracer = otel.Tracer("esusu.circles")

// acquireCircleLock serializes mutations against a single circle. Concurrent
// contributions and loan transitions on the same circle take turns.
func (l *Esusu) acquireCircleLock(ctx context.Context, circleID string) (*redlock.Locker, error) {
	locker := redlock.NewLocker(l.redis, redlock.CircleKey(circleID), model.GenerateUUIDWithSuffix("loc"))
	err := locker.WaitLock(ctx, time.Minute, 2*time.Minute)
	if err != nil {
		return nil, err
	}
	return locker, nil
}

func releaseLock(ctx context.Context, locker *redlock.Locker) {
	if err := locker.Unlock(ctx); err != nil {
		logrus.Error("lock error", err)
	}
}

func (l *Esusu) postCircleActions(_ context.Context, event string, circle *model.Circle) {
	go func() {
		err := l.queue.queueWebhook(NewWebhook{
			Event:   event,
			Payload: circle,
		})
		if err != nil {
			notification.NotifyError(err)
		}
	}()
}

// CreateCircle registers a new lending circle. Circles start pending and go
// active once contributions reach the activation threshold.
func (l *Esusu) CreateCircle(ctx context.Context, circle model.Circle) (model.Circle, error) {
	ctx, span := tracer.Start(ctx, "Creating circle")
	defer span.End()

	circle.Status = model.CircleStatusPending
	circle, err := l.datasource.CreateCircle(ctx, circle)
	if err != nil {
		span.RecordError(err)
		return model.Circle{}, err
	}

	l.postCircleActions(ctx, EventCircleCreated, &circle)
	return circle, nil
}

func (l *Esusu) GetCircle(ctx context.Context, id string) (*model.Circle, error) {
	return l.datasource.GetCircleByID(ctx, id)
}

func (l *Esusu) GetAllCircles(ctx context.Context, filter model.CircleFilter) ([]model.Circle, error) {
	return l.datasource.GetAllCircles(ctx, filter)
}

// JoinCircle adds a ledger address as a member of a circle. Completed circles
// are closed to new membership, and an address joins a circle once.
func (l *Esusu) JoinCircle(ctx context.Context, circleID, address, name string) (model.Member, error) {
	ctx, span := tracer.Start(ctx, "Joining circle")
	defer span.End()

	circle, err := l.datasource.GetCircleByID(ctx, circleID)
	if err != nil {
		return model.Member{}, err
	}

	if !circle.Joinable() {
		return model.Member{}, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Circle '%s' is %s and closed to new members", circleID, circle.Status), nil)
	}

	member, err := l.datasource.AddMember(ctx, model.Member{
		CircleID: circleID,
		Address:  address,
		Name:     name,
	})
	if err != nil {
		span.RecordError(err)
		return model.Member{}, err
	}

	l.postCircleActions(ctx, EventMemberJoined, circle)
	return member, nil
}

// RecordContribution moves one fixed contribution from the member's address
// to the pool, then applies it to the member record. The ledger payment is
// submitted before the circle lock is taken so a slow node does not hold the
// circle; the member record is only updated after the payment confirms.
func (l *Esusu) RecordContribution(ctx context.Context, circleID, address string) (*model.Member, error) {
	ctx, span := tracer.Start(ctx, "Recording contribution")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	circle, err := l.datasource.GetCircleByID(ctx, circleID)
	if err != nil {
		return nil, err
	}
	if circle.Status == model.CircleStatusCompleted {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Circle '%s' is completed and no longer accepts contributions", circleID), nil)
	}
	if _, err := l.datasource.GetMember(ctx, circleID, address); err != nil {
		return nil, err
	}

	amount := circle.ContributionAmount
	if amount.Sign() <= 0 {
		return nil, apierror.NewValidationError("Contribution amount must be positive", map[string]string{
			"contribution_amount": fmt.Sprintf("circle '%s' has a contribution amount of %s; nothing to collect", circleID, amount.String()),
		})
	}

	hash, err := l.gateway.SubmitPayment(ctx, address, conf.Ledger.PoolAddress, amount)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewGatewayError("Contribution payment failed", err, gateway.Retryable(err))
	}

	locker, err := l.acquireCircleLock(ctx, circleID)
	if err != nil {
		return nil, err
	}
	defer releaseLock(ctx, locker)

	member, err := l.datasource.ApplyContribution(ctx, circleID, address, amount)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	txn := &model.Transaction{
		LedgerHash:  hash,
		Type:        model.TransactionTypeContribution,
		Amount:      amount,
		Source:      address,
		Destination: conf.Ledger.PoolAddress,
		CircleID:    circleID,
	}
	if _, err := l.datasource.RecordTransaction(ctx, txn); err != nil {
		span.RecordError(err)
		return nil, err
	}

	l.postTransactionActions(ctx, txn)
	if err := l.maybeActivateCircle(ctx, circleID, conf); err != nil {
		return nil, err
	}

	return member, nil
}

// maybeActivateCircle moves a pending circle to active once total
// contributions reach the activation share of the pool. Called with the
// circle lock held.
func (l *Esusu) maybeActivateCircle(ctx context.Context, circleID string, conf *config.Configuration) error {
	circle, err := l.datasource.GetCircleByID(ctx, circleID)
	if err != nil {
		return err
	}

	activationRatio := decimal.NewFromFloat(conf.Policy.ActivationRatio)
	if !circle.ShouldActivate(activationRatio) {
		return nil
	}

	if err := l.datasource.UpdateCircleStatus(ctx, circleID, model.CircleStatusActive); err != nil {
		return err
	}
	circle.Status = model.CircleStatusActive
	l.postCircleActions(ctx, EventCircleActivated, circle)
	return nil
}

// CompleteDueCircles closes active circles whose duration has elapsed and
// that carry no outstanding loans. Circles with unrepaid loans stay active
// until the loans settle.
func (l *Esusu) CompleteDueCircles(ctx context.Context, asOf time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "Completing due circles")
	defer span.End()

	circles, err := l.datasource.GetMatureActiveCircles(ctx, asOf)
	if err != nil {
		return 0, err
	}

	completed := 0
	for i := range circles {
		circle := circles[i]
		outstanding, err := l.datasource.CircleHasOutstandingLoans(ctx, circle.CircleID)
		if err != nil {
			logrus.Errorf("completion sweep: %v", err)
			continue
		}
		if outstanding {
			continue
		}
		if err := l.datasource.UpdateCircleStatus(ctx, circle.CircleID, model.CircleStatusCompleted); err != nil {
			logrus.Errorf("completion sweep: %v", err)
			continue
		}
		circle.Status = model.CircleStatusCompleted
		l.postCircleActions(ctx, EventCircleCompleted, &circle)
		completed++
	}

	return completed, nil
}
