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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/blnkfinance/esusu/internal/apierror"
	"github.com/blnkfinance/esusu/model"
)

var circleColumns = []string{"id", "circle_id", "name", "description", "total_amount", "contribution_amount", "duration_days", "interest_rate", "status", "meta_data", "created_at"}

var memberColumns = []string{"id", "circle_id", "address", "name", "contributions_made", "total_contributed", "has_active_loan", "joined_at"}

func expectCircleFetch(mock sqlmock.Sqlmock, circleID, status string, memberRows *sqlmock.Rows) {
	mock.ExpectQuery("SELECT .* FROM esusu.circles WHERE circle_id =").
		WithArgs(circleID).
		WillReturnRows(sqlmock.NewRows(circleColumns).
			AddRow(1, circleID, "Test Circle", "", "5000", "100", 90, "5", status, nil, time.Now()))
	mock.ExpectQuery("SELECT .* FROM esusu.members").
		WithArgs(circleID).
		WillReturnRows(memberRows)
}

func TestCreateCircle(t *testing.T) {
	service, mock, _ := newTestEsusu(t)

	circle := model.Circle{
		Name:               "Market Traders",
		TotalAmount:        decimal.NewFromInt(5000),
		ContributionAmount: decimal.NewFromInt(100),
		DurationDays:       90,
		InterestRate:       decimal.NewFromInt(5),
	}

	mock.ExpectExec("INSERT INTO esusu.circles").
		WithArgs(sqlmock.AnyArg(), circle.Name, circle.Description, circle.TotalAmount, circle.ContributionAmount, circle.DurationDays, circle.InterestRate, model.CircleStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := service.CreateCircle(context.Background(), circle)
	assert.NoError(t, err)
	assert.Contains(t, created.CircleID, "crc_")
	assert.Equal(t, model.CircleStatusPending, created.Status)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestJoinCircle(t *testing.T) {
	service, mock, _ := newTestEsusu(t)

	circleID := "crc_test123"
	expectCircleFetch(mock, circleID, "pending", sqlmock.NewRows(memberColumns))

	mock.ExpectExec("INSERT INTO esusu.members").
		WithArgs(circleID, "rAlice", "Alice", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	member, err := service.JoinCircle(context.Background(), circleID, "rAlice", "Alice")
	assert.NoError(t, err)
	assert.Equal(t, "rAlice", member.Address)
	assert.False(t, member.HasActiveLoan)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestJoinCircle_CompletedCircleRejects(t *testing.T) {
	service, mock, _ := newTestEsusu(t)

	circleID := "crc_done"
	expectCircleFetch(mock, circleID, "completed", sqlmock.NewRows(memberColumns))

	_, err := service.JoinCircle(context.Background(), circleID, "rAlice", "Alice")
	assert.Error(t, err)

	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func TestRecordContribution(t *testing.T) {
	service, mock, gw := newTestEsusu(t)

	circleID := "crc_test123"
	now := time.Now()

	// Initial fetch with the contributing member present.
	expectCircleFetch(mock, circleID, "active", sqlmock.NewRows(memberColumns).
		AddRow(1, circleID, "rAlice", "Alice", 2, "200", false, now))

	mock.ExpectQuery("SELECT .* FROM esusu.members WHERE circle_id =").
		WithArgs(circleID, "rAlice").
		WillReturnRows(sqlmock.NewRows(memberColumns).
			AddRow(1, circleID, "rAlice", "Alice", 2, "200", false, now))

	mock.ExpectQuery("UPDATE esusu.members").
		WithArgs(circleID, "rAlice", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(memberColumns).
			AddRow(1, circleID, "rAlice", "Alice", 3, "300", false, now))

	mock.ExpectExec("INSERT INTO esusu.transactions").
		WithArgs(sqlmock.AnyArg(), "HASH", model.TransactionTypeContribution, sqlmock.AnyArg(), "rAlice", "rPoolAddress", circleID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	// Activation check re-reads the circle; already active, nothing changes.
	expectCircleFetch(mock, circleID, "active", sqlmock.NewRows(memberColumns).
		AddRow(1, circleID, "rAlice", "Alice", 3, "300", false, now))

	member, err := service.RecordContribution(context.Background(), circleID, "rAlice")
	assert.NoError(t, err)
	assert.Equal(t, 3, member.ContributionsMade)
	assert.True(t, member.TotalContributed.Equal(decimal.NewFromInt(300)))

	payments := gw.payments()
	assert.Len(t, payments, 1)
	assert.Equal(t, "rAlice", payments[0].From)
	assert.Equal(t, "rPoolAddress", payments[0].To)
	assert.True(t, payments[0].Amount.Equal(decimal.NewFromInt(100)))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRecordContribution_ActivatesCircle(t *testing.T) {
	service, mock, _ := newTestEsusu(t)

	circleID := "crc_test123"
	now := time.Now()

	expectCircleFetch(mock, circleID, "pending", sqlmock.NewRows(memberColumns).
		AddRow(1, circleID, "rAlice", "Alice", 11, "1150", false, now))

	mock.ExpectQuery("SELECT .* FROM esusu.members WHERE circle_id =").
		WithArgs(circleID, "rAlice").
		WillReturnRows(sqlmock.NewRows(memberColumns).
			AddRow(1, circleID, "rAlice", "Alice", 11, "1150", false, now))

	mock.ExpectQuery("UPDATE esusu.members").
		WithArgs(circleID, "rAlice", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(memberColumns).
			AddRow(1, circleID, "rAlice", "Alice", 12, "1250", false, now))

	mock.ExpectExec("INSERT INTO esusu.transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))

	// Contributions now stand at 1250, a quarter of the 5000 pool.
	expectCircleFetch(mock, circleID, "pending", sqlmock.NewRows(memberColumns).
		AddRow(1, circleID, "rAlice", "Alice", 12, "1250", false, now))

	mock.ExpectExec("UPDATE esusu.circles").
		WithArgs(circleID, model.CircleStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))

	member, err := service.RecordContribution(context.Background(), circleID, "rAlice")
	assert.NoError(t, err)
	assert.Equal(t, 12, member.ContributionsMade)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRecordContribution_ZeroAmountRejected(t *testing.T) {
	service, mock, gw := newTestEsusu(t)

	circleID := "crc_test123"
	// A circle persisted with a zero contribution amount must not reach the
	// ledger or touch the member record.
	mock.ExpectQuery("SELECT .* FROM esusu.circles WHERE circle_id =").
		WithArgs(circleID).
		WillReturnRows(sqlmock.NewRows(circleColumns).
			AddRow(1, circleID, "Test Circle", "", "5000", "0", 90, "5", "active", nil, time.Now()))
	mock.ExpectQuery("SELECT .* FROM esusu.members").
		WithArgs(circleID).
		WillReturnRows(sqlmock.NewRows(memberColumns).
			AddRow(1, circleID, "rAlice", "Alice", 5, "500", false, time.Now()))
	mock.ExpectQuery("SELECT .* FROM esusu.members WHERE circle_id = .* AND address =").
		WithArgs(circleID, "rAlice").
		WillReturnRows(sqlmock.NewRows(memberColumns).
			AddRow(1, circleID, "rAlice", "Alice", 5, "500", false, time.Now()))

	_, err := service.RecordContribution(context.Background(), circleID, "rAlice")
	assert.Error(t, err)

	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
	assert.Contains(t, apiErr.Fields(), "contribution_amount")
	assert.Empty(t, gw.payments())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRecordContribution_GatewayFailureLeavesStateUntouched(t *testing.T) {
	service, mock, gw := newTestEsusu(t)
	gw.submitErr = assert.AnError

	circleID := "crc_test123"
	now := time.Now()

	expectCircleFetch(mock, circleID, "active", sqlmock.NewRows(memberColumns).
		AddRow(1, circleID, "rAlice", "Alice", 2, "200", false, now))

	mock.ExpectQuery("SELECT .* FROM esusu.members WHERE circle_id =").
		WithArgs(circleID, "rAlice").
		WillReturnRows(sqlmock.NewRows(memberColumns).
			AddRow(1, circleID, "rAlice", "Alice", 2, "200", false, now))

	member, err := service.RecordContribution(context.Background(), circleID, "rAlice")
	assert.Error(t, err)
	assert.Nil(t, member)

	// No member update or transaction insert was issued.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestCompleteDueCircles(t *testing.T) {
	service, mock, _ := newTestEsusu(t)

	asOf := time.Now()
	listColumns := []string{"id", "circle_id", "name", "description", "total_amount", "contribution_amount", "duration_days", "interest_rate", "status", "created_at"}

	mock.ExpectQuery("SELECT .* FROM esusu.circles WHERE status = 'active'").
		WithArgs(asOf).
		WillReturnRows(sqlmock.NewRows(listColumns).
			AddRow(1, "crc_due", "Due Circle", "", "5000", "100", 30, "5", "active", asOf.AddDate(0, 0, -31)).
			AddRow(2, "crc_owed", "Owed Circle", "", "5000", "100", 30, "5", "active", asOf.AddDate(0, 0, -40)))

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("crc_due").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE esusu.circles").
		WithArgs("crc_due", model.CircleStatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// The second circle still has an outstanding loan and stays active.
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("crc_owed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	completed, err := service.CompleteDueCircles(context.Background(), asOf)
	assert.NoError(t, err)
	assert.Equal(t, 1, completed)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
