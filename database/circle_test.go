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

package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/blnkfinance/esusu/internal/apierror"
	"github.com/blnkfinance/esusu/model"
)

func TestCreateCircle_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	circle := model.Circle{
		Name:               gofakeit.Company(),
		Description:        gofakeit.Sentence(6),
		TotalAmount:        decimal.NewFromInt(5000),
		ContributionAmount: decimal.NewFromInt(100),
		DurationDays:       90,
		InterestRate:       decimal.NewFromInt(5),
		MetaData: map[string]interface{}{
			"region": "lagos",
		},
	}

	mock.ExpectExec("INSERT INTO esusu.circles").
		WithArgs(sqlmock.AnyArg(), circle.Name, circle.Description, circle.TotalAmount, circle.ContributionAmount, circle.DurationDays, circle.InterestRate, model.CircleStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreateCircle(context.Background(), circle)
	assert.NoError(t, err)
	assert.NotEmpty(t, created.CircleID)
	assert.Contains(t, created.CircleID, "crc_")
	assert.Equal(t, model.CircleStatusPending, created.Status)
	assert.WithinDuration(t, time.Now(), created.CreatedAt, time.Second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCircleByID_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	circleID := "crc_test123"
	now := time.Now()

	mock.ExpectQuery("SELECT .* FROM esusu.circles WHERE circle_id =").
		WithArgs(circleID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "circle_id", "name", "description", "total_amount", "contribution_amount", "duration_days", "interest_rate", "status", "meta_data", "created_at"}).
			AddRow(1, circleID, "Market Traders", "", "5000", "100", 90, "5", "active", []byte(`{"region":"lagos"}`), now))

	mock.ExpectQuery("SELECT .* FROM esusu.members").
		WithArgs(circleID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "circle_id", "address", "name", "contributions_made", "total_contributed", "has_active_loan", "joined_at"}).
			AddRow(1, circleID, "rAlice", "Alice", 3, "300", false, now).
			AddRow(2, circleID, "rBob", "Bob", 2, "200", true, now))

	circle, err := ds.GetCircleByID(context.Background(), circleID)
	assert.NoError(t, err)
	assert.Equal(t, circleID, circle.CircleID)
	assert.Equal(t, "active", circle.Status)
	assert.True(t, circle.TotalAmount.Equal(decimal.NewFromInt(5000)))
	assert.Len(t, circle.Members, 2)
	assert.True(t, circle.Members[0].TotalContributed.Equal(decimal.NewFromInt(300)))
	assert.True(t, circle.Members[1].HasActiveLoan)
	assert.Equal(t, "lagos", circle.MetaData["region"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCircleByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT .* FROM esusu.circles WHERE circle_id =").
		WithArgs("crc_missing").
		WillReturnError(sql.ErrNoRows)

	circle, err := ds.GetCircleByID(context.Background(), "crc_missing")
	assert.Error(t, err)
	assert.Nil(t, circle)

	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestGetAllCircles_StatusFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM esusu.circles WHERE status =").
		WithArgs("active").
		WillReturnRows(sqlmock.NewRows([]string{"id", "circle_id", "name", "description", "total_amount", "contribution_amount", "duration_days", "interest_rate", "status", "created_at"}).
			AddRow(1, "crc_1", "Circle One", "", "5000", "100", 90, "5", "active", now))

	circles, err := ds.GetAllCircles(context.Background(), model.CircleFilter{Status: "active"})
	assert.NoError(t, err)
	assert.Len(t, circles, 1)
	assert.Equal(t, "crc_1", circles[0].CircleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCircleStatus_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE esusu.circles").
		WithArgs("crc_missing", "active").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.UpdateCircleStatus(context.Background(), "crc_missing", "active")
	assert.Error(t, err)

	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestGetMatureActiveCircles(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	asOf := time.Now()
	mock.ExpectQuery("SELECT .* FROM esusu.circles WHERE status = 'active'").
		WithArgs(asOf).
		WillReturnRows(sqlmock.NewRows([]string{"id", "circle_id", "name", "description", "total_amount", "contribution_amount", "duration_days", "interest_rate", "status", "created_at"}).
			AddRow(1, "crc_due", "Due Circle", "", "5000", "100", 30, "5", "active", asOf.AddDate(0, 0, -31)))

	circles, err := ds.GetMatureActiveCircles(context.Background(), asOf)
	assert.NoError(t, err)
	assert.Len(t, circles, 1)
	assert.Equal(t, "crc_due", circles[0].CircleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
