package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/blnkfinance/esusu/internal/apierror"
	"github.com/blnkfinance/esusu/model"
)

func (d Datasource) CreateCircle(ctx context.Context, circle model.Circle) (model.Circle, error) {
	metaDataJSON, err := json.Marshal(circle.MetaData)
	if err != nil {
		return model.Circle{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	circle.CircleID = model.GenerateUUIDWithSuffix("crc")
	circle.CreatedAt = time.Now()
	if circle.Status == "" {
		circle.Status = model.CircleStatusPending
	}

	_, err = d.Conn.ExecContext(ctx,
		`INSERT INTO esusu.circles (circle_id, name, description, total_amount, contribution_amount, duration_days, interest_rate, status, meta_data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		circle.CircleID, circle.Name, circle.Description, circle.TotalAmount, circle.ContributionAmount, circle.DurationDays, circle.InterestRate, circle.Status, metaDataJSON, circle.CreatedAt,
	)
	if err != nil {
		return model.Circle{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create circle", err)
	}

	return circle, nil
}

func (d Datasource) GetCircleByID(ctx context.Context, id string) (*model.Circle, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, circle_id, name, description, total_amount, contribution_amount, duration_days, interest_rate, status, meta_data, created_at
		FROM esusu.circles
		WHERE circle_id = $1
	`, id)

	circle := &model.Circle{}
	var metaDataJSON []byte
	err := row.Scan(&circle.ID, &circle.CircleID, &circle.Name, &circle.Description, &circle.TotalAmount, &circle.ContributionAmount, &circle.DurationDays, &circle.InterestRate, &circle.Status, &metaDataJSON, &circle.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Circle with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve circle", err)
	}

	if metaDataJSON != nil {
		if err := json.Unmarshal(metaDataJSON, &circle.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}

	members, err := d.getCircleMembers(ctx, circle.CircleID)
	if err != nil {
		return nil, err
	}
	circle.Members = members

	return circle, nil
}

func (d Datasource) GetAllCircles(ctx context.Context, filter model.CircleFilter) ([]model.Circle, error) {
	query := `
		SELECT id, circle_id, name, description, total_amount, contribution_amount, duration_days, interest_rate, status, created_at
		FROM esusu.circles
	`
	var args []interface{}
	if filter.Status != "" {
		query += " WHERE status = $1"
		args = append(args, filter.Status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve circles", err)
	}
	defer rows.Close()

	circles := []model.Circle{}
	for rows.Next() {
		circle := model.Circle{}
		err = rows.Scan(&circle.ID, &circle.CircleID, &circle.Name, &circle.Description, &circle.TotalAmount, &circle.ContributionAmount, &circle.DurationDays, &circle.InterestRate, &circle.Status, &circle.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan circle", err)
		}
		circles = append(circles, circle)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating circles", err)
	}

	return circles, nil
}

func (d Datasource) UpdateCircleStatus(ctx context.Context, id string, status string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE esusu.circles
		SET status = $2
		WHERE circle_id = $1
	`, id, status)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update circle status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Circle with ID '%s' not found", id), nil)
	}

	return nil
}

// GetMatureActiveCircles returns active circles whose duration elapsed before
// asOf. The completion sweep closes them once no loans are outstanding.
func (d Datasource) GetMatureActiveCircles(ctx context.Context, asOf time.Time) ([]model.Circle, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, circle_id, name, description, total_amount, contribution_amount, duration_days, interest_rate, status, created_at
		FROM esusu.circles
		WHERE status = 'active'
		AND created_at + (duration_days || ' days')::interval <= $1
	`, asOf)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve mature circles", err)
	}
	defer rows.Close()

	circles := []model.Circle{}
	for rows.Next() {
		circle := model.Circle{}
		err = rows.Scan(&circle.ID, &circle.CircleID, &circle.Name, &circle.Description, &circle.TotalAmount, &circle.ContributionAmount, &circle.DurationDays, &circle.InterestRate, &circle.Status, &circle.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan circle", err)
		}
		circles = append(circles, circle)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating circles", err)
	}

	return circles, nil
}
