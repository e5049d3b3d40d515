package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/blnkfinance/esusu/internal/apierror"
	"github.com/blnkfinance/esusu/model"
)

func (d Datasource) RecordBorrowRequest(ctx context.Context, request *model.BorrowRequest) (*model.BorrowRequest, error) {
	request.RequestID = model.GenerateUUIDWithSuffix("lrq")
	request.RequestedAt = time.Now()
	if request.Status == "" {
		request.Status = model.RequestStatusPending
	}

	_, err := d.Conn.ExecContext(ctx,
		`INSERT INTO esusu.borrow_requests (request_id, circle_id, borrower_address, amount, reason, duration_days, status, requested_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		request.RequestID, request.CircleID, request.BorrowerAddress, request.Amount, request.Reason, request.DurationDays, request.Status, request.RequestedAt,
	)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record borrow request", err)
	}

	return request, nil
}

func (d Datasource) GetBorrowRequest(ctx context.Context, id string) (*model.BorrowRequest, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, request_id, circle_id, borrower_address, amount, reason, duration_days, status, rejection_reason, requested_at, approved_at, repaid_at
		FROM esusu.borrow_requests
		WHERE request_id = $1
	`, id)

	request, err := scanBorrowRequest(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Borrow request with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve borrow request", err)
	}

	return request, nil
}

// UpdateBorrowRequest persists a state transition. Only the mutable lifecycle
// columns change; the requested terms are immutable after creation.
func (d Datasource) UpdateBorrowRequest(ctx context.Context, request *model.BorrowRequest) error {
	approvedAt := sql.NullTime{Time: request.ApprovedAt, Valid: !request.ApprovedAt.IsZero()}
	repaidAt := sql.NullTime{Time: request.RepaidAt, Valid: !request.RepaidAt.IsZero()}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE esusu.borrow_requests
		SET status = $2, rejection_reason = $3, approved_at = $4, repaid_at = $5
		WHERE request_id = $1
	`, request.RequestID, request.Status, request.RejectionReason, approvedAt, repaidAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update borrow request", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Borrow request with ID '%s' not found", request.RequestID), nil)
	}

	return nil
}

// TransitionBorrowRequest moves a request from one lifecycle state to
// another only if it is still in the expected state. Zero rows affected
// means another writer transitioned it first, which surfaces as a conflict.
func (d Datasource) TransitionBorrowRequest(ctx context.Context, id, fromStatus, toStatus string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE esusu.borrow_requests
		SET status = $3
		WHERE request_id = $1 AND status = $2
	`, id, fromStatus, toStatus)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to transition borrow request", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Borrow request '%s' is no longer %s", id, fromStatus), nil)
	}

	return nil
}

func (d Datasource) GetCircleBorrowRequests(ctx context.Context, circleID string) ([]model.BorrowRequest, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, request_id, circle_id, borrower_address, amount, reason, duration_days, status, rejection_reason, requested_at, approved_at, repaid_at
		FROM esusu.borrow_requests
		WHERE circle_id = $1
		ORDER BY requested_at DESC
	`, circleID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve borrow requests", err)
	}
	defer rows.Close()

	requests := []model.BorrowRequest{}
	for rows.Next() {
		request, err := scanBorrowRequest(rows.Scan)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan borrow request", err)
		}
		requests = append(requests, *request)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating borrow requests", err)
	}

	return requests, nil
}

// CircleHasOutstandingLoans reports whether any disbursed request against the
// circle has not yet been repaid. A circle cannot complete while one exists;
// requests in a claim state count as outstanding.
func (d Datasource) CircleHasOutstandingLoans(ctx context.Context, circleID string) (bool, error) {
	var count int
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM esusu.borrow_requests
		WHERE circle_id = $1 AND status IN ('disbursing', 'approved', 'settling')
	`, circleID).Scan(&count)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to count outstanding loans", err)
	}
	return count > 0, nil
}

func scanBorrowRequest(scan func(dest ...interface{}) error) (*model.BorrowRequest, error) {
	request := &model.BorrowRequest{}
	var approvedAt, repaidAt sql.NullTime
	err := scan(&request.ID, &request.RequestID, &request.CircleID, &request.BorrowerAddress, &request.Amount, &request.Reason, &request.DurationDays, &request.Status, &request.RejectionReason, &request.RequestedAt, &approvedAt, &repaidAt)
	if err != nil {
		return nil, err
	}
	if approvedAt.Valid {
		request.ApprovedAt = approvedAt.Time
	}
	if repaidAt.Valid {
		request.RepaidAt = repaidAt.Time
	}
	return request, nil
}
