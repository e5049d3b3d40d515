package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/blnkfinance/esusu/internal/apierror"
	"github.com/blnkfinance/esusu/model"
)

func (d Datasource) AddMember(ctx context.Context, member model.Member) (model.Member, error) {
	member.JoinedAt = time.Now()

	_, err := d.Conn.ExecContext(ctx,
		`INSERT INTO esusu.members (circle_id, address, name, contributions_made, total_contributed, has_active_loan, joined_at)
		 VALUES ($1, $2, $3, 0, 0, FALSE, $4)`,
		member.CircleID, member.Address, member.Name, member.JoinedAt,
	)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code == "23505" {
			return model.Member{}, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Address '%s' is already a member of circle '%s'", member.Address, member.CircleID), err)
		}
		return model.Member{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to add member", err)
	}

	member.ContributionsMade = 0
	member.TotalContributed = decimal.Zero
	member.HasActiveLoan = false
	return member, nil
}

func (d Datasource) GetMember(ctx context.Context, circleID, address string) (*model.Member, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, circle_id, address, name, contributions_made, total_contributed, has_active_loan, joined_at
		FROM esusu.members
		WHERE circle_id = $1 AND address = $2
	`, circleID, address)

	member := &model.Member{}
	err := row.Scan(&member.ID, &member.CircleID, &member.Address, &member.Name, &member.ContributionsMade, &member.TotalContributed, &member.HasActiveLoan, &member.JoinedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Address '%s' is not a member of circle '%s'", address, circleID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve member", err)
	}

	return member, nil
}

// ApplyContribution bumps the member's contribution counters in one statement
// so the totals only ever move forward.
func (d Datasource) ApplyContribution(ctx context.Context, circleID, address string, amount decimal.Decimal) (*model.Member, error) {
	row := d.Conn.QueryRowContext(ctx, `
		UPDATE esusu.members
		SET contributions_made = contributions_made + 1,
		    total_contributed = total_contributed + $3
		WHERE circle_id = $1 AND address = $2
		RETURNING id, circle_id, address, name, contributions_made, total_contributed, has_active_loan, joined_at
	`, circleID, address, amount)

	member := &model.Member{}
	err := row.Scan(&member.ID, &member.CircleID, &member.Address, &member.Name, &member.ContributionsMade, &member.TotalContributed, &member.HasActiveLoan, &member.JoinedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Address '%s' is not a member of circle '%s'", address, circleID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to apply contribution", err)
	}

	return member, nil
}

func (d Datasource) SetMemberActiveLoan(ctx context.Context, circleID, address string, active bool) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE esusu.members
		SET has_active_loan = $3
		WHERE circle_id = $1 AND address = $2
	`, circleID, address, active)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update member loan flag", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Address '%s' is not a member of circle '%s'", address, circleID), nil)
	}

	return nil
}

func (d Datasource) getCircleMembers(ctx context.Context, circleID string) ([]model.Member, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, circle_id, address, name, contributions_made, total_contributed, has_active_loan, joined_at
		FROM esusu.members
		WHERE circle_id = $1
		ORDER BY joined_at ASC
	`, circleID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve members", err)
	}
	defer rows.Close()

	members := []model.Member{}
	for rows.Next() {
		member := model.Member{}
		err = rows.Scan(&member.ID, &member.CircleID, &member.Address, &member.Name, &member.ContributionsMade, &member.TotalContributed, &member.HasActiveLoan, &member.JoinedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan member", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating members", err)
	}

	return members, nil
}
