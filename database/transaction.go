package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/blnkfinance/esusu/internal/apierror"
	"github.com/blnkfinance/esusu/model"
)

// RecordTransaction appends a confirmed ledger operation to the log.
// The log is insert-only; there is no update or delete path.
func (d Datasource) RecordTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	txn.TransactionID = model.GenerateUUIDWithSuffix("txn")
	txn.CreatedAt = time.Now()

	_, err := d.Conn.ExecContext(ctx,
		`INSERT INTO esusu.transactions (transaction_id, hash, type, amount, source, destination, circle_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		txn.TransactionID, txn.LedgerHash, txn.Type, txn.Amount, txn.Source, txn.Destination, txn.CircleID, txn.CreatedAt,
	)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record transaction", err)
	}

	// The append happens under the caller's circle lock, so the cached list
	// is dropped before the lock is released.
	if d.Cache != nil && txn.CircleID != "" {
		if err := d.Cache.Delete(ctx, fmt.Sprintf("transactions:circle:%s", txn.CircleID)); err != nil {
			log.Printf("Failed to invalidate transaction cache: %v", err)
		}
	}

	return txn, nil
}

func (d Datasource) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, transaction_id, hash, type, amount, source, destination, circle_id, created_at
		FROM esusu.transactions
		WHERE transaction_id = $1
	`, id)

	txn := &model.Transaction{}
	err := row.Scan(&txn.ID, &txn.TransactionID, &txn.LedgerHash, &txn.Type, &txn.Amount, &txn.Source, &txn.Destination, &txn.CircleID, &txn.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transaction", err)
	}

	return txn, nil
}

func (d Datasource) GetCircleTransactions(ctx context.Context, circleID string) ([]model.Transaction, error) {
	cacheKey := fmt.Sprintf("transactions:circle:%s", circleID)

	var cached []model.Transaction
	if d.Cache != nil {
		if err := d.Cache.Get(ctx, cacheKey, &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	transactions, err := d.queryTransactions(ctx, `
		SELECT id, transaction_id, hash, type, amount, source, destination, circle_id, created_at
		FROM esusu.transactions
		WHERE circle_id = $1
		ORDER BY created_at DESC
	`, circleID)
	if err != nil {
		return nil, err
	}

	if d.Cache != nil && len(transactions) > 0 {
		if err := d.Cache.Set(ctx, cacheKey, transactions, 1*time.Minute); err != nil {
			log.Printf("Failed to cache transactions: %v", err)
		}
	}

	return transactions, nil
}

func (d Datasource) GetAddressTransactions(ctx context.Context, address string) ([]model.Transaction, error) {
	return d.queryTransactions(ctx, `
		SELECT id, transaction_id, hash, type, amount, source, destination, circle_id, created_at
		FROM esusu.transactions
		WHERE source = $1 OR destination = $1
		ORDER BY created_at DESC
	`, address)
}

func (d Datasource) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]model.Transaction, error) {
	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transactions", err)
	}
	defer rows.Close()

	transactions := []model.Transaction{}
	for rows.Next() {
		txn := model.Transaction{}
		err = rows.Scan(&txn.ID, &txn.TransactionID, &txn.LedgerHash, &txn.Type, &txn.Amount, &txn.Source, &txn.Destination, &txn.CircleID, &txn.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transaction", err)
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating transactions", err)
	}

	return transactions, nil
}
