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
	"time"

	"github.com/shopspring/decimal"

	"github.com/blnkfinance/esusu/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	circle        // Interface for circle-related operations
	member        // Interface for membership operations
	borrowRequest // Interface for borrow request operations
	transaction   // Interface for transaction log operations
}

// circle defines methods for handling lending circles.
type circle interface {
	CreateCircle(ctx context.Context, circle model.Circle) (model.Circle, error)                 // Creates a new circle
	GetCircleByID(ctx context.Context, id string) (*model.Circle, error)                        // Retrieves a circle with its members
	GetAllCircles(ctx context.Context, filter model.CircleFilter) ([]model.Circle, error)       // Retrieves circles matching the filter
	UpdateCircleStatus(ctx context.Context, id string, status string) error                     // Moves a circle between lifecycle states
	GetMatureActiveCircles(ctx context.Context, asOf time.Time) ([]model.Circle, error)         // Retrieves active circles whose duration has elapsed
}

// member defines methods for handling circle membership.
type member interface {
	AddMember(ctx context.Context, member model.Member) (model.Member, error)                                    // Adds a member to a circle
	GetMember(ctx context.Context, circleID, address string) (*model.Member, error)                              // Retrieves one member record
	ApplyContribution(ctx context.Context, circleID, address string, amount decimal.Decimal) (*model.Member, error) // Applies a contribution to a member record
	SetMemberActiveLoan(ctx context.Context, circleID, address string, active bool) error                        // Toggles the active-loan flag
}

// borrowRequest defines methods for handling loan requests.
type borrowRequest interface {
	RecordBorrowRequest(ctx context.Context, request *model.BorrowRequest) (*model.BorrowRequest, error) // Records a new borrow request
	GetBorrowRequest(ctx context.Context, id string) (*model.BorrowRequest, error)                       // Retrieves a borrow request by ID
	UpdateBorrowRequest(ctx context.Context, request *model.BorrowRequest) error                         // Persists a state transition
	TransitionBorrowRequest(ctx context.Context, id, fromStatus, toStatus string) error                  // Conditional state move; conflict if the expected state is gone
	GetCircleBorrowRequests(ctx context.Context, circleID string) ([]model.BorrowRequest, error)         // Retrieves all requests against a circle
	CircleHasOutstandingLoans(ctx context.Context, circleID string) (bool, error)                        // Checks for disbursed, unrepaid requests
}

// transaction defines methods for the append-only transaction log.
type transaction interface {
	RecordTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)     // Appends a confirmed ledger operation
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)                     // Retrieves a transaction by ID
	GetCircleTransactions(ctx context.Context, circleID string) ([]model.Transaction, error)       // Retrieves a circle's transactions
	GetAddressTransactions(ctx context.Context, address string) ([]model.Transaction, error)       // Retrieves transactions touching an address
}
