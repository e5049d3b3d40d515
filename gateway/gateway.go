package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Gateway is the boundary to the underlying value-transfer network. Every
// call may block on network I/O; callers pass a context and must not hold a
// circle lock across a call. A failed GetBalance returns an error, never a
// zero balance: "balance is zero" and "balance unknown" are different facts.
type Gateway interface {
	Connect(ctx context.Context) error
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)
	SubmitPayment(ctx context.Context, from, to string, amount decimal.Decimal) (string, error)
	Disconnect() error
}

var (
	// ErrAddressUnknown is returned when the ledger has no account for the
	// queried address.
	ErrAddressUnknown = errors.New("gateway: address unknown on ledger")

	// ErrInsufficientFunds is returned when the paying account cannot cover
	// the payment plus network fees.
	ErrInsufficientFunds = errors.New("gateway: insufficient funds")

	// ErrSubmissionFailed is returned when the ledger rejected the payment
	// for a reason other than funding.
	ErrSubmissionFailed = errors.New("gateway: payment submission failed")

	// ErrConnection is returned for transport failures and timeouts. It is
	// the only retryable gateway error.
	ErrConnection = errors.New("gateway: ledger connection failed")
)

// Retryable reports whether the caller may retry the failed call with
// backoff. Rejections by the ledger itself are final until state changes.
func Retryable(err error) bool {
	return errors.Is(err, ErrConnection)
}
