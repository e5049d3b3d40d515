package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newTestNode(t *testing.T, handler func(method string, params []interface{}) interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result := handler(req.Method, req.Params)
		assert.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{"result": result}))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestConnect(t *testing.T) {
	node := newTestNode(t, func(method string, _ []interface{}) interface{} {
		assert.Equal(t, "ping", method)
		return map[string]interface{}{"status": "success"}
	})

	g, err := NewRPCGateway(Config{Endpoint: node.URL})
	assert.NoError(t, err)
	assert.NoError(t, g.Connect(context.Background()))
	assert.NoError(t, g.Disconnect())
}

func TestGetBalance(t *testing.T) {
	node := newTestNode(t, func(method string, _ []interface{}) interface{} {
		assert.Equal(t, "account_info", method)
		return map[string]interface{}{
			"status": "success",
			"account_data": map[string]interface{}{
				"Balance": "1000000000", // 1000 units in drops
			},
		}
	})

	g, err := NewRPCGateway(Config{Endpoint: node.URL})
	assert.NoError(t, err)

	balance, err := g.GetBalance(context.Background(), "rMember1")
	assert.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(1000)), "got %s", balance)
}

func TestGetBalanceUnknownAddress(t *testing.T) {
	node := newTestNode(t, func(string, []interface{}) interface{} {
		return map[string]interface{}{
			"status":        "error",
			"error":         "actNotFound",
			"error_message": "Account not found.",
		}
	})

	g, err := NewRPCGateway(Config{Endpoint: node.URL})
	assert.NoError(t, err)

	_, err = g.GetBalance(context.Background(), "rNobody")
	assert.ErrorIs(t, err, ErrAddressUnknown)
	assert.False(t, Retryable(err))
}

func TestGetBalanceNodeDownIsNotZero(t *testing.T) {
	// A dead node must yield a connection error, never a zero balance.
	g, err := NewRPCGateway(Config{Endpoint: "http://127.0.0.1:1"})
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // skip backoff retries

	_, err = g.GetBalance(ctx, "rMember1")
	assert.Error(t, err)
}

func TestGetBalanceRetriesOnServerError(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		result := map[string]interface{}{
			"status":       "success",
			"account_data": map[string]interface{}{"Balance": "2000000"},
		}
		assert.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{"result": result}))
	}))
	defer server.Close()

	g, err := NewRPCGateway(Config{Endpoint: server.URL})
	assert.NoError(t, err)

	balance, err := g.GetBalance(context.Background(), "rMember1")
	assert.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(2)))
	assert.GreaterOrEqual(t, calls.Load(), int64(2))
}

func TestSubmitPayment(t *testing.T) {
	node := newTestNode(t, func(method string, params []interface{}) interface{} {
		assert.Equal(t, "submit", method)
		payload := params[0].(map[string]interface{})
		txJSON := payload["tx_json"].(map[string]interface{})
		assert.Equal(t, "Payment", txJSON["TransactionType"])
		assert.Equal(t, "1000000000", txJSON["Amount"]) // 1000 units in drops
		return map[string]interface{}{
			"status":        "success",
			"engine_result": "tesSUCCESS",
			"tx_json":       map[string]interface{}{"hash": "ABC123"},
		}
	})

	g, err := NewRPCGateway(Config{Endpoint: node.URL, PoolSecret: "shhh"})
	assert.NoError(t, err)

	hash, err := g.SubmitPayment(context.Background(), "rPool", "rBorrower", decimal.NewFromInt(1000))
	assert.NoError(t, err)
	assert.Equal(t, "ABC123", hash)
}

func TestSubmitPaymentInsufficientFunds(t *testing.T) {
	node := newTestNode(t, func(string, []interface{}) interface{} {
		return map[string]interface{}{
			"status":                "success",
			"engine_result":         "tecUNFUNDED_PAYMENT",
			"engine_result_message": "Insufficient balance to fund payment.",
		}
	})

	g, err := NewRPCGateway(Config{Endpoint: node.URL})
	assert.NoError(t, err)

	_, err = g.SubmitPayment(context.Background(), "rPool", "rBorrower", decimal.NewFromInt(1000))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.False(t, Retryable(err))
}

func TestSubmitPaymentRejected(t *testing.T) {
	node := newTestNode(t, func(string, []interface{}) interface{} {
		return map[string]interface{}{
			"status":                "success",
			"engine_result":         "temBAD_AMOUNT",
			"engine_result_message": "Malformed amount.",
		}
	})

	g, err := NewRPCGateway(Config{Endpoint: node.URL})
	assert.NoError(t, err)

	_, err = g.SubmitPayment(context.Background(), "rPool", "rBorrower", decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrSubmissionFailed)
}

func TestNewRPCGatewayRequiresEndpoint(t *testing.T) {
	_, err := NewRPCGateway(Config{})
	assert.Error(t, err)
}
