package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// dropsPerUnit converts between the ledger's integer drops and decimal
// currency units (1 unit = 1,000,000 drops).
var dropsPerUnit = decimal.NewFromInt(1_000_000)

// Config holds RPC gateway configuration.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	// PoolSecret signs outgoing payments from the pool account. Retail
	// deployments submit through a signing proxy instead of carrying keys.
	PoolSecret string
}

// RPCGateway talks JSON-RPC 1.0 over HTTP to a rippled-compatible node.
type RPCGateway struct {
	endpoint   string
	secret     string
	httpClient *http.Client
}

// NewRPCGateway creates a gateway client against the configured node.
func NewRPCGateway(cfg Config) (*RPCGateway, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("ledger endpoint required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &RPCGateway{
		endpoint: cfg.Endpoint,
		secret:   cfg.PoolSecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type rpcRequest struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
}

type rpcStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// call makes one JSON-RPC round-trip. Transport failures and non-2xx
// responses surface as ErrConnection so callers can branch on retryability.
func (g *RPCGateway) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	req := rpcRequest{Method: method, Params: params}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logrus.Error(err)
		}
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrConnection, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: node returned status %d", ErrConnection, resp.StatusCode)
	}

	var envelope rpcEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrConnection, err)
	}
	return envelope.Result, nil
}

// callWithRetry wraps call in exponential backoff bounded by the context.
// Only transport-level failures are retried; ledger rejections return as-is.
func (g *RPCGateway) callWithRetry(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	var result json.RawMessage
	operation := func() error {
		res, err := g.call(ctx, method, params)
		if err != nil {
			if Retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return result, nil
}

// Connect verifies the node is reachable.
func (g *RPCGateway) Connect(ctx context.Context) error {
	result, err := g.call(ctx, "ping", []interface{}{})
	if err != nil {
		return err
	}

	var status rpcStatus
	if err := json.Unmarshal(result, &status); err != nil {
		return fmt.Errorf("%w: decode ping: %v", ErrConnection, err)
	}
	if status.Status != "success" {
		return fmt.Errorf("%w: ping returned %q", ErrConnection, status.Status)
	}
	return nil
}

type accountInfoResult struct {
	rpcStatus
	AccountData struct {
		Balance string `json:"Balance"`
	} `json:"account_data"`
}

// GetBalance queries the validated balance of an account. The returned
// amount is in ledger currency units, converted from drops.
func (g *RPCGateway) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	params := []interface{}{map[string]interface{}{
		"account":      address,
		"ledger_index": "validated",
	}}
	result, err := g.callWithRetry(ctx, "account_info", params)
	if err != nil {
		return decimal.Zero, err
	}

	var info accountInfoResult
	if err := json.Unmarshal(result, &info); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode account_info: %v", ErrConnection, err)
	}
	if info.Status != "success" {
		if info.Error == "actNotFound" {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrAddressUnknown, address)
		}
		return decimal.Zero, fmt.Errorf("%w: %s", ErrConnection, info.ErrorMessage)
	}

	drops, err := decimal.NewFromString(info.AccountData.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad balance %q", ErrConnection, info.AccountData.Balance)
	}
	return drops.Div(dropsPerUnit), nil
}

type submitResult struct {
	rpcStatus
	EngineResult        string `json:"engine_result"`
	EngineResultMessage string `json:"engine_result_message"`
	TxJSON              struct {
		Hash string `json:"hash"`
	} `json:"tx_json"`
}

// SubmitPayment signs and submits a payment, returning the transaction hash
// once the node accepts it. The submission itself is not retried: a timeout
// after submission is indistinguishable from success, so the caller decides.
func (g *RPCGateway) SubmitPayment(ctx context.Context, from, to string, amount decimal.Decimal) (string, error) {
	drops := amount.Mul(dropsPerUnit).Truncate(0)
	params := []interface{}{map[string]interface{}{
		"secret": g.secret,
		"tx_json": map[string]interface{}{
			"TransactionType": "Payment",
			"Account":         from,
			"Destination":     to,
			"Amount":          drops.String(),
		},
	}}

	result, err := g.call(ctx, "submit", params)
	if err != nil {
		return "", err
	}

	var submitted submitResult
	if err := json.Unmarshal(result, &submitted); err != nil {
		return "", fmt.Errorf("%w: decode submit: %v", ErrConnection, err)
	}
	if submitted.Status != "success" {
		return "", fmt.Errorf("%w: %s", ErrSubmissionFailed, submitted.ErrorMessage)
	}

	switch submitted.EngineResult {
	case "tesSUCCESS":
		return submitted.TxJSON.Hash, nil
	case "tecUNFUNDED_PAYMENT", "terINSUF_FEE_B":
		return "", fmt.Errorf("%w: %s", ErrInsufficientFunds, submitted.EngineResultMessage)
	default:
		return "", fmt.Errorf("%w: %s (%s)", ErrSubmissionFailed, submitted.EngineResultMessage, submitted.EngineResult)
	}
}

// Disconnect releases pooled connections. The HTTP transport holds no
// session state, so there is nothing else to tear down.
func (g *RPCGateway) Disconnect() error {
	g.httpClient.CloseIdleConnections()
	return nil
}
