// Package privacy wraps the confidential-balance backend: swap quotes,
// deposit and swap transaction blobs, order status, withdrawals, balance
// reveals, and the recovery endpoint. The protocol internals are opaque; this
// client only drives them.
package privacy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"

	"wave-swap/pkg/types"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "privacy").Logger()
}

// ErrUpstreamBusy marks a rate-limited or temporarily unavailable backend.
var ErrUpstreamBusy = errors.New("confidential backend busy")

// Client talks to the confidential backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a confidential backend client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

// SwapQuote is the confidential backend's quote for a deposit→swap pair.
// AmountIn/AmountOut are integer smallest units; OrderID identifies the
// order for later status polling.
type SwapQuote struct {
	OrderID   string `json:"orderId"`
	InMint    string `json:"inMint"`
	OutMint   string `json:"outMint"`
	AmountIn  uint64 `json:"amountIn,string"`
	AmountOut uint64 `json:"amountOut,string"`
}

type swapQuoteRequest struct {
	InMint   string `json:"inMint"`
	OutMint  string `json:"outMint"`
	AmountIn string `json:"amountIn"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
}

// GetSwapQuote fetches a confidential swap quote for the same token pair and
// integer amount as the public estimate.
func (c *Client) GetSwapQuote(ctx context.Context, inMint, outMint string, amountIn uint64, sender string) (*SwapQuote, error) {
	req := swapQuoteRequest{
		InMint:   inMint,
		OutMint:  outMint,
		AmountIn: fmt.Sprintf("%d", amountIn),
		Sender:   sender,
		Receiver: sender,
	}
	var quote SwapQuote
	if err := c.post(ctx, "/swap/quote", req, &quote); err != nil {
		return nil, err
	}
	if quote.OrderID == "" {
		return nil, fmt.Errorf("swap quote returned no order id")
	}
	return &quote, nil
}

type transactionResponse struct {
	SerializedTransaction string `json:"serializedTransaction"`
}

// DepositTransaction fetches the unsigned transaction moving plain tokens
// into the confidential system for the given order.
func (c *Client) DepositTransaction(ctx context.Context, orderID, sender string) (string, error) {
	req := map[string]string{"orderId": orderID, "sender": sender}
	var resp transactionResponse
	if err := c.post(ctx, "/swap/deposit-transaction", req, &resp); err != nil {
		return "", err
	}
	if resp.SerializedTransaction == "" {
		return "", fmt.Errorf("deposit build returned no transaction")
	}
	return resp.SerializedTransaction, nil
}

// SwapTransaction fetches the unsigned confidential swap transaction for the
// given order. Only called after the deposit has confirmed.
func (c *Client) SwapTransaction(ctx context.Context, orderID, sender string) (string, error) {
	req := map[string]string{"orderId": orderID, "sender": sender}
	var resp transactionResponse
	if err := c.post(ctx, "/swap/swap-transaction", req, &resp); err != nil {
		return "", err
	}
	if resp.SerializedTransaction == "" {
		return "", fmt.Errorf("swap build returned no transaction")
	}
	return resp.SerializedTransaction, nil
}

type orderStatusResponse struct {
	Status string `json:"status"`
}

// OrderStatus polls the terminal state of a confidential order.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (types.OrderState, error) {
	var resp orderStatusResponse
	if err := c.get(ctx, "/swap/order/"+url.PathEscape(orderID), &resp); err != nil {
		return "", err
	}
	switch types.OrderState(resp.Status) {
	case types.OrderPending, types.OrderCompleted, types.OrderFailed:
		return types.OrderState(resp.Status), nil
	default:
		return "", fmt.Errorf("unknown order status %q", resp.Status)
	}
}

type withdrawRequest struct {
	Mint     string `json:"mint"`
	Amount   string `json:"amount"`
	Identity string `json:"identity"`
	Decimals uint8  `json:"decimals"`
}

// WithdrawTransaction fetches the unsigned transaction moving a confidential
// balance back into the plain token universe. Amount is a decimal string per
// the endpoint's contract.
func (c *Client) WithdrawTransaction(ctx context.Context, mint, amountDecimal, identity string, decimals uint8) (string, error) {
	req := withdrawRequest{Mint: mint, Amount: amountDecimal, Identity: identity, Decimals: decimals}
	var resp transactionResponse
	if err := c.post(ctx, "/withdraw", req, &resp); err != nil {
		return "", err
	}
	if resp.SerializedTransaction == "" {
		return "", fmt.Errorf("withdraw build returned no transaction")
	}
	return resp.SerializedTransaction, nil
}

type confidentialBalancesResponse struct {
	ConfidentialBalances []struct {
		TokenAddress string          `json:"tokenAddress"`
		Amount       json.RawMessage `json:"amount"`
	} `json:"confidentialBalances"`
}

// ConfidentialBalances fetches the identity's confidential balance view,
// normalized through the tagged-union decoder.
func (c *Client) ConfidentialBalances(ctx context.Context, identity string) (map[string]types.Balance, error) {
	var resp confidentialBalancesResponse
	if err := c.get(ctx, "/balances/"+url.PathEscape(identity), &resp); err != nil {
		return nil, err
	}

	balances := make(map[string]types.Balance, len(resp.ConfidentialBalances))
	for _, entry := range resp.ConfidentialBalances {
		balance, err := DecodeBalanceValue(entry.Amount)
		if err != nil {
			return nil, fmt.Errorf("balance for %s: %w", entry.TokenAddress, err)
		}
		balances[entry.TokenAddress] = balance
	}
	return balances, nil
}

// RecoveryAction is what the backend decided about a stuck signature.
type RecoveryAction string

const (
	ActionRecoveryNeeded      RecoveryAction = "recovery_needed"
	ActionDepositConfirmed    RecoveryAction = "deposit_confirmed"
	ActionWithdrawalConfirmed RecoveryAction = "withdrawal_confirmed"
	ActionNone                RecoveryAction = "none"
)

// RecoveryStatus is the recovery endpoint's analysis of a signature.
type RecoveryStatus struct {
	Action  RecoveryAction `json:"recoveryAction"`
	Message string         `json:"recoveryMessage"`
}

type recoveryRequest struct {
	Identity  string `json:"identity"`
	Signature string `json:"signature"`
	Kind      string `json:"kind"`
}

// QueryRecovery asks the backend what happened to a signature whose outcome
// timed out locally. Read-only; never submits anything.
func (c *Client) QueryRecovery(ctx context.Context, identity, signature string, kind types.RecoveryKind) (*RecoveryStatus, error) {
	req := recoveryRequest{Identity: identity, Signature: signature, Kind: string(kind)}
	var status RecoveryStatus
	if err := c.post(ctx, "/recovery", req, &status); err != nil {
		return nil, err
	}
	if status.Action == "" {
		status.Action = ActionNone
	}
	return &status, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	httpResp, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrUpstreamBusy, err)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
		log.Debug().Int("status", httpResp.StatusCode).Str("path", req.URL.Path).Msg("upstream busy")
		return fmt.Errorf("%w: status %d", ErrUpstreamBusy, httpResp.StatusCode)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		bodyBytes, readErr := io.ReadAll(httpResp.Body)
		if readErr == nil && len(bodyBytes) > 0 {
			var errorResp map[string]interface{}
			if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
				if message, ok := errorResp["message"].(string); ok {
					return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, message)
				}
			}
			return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(bodyBytes))
		}
		return fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// IsTransient reports whether an error came from rate limiting or temporary
// unavailability.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUpstreamBusy)
}
