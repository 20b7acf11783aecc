// Package router wraps the public routing backend: the shared price oracle
// for both swap modes and the transaction builder for public execution.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"wave-swap/pkg/types"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "router").Logger()
}

// ErrUpstreamBusy marks a rate-limited or temporarily unavailable backend.
// Callers retry these once before surfacing anything.
var ErrUpstreamBusy = errors.New("routing backend busy")

// Client talks to the public routing backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a routing client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// QuoteRequest is the routing backend's quote contract. Amount is in integer
// smallest units.
type QuoteRequest struct {
	InputMint   string `json:"inputMint"`
	OutputMint  string `json:"outputMint"`
	Amount      string `json:"amount"`
	Identity    string `json:"identity,omitempty"`
	Private     bool   `json:"private"`
	SlippageBps int    `json:"slippageBps,omitempty"`
}

type quoteEnvelope struct {
	Success bool       `json:"success"`
	Quote   *quoteBody `json:"quote"`
	Error   string     `json:"error"`
}

type quoteBody struct {
	InputMint      string          `json:"inputMint"`
	OutputMint     string          `json:"outputMint"`
	InAmount       string          `json:"inAmount"`
	OutAmount      string          `json:"outAmount"`
	PriceImpactPct float64         `json:"priceImpactPct"`
	RoutePlan      json.RawMessage `json:"routePlan"`
}

// Quote fetches a priced estimate for the pair. The backend prices both
// public and private trades; the mode tag is applied by the caller.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*types.Quote, error) {
	var env quoteEnvelope
	if err := c.post(ctx, "/quote", req, &env); err != nil {
		return nil, err
	}
	if !env.Success || env.Quote == nil {
		if env.Error != "" {
			return nil, fmt.Errorf("quote rejected: %s", env.Error)
		}
		return nil, fmt.Errorf("quote rejected with no error detail")
	}

	inAmount, err := strconv.ParseUint(env.Quote.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inAmount %q: %w", env.Quote.InAmount, err)
	}
	outAmount, err := strconv.ParseUint(env.Quote.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse outAmount %q: %w", env.Quote.OutAmount, err)
	}

	return &types.Quote{
		InputMint:      env.Quote.InputMint,
		OutputMint:     env.Quote.OutputMint,
		InAmount:       inAmount,
		OutAmount:      outAmount,
		PriceImpactPct: env.Quote.PriceImpactPct,
		RoutePlan:      env.Quote.RoutePlan,
		Mode:           types.ModePublic,
	}, nil
}

type swapTxnRequest struct {
	Quote    json.RawMessage `json:"quote"`
	Identity string          `json:"identity"`
}

type swapTxnResponse struct {
	Success               bool   `json:"success"`
	SerializedTransaction string `json:"serializedTransaction"`
	Error                 string `json:"error"`
}

// BuildSwapTransaction asks the backend for an unsigned transaction executing
// the quoted route. The returned blob is base64.
func (c *Client) BuildSwapTransaction(ctx context.Context, quote *types.Quote, identity string) (string, error) {
	req := swapTxnRequest{Quote: quote.RoutePlan, Identity: identity}
	var resp swapTxnResponse
	if err := c.post(ctx, "/swap", req, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.SerializedTransaction == "" {
		if resp.Error != "" {
			return "", fmt.Errorf("swap build rejected: %s", resp.Error)
		}
		return "", fmt.Errorf("swap build returned no transaction")
	}
	return resp.SerializedTransaction, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrUpstreamBusy, err)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
		log.Debug().Int("status", httpResp.StatusCode).Str("path", path).Msg("upstream busy")
		return fmt.Errorf("%w: status %d", ErrUpstreamBusy, httpResp.StatusCode)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		// Try to extract the actual error message from the response body.
		bodyBytes, readErr := io.ReadAll(httpResp.Body)
		if readErr == nil && len(bodyBytes) > 0 {
			var errorResp map[string]interface{}
			if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
				if message, ok := errorResp["message"].(string); ok {
					return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, message)
				}
				if e, ok := errorResp["error"].(string); ok {
					return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, e)
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
// unavailability rather than a hard rejection.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUpstreamBusy)
}
