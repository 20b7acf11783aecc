// Package quote turns a (input token, output token, amount, mode) selection
// into a priced quote, collapsing bursts of requests against the rate-limited
// routing backend.
package quote

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wave-swap/pkg/router"
	"wave-swap/pkg/types"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "quote").Logger()
}

// Distinct validation rejections. None of these reach the network.
var (
	ErrMissingInputToken  = types.ValidationError("input token is required")
	ErrMissingOutputToken = types.ValidationError("output token is required")
	ErrBadAmount          = types.ValidationError("amount must be a positive number")
	ErrSameToken          = types.ValidationError("input and output tokens must differ")
)

// Router is the slice of the routing backend the engine needs.
type Router interface {
	Quote(ctx context.Context, req router.QuoteRequest) (*types.Quote, error)
}

// Options tune the engine's timing. Zero values pick the defaults.
type Options struct {
	// DebounceWindow drops a call arriving this soon after the previous one.
	DebounceWindow time.Duration
	// IdleDelay is how long Schedule waits after the last edit before firing.
	IdleDelay time.Duration
	// RetryDelay is the backoff before the single silent retry on a
	// transient upstream failure.
	RetryDelay time.Duration
	// SlippageBps is forwarded to the routing backend.
	SlippageBps int
}

func (o *Options) fill() {
	if o.DebounceWindow == 0 {
		o.DebounceWindow = time.Second
	}
	if o.IdleDelay == 0 {
		o.IdleDelay = 1200 * time.Millisecond
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = 3 * time.Second
	}
}

// Engine is the quote engine. One instance serves one session.
type Engine struct {
	router Router
	opts   Options

	// OnQuote receives results from the auto-trigger path. Dropped and
	// superseded requests never reach it.
	OnQuote func(*types.Quote, error)

	mu       sync.Mutex
	identity string
	lastCall time.Time
	seq      uint64
	timer    *time.Timer
}

// NewEngine creates a quote engine.
func NewEngine(r Router, opts Options) *Engine {
	opts.fill()
	return &Engine{router: r, opts: opts}
}

// SetIdentity records the connected identity. Auto-triggered quoting only
// runs while one is connected.
func (e *Engine) SetIdentity(identity string) {
	e.mu.Lock()
	e.identity = identity
	e.mu.Unlock()
}

// SmallestUnit converts a human-decimal amount to integer smallest units
// using the token's decimals. Always floors; rounding up could over-spend.
func SmallestUnit(amountDecimal string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(amountDecimal)
	if err != nil {
		return 0, err
	}
	if !d.IsPositive() {
		return 0, ErrBadAmount
	}
	floored := d.Shift(int32(decimals)).Floor()
	bi := floored.BigInt()
	if !bi.IsUint64() {
		return 0, types.ValidationError("amount too large")
	}
	return bi.Uint64(), nil
}

// RequestQuote validates the selection and fetches a priced quote. The
// public routing backend is always consulted, even for private swaps — the
// confidential backend does not independently price trades; in private mode
// the returned quote is tagged estimate-only.
//
// A call arriving inside the debounce window is dropped silently: (nil, nil),
// no upstream call, no state change. A response belonging to a superseded
// request is likewise discarded as (nil, nil); only the most recent request's
// result is ever applied.
func (e *Engine) RequestQuote(ctx context.Context, input, output *types.Token, amountDecimal string, mode types.Mode) (*types.Quote, error) {
	if input == nil {
		return nil, ErrMissingInputToken
	}
	if output == nil {
		return nil, ErrMissingOutputToken
	}
	if input.Address == output.Address {
		return nil, ErrSameToken
	}
	amount, err := SmallestUnit(amountDecimal, input.Decimals)
	if err != nil || amount == 0 {
		return nil, ErrBadAmount
	}

	e.mu.Lock()
	now := time.Now()
	if !e.lastCall.IsZero() && now.Sub(e.lastCall) < e.opts.DebounceWindow {
		e.mu.Unlock()
		return nil, nil
	}
	e.lastCall = now
	e.seq++
	mySeq := e.seq
	identity := e.identity
	e.mu.Unlock()

	req := router.QuoteRequest{
		InputMint:   input.UnderlyingAddress(),
		OutputMint:  output.UnderlyingAddress(),
		Amount:      decimal.NewFromUint64(amount).String(),
		Identity:    identity,
		Private:     mode == types.ModePrivate,
		SlippageBps: e.opts.SlippageBps,
	}

	q, err := e.fetchWithRetry(ctx, req)

	e.mu.Lock()
	stale := e.seq != mySeq
	e.mu.Unlock()
	if stale {
		log.Debug().Msg("discarding superseded quote response")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if mode == types.ModePrivate {
		q.Mode = types.ModePrivate
	}
	return q, nil
}

// fetchWithRetry calls the backend, retrying exactly once after a longer
// delay when the failure classifies as transient. Only the retry's failure
// surfaces.
func (e *Engine) fetchWithRetry(ctx context.Context, req router.QuoteRequest) (*types.Quote, error) {
	q, err := e.router.Quote(ctx, req)
	if err == nil {
		return q, nil
	}
	if !router.IsTransient(err) {
		return nil, types.InternalError("quote request failed", err)
	}

	log.Debug().Err(err).Dur("delay", e.opts.RetryDelay).Msg("transient quote failure, retrying once")
	timer := time.NewTimer(e.opts.RetryDelay)
	select {
	case <-ctx.Done():
		timer.Stop()
		return nil, ctx.Err()
	case <-timer.C:
	}

	q, err = e.router.Quote(ctx, req)
	if err != nil {
		return nil, types.TransientError("quote service unavailable", err)
	}
	return q, nil
}

// Schedule is the debounce-on-edit auto trigger: whenever amount, input
// token, or output token changes while an identity is connected, a quote
// request fires after the idle delay; every further change cancels and
// reschedules. Results arrive on OnQuote.
func (e *Engine) Schedule(input, output *types.Token, amountDecimal string, mode types.Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.identity == "" || e.OnQuote == nil {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.opts.IdleDelay, func() {
		q, err := e.RequestQuote(context.Background(), input, output, amountDecimal, mode)
		if q == nil && err == nil {
			return
		}
		e.OnQuote(q, err)
	})
}

// CancelScheduled stops any pending auto-triggered request.
func (e *Engine) CancelScheduled() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
