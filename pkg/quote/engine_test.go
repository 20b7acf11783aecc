package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wave-swap/pkg/router"
	"wave-swap/pkg/types"
)

var (
	solToken = &types.Token{
		Address:  "So11111111111111111111111111111111111111112",
		Decimals: 9,
		Symbol:   "SOL",
		IsNative: true,
	}
	usdcToken = &types.Token{
		Address:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Decimals: 6,
		Symbol:   "USDC",
	}
)

type fakeRouter struct {
	mu    sync.Mutex
	calls []router.QuoteRequest
	quote *types.Quote
	errs  []error // consumed one per call, nil entries mean success
}

func (r *fakeRouter) Quote(ctx context.Context, req router.QuoteRequest) (*types.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req)
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	q := *r.quote
	return &q, nil
}

func (r *fakeRouter) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func solUsdcQuote() *types.Quote {
	return &types.Quote{
		InputMint:  solToken.Address,
		OutputMint: usdcToken.Address,
		InAmount:   1_000_000_000,
		OutAmount:  150_000_000,
		Mode:       types.ModePublic,
	}
}

func TestSmallestUnit(t *testing.T) {
	cases := []struct {
		amount   string
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{"1", 9, 1_000_000_000, false},
		{"0.5", 9, 500_000_000, false},
		{"1.5", 6, 1_500_000, false},
		// More precision than the mint carries: floored, never rounded up.
		{"0.0000000019", 9, 1, false},
		{"1.9999999999", 9, 1_999_999_999, false},
		{"0", 9, 0, true},
		{"-1", 9, 0, true},
		{"abc", 9, 0, true},
	}
	for _, tc := range cases {
		got, err := SmallestUnit(tc.amount, tc.decimals)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%q: expected error, got %d", tc.amount, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tc.amount, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q @ %d decimals: expected %d, got %d", tc.amount, tc.decimals, tc.want, got)
		}
	}
}

func TestRequestQuoteValidation(t *testing.T) {
	r := &fakeRouter{quote: solUsdcQuote()}
	e := NewEngine(r, Options{})
	ctx := context.Background()

	cases := []struct {
		name    string
		input   *types.Token
		output  *types.Token
		amount  string
		wantErr error
	}{
		{"missing input", nil, usdcToken, "1", ErrMissingInputToken},
		{"missing output", solToken, nil, "1", ErrMissingOutputToken},
		{"same token", solToken, solToken, "1", ErrSameToken},
		{"zero amount", solToken, usdcToken, "0", ErrBadAmount},
		{"negative amount", solToken, usdcToken, "-3", ErrBadAmount},
		{"garbage amount", solToken, usdcToken, "lots", ErrBadAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.RequestQuote(ctx, tc.input, tc.output, tc.amount, types.ModePublic)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if types.KindOf(err) != types.ErrValidation {
				t.Errorf("expected validation kind, got %v", types.KindOf(err))
			}
		})
	}
	if r.callCount() != 0 {
		t.Errorf("validation failures must not reach the backend, saw %d calls", r.callCount())
	}
}

func TestRequestQuoteAmountConversion(t *testing.T) {
	r := &fakeRouter{quote: solUsdcQuote()}
	e := NewEngine(r, Options{DebounceWindow: time.Nanosecond})

	q, err := e.RequestQuote(context.Background(), solToken, usdcToken, "1", types.ModePublic)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.calls[0].Amount; got != "1000000000" {
		t.Errorf("expected amount 1000000000 on the wire, got %s", got)
	}
	if q.OutAmount != 150_000_000 {
		t.Fatalf("unexpected out amount %d", q.OutAmount)
	}
	if got := q.OutAmountDecimal(usdcToken.Decimals); got.String() != "150" {
		t.Errorf("expected display amount 150, got %s", got)
	}
}

func TestRequestQuoteDebounce(t *testing.T) {
	r := &fakeRouter{quote: solUsdcQuote()}
	e := NewEngine(r, Options{DebounceWindow: time.Second})
	ctx := context.Background()

	q1, err := e.RequestQuote(ctx, solToken, usdcToken, "1", types.ModePublic)
	if err != nil || q1 == nil {
		t.Fatalf("first request should succeed, got (%v, %v)", q1, err)
	}
	q2, err := e.RequestQuote(ctx, solToken, usdcToken, "2", types.ModePublic)
	if err != nil {
		t.Fatalf("debounced request must drop silently, got error %v", err)
	}
	if q2 != nil {
		t.Fatal("debounced request must not return a quote")
	}
	if r.callCount() != 1 {
		t.Errorf("two requests inside the window must collapse to 1 upstream call, saw %d", r.callCount())
	}
}

func TestRequestQuoteSupersededResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	r := &blockingRouter{release: release, calls: &calls, quote: solUsdcQuote()}
	e := NewEngine(r, Options{DebounceWindow: time.Nanosecond})
	ctx := context.Background()

	type result struct {
		q   *types.Quote
		err error
	}
	first := make(chan result, 1)
	go func() {
		q, err := e.RequestQuote(ctx, solToken, usdcToken, "1", types.ModePublic)
		first <- result{q, err}
	}()

	// Wait until the first request holds its upstream call open.
	for atomic.LoadInt32(&calls) == 0 {
		time.Sleep(time.Millisecond)
	}

	q2, err := e.RequestQuote(ctx, solToken, usdcToken, "2", types.ModePublic)
	if err != nil || q2 == nil {
		t.Fatalf("newer request should win, got (%v, %v)", q2, err)
	}

	close(release)
	got := <-first
	if got.err != nil {
		t.Fatalf("superseded request must drop silently, got error %v", got.err)
	}
	if got.q != nil {
		t.Error("superseded request must not surface its quote")
	}
}

type blockingRouter struct {
	release chan struct{}
	calls   *int32
	quote   *types.Quote
}

func (r *blockingRouter) Quote(ctx context.Context, req router.QuoteRequest) (*types.Quote, error) {
	if atomic.AddInt32(r.calls, 1) == 1 {
		<-r.release
	}
	q := *r.quote
	return &q, nil
}

func TestRequestQuoteRetriesTransientOnce(t *testing.T) {
	busy := fmt.Errorf("%w: status 429", router.ErrUpstreamBusy)
	r := &fakeRouter{quote: solUsdcQuote(), errs: []error{busy}}
	e := NewEngine(r, Options{DebounceWindow: time.Nanosecond, RetryDelay: time.Millisecond})

	q, err := e.RequestQuote(context.Background(), solToken, usdcToken, "1", types.ModePublic)
	if err != nil {
		t.Fatalf("retry should have recovered, got %v", err)
	}
	if q == nil || q.OutAmount != 150_000_000 {
		t.Fatalf("unexpected quote %+v", q)
	}
	if r.callCount() != 2 {
		t.Errorf("expected exactly 2 upstream calls, saw %d", r.callCount())
	}
}

func TestRequestQuoteTransientExhausted(t *testing.T) {
	busy := fmt.Errorf("%w: status 503", router.ErrUpstreamBusy)
	r := &fakeRouter{quote: solUsdcQuote(), errs: []error{busy, busy}}
	e := NewEngine(r, Options{DebounceWindow: time.Nanosecond, RetryDelay: time.Millisecond})

	_, err := e.RequestQuote(context.Background(), solToken, usdcToken, "1", types.ModePublic)
	if err == nil {
		t.Fatal("expected a surfaced error after the retry failed")
	}
	if types.KindOf(err) != types.ErrTransient {
		t.Errorf("expected transient kind, got %v", types.KindOf(err))
	}
	if r.callCount() != 2 {
		t.Errorf("a transient failure retries exactly once, saw %d calls", r.callCount())
	}
}

func TestRequestQuoteHardErrorNoRetry(t *testing.T) {
	r := &fakeRouter{quote: solUsdcQuote(), errs: []error{errors.New("quote rejected: unsupported pair")}}
	e := NewEngine(r, Options{DebounceWindow: time.Nanosecond})

	_, err := e.RequestQuote(context.Background(), solToken, usdcToken, "1", types.ModePublic)
	if err == nil {
		t.Fatal("expected an error")
	}
	if r.callCount() != 1 {
		t.Errorf("hard failures must not retry, saw %d calls", r.callCount())
	}
}

func TestRequestQuotePrivateModeTagsEstimate(t *testing.T) {
	r := &fakeRouter{quote: solUsdcQuote()}
	e := NewEngine(r, Options{DebounceWindow: time.Nanosecond})

	confidential := solToken.WrapConfidential()
	q, err := e.RequestQuote(context.Background(), &confidential, usdcToken, "1", types.ModePrivate)
	if err != nil {
		t.Fatal(err)
	}
	if q.Mode != types.ModePrivate {
		t.Error("private-mode quotes must carry the private tag")
	}
	if !q.EstimateOnly() {
		t.Error("private-mode quotes are estimates, not executable routes")
	}
	if got := r.calls[0].InputMint; got != solToken.Address {
		t.Errorf("confidential wrapper must unwrap to the underlying mint, got %s", got)
	}
	if !r.calls[0].Private {
		t.Error("private flag must be forwarded to the backend")
	}
}

func TestScheduleFiresAfterIdle(t *testing.T) {
	r := &fakeRouter{quote: solUsdcQuote()}
	e := NewEngine(r, Options{DebounceWindow: time.Nanosecond, IdleDelay: 10 * time.Millisecond})
	e.SetIdentity("wallet1")

	got := make(chan *types.Quote, 1)
	e.OnQuote = func(q *types.Quote, err error) {
		if err == nil {
			got <- q
		}
	}

	// Rapid edits: only the last survives.
	e.Schedule(solToken, usdcToken, "1", types.ModePublic)
	e.Schedule(solToken, usdcToken, "12", types.ModePublic)
	e.Schedule(solToken, usdcToken, "123", types.ModePublic)

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled quote never fired")
	}
	if r.callCount() != 1 {
		t.Errorf("rescheduling must cancel earlier timers, saw %d calls", r.callCount())
	}
	if r.calls[0].Amount != "123000000000" {
		t.Errorf("expected the final edit's amount, got %s", r.calls[0].Amount)
	}
}

func TestScheduleRequiresIdentity(t *testing.T) {
	r := &fakeRouter{quote: solUsdcQuote()}
	e := NewEngine(r, Options{IdleDelay: time.Millisecond})
	e.OnQuote = func(*types.Quote, error) { t.Error("must not fire without an identity") }

	e.Schedule(solToken, usdcToken, "1", types.ModePublic)
	time.Sleep(20 * time.Millisecond)
	if r.callCount() != 0 {
		t.Errorf("expected no upstream calls, saw %d", r.callCount())
	}
}
