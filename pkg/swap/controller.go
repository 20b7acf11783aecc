// Package swap drives a priced quote through one of the two execution
// protocols: the single-transaction public path or the confidential
// deposit→swap→poll path. One Controller owns one session's state — the
// balance view, the current progress value, and the recovery record — so
// nothing lives at package scope.
package swap

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"wave-swap/pkg/balance"
	"wave-swap/pkg/chain"
	"wave-swap/pkg/privacy"
	"wave-swap/pkg/retry"
	"wave-swap/pkg/types"
	"wave-swap/pkg/wallet"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "swap").Logger()
}

// Router is the slice of the public routing backend the executor needs.
type Router interface {
	BuildSwapTransaction(ctx context.Context, quote *types.Quote, identity string) (string, error)
}

// PrivacyBackend is the slice of the confidential backend the executor needs.
type PrivacyBackend interface {
	GetSwapQuote(ctx context.Context, inMint, outMint string, amountIn uint64, sender string) (*privacy.SwapQuote, error)
	DepositTransaction(ctx context.Context, orderID, sender string) (string, error)
	SwapTransaction(ctx context.Context, orderID, sender string) (string, error)
	OrderStatus(ctx context.Context, orderID string) (types.OrderState, error)
	WithdrawTransaction(ctx context.Context, mint, amountDecimal, identity string, decimals uint8) (string, error)
}

// Chain is the slice of the RPC surface the executor needs.
type Chain interface {
	Submit(ctx context.Context, tx *solana.Transaction) (string, error)
	Confirm(ctx context.Context, signature string) error
	TransactionStatus(ctx context.Context, signature string) (chain.TxStatus, error)
}

// Options tune the executor's retry and polling bounds.
type Options struct {
	// ConfirmAttempts bounds confirmation retries per submitted transaction.
	ConfirmAttempts int
	// ConfirmInterval is the delay between confirmation attempts.
	ConfirmInterval time.Duration
	// ConfirmTimeout bounds each individual confirmation call.
	ConfirmTimeout time.Duration
	// OrderPollInterval is the delay between order-status polls.
	OrderPollInterval time.Duration
	// OrderPollAttempts bounds order-status polling. Exceeding it is a
	// timeout, not a failure.
	OrderPollAttempts int
	// ProgressClearDelay is how long a terminal progress state stays
	// visible before being cleared.
	ProgressClearDelay time.Duration
	// SettleRefreshDelay is how long after a private swap completes to wait
	// before the full balance refresh, so upstream state can settle.
	SettleRefreshDelay time.Duration
}

func (o *Options) fill() {
	if o.ConfirmAttempts == 0 {
		o.ConfirmAttempts = 5
	}
	if o.ConfirmInterval == 0 {
		o.ConfirmInterval = 2 * time.Second
	}
	if o.ConfirmTimeout == 0 {
		o.ConfirmTimeout = 10 * time.Second
	}
	if o.OrderPollInterval == 0 {
		o.OrderPollInterval = time.Second
	}
	if o.OrderPollAttempts == 0 {
		o.OrderPollAttempts = 45
	}
	if o.ProgressClearDelay == 0 {
		o.ProgressClearDelay = 3 * time.Second
	}
	if o.SettleRefreshDelay == 0 {
		o.SettleRefreshDelay = 5 * time.Second
	}
}

// Controller orchestrates swap execution for one session.
type Controller struct {
	router   Router
	privacy  PrivacyBackend
	chain    Chain
	signer   wallet.Signer
	balances *balance.Aggregator
	opts     Options

	// OnProgress receives an update at every step transition.
	OnProgress types.ProgressFunc

	progress       types.SwapProgress
	recovery       types.RecoveryRecord
	selectedInput  types.Token
	selectedOutput types.Token
}

// NewController wires a session controller.
func NewController(r Router, p PrivacyBackend, c Chain, signer wallet.Signer, balances *balance.Aggregator, opts Options) *Controller {
	opts.fill()
	return &Controller{
		router:   r,
		privacy:  p,
		chain:    c,
		signer:   signer,
		balances: balances,
		opts:     opts,
	}
}

// Progress returns the current progress value.
func (c *Controller) Progress() types.SwapProgress {
	return c.progress
}

// RecoveryRecord returns a copy of the session's recovery record.
func (c *Controller) RecoveryRecord() types.RecoveryRecord {
	return c.recovery
}

// RecoveryRecordRef exposes the record for the recovery subsystem, which
// shares it under the session's single-writer discipline.
func (c *Controller) RecoveryRecordRef() *types.RecoveryRecord {
	return &c.recovery
}

// ClearRecovery drops the outstanding record. Explicit user action.
func (c *Controller) ClearRecovery() {
	c.recovery = types.RecoveryRecord{}
}

// Balances returns the session's balance aggregator.
func (c *Controller) Balances() *balance.Aggregator {
	return c.balances
}

// Swap executes a quote through the path its mode selects. The input and
// output tokens are the selection the quote was priced for. Cancelling the
// context stops local waiting and clears progress; it cannot and does not
// reverse a transaction already broadcast to the network.
func (c *Controller) Swap(ctx context.Context, q *types.Quote, input, output types.Token) error {
	if q == nil {
		return types.ValidationError("no quote to execute")
	}
	c.selectedInput = input
	c.selectedOutput = output

	var err error
	if q.Mode == types.ModePrivate {
		err = c.executePrivate(ctx, q, input, output)
	} else {
		err = c.executePublic(ctx, q)
	}

	if err != nil && errors.Is(err, context.Canceled) {
		c.emit(types.StatusCancelled, "swap cancelled; transactions already broadcast are not reversed", c.progress.Step, c.progress.TotalSteps)
		c.scheduleProgressClear()
		return types.CancelledError()
	}
	return err
}

// emit records and publishes a progress transition.
func (c *Controller) emit(status types.Status, message string, step, total int) {
	c.progress = types.SwapProgress{Status: status, Message: message, Step: step, TotalSteps: total}
	if c.OnProgress != nil {
		c.OnProgress(c.progress)
	}
}

// scheduleProgressClear empties the progress value after the terminal state
// has been visible for the configured delay.
func (c *Controller) scheduleProgressClear() {
	terminal := c.progress.Status
	time.AfterFunc(c.opts.ProgressClearDelay, func() {
		if c.progress.Status == terminal {
			c.progress = types.SwapProgress{}
		}
	})
}

// signDecoded decodes a serialized transaction blob and requests a wallet
// signature. A user decline maps to the cancelled outcome.
func (c *Controller) signDecoded(serialized string) (*solana.Transaction, error) {
	tx, err := chain.DecodeTransaction(serialized)
	if err != nil {
		return nil, types.InternalError("received an undecodable transaction", err)
	}
	if err := c.signer.SignTransaction(tx); err != nil {
		if errors.Is(err, wallet.ErrDeclined) {
			return nil, types.CancelledError()
		}
		return nil, types.InternalError("failed to sign transaction", err)
	}
	return tx, nil
}

// confirmWithFinalLookup drives the bounded confirmation retry policy, then
// performs one final direct status lookup: a transaction can finalize after
// a client-side confirmation call has already timed out, so the lookup can
// retroactively turn a failure into a success. Returns:
//   - nil on confirmation
//   - *chain.TxFailedError when the transaction failed on-chain
//   - an ErrIndeterminate SwapError when even the final lookup is
//     inconclusive
func (c *Controller) confirmWithFinalLookup(ctx context.Context, signature string) error {
	policy := retry.Policy{
		MaxAttempts: c.opts.ConfirmAttempts,
		Backoff:     retry.Fixed(c.opts.ConfirmInterval),
		Retryable: func(err error) bool {
			var failed *chain.TxFailedError
			return !errors.As(err, &failed)
		},
	}

	err := policy.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.ConfirmTimeout)
		defer cancel()
		err := c.chain.Confirm(attemptCtx, signature)
		if errors.Is(err, context.DeadlineExceeded) {
			// Timeout class: the confirmation call itself did not return
			// in time. Distinct from on-chain rejection.
			log.Debug().Str("signature", signature).Msg("confirmation attempt timed out")
			return chain.ErrNotConfirmed
		}
		return err
	})
	if err == nil {
		return nil
	}
	var failed *chain.TxFailedError
	if errors.As(err, &failed) {
		return failed
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	// Retry budget spent. One final direct lookup before giving up.
	status, lookupErr := c.chain.TransactionStatus(ctx, signature)
	if lookupErr == nil {
		switch status {
		case chain.TxConfirmed:
			log.Info().Str("signature", signature).Msg("final lookup found the transaction confirmed")
			return nil
		case chain.TxFailed:
			return &chain.TxFailedError{Signature: signature, Reason: "found failed by final lookup"}
		}
	}
	return types.IndeterminateError(signature, err)
}
