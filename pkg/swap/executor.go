package swap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wave-swap/pkg/chain"
	"wave-swap/pkg/retry"
	"wave-swap/pkg/types"
)

const (
	publicSteps  = 4
	privateSteps = 6
)

// errOrderPending marks an order still working through the confidential
// backend. Retryable by the polling policy.
var errOrderPending = errors.New("order still pending")

// executePublic drives building → signing → submitting → confirming.
func (c *Controller) executePublic(ctx context.Context, q *types.Quote) error {
	if q.EstimateOnly() {
		return types.ValidationError("a private estimate cannot be executed on the public path")
	}
	identity := c.signer.PublicKey().String()

	c.emit(types.StatusBuilding, "building swap transaction", 1, publicSteps)
	serialized, err := c.router.BuildSwapTransaction(ctx, q, identity)
	if err != nil {
		return c.fail(types.InternalError("failed to build swap transaction", err))
	}

	c.emit(types.StatusSigning, "waiting for wallet signature", 2, publicSteps)
	tx, err := c.signDecoded(serialized)
	if err != nil {
		return c.finish(err)
	}

	c.emit(types.StatusSubmitting, "submitting transaction", 3, publicSteps)
	signature, err := c.chain.Submit(ctx, tx)
	if err != nil {
		return c.fail(types.InternalError("failed to submit transaction", err))
	}

	c.emit(types.StatusConfirming, "awaiting confirmation", 4, publicSteps)
	if err := c.confirmWithFinalLookup(ctx, signature); err != nil {
		var failed *chain.TxFailedError
		if errors.As(err, &failed) {
			return c.fail(types.InternalError("swap transaction failed", failed))
		}
		return c.finish(err)
	}

	if err := c.refreshBalances(ctx); err != nil {
		log.Debug().Err(err).Msg("post-swap balance refresh failed")
	}
	c.emit(types.StatusCompleted, fmt.Sprintf("swap confirmed: %s", signature), publicSteps, publicSteps)
	c.scheduleProgressClear()
	return nil
}

// executePrivate drives initializing → quoting → depositing →
// confirming-deposit → swapping → polling-order. The deposit must confirm
// before the swap transaction is signed; swapping before a confirmed deposit
// risks swapping unfunded value.
func (c *Controller) executePrivate(ctx context.Context, q *types.Quote, input, output types.Token) error {
	identity := c.signer.PublicKey().String()

	c.emit(types.StatusInitializing, "preparing confidential swap", 1, privateSteps)

	c.emit(types.StatusQuoting, "fetching confidential swap quote", 2, privateSteps)
	swapQuote, err := c.privacy.GetSwapQuote(ctx, q.InputMint, q.OutputMint, q.InAmount, identity)
	if err != nil {
		return c.fail(types.InternalError("failed to get confidential swap quote", err))
	}

	c.emit(types.StatusDepositing, "depositing into the confidential system", 3, privateSteps)
	depositBlob, err := c.privacy.DepositTransaction(ctx, swapQuote.OrderID, identity)
	if err != nil {
		return c.fail(types.InternalError("failed to build deposit transaction", err))
	}
	depositTx, err := c.signDecoded(depositBlob)
	if err != nil {
		return c.finish(err)
	}
	depositSig, err := c.chain.Submit(ctx, depositTx)
	if err != nil {
		return c.fail(types.InternalError("failed to submit deposit transaction", err))
	}
	// Record the signature before confirmation is known. This is what makes
	// recovery possible if the process dies mid-flow.
	c.recovery = types.RecoveryRecord{
		LastDepositSignature: depositSig,
		Kind:                 types.RecoveryDeposit,
	}

	c.emit(types.StatusConfirmingDeposit, "awaiting deposit confirmation", 4, privateSteps)
	if err := c.confirmWithFinalLookup(ctx, depositSig); err != nil {
		var failed *chain.TxFailedError
		if errors.As(err, &failed) {
			// The deposit itself was rejected on-chain; no value moved.
			c.recovery = types.RecoveryRecord{}
			return c.fail(types.InternalError("deposit transaction failed", failed))
		}
		if types.KindOf(err) == types.ErrIndeterminate {
			c.recovery.NeedsRecovery = true
		}
		return c.finish(err)
	}

	// Deposit confirmed. From here on, value has left the plain balance.
	c.emit(types.StatusSwapping, "executing confidential swap", 5, privateSteps)
	swapBlob, err := c.privacy.SwapTransaction(ctx, swapQuote.OrderID, identity)
	if err != nil {
		c.recovery.NeedsRecovery = true
		return c.fail(types.PostDepositError(depositSig, err))
	}
	swapTx, err := c.signDecoded(swapBlob)
	if err != nil {
		// Declining here still leaves the deposit in the confidential
		// system; keep the record live so recovery can reconcile it.
		c.recovery.NeedsRecovery = true
		return c.finish(err)
	}
	swapSig, err := c.chain.Submit(ctx, swapTx)
	if err != nil {
		c.recovery.NeedsRecovery = true
		return c.fail(types.PostDepositError(depositSig, err))
	}
	log.Debug().Str("signature", swapSig).Msg("confidential swap submitted")

	c.emit(types.StatusPollingOrder, "waiting for the order to complete", 6, privateSteps)
	if err := c.pollOrder(ctx, swapQuote.OrderID); err != nil {
		if retry.IsExhausted(err) {
			// Exceeding the poll bound is a timeout, not a failure; the
			// recovery record stays.
			c.recovery.NeedsRecovery = true
			return c.finish(types.IndeterminateError(depositSig, err))
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		c.recovery.NeedsRecovery = true
		return c.fail(types.PostDepositError(depositSig, err))
	}

	// Order completed. Credit the confidential output optimistically ahead
	// of the next full refresh, then refresh once upstream state settles.
	c.recovery = types.RecoveryRecord{}
	credited := output.UnderlyingAddress()
	c.balances.Credit(types.ConfidentialAddressPrefix+credited, q.OutAmountDecimal(output.Decimals))
	c.scheduleSettledRefresh()

	c.emit(types.StatusCompleted, "confidential swap completed", privateSteps, privateSteps)
	c.scheduleProgressClear()
	return nil
}

// pollOrder polls the order-status endpoint at a fixed interval up to the
// configured attempt bound.
func (c *Controller) pollOrder(ctx context.Context, orderID string) error {
	policy := retry.Policy{
		MaxAttempts: c.opts.OrderPollAttempts,
		Backoff:     retry.Fixed(c.opts.OrderPollInterval),
		Retryable: func(err error) bool {
			return errors.Is(err, errOrderPending)
		},
	}
	return policy.Do(ctx, func(ctx context.Context) error {
		state, err := c.privacy.OrderStatus(ctx, orderID)
		if err != nil {
			// Transient poll failures count against the same bound.
			return fmt.Errorf("%w: %v", errOrderPending, err)
		}
		switch state {
		case types.OrderCompleted:
			return nil
		case types.OrderFailed:
			return fmt.Errorf("order failed")
		default:
			return errOrderPending
		}
	})
}

// Withdraw moves a confidential balance back into the plain universe:
// build, sign, submit, confirm, with the same recovery discipline as
// deposits.
func (c *Controller) Withdraw(ctx context.Context, token types.Token, amountDecimal string) error {
	identity := c.signer.PublicKey().String()
	mint := token.UnderlyingAddress()

	c.emit(types.StatusBuilding, "building withdrawal transaction", 1, publicSteps)
	blob, err := c.privacy.WithdrawTransaction(ctx, mint, amountDecimal, identity, token.Decimals)
	if err != nil {
		return c.fail(types.InternalError("failed to build withdrawal transaction", err))
	}

	c.emit(types.StatusSigning, "waiting for wallet signature", 2, publicSteps)
	tx, err := c.signDecoded(blob)
	if err != nil {
		return c.finish(err)
	}

	c.emit(types.StatusSubmitting, "submitting withdrawal", 3, publicSteps)
	signature, err := c.chain.Submit(ctx, tx)
	if err != nil {
		return c.fail(types.InternalError("failed to submit withdrawal", err))
	}
	c.recovery = types.RecoveryRecord{
		LastDepositSignature: signature,
		Kind:                 types.RecoveryWithdrawal,
	}

	c.emit(types.StatusConfirming, "awaiting confirmation", 4, publicSteps)
	if err := c.confirmWithFinalLookup(ctx, signature); err != nil {
		var failed *chain.TxFailedError
		if errors.As(err, &failed) {
			c.recovery = types.RecoveryRecord{}
			return c.fail(types.InternalError("withdrawal transaction failed", failed))
		}
		if types.KindOf(err) == types.ErrIndeterminate {
			c.recovery.NeedsRecovery = true
		}
		return c.finish(err)
	}

	c.recovery = types.RecoveryRecord{}
	if err := c.refreshBalances(ctx); err != nil {
		log.Debug().Err(err).Msg("post-withdrawal balance refresh failed")
	}
	c.emit(types.StatusCompleted, fmt.Sprintf("withdrawal confirmed: %s", signature), publicSteps, publicSteps)
	c.scheduleProgressClear()
	return nil
}

// refreshBalances re-reads the currently relevant tokens.
func (c *Controller) refreshBalances(ctx context.Context) error {
	return c.balances.Refresh(ctx, c.signer.PublicKey(), []types.Token{c.selectedInput, c.selectedOutput})
}

// scheduleSettledRefresh runs a full refresh after a short delay so the
// confidential backend's view has time to settle.
func (c *Controller) scheduleSettledRefresh() {
	time.AfterFunc(c.opts.SettleRefreshDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.refreshBalances(ctx); err != nil {
			log.Debug().Err(err).Msg("settled balance refresh failed")
		}
	})
}

// fail emits the failed terminal state and returns the error.
func (c *Controller) fail(err error) error {
	c.emit(types.StatusFailed, err.Error(), c.progress.Step, c.progress.TotalSteps)
	c.scheduleProgressClear()
	return err
}

// finish routes an already-classified error to its terminal state: cancelled
// stays cancelled, everything else is failed.
func (c *Controller) finish(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if types.KindOf(err) == types.ErrCancelled {
		c.emit(types.StatusCancelled, "signature request declined", c.progress.Step, c.progress.TotalSteps)
		c.scheduleProgressClear()
		return err
	}
	return c.fail(err)
}
