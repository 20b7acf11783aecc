// Package recovery reconciles a signature whose outcome timed out: it reads
// remote deposit/order state and updates local flags and balances. It never
// submits a transaction.
package recovery

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"wave-swap/pkg/balance"
	"wave-swap/pkg/privacy"
	"wave-swap/pkg/types"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "recovery").Logger()
}

// Backend is the slice of the confidential backend recovery needs.
type Backend interface {
	QueryRecovery(ctx context.Context, identity, signature string, kind types.RecoveryKind) (*privacy.RecoveryStatus, error)
	ConfidentialBalances(ctx context.Context, identity string) (map[string]types.Balance, error)
}

// Outcome is what a recovery query decided.
type Outcome struct {
	Action  privacy.RecoveryAction
	Message string
	// StateChanged reports whether local flags or balances were adjusted.
	StateChanged bool
}

// Recoverer runs recovery queries for one session. It shares the session's
// recovery record under the single-writer discipline of the cooperative
// flow.
type Recoverer struct {
	backend  Backend
	balances *balance.Aggregator
	identity string
	record   *types.RecoveryRecord

	applied map[string]bool
}

// NewRecoverer wires a recoverer over the session's record and balance view.
func NewRecoverer(backend Backend, balances *balance.Aggregator, identity string, record *types.RecoveryRecord) *Recoverer {
	return &Recoverer{
		backend:  backend,
		balances: balances,
		identity: identity,
		record:   record,
		applied:  make(map[string]bool),
	}
}

// Recover queries the remote order/deposit state for a signature and applies
// the verdict locally. Idempotent: a confirmed outcome adjusts balances
// exactly once per signature, no matter how often it is called.
func (r *Recoverer) Recover(ctx context.Context, signature string, kind types.RecoveryKind) (*Outcome, error) {
	status, err := r.backend.QueryRecovery(ctx, r.identity, signature, kind)
	if err != nil {
		return nil, types.InternalError("recovery query failed", err)
	}

	outcome := &Outcome{Action: status.Action, Message: status.Message}

	switch status.Action {
	case privacy.ActionRecoveryNeeded:
		r.record.LastDepositSignature = signature
		r.record.Kind = kind
		r.record.NeedsRecovery = true
		outcome.StateChanged = true
		log.Info().Str("signature", signature).Msg("funds are in an indeterminate state; manual follow-up required")

	case privacy.ActionDepositConfirmed, privacy.ActionWithdrawalConfirmed:
		if !r.applied[signature] {
			r.applied[signature] = true
			view, err := r.backend.ConfidentialBalances(ctx, r.identity)
			if err != nil {
				log.Debug().Err(err).Msg("confidential view fetch after recovery failed")
			} else {
				r.balances.ApplyConfidential(view)
			}
			outcome.StateChanged = true
		}
		if r.record.LastDepositSignature == signature {
			*r.record = types.RecoveryRecord{}
		}

	default:
		// Analysis complete, nothing actionable.
	}

	return outcome, nil
}
