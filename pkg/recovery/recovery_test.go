package recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"wave-swap/pkg/balance"
	"wave-swap/pkg/privacy"
	"wave-swap/pkg/types"
)

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

type fakeBackend struct {
	status       *privacy.RecoveryStatus
	queryErr     error
	view         map[string]types.Balance
	balanceCalls int
}

func (f *fakeBackend) QueryRecovery(ctx context.Context, identity, signature string, kind types.RecoveryKind) (*privacy.RecoveryStatus, error) {
	return f.status, f.queryErr
}

func (f *fakeBackend) ConfidentialBalances(ctx context.Context, identity string) (map[string]types.Balance, error) {
	f.balanceCalls++
	return f.view, nil
}

func newAggregator() *balance.Aggregator {
	return balance.NewAggregator(nil, nil)
}

func TestRecoverDepositConfirmedIsIdempotent(t *testing.T) {
	backend := &fakeBackend{
		status: &privacy.RecoveryStatus{Action: privacy.ActionDepositConfirmed, Message: "deposit landed"},
		view:   map[string]types.Balance{usdcMint: types.Numeric(decimal.RequireFromString("150"))},
	}
	record := &types.RecoveryRecord{LastDepositSignature: "sig1", Kind: types.RecoveryDeposit, NeedsRecovery: true}
	agg := newAggregator()
	r := NewRecoverer(backend, agg, "wallet1", record)

	outcome, err := r.Recover(context.Background(), "sig1", types.RecoveryDeposit)
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.StateChanged {
		t.Error("first application must report a state change")
	}
	if record.LastDepositSignature != "" || record.NeedsRecovery {
		t.Errorf("a confirmed outcome must clear the matching record, got %+v", record)
	}
	if b, _ := agg.Get(types.ConfidentialAddressPrefix + usdcMint); b.Amount.String() != "150" {
		t.Fatalf("expected the confidential credit, got %s", b)
	}

	// Second invocation: same verdict, no second adjustment.
	outcome, err = r.Recover(context.Background(), "sig1", types.RecoveryDeposit)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.StateChanged {
		t.Error("a repeated confirmed outcome must be a no-op")
	}
	if backend.balanceCalls != 1 {
		t.Errorf("balances must be fetched exactly once per signature, got %d", backend.balanceCalls)
	}
	if b, _ := agg.Get(types.ConfidentialAddressPrefix + usdcMint); b.Amount.String() != "150" {
		t.Errorf("balance adjusted twice: %s", b)
	}
}

func TestRecoverDistinctSignaturesApplySeparately(t *testing.T) {
	backend := &fakeBackend{
		status: &privacy.RecoveryStatus{Action: privacy.ActionDepositConfirmed},
		view:   map[string]types.Balance{usdcMint: types.Numeric(decimal.RequireFromString("10"))},
	}
	r := NewRecoverer(backend, newAggregator(), "wallet1", &types.RecoveryRecord{})

	if _, err := r.Recover(context.Background(), "sigA", types.RecoveryDeposit); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Recover(context.Background(), "sigB", types.RecoveryDeposit); err != nil {
		t.Fatal(err)
	}
	if backend.balanceCalls != 2 {
		t.Errorf("each signature gets its own application, got %d fetches", backend.balanceCalls)
	}
}

func TestRecoverRecoveryNeededSetsRecord(t *testing.T) {
	backend := &fakeBackend{
		status: &privacy.RecoveryStatus{Action: privacy.ActionRecoveryNeeded, Message: "deposit stuck"},
	}
	record := &types.RecoveryRecord{}
	r := NewRecoverer(backend, newAggregator(), "wallet1", record)

	outcome, err := r.Recover(context.Background(), "sig1", types.RecoveryDeposit)
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.StateChanged {
		t.Error("setting the record is a state change")
	}
	if !record.NeedsRecovery || record.LastDepositSignature != "sig1" || record.Kind != types.RecoveryDeposit {
		t.Errorf("unexpected record %+v", record)
	}
}

func TestRecoverNoneIsNoOp(t *testing.T) {
	backend := &fakeBackend{status: &privacy.RecoveryStatus{Action: privacy.ActionNone}}
	record := &types.RecoveryRecord{LastDepositSignature: "other", Kind: types.RecoveryDeposit}
	r := NewRecoverer(backend, newAggregator(), "wallet1", record)

	outcome, err := r.Recover(context.Background(), "sig1", types.RecoveryDeposit)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.StateChanged {
		t.Error("a none verdict changes nothing")
	}
	if record.LastDepositSignature != "other" {
		t.Errorf("an unrelated record must survive, got %+v", record)
	}
}

func TestRecoverConfirmedOnlyClearsMatchingRecord(t *testing.T) {
	backend := &fakeBackend{
		status: &privacy.RecoveryStatus{Action: privacy.ActionWithdrawalConfirmed},
		view:   map[string]types.Balance{},
	}
	record := &types.RecoveryRecord{LastDepositSignature: "other", Kind: types.RecoveryWithdrawal, NeedsRecovery: true}
	r := NewRecoverer(backend, newAggregator(), "wallet1", record)

	if _, err := r.Recover(context.Background(), "sig1", types.RecoveryWithdrawal); err != nil {
		t.Fatal(err)
	}
	if record.LastDepositSignature != "other" {
		t.Errorf("a record for a different signature must not be cleared, got %+v", record)
	}
}

func TestRecoverQueryFailure(t *testing.T) {
	backend := &fakeBackend{queryErr: errors.New("backend down")}
	r := NewRecoverer(backend, newAggregator(), "wallet1", &types.RecoveryRecord{})

	if _, err := r.Recover(context.Background(), "sig1", types.RecoveryDeposit); err == nil {
		t.Fatal("expected the query failure to surface")
	}
}
