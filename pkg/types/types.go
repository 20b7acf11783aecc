package types

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Mode selects how a swap is routed.
type Mode string

const (
	ModePublic  Mode = "public"
	ModePrivate Mode = "private"
)

// Token describes a swappable asset. Tokens are immutable once fetched; the
// catalog may derive a confidential-wrapped copy via WrapConfidential.
type Token struct {
	Address             string
	Decimals            uint8
	Symbol              string
	Name                string
	SupportsPrivateMode bool
	IsNative            bool
}

// ConfidentialAddressPrefix keys confidential-wrapped tokens so they never
// collide with the underlying mint address in the catalog or balance map.
const ConfidentialAddressPrefix = "confidential:"

// WrapConfidential derives the confidential-wrapped variant of a token. The
// wrapped token keeps the underlying decimals but carries its own address and
// symbol so both can be listed side by side.
func (t Token) WrapConfidential() Token {
	return Token{
		Address:             ConfidentialAddressPrefix + t.Address,
		Decimals:            t.Decimals,
		Symbol:              "c" + t.Symbol,
		Name:                t.Name + " (confidential)",
		SupportsPrivateMode: true,
		IsNative:            false,
	}
}

// UnderlyingAddress returns the plain mint address for a confidential-wrapped
// token, or the token's own address otherwise.
func (t Token) UnderlyingAddress() string {
	if len(t.Address) > len(ConfidentialAddressPrefix) && t.Address[:len(ConfidentialAddressPrefix)] == ConfidentialAddressPrefix {
		return t.Address[len(ConfidentialAddressPrefix):]
	}
	return t.Address
}

// Quote is a priced swap estimate. Amounts are integer smallest units;
// conversion to human-decimal form happens only at the presentation boundary.
// A quote is never mutated; the next request supersedes it wholesale.
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       uint64
	OutAmount      uint64
	PriceImpactPct float64
	RoutePlan      json.RawMessage
	Mode           Mode
}

// EstimateOnly reports whether the quote prices a private swap. Private swaps
// are executed through the confidential backend; the public route only serves
// as the price oracle.
func (q *Quote) EstimateOnly() bool {
	return q.Mode == ModePrivate
}

// OutAmountDecimal converts the quoted output to human-decimal form using the
// output token's decimals. Presentation use only.
func (q *Quote) OutAmountDecimal(decimals uint8) decimal.Decimal {
	return decimal.NewFromUint64(q.OutAmount).Shift(-int32(decimals))
}

// Status enumerates the swap state machine states.
type Status string

const (
	StatusIdle              Status = "idle"
	StatusQuoting           Status = "quoting"
	StatusBuilding          Status = "building"
	StatusSigning           Status = "signing"
	StatusSubmitting        Status = "submitting"
	StatusConfirming        Status = "confirming"
	StatusInitializing      Status = "initializing"
	StatusDepositing        Status = "depositing"
	StatusConfirmingDeposit Status = "confirming-deposit"
	StatusSwapping          Status = "swapping"
	StatusPollingOrder      Status = "polling-order"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusCancelled         Status = "cancelled"
)

// Terminal reports whether a status ends a swap invocation.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// SwapProgress is the single current-progress value for the active swap. A
// new invocation resets it to step 1; it is cleared after a terminal state
// has been visible for a fixed delay.
type SwapProgress struct {
	Status     Status
	Message    string
	Step       int
	TotalSteps int
}

// ProgressFunc receives a progress update at every step transition, not just
// terminal states.
type ProgressFunc func(SwapProgress)

// BalanceKind tags a balance map entry.
type BalanceKind int

const (
	// BalanceNumeric is a known-good amount.
	BalanceNumeric BalanceKind = iota
	// BalanceAuthRequired marks a confidential balance that exists but needs
	// a signed request to reveal.
	BalanceAuthRequired
	// BalanceDeposited marks funds moved into the confidential system but
	// not yet confirmed swappable.
	BalanceDeposited
)

// Sentinel wire values used by the confidential balance endpoint.
const (
	SentinelAuthRequired = "AUTH_REQUIRED"
	SentinelDeposited    = "DEPOSITED"
)

// Balance is an amount-or-sentinel entry in the balance map. Amount is in
// human-decimal token units and is meaningful only when Kind is
// BalanceNumeric.
type Balance struct {
	Kind   BalanceKind
	Amount decimal.Decimal
}

// Numeric builds a known-good balance.
func Numeric(amount decimal.Decimal) Balance {
	return Balance{Kind: BalanceNumeric, Amount: amount}
}

// IsNumeric reports whether the balance carries a real amount.
func (b Balance) IsNumeric() bool {
	return b.Kind == BalanceNumeric
}

// Positive reports a strictly positive numeric balance. Sentinels and zero
// are excluded; the catalog uses this to decide which confidential-wrapped
// tokens to synthesize.
func (b Balance) Positive() bool {
	return b.Kind == BalanceNumeric && b.Amount.IsPositive()
}

// String renders the balance for display, mapping sentinels back to their
// wire names.
func (b Balance) String() string {
	switch b.Kind {
	case BalanceAuthRequired:
		return SentinelAuthRequired
	case BalanceDeposited:
		return SentinelDeposited
	default:
		return b.Amount.String()
	}
}

// RecoveryKind identifies which flow a stuck signature belongs to.
type RecoveryKind string

const (
	RecoveryDeposit    RecoveryKind = "deposit"
	RecoveryWithdrawal RecoveryKind = "withdrawal"
)

// RecoveryRecord tracks the one outstanding signature whose on-chain outcome
// is unknown. A second timeout while one is pending overwrites the first;
// operator intervention is keyed by signature, not by this record.
type RecoveryRecord struct {
	LastDepositSignature string
	Kind                 RecoveryKind
	NeedsRecovery        bool
}

// OrderState enumerates confidential backend order statuses.
type OrderState string

const (
	OrderPending   OrderState = "pending"
	OrderCompleted OrderState = "completed"
	OrderFailed    OrderState = "failed"
)
