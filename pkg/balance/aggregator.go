// Package balance maintains the merged address→amount view across the two
// balance universes: plain on-chain token balances and confidential
// balances. The two sources are fetched independently and can race, so the
// merge is most-informative-wins, not most-recent-wins.
package balance

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wave-swap/pkg/types"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "balance").Logger()
}

// NativeMint is the wrapped-SOL mint, included in every refresh as the
// reference token.
const NativeMint = "So11111111111111111111111111111111111111112"

// PlainSource reads on-chain balances.
type PlainSource interface {
	SolBalance(ctx context.Context, owner solana.PublicKey) (types.Balance, error)
	TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (types.Balance, error)
}

// ConfidentialSource reads the confidential balance view.
type ConfidentialSource interface {
	ConfidentialBalances(ctx context.Context, identity string) (map[string]types.Balance, error)
}

// Aggregator owns the merged balance map. All mutation goes through
// read-merge-write; nothing blind-overwrites an entry.
type Aggregator struct {
	plain        PlainSource
	confidential ConfidentialSource

	mu       sync.Mutex
	balances map[string]types.Balance
	privacy  map[string]types.Balance
}

// NewAggregator creates an empty aggregator over the two sources.
func NewAggregator(plain PlainSource, confidential ConfidentialSource) *Aggregator {
	return &Aggregator{
		plain:        plain,
		confidential: confidential,
		balances:     make(map[string]types.Balance),
		privacy:      make(map[string]types.Balance),
	}
}

// Merge combines an incoming balance with the existing entry at the same
// address. A numeric incoming value always wins; a sentinel only replaces an
// entry that is absent, zero, or itself a sentinel. Never let a sentinel
// overwrite a known-good numeric balance.
func Merge(existing types.Balance, exists bool, incoming types.Balance) types.Balance {
	if incoming.IsNumeric() {
		return incoming
	}
	if !exists || !existing.IsNumeric() || existing.Amount.IsZero() {
		return incoming
	}
	return existing
}

// Refresh re-reads balances for the currently relevant tokens: the selected
// input/output pair plus the native reference token, and the identity's full
// confidential view. Scope is bounded deliberately; a full wallet rescan
// happens only on connect or explicit refresh.
func (a *Aggregator) Refresh(ctx context.Context, owner solana.PublicKey, selected []types.Token) error {
	seen := map[string]bool{}
	tokens := make([]types.Token, 0, len(selected)+1)
	for _, t := range selected {
		if t.Address == "" || seen[t.Address] {
			continue
		}
		seen[t.Address] = true
		tokens = append(tokens, t)
	}
	if !seen[NativeMint] {
		tokens = append(tokens, types.Token{Address: NativeMint, Decimals: 9, Symbol: "SOL", IsNative: true})
	}

	for _, t := range tokens {
		if strings.HasPrefix(t.Address, types.ConfidentialAddressPrefix) {
			continue
		}
		fetched, err := a.fetchPlain(ctx, owner, t)
		if err != nil {
			log.Debug().Err(err).Str("mint", t.Address).Msg("plain balance fetch failed")
			continue
		}
		a.apply(t.Address, fetched)
	}

	confidential, err := a.confidential.ConfidentialBalances(ctx, owner.String())
	if err != nil {
		return err
	}
	a.applyConfidential(confidential)
	return nil
}

// ApplyConfidential merges a freshly fetched confidential view into the map.
// Exposed for the recovery flow, which learns about confidential balances
// out-of-band.
func (a *Aggregator) ApplyConfidential(view map[string]types.Balance) {
	a.applyConfidential(view)
}

func (a *Aggregator) applyConfidential(view map[string]types.Balance) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for mint, incoming := range view {
		existing, exists := a.privacy[mint]
		merged := Merge(existing, exists, incoming)
		a.privacy[mint] = merged
		a.applyLocked(types.ConfidentialAddressPrefix+mint, merged)
	}
}

func (a *Aggregator) apply(address string, incoming types.Balance) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applyLocked(address, incoming)
}

func (a *Aggregator) applyLocked(address string, incoming types.Balance) {
	existing, exists := a.balances[address]
	a.balances[address] = Merge(existing, exists, incoming)
}

func (a *Aggregator) fetchPlain(ctx context.Context, owner solana.PublicKey, t types.Token) (types.Balance, error) {
	if t.IsNative {
		return a.plain.SolBalance(ctx, owner)
	}
	mint, err := solana.PublicKeyFromBase58(t.Address)
	if err != nil {
		return types.Balance{}, err
	}
	return a.plain.TokenBalance(ctx, owner, mint)
}

// Credit optimistically adds a human-decimal amount at an address, ahead of
// the next full refresh. A sentinel entry is replaced by the credited amount
// alone.
func (a *Aggregator) Credit(address string, amount decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	existing, exists := a.balances[address]
	next := types.Numeric(amount)
	if exists && existing.IsNumeric() {
		next = types.Numeric(existing.Amount.Add(amount))
	}
	a.balances[address] = next

	if strings.HasPrefix(address, types.ConfidentialAddressPrefix) {
		mint := address[len(types.ConfidentialAddressPrefix):]
		a.privacy[mint] = next
	}
}

// Get returns the entry at an address.
func (a *Aggregator) Get(address string) (types.Balance, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.balances[address]
	return b, ok
}

// All returns a copy of the merged view.
func (a *Aggregator) All() map[string]types.Balance {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]types.Balance, len(a.balances))
	for k, v := range a.balances {
		out[k] = v
	}
	return out
}

// PrivacyMap returns a copy of the raw confidential view keyed by underlying
// mint. The catalog synthesizes confidential-wrapped tokens from it.
func (a *Aggregator) PrivacyMap() map[string]types.Balance {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]types.Balance, len(a.privacy))
	for k, v := range a.privacy {
		out[k] = v
	}
	return out
}
