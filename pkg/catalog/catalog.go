// Package catalog resolves the set of swappable tokens for the current
// privacy mode: wallet-held tokens first, then the curated defaults, plus
// synthesized confidential-wrapped variants when privacy mode is on.
package catalog

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"wave-swap/pkg/balance"
	"wave-swap/pkg/chain"
	"wave-swap/pkg/types"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "catalog").Logger()
}

// Defaults is the curated token list shown before any wallet is connected
// and used as the fallback whenever a wallet scan fails.
var Defaults = []types.Token{
	{Address: balance.NativeMint, Decimals: 9, Symbol: "SOL", Name: "Solana", SupportsPrivateMode: true, IsNative: true},
	{Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6, Symbol: "USDC", Name: "USD Coin", SupportsPrivateMode: true},
	{Address: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Decimals: 6, Symbol: "USDT", Name: "Tether USD"},
}

// WalletScanner lists the identity's SPL holdings.
type WalletScanner interface {
	WalletTokens(ctx context.Context, owner solana.PublicKey) ([]chain.WalletToken, error)
}

// Enricher fetches display metadata for tokens the scan discovered. Best
// effort; the catalog never waits for it and never surfaces its failures.
type Enricher interface {
	TokenMetadata(ctx context.Context, addresses []string) (map[string]types.Token, error)
}

// Catalog builds ordered token lists. Safe for use from the single-writer
// session flow; the metadata cache is mutex-guarded because enrichment runs
// in the background.
type Catalog struct {
	scanner  WalletScanner
	enricher Enricher

	mu       sync.RWMutex
	metadata map[string]types.Token
}

// New creates a catalog. Either collaborator may be nil, in which case that
// source is simply skipped.
func New(scanner WalletScanner, enricher Enricher) *Catalog {
	return &Catalog{
		scanner:  scanner,
		enricher: enricher,
		metadata: make(map[string]types.Token),
	}
}

// Resolve produces the ordered token list and an address-keyed lookup.
// Duplicates are removed by address, first-seen wins, wallet-held tokens
// prioritized over curated defaults. In private mode a confidential-wrapped
// token is synthesized for every privacy-map address whose balance is a
// strictly positive number; sentinels and zero are excluded. Wallet-scan or
// enrichment failures fall back to the curated list and are never surfaced.
func (c *Catalog) Resolve(ctx context.Context, identity *solana.PublicKey, privateMode bool, privacyMap map[string]types.Balance) ([]types.Token, map[string]types.Token) {
	ordered := make([]types.Token, 0, len(Defaults)+len(privacyMap))
	byAddress := make(map[string]types.Token)

	add := func(t types.Token) {
		if t.Address == "" {
			return
		}
		if _, exists := byAddress[t.Address]; exists {
			return
		}
		byAddress[t.Address] = t
		ordered = append(ordered, t)
	}

	if identity != nil && c.scanner != nil {
		holdings, err := c.scanner.WalletTokens(ctx, *identity)
		if err != nil {
			log.Debug().Err(err).Msg("wallet scan failed, using curated defaults")
		} else {
			var unknown []string
			for _, h := range holdings {
				t := c.describe(h)
				if t.Symbol == "" {
					unknown = append(unknown, h.Mint)
				}
				add(t)
			}
			if len(unknown) > 0 {
				go c.enrich(unknown)
			}
		}
	}

	for _, t := range Defaults {
		add(t)
	}

	if privateMode {
		for mint, bal := range privacyMap {
			if !bal.Positive() {
				continue
			}
			base, known := byAddress[mint]
			if !known {
				base = types.Token{Address: mint, Decimals: 9, Symbol: shortAddress(mint)}
			}
			add(base.WrapConfidential())
		}
	}

	return ordered, byAddress
}

// describe builds a token from a wallet holding, filling in any cached
// metadata.
func (c *Catalog) describe(h chain.WalletToken) types.Token {
	c.mu.RLock()
	meta, ok := c.metadata[h.Mint]
	c.mu.RUnlock()
	if ok {
		return meta
	}
	for _, d := range Defaults {
		if d.Address == h.Mint {
			return d
		}
	}
	return types.Token{Address: h.Mint, Decimals: h.Decimals, Symbol: "", Name: shortAddress(h.Mint)}
}

// enrich runs in the background and must never delay token-list
// availability. Failures are logged and dropped.
func (c *Catalog) enrich(addresses []string) {
	if c.enricher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	meta, err := c.enricher.TokenMetadata(ctx, addresses)
	if err != nil {
		log.Debug().Err(err).Msg("token metadata enrichment failed")
		return
	}

	c.mu.Lock()
	for addr, t := range meta {
		c.metadata[addr] = t
	}
	c.mu.Unlock()
}

func shortAddress(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:4] + "…" + addr[len(addr)-4:]
}
