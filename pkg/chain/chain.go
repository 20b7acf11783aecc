// Package chain wraps the Solana RPC surface the core needs: transaction
// submission, confirmation checks, the final direct status lookup, and
// balance reads.
package chain

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wave-swap/pkg/types"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "chain").Logger()
}

// ErrNotConfirmed is returned by Confirm while a submitted transaction has
// not yet reached the configured commitment. Retryable.
var ErrNotConfirmed = errors.New("transaction not yet confirmed")

// TxFailedError reports a transaction that executed and errored on-chain.
// Never retryable; the outcome is final.
type TxFailedError struct {
	Signature string
	Reason    string
}

func (e *TxFailedError) Error() string {
	return fmt.Sprintf("transaction %s failed on-chain: %s", e.Signature, e.Reason)
}

// TxStatus is the outcome of a direct status lookup.
type TxStatus int

const (
	TxUnknown TxStatus = iota
	TxConfirmed
	TxFailed
)

// Config holds the RPC connection settings.
type Config struct {
	RPCUrl        string
	Commitment    string
	SkipPreflight bool
}

// Client wraps a Solana RPC connection.
type Client struct {
	config Config
	rpc    *rpc.Client
}

// NewClient connects to the configured RPC endpoint.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCUrl == "" {
		return nil, fmt.Errorf("RPC URL not configured")
	}
	return &Client{
		config: cfg,
		rpc:    rpc.New(cfg.RPCUrl),
	}, nil
}

// DecodeTransaction unpacks a base64 transaction blob returned by either
// backend into a signable transaction.
func DecodeTransaction(serialized string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(serialized)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction encoding: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return tx, nil
}

// Submit broadcasts a signed transaction and returns its signature.
func (c *Client) Submit(ctx context.Context, tx *solana.Transaction) (string, error) {
	opts := rpc.TransactionOpts{
		SkipPreflight:       c.config.SkipPreflight,
		PreflightCommitment: c.getCommitment(),
	}
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig.String(), nil
}

// Confirm checks whether a signature has reached the configured commitment.
// Returns ErrNotConfirmed while pending; a transaction that errored on-chain
// is a hard failure.
func (c *Client) Confirm(ctx context.Context, signature string) error {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("invalid transaction signature: %w", err)
	}

	out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		return fmt.Errorf("failed to get signature status: %w", err)
	}
	if len(out.Value) == 0 || out.Value[0] == nil {
		return ErrNotConfirmed
	}

	status := out.Value[0]
	if status.Err != nil {
		return &TxFailedError{Signature: signature, Reason: fmt.Sprintf("%v", status.Err)}
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return nil
	default:
		return ErrNotConfirmed
	}
}

// TransactionStatus performs a direct transaction lookup. A transaction can
// finalize after a confirmation call has already timed out, so this is the
// last word before giving up on a submitted signature.
func (c *Client) TransactionStatus(ctx context.Context, signature string) (TxStatus, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return TxUnknown, fmt.Errorf("invalid transaction signature: %w", err)
	}

	txInfo, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.getCommitment(),
	})
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return TxUnknown, nil
		}
		return TxUnknown, fmt.Errorf("failed to get transaction: %w", err)
	}
	if txInfo == nil || txInfo.Meta == nil {
		return TxUnknown, nil
	}
	if txInfo.Meta.Err != nil {
		return TxFailed, nil
	}
	return TxConfirmed, nil
}

// SolBalance returns the identity's native balance in human-decimal SOL.
func (c *Client) SolBalance(ctx context.Context, owner solana.PublicKey) (types.Balance, error) {
	balance, err := c.rpc.GetBalance(ctx, owner, c.getCommitment())
	if err != nil {
		return types.Balance{}, fmt.Errorf("failed to get balance: %w", err)
	}
	amount := decimal.NewFromUint64(balance.Value).Shift(-9)
	return types.Numeric(amount), nil
}

// TokenBalance returns the identity's balance for one mint in human-decimal
// units. A missing token account reads as zero.
func (c *Client) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (types.Balance, error) {
	tokenAccount, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return types.Balance{}, fmt.Errorf("failed to derive associated token address: %w", err)
	}

	accountInfo, err := c.rpc.GetTokenAccountBalance(ctx, tokenAccount, c.getCommitment())
	if err != nil {
		if strings.Contains(err.Error(), "could not find account") || strings.Contains(err.Error(), "not found") {
			return types.Numeric(decimal.Zero), nil
		}
		return types.Balance{}, fmt.Errorf("failed to get token balance: %w", err)
	}

	raw, err := strconv.ParseUint(accountInfo.Value.Amount, 10, 64)
	if err != nil {
		return types.Balance{}, fmt.Errorf("failed to parse token balance: %w", err)
	}
	amount := decimal.NewFromUint64(raw).Shift(-int32(accountInfo.Value.Decimals))
	return types.Numeric(amount), nil
}

// WalletToken is one SPL holding found by a wallet scan.
type WalletToken struct {
	Mint     string
	Amount   uint64
	Decimals uint8
}

// WalletTokens scans the identity's SPL token accounts. Used on connect and
// explicit refresh only; per-edit balance reads go through TokenBalance.
func (c *Client) WalletTokens(ctx context.Context, owner solana.PublicKey) ([]WalletToken, error) {
	out, err := c.rpc.GetTokenAccountsByOwner(
		ctx,
		owner,
		&rpc.GetTokenAccountsConfig{ProgramId: solana.TokenProgramID.ToPointer()},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan token accounts: %w", err)
	}

	holdings := make([]WalletToken, 0, len(out.Value))
	for _, acc := range out.Value {
		var ta token.Account
		if err := bin.NewBinDecoder(acc.Account.Data.GetBinary()).Decode(&ta); err != nil {
			log.Debug().Err(err).Msg("skipping undecodable token account")
			continue
		}
		if ta.Amount == 0 {
			continue
		}
		decimals, err := c.mintDecimals(ctx, ta.Mint)
		if err != nil {
			log.Debug().Err(err).Str("mint", ta.Mint.String()).Msg("skipping token with unknown decimals")
			continue
		}
		holdings = append(holdings, WalletToken{
			Mint:     ta.Mint.String(),
			Amount:   ta.Amount,
			Decimals: decimals,
		})
	}
	return holdings, nil
}

// mintDecimals reads the decimals byte from a mint account. The field sits
// at byte offset 44 of the mint layout.
func (c *Client) mintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	accountInfo, err := c.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		return 0, fmt.Errorf("failed to get mint account info: %w", err)
	}
	if accountInfo.Value == nil {
		return 0, fmt.Errorf("mint account not found")
	}
	data := accountInfo.Value.Data.GetBinary()
	if len(data) < 45 {
		return 0, fmt.Errorf("invalid mint account data")
	}
	return data[44], nil
}

func (c *Client) getCommitment() rpc.CommitmentType {
	switch strings.ToLower(c.config.Commitment) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "confirmed":
		return rpc.CommitmentConfirmed
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}
