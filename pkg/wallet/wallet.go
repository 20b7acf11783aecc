// Package wallet abstracts the signing identity. The core only ever sees the
// Signer interface; the CLI uses a local keypair, a browser shell would wire
// a wallet adapter behind the same contract.
package wallet

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ErrDeclined is returned when the user refuses a signature request. It maps
// to the cancelled outcome, never to a hard failure.
var ErrDeclined = errors.New("signature request declined by user")

// Signer signs transactions for one connected identity. SignTransaction may
// suspend indefinitely pending human action; callers bound the wait with a
// context at the UI layer.
type Signer interface {
	PublicKey() solana.PublicKey
	SignTransaction(tx *solana.Transaction) error
}

// LocalSigner signs with an in-process private key.
type LocalSigner struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewLocalSigner parses a base58-encoded private key.
func NewLocalSigner(privateKeyBase58 string) (*LocalSigner, error) {
	if privateKeyBase58 == "" {
		return nil, fmt.Errorf("private key not configured")
	}
	privateKey, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &LocalSigner{
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
	}, nil
}

// PublicKey returns the signer's identity.
func (s *LocalSigner) PublicKey() solana.PublicKey {
	return s.publicKey
}

// SignTransaction signs every input the identity controls.
func (s *LocalSigner) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.publicKey) {
			return &s.privateKey
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}
