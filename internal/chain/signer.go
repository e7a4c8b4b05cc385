package chain

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrInvalidKey is returned for malformed private keys
	ErrInvalidKey = errors.New("invalid private key")

	// ErrSignerMismatch is returned when the key does not control the configured address
	ErrSignerMismatch = errors.New("private key does not match signer address")
)

// Signer holds the deploying account's key for the duration of a deploy
type Signer struct {
	address common.Address
	key     *ecdsa.PrivateKey
}

// NewSigner parses a hex private key. When expected is non-empty the key must control that address.
func NewSigner(hexKey, expected string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	address := crypto.PubkeyToAddress(key.PublicKey)
	if expected != "" && common.HexToAddress(expected) != address {
		return nil, fmt.Errorf("%w: key controls %s, configured %s", ErrSignerMismatch, address.Hex(), expected)
	}

	return &Signer{address: address, key: key}, nil
}

// Address returns the signing account
func (s *Signer) Address() common.Address {
	return s.address
}

// Sign signs tx with the EIP-155 signer for chainID
func (s *Signer) Sign(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return signed, nil
}
