package deploy

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrEncoding is returned when constructor arguments do not match the ABI.
	// It is always raised before any network call.
	ErrEncoding = errors.New("constructor argument encoding failed")

	// ErrGasEstimation is returned when the creation transaction fails simulation
	ErrGasEstimation = errors.New("gas estimation failed")

	// ErrSubmission is returned when the node rejects the signed transaction
	ErrSubmission = errors.New("transaction submission rejected")

	// ErrReceiptTimeout is returned when waiting for a receipt stops before one arrives.
	// The transaction was submitted and may still be mined.
	ErrReceiptTimeout = errors.New("stopped waiting for receipt")
)

// ExecutionRevertedError is returned when the creation transaction was mined with status 0
type ExecutionRevertedError struct {
	TxHash  common.Hash
	Receipt *types.Receipt
}

func (e *ExecutionRevertedError) Error() string {
	block := "unknown block"
	if e.Receipt != nil && e.Receipt.BlockNumber != nil {
		block = "block " + e.Receipt.BlockNumber.String()
	}
	return fmt.Sprintf("contract creation %s reverted in %s", e.TxHash.Hex(), block)
}
