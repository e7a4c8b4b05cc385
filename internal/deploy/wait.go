package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// WaitPolicy controls receipt polling
type WaitPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Timeout bounds the whole wait; 0 waits until the context is done
	Timeout time.Duration
}

// DefaultWaitPolicy polls quickly at first and backs off to a few seconds
func DefaultWaitPolicy() WaitPolicy {
	return WaitPolicy{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// ReceiptFetcher is the single call receipt polling needs
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var errPending = errors.New("receipt not yet available")

func (p WaitPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = p.Timeout
	b.Multiplier = 1.5
	b.RandomizationFactor = 0.1
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// WaitForReceipt polls until the transaction's receipt is available.
// It never resubmits; when it gives up the transaction may still be mined later.
func WaitForReceipt(ctx context.Context, backend ReceiptFetcher, txHash common.Hash, policy WaitPolicy, logger *slog.Logger) (*types.Receipt, error) {
	if policy.InitialInterval <= 0 || policy.MaxInterval <= 0 {
		def := DefaultWaitPolicy()
		policy.InitialInterval, policy.MaxInterval = def.InitialInterval, def.MaxInterval
	}

	attempts := 0
	operation := func() (*types.Receipt, error) {
		attempts++
		receipt, err := backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err == nil || errors.Is(err, ethereum.NotFound) {
			return nil, errPending
		}
		// transient RPC failures while polling are retried like a pending receipt
		return nil, fmt.Errorf("fetching receipt: %w", err)
	}

	notify := func(err error, next time.Duration) {
		if !errors.Is(err, errPending) {
			logger.Warn("receipt poll failed", "tx", txHash.Hex(), "attempt", attempts, "error", err)
		}
	}

	receipt, err := backoff.RetryNotifyWithData(operation, policy.backOff(ctx), notify)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w for %s after %d attempt(s): %w", ErrReceiptTimeout, txHash.Hex(), attempts, ctxErr)
		}
		return nil, fmt.Errorf("%w for %s after %d attempt(s): %v", ErrReceiptTimeout, txHash.Hex(), attempts, err)
	}
	return receipt, nil
}
