package chain

import (
	"context"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"
)

// Limited throttles calls to a backend with a token bucket.
// Hosted RPC providers reject bursts, and receipt polling is the main source of them.
type Limited struct {
	next    Backend
	limiter *rate.Limiter
}

// NewLimited wraps next so that at most rps calls per second are made
func NewLimited(next Backend, rps float64) *Limited {
	burst := int(math.Ceil(rps))
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (l *Limited) ChainID(ctx context.Context) (*big.Int, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.ChainID(ctx)
}

func (l *Limited) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	return l.next.PendingNonceAt(ctx, account)
}

func (l *Limited) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.SuggestGasPrice(ctx)
}

func (l *Limited) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	return l.next.EstimateGas(ctx, msg)
}

func (l *Limited) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.next.SendTransaction(ctx, tx)
}

func (l *Limited) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.TransactionReceipt(ctx, txHash)
}

func (l *Limited) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.CallContract(ctx, msg, blockNumber)
}

func (l *Limited) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.CodeAt(ctx, account, blockNumber)
}
