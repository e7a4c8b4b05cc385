package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/pendergraft/contraship/internal/chain"
)

// Sequencer serializes transaction parameter selection and submission per sending account.
// Nonces are never cached: each lease reads the pending count from the node.
type Sequencer struct {
	backend chain.Backend
	logger  *slog.Logger

	mu    sync.Mutex
	slots map[common.Address]chan struct{}
}

// NewSequencer creates a sequencer over backend
func NewSequencer(backend chain.Backend, logger *slog.Logger) *Sequencer {
	return &Sequencer{
		backend: backend,
		logger:  logger,
		slots:   make(map[common.Address]chan struct{}),
	}
}

// Overrides replaces network-derived transaction parameters
type Overrides struct {
	GasPrice *big.Int // nil uses the network suggestion
	GasLimit uint64   // 0 estimates
}

// TxParams are the parameters chosen for one transaction
type TxParams struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
}

// Lease is exclusive use of one account until Release
type Lease struct {
	seq  *Sequencer
	from common.Address
	once sync.Once
}

func (s *Sequencer) slot(from common.Address) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.slots[from]
	if !ok {
		ch = make(chan struct{}, 1)
		s.slots[from] = ch
	}
	return ch
}

// Acquire blocks until no other lease for from is held, or ctx is done
func (s *Sequencer) Acquire(ctx context.Context, from common.Address) (*Lease, error) {
	select {
	case s.slot(from) <- struct{}{}:
		return &Lease{seq: s, from: from}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Params selects nonce, gas price and gas limit for msg.
// A failed gas simulation returns ErrGasEstimation; nothing is signed in that case.
func (l *Lease) Params(ctx context.Context, msg ethereum.CallMsg, o Overrides) (*TxParams, error) {
	nonce, err := l.seq.backend.PendingNonceAt(ctx, l.from)
	if err != nil {
		return nil, fmt.Errorf("fetching nonce for %s: %w", l.from.Hex(), err)
	}

	gasPrice := o.GasPrice
	if gasPrice == nil {
		gasPrice, err = l.seq.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching gas price: %w", err)
		}
	}

	gasLimit := o.GasLimit
	if gasLimit == 0 {
		msg.From = l.from
		msg.GasPrice = gasPrice
		gasLimit, err = l.seq.backend.EstimateGas(ctx, msg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGasEstimation, err)
		}
	}

	l.seq.logger.Debug("selected transaction parameters",
		"from", l.from.Hex(),
		"nonce", nonce,
		"gas_price", gasPrice.String(),
		"gas_limit", gasLimit,
	)

	return &TxParams{Nonce: nonce, GasPrice: new(big.Int).Set(gasPrice), GasLimit: gasLimit}, nil
}

// Release ends the lease; calling it more than once is safe
func (l *Lease) Release() {
	l.once.Do(func() {
		<-l.seq.slot(l.from)
	})
}
