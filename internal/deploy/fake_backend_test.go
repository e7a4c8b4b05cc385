package deploy

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// fakeBackend is an in-memory chain that mines every accepted transaction
// after a configurable number of receipt polls.
type fakeBackend struct {
	mu sync.Mutex

	chainID *big.Int
	nonces  map[common.Address]uint64
	pending map[common.Hash]*pendingTx
	sent    []*types.Transaction
	calls   map[string]int

	// behavior knobs
	estimateErr  error
	sendErr      error
	revert       bool
	neverMine    bool
	pollsToMine  int
	callResult   []byte
	estimatedGas uint64
}

type pendingTx struct {
	receipt *types.Receipt
	polls   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID:      big.NewInt(1337),
		nonces:       make(map[common.Address]uint64),
		pending:      make(map[common.Hash]*pendingTx),
		calls:        make(map[string]int),
		pollsToMine:  1,
		estimatedGas: 150000,
	}
}

func (f *fakeBackend) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeBackend) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	f.count("ChainID")
	return new(big.Int).Set(f.chainID), nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.count("PendingNonceAt")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[account], nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	f.count("SuggestGasPrice")
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.count("EstimateGas")
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return f.estimatedGas, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.count("SendTransaction")
	if f.sendErr != nil {
		return f.sendErr
	}

	sender, err := types.Sender(types.LatestSignerForChainID(f.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if tx.Nonce() != f.nonces[sender] {
		return fmt.Errorf("nonce too low: have %d, want %d", tx.Nonce(), f.nonces[sender])
	}
	f.nonces[sender]++
	f.sent = append(f.sent, tx)

	status := types.ReceiptStatusSuccessful
	if f.revert {
		status = types.ReceiptStatusFailed
	}
	receipt := &types.Receipt{
		Status:          status,
		TxHash:          tx.Hash(),
		GasUsed:         tx.Gas() / 2,
		BlockNumber:     big.NewInt(int64(len(f.sent))),
		ContractAddress: crypto.CreateAddress(sender, tx.Nonce()),
	}
	f.pending[tx.Hash()] = &pendingTx{receipt: receipt}
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.count("TransactionReceipt")
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.pending[txHash]
	if !ok || f.neverMine {
		return nil, ethereum.NotFound
	}
	if p.polls < f.pollsToMine {
		p.polls++
		return nil, ethereum.NotFound
	}
	return p.receipt, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.count("CallContract")
	if msg.To == nil {
		return nil, errors.New("call without target")
	}
	return f.callResult, nil
}

func (f *fakeBackend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	f.count("CodeAt")
	return nil, nil
}

func (f *fakeBackend) sentTxs() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

// flakyFetcher fails a fixed number of receipt lookups before answering
type flakyFetcher struct {
	failures int
	calls    int
}

func (f *flakyFetcher) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset by peer")
	}
	return &types.Receipt{TxHash: txHash, Status: types.ReceiptStatusSuccessful}, nil
}
