// Package chain connects to an EVM JSON-RPC endpoint and holds the deploying key.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrConnectivity is returned when the RPC endpoint cannot be reached
var ErrConnectivity = errors.New("provider is disconnected")

// Backend is the subset of JSON-RPC calls the deploy pipeline needs.
// *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Client is a connected backend with a verified chain ID
type Client struct {
	Backend
	chainID *big.Int
	url     string
	closer  func()
}

// Options configures Dial
type Options struct {
	// RequestsPerSecond throttles outgoing calls; 0 disables throttling
	RequestsPerSecond float64
	// DialTimeout bounds the connectivity check
	DialTimeout time.Duration
}

// Dial connects to rawURL and verifies connectivity by querying the chain ID.
// Every failure to reach the endpoint is reported as ErrConnectivity.
func Dial(ctx context.Context, rawURL string, opts Options, logger *slog.Logger) (*Client, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	ec, err := ethclient.DialContext(dialCtx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: ( %s ) %v", ErrConnectivity, rawURL, err)
	}

	var backend Backend = ec
	if opts.RequestsPerSecond > 0 {
		backend = NewLimited(ec, opts.RequestsPerSecond)
	}

	client, err := Connect(dialCtx, backend, rawURL)
	if err != nil {
		ec.Close()
		return nil, err
	}
	client.closer = ec.Close

	logger.Info("connected to provider", "rpc", rawURL, "chain_id", client.chainID.String())
	return client, nil
}

// Connect wraps an existing backend after verifying it answers a chain ID query
func Connect(ctx context.Context, backend Backend, url string) (*Client, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: ( %s ) %v", ErrConnectivity, url, err)
	}
	return &Client{Backend: backend, chainID: chainID, url: url}, nil
}

// ChainIDValue returns the chain ID verified at connect time
func (c *Client) ChainIDValue() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// URL returns the endpoint the client is connected to
func (c *Client) URL() string {
	return c.url
}

// Close releases the underlying connection
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}
