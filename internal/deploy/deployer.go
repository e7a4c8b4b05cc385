// Package deploy turns a built artifact into a live contract: it encodes
// constructor arguments, sequences and signs one creation transaction,
// submits it and waits for the receipt.
package deploy

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

	"github.com/pendergraft/contraship/internal/artifact"
	"github.com/pendergraft/contraship/internal/chain"
	"github.com/pendergraft/contraship/internal/observability/metrics"
)

// Service deploys contracts
type Service interface {
	Deploy(ctx context.Context, req Request) (*Contract, *Record, error)
}

// ArtifactSource loads committed builds
type ArtifactSource interface {
	Read(target string) (*artifact.CompiledArtifact, error)
}

// TxSigner signs transactions for one account
type TxSigner interface {
	Address() common.Address
	Sign(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Request identifies the contract to deploy and its constructor arguments
type Request struct {
	Target    string
	FileKey   string
	Contract  string
	Args      []any
	Overrides Overrides
}

// Record describes a submitted deployment
type Record struct {
	Target          string `json:"target"`
	FileKey         string `json:"fileKey"`
	ContractName    string `json:"contractName"`
	ConstructorArgs []any  `json:"constructorArgs"`
	TxHash          string `json:"txHash"`
	ContractAddress string `json:"contractAddress,omitempty"`
	ReceiptStatus   uint64 `json:"receiptStatus"`
	Nonce           uint64 `json:"nonce"`
	GasPrice        string `json:"gasPrice"`
	GasLimit        uint64 `json:"gasLimit"`
	GasUsed         uint64 `json:"gasUsed,omitempty"`
	BlockNumber     uint64 `json:"blockNumber,omitempty"`
	ChainID         int64  `json:"chainId"`
	Deployer        string `json:"deployer"`
}

// Deployer is the default Service
type Deployer struct {
	artifacts ArtifactSource
	backend   chain.Backend
	chainID   *big.Int
	signer    TxSigner
	seq       *Sequencer
	wait      WaitPolicy
	logger    *slog.Logger
}

// Option configures a Deployer
type Option func(*Deployer)

// WithWaitPolicy sets receipt polling behavior
func WithWaitPolicy(p WaitPolicy) Option {
	return func(d *Deployer) {
		d.wait = p
	}
}

// WithSequencer shares a sequencer between deployers using the same accounts
func WithSequencer(s *Sequencer) Option {
	return func(d *Deployer) {
		d.seq = s
	}
}

// NewDeployer creates a deployer for one chain and signer
func NewDeployer(artifacts ArtifactSource, backend chain.Backend, chainID *big.Int, signer TxSigner, logger *slog.Logger, opts ...Option) *Deployer {
	d := &Deployer{
		artifacts: artifacts,
		backend:   backend,
		chainID:   new(big.Int).Set(chainID),
		signer:    signer,
		wait:      DefaultWaitPolicy(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.seq == nil {
		d.seq = NewSequencer(backend, logger)
	}
	return d
}

// Deploy submits exactly one contract creation transaction and waits for its receipt.
// On ErrReceiptTimeout and ExecutionRevertedError the returned record carries the tx hash.
func (d *Deployer) Deploy(ctx context.Context, req Request) (contract *Contract, record *Record, err error) {
	defer func() {
		metrics.Deploy(deployStatus(err))
	}()

	out, err := d.load(req)
	if err != nil {
		return nil, nil, err
	}

	parsed, err := out.ParsedABI()
	if err != nil {
		return nil, nil, err
	}
	code, err := out.CreationCode()
	if err != nil {
		return nil, nil, err
	}
	encoded, err := EncodeConstructor(parsed, req.Args)
	if err != nil {
		return nil, nil, err
	}
	data := append(code, encoded...)

	from := d.signer.Address()
	signed, params, err := d.submit(ctx, from, data, req.Overrides)
	if err != nil {
		return nil, nil, err
	}

	record = &Record{
		Target:          req.Target,
		FileKey:         req.FileKey,
		ContractName:    req.Contract,
		ConstructorArgs: req.Args,
		TxHash:          signed.Hash().Hex(),
		Nonce:           params.Nonce,
		GasPrice:        params.GasPrice.String(),
		GasLimit:        params.GasLimit,
		ChainID:         d.chainID.Int64(),
		Deployer:        from.Hex(),
	}
	if record.ConstructorArgs == nil {
		record.ConstructorArgs = []any{}
	}

	d.logger.Info("submitted contract creation",
		"contract", req.Contract,
		"tx", record.TxHash,
		"nonce", params.Nonce,
		"gas_limit", params.GasLimit,
	)

	start := time.Now()
	receipt, err := WaitForReceipt(ctx, d.backend, signed.Hash(), d.wait, d.logger)
	if err != nil {
		return nil, record, err
	}
	metrics.ReceiptWait(time.Since(start))

	record.ReceiptStatus = receipt.Status
	record.GasUsed = receipt.GasUsed
	if receipt.BlockNumber != nil {
		record.BlockNumber = receipt.BlockNumber.Uint64()
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, record, &ExecutionRevertedError{TxHash: signed.Hash(), Receipt: receipt}
	}

	record.ContractAddress = receipt.ContractAddress.Hex()
	return NewContract(receipt.ContractAddress, parsed, d.backend), record, nil
}

func (d *Deployer) load(req Request) (*artifact.ContractOutput, error) {
	a, err := d.artifacts.Read(req.Target)
	if err != nil {
		return nil, err
	}
	return a.Contract(req.FileKey, req.Contract)
}

// submit holds the account lease from nonce selection until the node accepts the transaction
func (d *Deployer) submit(ctx context.Context, from common.Address, data []byte, o Overrides) (*types.Transaction, *TxParams, error) {
	lease, err := d.seq.Acquire(ctx, from)
	if err != nil {
		return nil, nil, err
	}
	defer lease.Release()

	params, err := lease.Params(ctx, ethereum.CallMsg{From: from, Data: data, Value: big.NewInt(0)}, o)
	if err != nil {
		return nil, nil, err
	}

	tx := types.NewContractCreation(params.Nonce, big.NewInt(0), params.GasLimit, params.GasPrice, data)
	signed, err := d.signer.Sign(tx, d.chainID)
	if err != nil {
		return nil, nil, err
	}

	// A cancelled context must not lead to a submission
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	if err := d.backend.SendTransaction(ctx, signed); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	return signed, params, nil
}

func deployStatus(err error) string {
	var reverted *ExecutionRevertedError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, artifact.ErrNotFound), errors.Is(err, artifact.ErrUnbuildable):
		return "artifact_error"
	case errors.Is(err, ErrEncoding):
		return "encoding_error"
	case errors.Is(err, ErrGasEstimation):
		return "gas_estimation_error"
	case errors.Is(err, ErrSubmission):
		return "submission_error"
	case errors.Is(err, ErrReceiptTimeout):
		return "receipt_timeout"
	case errors.As(err, &reverted):
		return "reverted"
	}
	return "error"
}
