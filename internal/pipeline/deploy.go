package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pendergraft/contraship/internal/deploy"
	"github.com/pendergraft/contraship/internal/deployments/domain"
	"github.com/pendergraft/contraship/internal/verify"
)

// DeployOptions controls the steps that follow a confirmed deployment
type DeployOptions struct {
	// Verify compares the deployed runtime code with the artifact after the receipt
	Verify bool
}

// DeployResult is the outcome of a deployment and its follow-up steps
type DeployResult struct {
	Contract     *deploy.Contract   `json:"-"`
	Record       *deploy.Record     `json:"record"`
	Verification *verify.Result     `json:"verification,omitempty"`
	Ledger       *domain.Deployment `json:"-"`
}

// Deploy runs one deployment through svc, then records it in the ledger and
// optionally verifies it. A failed deployment returns the partial record, if
// any, together with the error. Ledger and verification failures never undo a
// confirmed deployment; they are logged and the result still carries the record.
func (e *Env) Deploy(ctx context.Context, svc deploy.Service, req deploy.Request, opts DeployOptions) (*DeployResult, error) {
	contract, record, err := svc.Deploy(ctx, req)
	result := &DeployResult{Contract: contract, Record: record}
	if err != nil {
		return result, err
	}

	if e.Deployments != nil {
		ledger, err := e.Deployments.Record(ctx, domain.RecordRequest{
			Target:          record.Target,
			FileKey:         record.FileKey,
			Contract:        record.ContractName,
			ChainID:         record.ChainID,
			Address:         record.ContractAddress,
			DeployerAddress: record.Deployer,
			TxHash:          record.TxHash,
			BlockNumber:     int64(record.BlockNumber),
			GasUsed:         int64(record.GasUsed),
			ConstructorArgs: record.ConstructorArgs,
		})
		if err != nil {
			e.Logger.Error("failed to record deployment", "address", record.ContractAddress, "error", err)
		} else {
			result.Ledger = ledger
		}
	}

	if opts.Verify {
		v, err := e.Verify(ctx, req.Target, req.FileKey, req.Contract, contract.Address)
		if err != nil {
			e.Logger.Error("failed to verify deployment", "address", record.ContractAddress, "error", err)
		} else {
			result.Verification = v
		}
	}

	return result, nil
}

// Verify compares the code at address with the named contract of a committed
// build. When the deployment is in the ledger its verification status is updated.
func (e *Env) Verify(ctx context.Context, target, fileKey, contractName string, address common.Address) (*verify.Result, error) {
	a, err := e.Artifacts.Read(target)
	if err != nil {
		return nil, err
	}
	contract, err := a.Contract(fileKey, contractName)
	if err != nil {
		return nil, err
	}

	result, err := verify.NewVerifier(e.Backend, e.Logger).Verify(ctx, address, contract)
	if err != nil {
		return nil, err
	}

	if e.Deployments != nil && e.ChainID != nil {
		err := e.Deployments.UpdateVerificationStatus(ctx, e.ChainID.Int64(), address.Hex(), result.MatchType)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrNotFound):
			e.Logger.Debug("verified address is not in the ledger", "address", address.Hex())
		default:
			return result, fmt.Errorf("updating verification status: %w", err)
		}
	}

	e.Logger.Info("verification finished", "address", address.Hex(), "match", result.MatchType)
	return result, nil
}
