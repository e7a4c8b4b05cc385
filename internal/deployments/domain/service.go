// Package domain contains the business logic for the deployment ledger.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pendergraft/contraship/internal/observability/metrics"
	"github.com/pendergraft/contraship/internal/storage"
	"github.com/pendergraft/contraship/internal/validation"
)

// Common errors returned by the deployment service.
var (
	ErrNotFound       = errors.New("deployment not found")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidChainID = errors.New("invalid chain ID")
)

// Service defines the deployment service interface.
type Service interface {
	// Record records a new deployment.
	Record(ctx context.Context, req RecordRequest) (*Deployment, error)

	// Get retrieves a deployment by chain and address.
	Get(ctx context.Context, chainID int64, address string) (*Deployment, error)

	// List lists deployments with filtering and pagination.
	List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error)

	// UpdateVerificationStatus stores the result of a bytecode comparison.
	UpdateVerificationStatus(ctx context.Context, chainID int64, address, matchType string) error
}

// service implements the Service interface.
type service struct {
	store storage.DeploymentStore
}

// NewService creates a new deployment service.
func NewService(store storage.DeploymentStore) Service {
	return &service{store: store}
}

// Record records a new deployment.
func (s *service) Record(ctx context.Context, req RecordRequest) (*Deployment, error) {
	chain := strconv.FormatInt(req.ChainID, 10)
	d, err := s.record(ctx, req)
	if err != nil {
		metrics.DeploymentRecord(chain, "error")
		return nil, err
	}
	metrics.DeploymentRecord(chain, "success")
	return d, nil
}

func (s *service) record(ctx context.Context, req RecordRequest) (*Deployment, error) {
	address, err := normalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateChainID(req.ChainID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChainID, err)
	}

	args, err := json.Marshal(jsonArgs(req.ConstructorArgs))
	if err != nil {
		return nil, fmt.Errorf("encoding constructor args: %w", err)
	}

	deployment := &storage.Deployment{
		Target:          req.Target,
		FileKey:         req.FileKey,
		ContractName:    req.Contract,
		ChainID:         req.ChainID,
		Address:         address,
		DeployerAddress: req.DeployerAddress,
		TxHash:          req.TxHash,
		BlockNumber:     req.BlockNumber,
		GasUsed:         req.GasUsed,
		ConstructorArgs: string(args),
	}

	if err := s.store.RecordDeployment(ctx, deployment); err != nil {
		return nil, fmt.Errorf("recording deployment: %w", err)
	}

	return toDeployment(deployment), nil
}

// Get retrieves a deployment by chain and address.
func (s *service) Get(ctx context.Context, chainID int64, address string) (*Deployment, error) {
	normalized, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}

	deployment, err := s.store.GetDeployment(ctx, chainID, normalized)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting deployment: %w", err)
	}

	return toDeployment(deployment), nil
}

// List lists deployments with filtering and pagination.
func (s *service) List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error) {
	result, err := s.store.ListDeployments(ctx, storage.DeploymentFilter{
		Target:   filter.Target,
		ChainID:  filter.ChainID,
		Verified: filter.Verified,
	}, storage.PaginationParams{
		Limit:  pagination.Limit,
		Cursor: pagination.Cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("listing deployments: %w", err)
	}

	deployments := make([]Deployment, len(result.Data))
	for i := range result.Data {
		deployments[i] = *toDeployment(&result.Data[i])
	}

	return &ListResult{
		Deployments: deployments,
		HasMore:     result.HasMore,
		NextCursor:  result.NextCursor,
	}, nil
}

// UpdateVerificationStatus updates the verification status of a deployment.
func (s *service) UpdateVerificationStatus(ctx context.Context, chainID int64, address, matchType string) error {
	deployment, err := s.Get(ctx, chainID, address)
	if err != nil {
		return err
	}

	if err := s.store.UpdateVerificationStatus(ctx, deployment.ID, matchType); err != nil {
		return fmt.Errorf("updating verification status: %w", err)
	}

	return nil
}

// normalizeAddress validates and checksums an address so lookups ignore case
func normalizeAddress(address string) (string, error) {
	if err := validation.ValidateAddress(address); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return common.HexToAddress(address).Hex(), nil
}

// jsonArgs renders integers as decimal strings so large values survive JSON clients
func jsonArgs(args []any) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		out[i] = jsonValue(arg)
	}
	return out
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case *big.Int:
		return x.String()
	case string, bool, nil:
		return x
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = jsonValue(rv.Index(i).Interface())
		}
		return out
	}
	return fmt.Sprint(v)
}

func toDeployment(d *storage.Deployment) *Deployment {
	var args []any
	if d.ConstructorArgs != "" {
		_ = json.Unmarshal([]byte(d.ConstructorArgs), &args)
	}
	if args == nil {
		args = []any{}
	}

	return &Deployment{
		ID:              d.ID,
		Target:          d.Target,
		FileKey:         d.FileKey,
		ContractName:    d.ContractName,
		ChainID:         d.ChainID,
		Address:         d.Address,
		DeployerAddress: d.DeployerAddress,
		TxHash:          d.TxHash,
		BlockNumber:     d.BlockNumber,
		GasUsed:         d.GasUsed,
		ConstructorArgs: args,
		Verification:    d.Verification,
		VerifiedAt:      parseTime(d.VerifiedAt),
		CreatedAt:       parseTime(d.CreatedAt),
	}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
