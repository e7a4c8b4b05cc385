package domain

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/contraship/internal/storage"
)

// mockStore implements storage.DeploymentStore for testing
type mockStore struct {
	deployments map[string]*storage.Deployment
	err         error
}

func newMockStore() *mockStore {
	return &mockStore{deployments: make(map[string]*storage.Deployment)}
}

func key(chainID int64, address string) string {
	return strconv.FormatInt(chainID, 10) + "/" + address
}

func (m *mockStore) RecordDeployment(ctx context.Context, d *storage.Deployment) error {
	if m.err != nil {
		return m.err
	}
	if d.ID == "" {
		d.ID = "deploy-" + strconv.Itoa(len(m.deployments)+1)
	}
	d.CreatedAt = "2026-01-02T03:04:05.000000000Z"
	m.deployments[key(d.ChainID, d.Address)] = d
	return nil
}

func (m *mockStore) GetDeployment(ctx context.Context, chainID int64, address string) (*storage.Deployment, error) {
	if d, ok := m.deployments[key(chainID, address)]; ok {
		return d, nil
	}
	return nil, storage.ErrNotFound
}

func (m *mockStore) ListDeployments(ctx context.Context, filter storage.DeploymentFilter, pagination storage.PaginationParams) (*storage.PaginatedResult[storage.Deployment], error) {
	var deployments []storage.Deployment
	for _, d := range m.deployments {
		if filter.Target != "" && d.Target != filter.Target {
			continue
		}
		deployments = append(deployments, *d)
	}
	return &storage.PaginatedResult[storage.Deployment]{Data: deployments}, nil
}

func (m *mockStore) UpdateVerificationStatus(ctx context.Context, id, status string) error {
	for _, d := range m.deployments {
		if d.ID == id {
			d.Verification = status
			return nil
		}
	}
	return storage.ErrNotFound
}

const tokenAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func recordRequest() RecordRequest {
	return RecordRequest{
		Target:          "Token",
		FileKey:         "Token.sol",
		Contract:        "Token",
		ChainID:         31337,
		Address:         "0x5fbdb2315678afecb367f032d93f642f64180aa3",
		DeployerAddress: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		TxHash:          "0xabc",
		BlockNumber:     1,
		ConstructorArgs: []any{big.NewInt(1000), "TKN", []any{big.NewInt(1), true}},
	}
}

func TestService_Record(t *testing.T) {
	store := newMockStore()
	svc := NewService(store)

	d, err := svc.Record(context.Background(), recordRequest())
	require.NoError(t, err)
	assert.Equal(t, tokenAddr, d.Address, "address is checksummed")
	assert.Equal(t, []any{"1000", "TKN", []any{"1", true}}, d.ConstructorArgs)
	assert.False(t, d.Verified())
	assert.False(t, d.CreatedAt.IsZero())

	stored := store.deployments[key(31337, tokenAddr)]
	require.NotNil(t, stored)
	assert.JSONEq(t, `["1000", "TKN", ["1", true]]`, stored.ConstructorArgs)
}

func TestService_RecordValidation(t *testing.T) {
	svc := NewService(newMockStore())

	req := recordRequest()
	req.Address = "0x1234"
	_, err := svc.Record(context.Background(), req)
	assert.True(t, errors.Is(err, ErrInvalidAddress))

	req = recordRequest()
	req.ChainID = 0
	_, err = svc.Record(context.Background(), req)
	assert.True(t, errors.Is(err, ErrInvalidChainID))

	store := newMockStore()
	store.err = errors.New("disk full")
	_, err = NewService(store).Record(context.Background(), recordRequest())
	assert.ErrorContains(t, err, "disk full")
}

func TestService_GetAndVerify(t *testing.T) {
	store := newMockStore()
	svc := NewService(store)

	_, err := svc.Get(context.Background(), 31337, tokenAddr)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = svc.Record(context.Background(), recordRequest())
	require.NoError(t, err)

	// Lookups are case-insensitive
	d, err := svc.Get(context.Background(), 31337, "0x5FBDB2315678AFECB367F032D93F642F64180AA3")
	require.NoError(t, err)
	assert.Equal(t, "Token", d.ContractName)

	require.NoError(t, svc.UpdateVerificationStatus(context.Background(), 31337, tokenAddr, "partial"))
	d, err = svc.Get(context.Background(), 31337, tokenAddr)
	require.NoError(t, err)
	assert.True(t, d.Verified())

	err = svc.UpdateVerificationStatus(context.Background(), 1, tokenAddr, "full")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestService_List(t *testing.T) {
	svc := NewService(newMockStore())

	_, err := svc.Record(context.Background(), recordRequest())
	require.NoError(t, err)
	other := recordRequest()
	other.Target = "Vault"
	other.Address = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
	_, err = svc.Record(context.Background(), other)
	require.NoError(t, err)

	all, err := svc.List(context.Background(), ListFilter{}, PaginationParams{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all.Deployments, 2)

	vaults, err := svc.List(context.Background(), ListFilter{Target: "Vault"}, PaginationParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, vaults.Deployments, 1)
	assert.Equal(t, "Vault", vaults.Deployments[0].Target)
}
