package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testStore exercises the behavior every Store implementation shares
func testStore(t *testing.T, store Store) {
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	// Migrations are repeatable
	require.NoError(t, store.Migrate(ctx))

	t.Run("Builds", func(t *testing.T) {
		_, err := store.LatestBuild(ctx, "Token")
		assert.True(t, errors.Is(err, ErrNotFound))

		for _, hash := range []string{"aaa", "bbb", "ccc"} {
			require.NoError(t, store.RecordBuild(ctx, &Build{
				Target:          "Token",
				CompilerVersion: "0.8.24",
				ArtifactHash:    hash,
				ContractCount:   2,
			}))
		}
		require.NoError(t, store.RecordBuild(ctx, &Build{Target: "Vault", CompilerVersion: "0.8.24", ArtifactHash: "ddd", ContractCount: 1}))

		latest, err := store.LatestBuild(ctx, "Token")
		require.NoError(t, err)
		assert.Equal(t, "ccc", latest.ArtifactHash)
		assert.Equal(t, 2, latest.ContractCount)
		assert.NotEmpty(t, latest.ID)

		first, err := store.ListBuilds(ctx, "Token", PaginationParams{Limit: 2})
		require.NoError(t, err)
		require.Len(t, first.Data, 2)
		assert.True(t, first.HasMore)
		assert.Equal(t, "ccc", first.Data[0].ArtifactHash)
		assert.Equal(t, "bbb", first.Data[1].ArtifactHash)

		second, err := store.ListBuilds(ctx, "Token", PaginationParams{Limit: 2, Cursor: first.NextCursor})
		require.NoError(t, err)
		require.Len(t, second.Data, 1)
		assert.False(t, second.HasMore)
		assert.Equal(t, "aaa", second.Data[0].ArtifactHash)

		all, err := store.ListBuilds(ctx, "", PaginationParams{})
		require.NoError(t, err)
		assert.Len(t, all.Data, 4)
	})

	t.Run("Deployments", func(t *testing.T) {
		const addr1 = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
		const addr2 = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"

		_, err := store.GetDeployment(ctx, 31337, addr1)
		assert.True(t, errors.Is(err, ErrNotFound))

		d := &Deployment{
			Target:          "Token",
			FileKey:         "Token.sol",
			ContractName:    "Token",
			ChainID:         31337,
			Address:         addr1,
			DeployerAddress: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
			TxHash:          "0x01",
			BlockNumber:     1,
			GasUsed:         21000,
			ConstructorArgs: `["1000"]`,
		}
		require.NoError(t, store.RecordDeployment(ctx, d))
		assert.NotEmpty(t, d.ID)

		got, err := store.GetDeployment(ctx, 31337, addr1)
		require.NoError(t, err)
		assert.Equal(t, d.ID, got.ID)
		assert.Equal(t, "Token.sol", got.FileKey)
		assert.Equal(t, int64(21000), got.GasUsed)
		assert.JSONEq(t, `["1000"]`, got.ConstructorArgs)
		assert.Empty(t, got.Verification)

		require.NoError(t, store.RecordDeployment(ctx, &Deployment{
			Target: "Vault", FileKey: "Vault.sol", ContractName: "Vault",
			ChainID: 1, Address: addr2, DeployerAddress: d.DeployerAddress, TxHash: "0x02",
		}))

		require.NoError(t, store.UpdateVerificationStatus(ctx, d.ID, "full"))
		got, err = store.GetDeployment(ctx, 31337, addr1)
		require.NoError(t, err)
		assert.Equal(t, "full", got.Verification)
		assert.NotEmpty(t, got.VerifiedAt)

		assert.True(t, errors.Is(store.UpdateVerificationStatus(ctx, "00000000-0000-0000-0000-000000000000", "full"), ErrNotFound))

		all, err := store.ListDeployments(ctx, DeploymentFilter{}, PaginationParams{})
		require.NoError(t, err)
		require.Len(t, all.Data, 2)
		assert.Equal(t, "Vault", all.Data[0].Target)

		byTarget, err := store.ListDeployments(ctx, DeploymentFilter{Target: "Token"}, PaginationParams{})
		require.NoError(t, err)
		require.Len(t, byTarget.Data, 1)

		byChain, err := store.ListDeployments(ctx, DeploymentFilter{ChainID: 1}, PaginationParams{})
		require.NoError(t, err)
		require.Len(t, byChain.Data, 1)
		assert.Equal(t, "Vault", byChain.Data[0].Target)

		verified := true
		onlyVerified, err := store.ListDeployments(ctx, DeploymentFilter{Verified: &verified}, PaginationParams{})
		require.NoError(t, err)
		require.Len(t, onlyVerified.Data, 1)
		assert.Equal(t, addr1, onlyVerified.Data[0].Address)

		// Redeploying to the same address after a chain reset replaces the record
		redeploy := *d
		redeploy.ID = ""
		redeploy.TxHash = "0x03"
		require.NoError(t, store.RecordDeployment(ctx, &redeploy))
		got, err = store.GetDeployment(ctx, 31337, addr1)
		require.NoError(t, err)
		assert.Equal(t, "0x03", got.TxHash)
		assert.Empty(t, got.Verification)
		assert.Empty(t, got.VerifiedAt)
	})
}
