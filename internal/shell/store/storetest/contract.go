// Package storetest provides contract tests for [store.Backend]
// implementations.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/artpar/chainforge/internal/core/domain"
	"github.com/artpar/chainforge/internal/shell/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory creates a fresh, empty backend for the given network.
type Factory func(t *testing.T, network string) store.Backend

// Run exercises the [store.Backend] contract.
func Run(t *testing.T, factory Factory) {
	sampleState := func() *domain.DeploymentState {
		s := domain.NewDeploymentState("anvil", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
		s.Timestamp = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
		s.Phase = "core"
		s.Phases["libraries"] = domain.PhaseCompleted
		s.Phases["core"] = domain.PhaseInProgress
		require.NoError(t, s.SetAddress(domain.CategoryLibraries, "MathLib", "0x5FbDB2315678afecb367f032d93F642f64180aa3"))
		require.NoError(t, s.SetAddress(domain.CategoryTokens, "USDC", "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"))
		require.NoError(t, s.SetAddress(domain.CategoryPriceOracles, "EthUsd", "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"))
		return s
	}

	t.Run("ReadEmpty", func(t *testing.T) {
		b := factory(t, "anvil")
		_, err := b.Read(context.Background())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("WriteAndRead", func(t *testing.T) {
		b := factory(t, "anvil")
		ctx := context.Background()
		want := sampleState()

		require.NoError(t, b.Write(ctx, want))

		got, err := b.Read(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, got.Network)
		assert.Equal(t, want.Deployer, got.Deployer)
		assert.Equal(t, want.Phase, got.Phase)
		assert.True(t, want.Timestamp.Equal(got.Timestamp), "timestamp %v != %v", got.Timestamp, want.Timestamp)
		assert.Equal(t, want.Libraries, got.Libraries)
		assert.Equal(t, want.Contracts, got.Contracts)
		assert.Equal(t, want.Tokens, got.Tokens)
		assert.Equal(t, want.PriceOracles, got.PriceOracles)
		assert.Equal(t, want.Phases, got.Phases)
	})

	t.Run("WriteReplacesWholeDocument", func(t *testing.T) {
		b := factory(t, "anvil")
		ctx := context.Background()
		require.NoError(t, b.Write(ctx, sampleState()))

		next := sampleState()
		delete(next.Tokens, "USDC")
		next.Phase = domain.PhaseLabelCompleted
		next.Phases["core"] = domain.PhaseCompleted
		require.NoError(t, next.SetAddress(domain.CategoryContracts, "Pool", "0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9"))
		require.NoError(t, b.Write(ctx, next))

		got, err := b.Read(ctx)
		require.NoError(t, err)
		assert.Empty(t, got.Tokens)
		assert.Equal(t, "0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9", got.Contracts["Pool"])
		assert.Equal(t, domain.PhaseLabelCompleted, got.Phase)
		assert.Equal(t, domain.PhaseCompleted, got.Phases["core"])
	})

	t.Run("ReadReturnsAllocatedMaps", func(t *testing.T) {
		b := factory(t, "anvil")
		ctx := context.Background()
		require.NoError(t, b.Write(ctx, domain.NewDeploymentState("anvil", "")))

		got, err := b.Read(ctx)
		require.NoError(t, err)
		assert.NotNil(t, got.Libraries)
		assert.NotNil(t, got.Contracts)
		assert.NotNil(t, got.Tokens)
		assert.NotNil(t, got.PriceOracles)
	})

	t.Run("MutatingReadResultDoesNotPersist", func(t *testing.T) {
		b := factory(t, "anvil")
		ctx := context.Background()
		require.NoError(t, b.Write(ctx, sampleState()))

		got, err := b.Read(ctx)
		require.NoError(t, err)
		got.Libraries["MathLib"] = "0x0000000000000000000000000000000000000001"

		again, err := b.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", again.Libraries["MathLib"])
	})
}
