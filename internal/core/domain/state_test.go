package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// DeploymentState Tests
// =============================================================================

func TestNewDeploymentState_AllocatesMaps(t *testing.T) {
	s := NewDeploymentState("sepolia", "0xabc")

	assert.Equal(t, "sepolia", s.Network)
	assert.Equal(t, "0xabc", s.Deployer)
	for _, cat := range Categories() {
		assert.NotNil(t, s.Addresses(cat), "category %s", cat)
	}
	assert.Equal(t, 0, s.Count())
}

func TestDeploymentState_SetAndGet(t *testing.T) {
	s := NewDeploymentState("sepolia", "")

	require.NoError(t, s.SetAddress(CategoryContracts, "Pool", "0x01"))
	require.NoError(t, s.SetAddress(CategoryPriceOracles, "EthOracle", "0x02"))

	addr, ok := s.Address(CategoryContracts, "Pool")
	assert.True(t, ok)
	assert.Equal(t, "0x01", addr)

	_, ok = s.Address(CategoryTokens, "Pool")
	assert.False(t, ok)

	assert.Equal(t, 2, s.Count())
}

func TestDeploymentState_EmptyAddressIsAbsent(t *testing.T) {
	s := NewDeploymentState("sepolia", "")
	s.Contracts["Pool"] = ""

	_, ok := s.Address(CategoryContracts, "Pool")
	assert.False(t, ok)
}

func TestDeploymentState_SetUnknownCategory(t *testing.T) {
	s := NewDeploymentState("sepolia", "")
	err := s.SetAddress(Category("bogus"), "X", "0x01")
	assert.True(t, errors.Is(err, ErrInvalidPlan))
}

func TestDeploymentState_CloneIsDeep(t *testing.T) {
	s := NewDeploymentState("sepolia", "")
	require.NoError(t, s.SetAddress(CategoryLibraries, "Math", "0x01"))
	s.Phases["libraries"] = PhaseCompleted

	c := s.Clone()
	require.NoError(t, c.SetAddress(CategoryLibraries, "Math", "0x02"))
	c.Phases["libraries"] = PhaseInProgress

	addr, _ := s.Address(CategoryLibraries, "Math")
	assert.Equal(t, "0x01", addr)
	assert.Equal(t, PhaseCompleted, s.PhaseStatusOf("libraries"))
}

func TestDeploymentState_JSONShape(t *testing.T) {
	s := NewDeploymentState("sepolia", "0xdeployer")
	require.NoError(t, s.SetAddress(CategoryPriceOracles, "EthOracle", "0x02"))
	s.Phase = PhaseLabelCompleted

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"network", "deployer", "timestamp", "phase", "libraries", "contracts", "tokens", "priceOracles"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, "completed", raw["phase"])
}

func TestDeploymentState_NormalizeDecodedDocument(t *testing.T) {
	var s DeploymentState
	require.NoError(t, json.Unmarshal([]byte(`{"network":"x","contracts":{"A":"0x01"}}`), &s))

	s.Normalize()

	assert.NotNil(t, s.Libraries)
	assert.NotNil(t, s.Tokens)
	addr, ok := s.Address(CategoryContracts, "A")
	assert.True(t, ok)
	assert.Equal(t, "0x01", addr)
}

// =============================================================================
// Category & Ref Tests
// =============================================================================

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"libraries", CategoryLibraries, false},
		{"contracts", CategoryContracts, false},
		{"tokens", CategoryTokens, false},
		{"priceOracles", CategoryPriceOracles, false},
		{"price_oracles", CategoryPriceOracles, false},
		{"oracles", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRef(t *testing.T) {
	r, err := ParseRef("libraries.MathLib")
	require.NoError(t, err)
	assert.Equal(t, DeployedRef(CategoryLibraries, "MathLib"), r)
	assert.Equal(t, "libraries.MathLib", r.String())

	r, err = ParseRef("deployer")
	require.NoError(t, err)
	assert.Equal(t, RefDeployer, r.Kind)

	_, err = ParseRef("MathLib")
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestArtifactSpec_SourceParts(t *testing.T) {
	a := ArtifactSpec{Name: "Pool", Source: "src/core/Pool.sol:LendingPool"}
	assert.Equal(t, "src/core/Pool.sol", a.SourcePath())
	assert.Equal(t, "LendingPool", a.ContractName())

	b := ArtifactSpec{Name: "Pool", Source: "src/core/Pool.sol"}
	assert.Equal(t, "Pool", b.ContractName())
}

func TestArtifactSpec_RefsSkipDeployer(t *testing.T) {
	a := ArtifactSpec{
		Name: "Pool",
		Libraries: []LibraryLink{
			{Source: "src/Math.sol", Name: "MathLib", Ref: DeployedRef(CategoryLibraries, "MathLib")},
		},
		ConstructorArgs: []Arg{
			RefArg(DeployerRef()),
			LiteralArg("100"),
			RefArg(DeployedRef(CategoryTokens, "USDC")),
		},
	}

	refs := a.Refs()
	require.Len(t, refs, 2)
	assert.Equal(t, "libraries.MathLib", refs[0].String())
	assert.Equal(t, "tokens.USDC", refs[1].String())
}

// =============================================================================
// Error Classification Tests
// =============================================================================

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrHardDependencyMissing))
	assert.True(t, IsFatal(NewDeployError("deploy", "core", "Pool", "boom", ErrBytecodeAbsent)))
	assert.True(t, IsFatal(errors.New("unexpected")))
	assert.False(t, IsFatal(ErrVerificationIncomplete))
	assert.False(t, IsFatal(NewDeployError("post-step", "core", "", "register", ErrPostStepFailure)))
	assert.False(t, IsFatal(nil))
}

func TestDeployError_Message(t *testing.T) {
	err := NewDeployError("resolve", "core", "Pool", "missing libraries.MathLib", ErrHardDependencyMissing)

	assert.Equal(t, "resolve core/Pool: missing libraries.MathLib: hard dependency missing", err.Error())
	assert.ErrorIs(t, err, ErrHardDependencyMissing)
}
