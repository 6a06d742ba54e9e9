package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/chainforge/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lendingPlan = `
name: lending
phases:
  - name: libraries
    description: shared math
    artifacts:
      - name: MathLib
        category: libraries
        source: src/libs/MathLib.sol:MathLib
  - name: core
    prerequisites: [tokens.USDC]
    artifacts:
      - name: Registry
        category: contracts
        source: src/core/Registry.sol:Registry
        args:
          - {deployer: true}
      - name: Pool
        category: contracts
        source: src/core/Pool.sol:Pool
        depends_on: [MathLib, Registry]
        verify_collisions: [PoolBase]
        libraries:
          - source: src/libs/MathLib.sol
            name: MathLib
        args:
          - ${tokens.USDC}
          - {ref: contracts.Registry}
          - 500
          - {value: "${not-a-ref}"}
    post_steps:
      - name: register-pool
        target: contracts.Registry
        signature: addPool(address)
        args: [{ref: contracts.Pool}]
`

// =============================================================================
// ParsePlan Tests
// =============================================================================

func TestParsePlan_Full(t *testing.T) {
	p, err := ParsePlan([]byte(lendingPlan))
	require.NoError(t, err)

	assert.Equal(t, "lending", p.Name)
	require.Len(t, p.Phases, 2)

	core := p.Phases[1]
	assert.Equal(t, []domain.Ref{domain.DeployedRef(domain.CategoryTokens, "USDC")}, core.Prerequisites)
	require.Len(t, core.Artifacts, 2)

	registry := core.Artifacts[0]
	require.Len(t, registry.ConstructorArgs, 1)
	assert.Equal(t, domain.RefDeployer, registry.ConstructorArgs[0].Ref.Kind)

	pool := core.Artifacts[1]
	assert.Equal(t, domain.CategoryContracts, pool.Category)
	assert.Equal(t, "Pool", pool.ContractName())
	assert.Equal(t, []string{"MathLib", "Registry"}, pool.DependsOn)
	assert.Equal(t, []string{"PoolBase"}, pool.VerifyCollisions)

	require.Len(t, pool.Libraries, 1)
	assert.Equal(t, domain.DeployedRef(domain.CategoryLibraries, "MathLib"), pool.Libraries[0].Ref)

	require.Len(t, pool.ConstructorArgs, 4)
	assert.Equal(t, "${tokens.USDC}", pool.ConstructorArgs[0].String())
	assert.Equal(t, "${contracts.Registry}", pool.ConstructorArgs[1].String())
	assert.Equal(t, domain.LiteralArg("500"), pool.ConstructorArgs[2])
	assert.Equal(t, domain.LiteralArg("${not-a-ref}"), pool.ConstructorArgs[3])

	require.Len(t, core.PostSteps, 1)
	step := core.PostSteps[0]
	assert.Equal(t, domain.DeployedRef(domain.CategoryContracts, "Registry"), step.Target)
	assert.Equal(t, "addPool(address)", step.Signature)
}

func TestParsePlan_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
		field   string
	}{
		{
			name:    "empty",
			content: "   \n",
			wantErr: ErrEmptyInput,
		},
		{
			name:    "bad yaml",
			content: "phases: [",
			wantErr: ErrInvalidYAML,
		},
		{
			name: "unknown category",
			content: `
phases:
  - name: a
    artifacts:
      - {name: X, category: widgets, source: "src/X.sol:X"}
`,
			wantErr: domain.ErrInvalidPlan,
			field:   "phases[0].artifacts[0].category",
		},
		{
			name: "bad reference shorthand",
			content: `
phases:
  - name: a
    artifacts:
      - name: X
        category: contracts
        source: src/X.sol:X
        args: ["${nodot}"]
`,
			wantErr: ErrInvalidReference,
			field:   "phases[0].artifacts[0].args[0]",
		},
		{
			name: "ambiguous mapping arg",
			content: `
phases:
  - name: a
    artifacts:
      - name: X
        category: contracts
        source: src/X.sol:X
        args: [{ref: tokens.USDC, deployer: true}]
`,
			wantErr: ErrInvalidArgument,
		},
		{
			name: "sequence arg",
			content: `
phases:
  - name: a
    artifacts:
      - name: X
        category: contracts
        source: src/X.sol:X
        args: [[1, 2]]
`,
			wantErr: ErrInvalidArgument,
		},
		{
			name: "library without name",
			content: `
phases:
  - name: a
    artifacts:
      - name: X
        category: contracts
        source: src/X.sol:X
        libraries: [{source: src/L.sol}]
`,
			wantErr: ErrInvalidLibrary,
		},
		{
			name: "forward reference",
			content: `
phases:
  - name: a
    artifacts:
      - name: X
        category: contracts
        source: src/X.sol:X
        args: ["${contracts.Y}"]
      - {name: Y, category: contracts, source: "src/Y.sol:Y"}
`,
			wantErr: domain.ErrInvalidPlan,
		},
		{
			name:    "no phases",
			content: "name: empty\n",
			wantErr: domain.ErrInvalidPlan,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan([]byte(tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.field != "" {
				var pe *ParseError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, tt.field, pe.Field)
			}
		})
	}
}

func TestParseError_Format(t *testing.T) {
	err := NewParseError("phases[0].name", "required", ErrInvalidArgument)
	assert.Equal(t, "phases[0].name: required", err.Error())
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Equal(t, "plain", NewParseError("", "plain", nil).Error())
}

func TestParsePlan_ExampleFile(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "deployments", "plan.example.yaml"))
	require.NoError(t, err)

	p, err := ParsePlan(data)
	require.NoError(t, err)
	require.Len(t, p.Phases, 4)

	oracle := p.Phases[3].Artifacts[0]
	assert.Equal(t, domain.CategoryPriceOracles, oracle.Category)
	assert.Equal(t, "${tokens.WETH}", oracle.ConstructorArgs[0].String())
}
