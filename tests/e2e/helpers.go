// Package e2e provides end-to-end testing utilities for chainforge.
package e2e

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/chainforge/internal/core/domain"
	"github.com/artpar/chainforge/internal/core/plan"
	"github.com/artpar/chainforge/internal/engine"
	"github.com/artpar/chainforge/internal/shell/chain"
	"github.com/artpar/chainforge/internal/shell/deployer"
	"github.com/artpar/chainforge/internal/shell/forge"
	"github.com/artpar/chainforge/internal/shell/store"
	"github.com/artpar/chainforge/internal/shell/verifier"
	"github.com/stretchr/testify/require"
)

// Anvil's first default account.
const (
	anvilKey  = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	anvilAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

// =============================================================================
// Environment
// =============================================================================

// requireChain skips unless CHAINFORGE_E2E_RPC points at a dev chain and
// forge and cast are installed.
func requireChain(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping chain tests in short mode")
	}
	rpc := os.Getenv("CHAINFORGE_E2E_RPC")
	if rpc == "" {
		t.Skip("CHAINFORGE_E2E_RPC not set; start anvil and export CHAINFORGE_E2E_RPC=http://127.0.0.1:8545")
	}
	for _, bin := range []string{"forge", "cast"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH", bin)
		}
	}
	return rpc
}

// =============================================================================
// Fixture Project
// =============================================================================

var fixtureFiles = map[string]string{
	"foundry.toml": `[profile.default]
src = "src"
out = "out"
libs = ["lib"]
solc_version = "0.8.20"
build_info = true
`,
	"src/MathLib.sol": `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.20;

library MathLib {
    function bps(uint256 amount, uint256 rate) external pure returns (uint256) {
        return amount * rate / 10000;
    }
}
`,
	"src/Pool.sol": `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.20;

import {MathLib} from "./MathLib.sol";

contract Pool {
    address public owner;
    uint256 public fee;

    constructor(address owner_, uint256 fee_) {
        owner = owner_;
        fee = fee_;
    }

    function quote(uint256 amount) external view returns (uint256) {
        return MathLib.bps(amount, fee);
    }
}
`,
	"src/Registry.sol": `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.20;

contract Registry {
    mapping(address => bool) public pools;

    function register(address pool) external {
        pools[pool] = true;
    }
}
`,
}

const fixturePlan = `
name: fixture
phases:
  - name: libraries
    artifacts:
      - name: MathLib
        category: libraries
        source: src/MathLib.sol:MathLib
  - name: core
    prerequisites: [libraries.MathLib]
    artifacts:
      - name: Pool
        category: contracts
        source: src/Pool.sol:Pool
        libraries:
          - source: src/MathLib.sol
            name: MathLib
        args:
          - {deployer: true}
          - 30
      - name: Registry
        category: contracts
        source: src/Registry.sol:Registry
    post_steps:
      - name: register-pool
        target: contracts.Registry
        signature: register(address)
        args: [{ref: contracts.Pool}]
`

// writeFixture creates a foundry project in a temp dir and returns its root.
func writeFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range fixtureFiles {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func fixturePlanDoc(t *testing.T) domain.Plan {
	t.Helper()
	p, err := plan.ParsePlan([]byte(fixturePlan))
	require.NoError(t, err)
	return p
}

// =============================================================================
// Wiring
// =============================================================================

// Stack is a fully wired orchestrator against a live chain.
type Stack struct {
	Orchestrator *engine.Orchestrator
	Chain        *chain.Client
	Backend      store.Backend
	Forge        *forge.Client
}

// newStack wires the real forge boundary, RPC client and a file backend.
// statePath is shared between stacks to model separate invocations.
func newStack(t *testing.T, rpc, root, statePath string) *Stack {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	client, err := chain.Dial(ctx, rpc, logger)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	fc, err := forge.NewClient(forge.Config{
		ProjectRoot: root,
		RPCURL:      rpc,
		PrivateKey:  anvilKey,
		Broadcast:   true,
		Timeout:     5 * time.Minute,
	}, nil, logger)
	require.NoError(t, err)

	backend, err := store.Open(ctx, store.Config{Backend: store.BackendFile, Path: statePath, Network: "anvil"})
	require.NoError(t, err)

	repo := store.NewRepository(backend, store.Options{Network: "anvil", Deployer: anvilAddr, Logger: logger})
	d := deployer.New(fc, client, deployer.Config{ConfirmDelay: time.Second, ConfirmChecks: 2}, logger)

	return &Stack{
		Orchestrator: engine.NewOrchestrator(repo, d, verifier.Disabled{}, engine.CastPostSteps{Sender: fc}, logger),
		Chain:        client,
		Backend:      backend,
		Forge:        fc,
	}
}
