package forge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// fakeRunner records invocations and replays canned results.
type fakeRunner struct {
	calls  [][]string
	dirs   []string
	result Result
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	f.dirs = append(f.dirs, dir)
	return f.result, f.err
}

func testConfig() Config {
	return Config{
		ProjectRoot: "/work/protocol",
		RPCURL:      "http://127.0.0.1:8545",
		PrivateKey:  testKey,
	}
}

func newTestClient(t *testing.T, cfg Config, r *fakeRunner) *Client {
	t.Helper()
	c, err := NewClient(cfg, r, nil)
	require.NoError(t, err)
	return c
}

// =============================================================================
// Create Tests
// =============================================================================

func TestCreateArgs(t *testing.T) {
	cfg := testConfig()
	cfg.Legacy = true
	cfg.Broadcast = true
	cfg.GasPrice = "1000000000"
	cfg.ExtraArgs = `--verify --etherscan-api-key "abc def"`
	c := newTestClient(t, cfg, &fakeRunner{})

	args := c.CreateArgs(CreateRequest{
		Contract:        "src/core/Pool.sol:Pool",
		Libraries:       []string{"src/libs/Math.sol:MathLib:0x5FbDB2315678afecb367f032d93F642f64180aa3"},
		ConstructorArgs: []string{"0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512", "500"},
	})

	assert.Equal(t, []string{
		"create", "src/core/Pool.sol:Pool", "--json",
		"--rpc-url", "http://127.0.0.1:8545",
		"--private-key", testKey,
		"--legacy", "--broadcast",
		"--gas-price", "1000000000",
		"--libraries", "src/libs/Math.sol:MathLib:0x5FbDB2315678afecb367f032d93F642f64180aa3",
		"--verify", "--etherscan-api-key", "abc def",
		"--constructor-args", "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512", "500",
	}, args)
}

// slowRunner prints its output, then blocks until the context ends.
type slowRunner struct {
	output string
}

func (r slowRunner) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	<-ctx.Done()
	return Result{Stdout: []byte(r.output), ExitCode: 1}, ctx.Err()
}

func TestCreate_TimeoutKeepsPartialOutput(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 10 * time.Millisecond
	c, err := NewClient(cfg, slowRunner{output: "Deployed to: 0x5FbDB2315678afecb367f032d93F642f64180aa3\n"}, nil)
	require.NoError(t, err)

	res, err := c.Create(context.Background(), CreateRequest{Contract: "src/A.sol:A"})
	require.ErrorIs(t, err, ErrCommandFailed)
	assert.Contains(t, res.Output, "Deployed to: 0x5FbDB2315678afecb367f032d93F642f64180aa3")
}

func TestCreateArgs_NoConstructorArgs(t *testing.T) {
	c := newTestClient(t, testConfig(), &fakeRunner{})
	args := c.CreateArgs(CreateRequest{Contract: "src/libs/Math.sol:MathLib"})
	assert.NotContains(t, args, "--constructor-args")
	assert.NotContains(t, args, "--legacy")
}

func TestCreate_NonzeroExitIsNotAnError(t *testing.T) {
	r := &fakeRunner{result: Result{
		Stdout:   []byte(`{"deployedTo":"0x5FbDB2315678afecb367f032d93F642f64180aa3"}`),
		Stderr:   []byte("Error: failed to verify"),
		ExitCode: 1,
	}}
	c := newTestClient(t, testConfig(), r)

	res, err := c.Create(context.Background(), CreateRequest{Contract: "src/A.sol:A"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Output, "deployedTo")
	assert.Contains(t, res.Output, "failed to verify")
	assert.Equal(t, "/work/protocol", r.dirs[0])
	assert.Equal(t, "forge", r.calls[0][0])
}

func TestCreate_CommandCouldNotRun(t *testing.T) {
	r := &fakeRunner{err: errors.New("exec: \"forge\": executable file not found in $PATH"), result: Result{ExitCode: 127}}
	c := newTestClient(t, testConfig(), r)

	_, err := c.Create(context.Background(), CreateRequest{Contract: "src/A.sol:A"})
	assert.ErrorIs(t, err, ErrCommandFailed)
}

func TestNewClient_InvalidExtraArgs(t *testing.T) {
	cfg := testConfig()
	cfg.ExtraArgs = `--flag "unterminated`
	_, err := NewClient(cfg, &fakeRunner{}, nil)
	assert.ErrorIs(t, err, ErrInvalidExtraArgs)
}

func TestRedact(t *testing.T) {
	c := newTestClient(t, testConfig(), &fakeRunner{})
	out := c.redact(c.CreateArgs(CreateRequest{Contract: "src/A.sol:A"}))
	for _, a := range out {
		assert.NotContains(t, a, testKey)
	}
	assert.Contains(t, out, redacted)
}

// =============================================================================
// Send Tests
// =============================================================================

func TestSend_Success(t *testing.T) {
	r := &fakeRunner{result: Result{Stdout: []byte(`{"transactionHash":"0xabc","status":"0x1"}`)}}
	c := newTestClient(t, testConfig(), r)

	res, err := c.Send(context.Background(), SendRequest{
		To:        "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0",
		Signature: "setOracle(address)",
		Args:      []string{"0x5FbDB2315678afecb367f032d93F642f64180aa3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", res.TxHash)

	call := r.calls[0]
	assert.Equal(t, []string{"cast", "send", "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0", "setOracle(address)", "0x5FbDB2315678afecb367f032d93F642f64180aa3", "--json"}, call[:6])
}

func TestSendArgs_NeverBroadcastFlag(t *testing.T) {
	cfg := testConfig()
	cfg.Broadcast = true
	cfg.Legacy = true
	c := newTestClient(t, cfg, &fakeRunner{})

	args := c.SendArgs(SendRequest{To: "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0", Signature: "f()"})
	assert.NotContains(t, args, "--broadcast")
	assert.Contains(t, args, "--legacy")
	assert.Contains(t, c.CreateArgs(CreateRequest{Contract: "src/A.sol:A"}), "--broadcast")
}

func TestSend_Failures(t *testing.T) {
	tests := []struct {
		name   string
		result Result
	}{
		{"nonzero exit", Result{ExitCode: 1, Stderr: []byte("execution reverted")}},
		{"reverted receipt", Result{Stdout: []byte(`{"transactionHash":"0xabc","status":"0x0"}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, testConfig(), &fakeRunner{result: tt.result})
			_, err := c.Send(context.Background(), SendRequest{To: "0x1", Signature: "f()"})
			assert.ErrorIs(t, err, ErrCommandFailed)
		})
	}
}
