package forge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
)

var (
	// ErrCommandFailed is returned when a command exits nonzero where that
	// is fatal (cast send) or cannot be started.
	ErrCommandFailed = errors.New("command failed")

	// ErrInvalidExtraArgs is returned when network.extra_args cannot be split.
	ErrInvalidExtraArgs = errors.New("invalid extra args")
)

const redacted = "<redacted>"

// =============================================================================
// Config
// =============================================================================

// Config holds the toolchain and network settings shared by every call.
type Config struct {
	Binary      string // forge executable
	CastBinary  string // cast executable
	ProjectRoot string // directory holding foundry.toml

	RPCURL     string
	PrivateKey string

	// Transaction-mode flags some networks require.
	Legacy           bool
	Broadcast        bool
	GasPrice         string
	PriorityGasPrice string
	ExtraArgs        string // free-form, split like a shell would

	// Timeout bounds each command. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// DefaultConfig returns a config using binaries from PATH.
func DefaultConfig() Config {
	return Config{
		Binary:      "forge",
		CastBinary:  "cast",
		ProjectRoot: ".",
		Timeout:     5 * time.Minute,
	}
}

// =============================================================================
// Client
// =============================================================================

// Client runs forge and cast against one network.
type Client struct {
	cfg    Config
	extra  []string
	runner CommandRunner
	logger *slog.Logger
}

// NewClient creates a client. A nil runner uses ExecRunner.
func NewClient(cfg Config, runner CommandRunner, logger *slog.Logger) (*Client, error) {
	def := DefaultConfig()
	if cfg.Binary == "" {
		cfg.Binary = def.Binary
	}
	if cfg.CastBinary == "" {
		cfg.CastBinary = def.CastBinary
	}
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = def.ProjectRoot
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	extra, err := shellwords.Parse(cfg.ExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExtraArgs, err)
	}

	return &Client{
		cfg:    cfg,
		extra:  extra,
		runner: runner,
		logger: logger.With("component", "forge"),
	}, nil
}

// CreateRequest is one `forge create` invocation.
type CreateRequest struct {
	Contract        string   // "src/core/Pool.sol:Pool"
	Libraries       []string // "path:Name:0x..."
	ConstructorArgs []string
}

// CreateResult is the raw boundary output. Address extraction is the
// caller's job, and happens even when ExitCode is nonzero.
type CreateResult struct {
	Output   string
	ExitCode int
	Duration time.Duration
}

// Create runs `forge create`. Only a failure to run the command at all is
// returned as an error.
func (c *Client) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	args := c.CreateArgs(req)
	c.logger.Info("running forge create",
		"contract", req.Contract,
		"command", c.cfg.Binary+" "+strings.Join(c.redact(args), " "),
	)

	res, took, err := c.run(ctx, c.cfg.Binary, args)
	out := CreateResult{Output: res.Output(), ExitCode: res.ExitCode, Duration: took}
	if err != nil {
		return out, fmt.Errorf("%w: %s create %s: %v", ErrCommandFailed, c.cfg.Binary, req.Contract, err)
	}
	if res.ExitCode != 0 {
		c.logger.Warn("forge create exited nonzero, scanning output anyway",
			"contract", req.Contract,
			"exit_code", res.ExitCode,
		)
	}
	return out, nil
}

// CreateArgs builds the argument list for `forge create`.
// --constructor-args takes the rest of the line, so it comes last.
func (c *Client) CreateArgs(req CreateRequest) []string {
	args := []string{"create", req.Contract, "--json"}
	args = append(args, c.networkArgs(c.cfg.Broadcast)...)
	for _, l := range req.Libraries {
		args = append(args, "--libraries", l)
	}
	args = append(args, c.extra...)
	if len(req.ConstructorArgs) > 0 {
		args = append(args, "--constructor-args")
		args = append(args, req.ConstructorArgs...)
	}
	return args
}

// SendRequest is one `cast send` call.
type SendRequest struct {
	To        string
	Signature string // "setOracle(address)"
	Args      []string
}

// SendResult is the parsed `cast send --json` receipt.
type SendResult struct {
	TxHash string
	Status string
	Output string
}

type sendReceipt struct {
	TransactionHash string `json:"transactionHash"`
	Status          string `json:"status"`
}

// Send runs `cast send`. A nonzero exit or a reverted receipt is an error.
func (c *Client) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	args := c.SendArgs(req)
	c.logger.Info("running cast send",
		"to", req.To,
		"signature", req.Signature,
		"command", c.cfg.CastBinary+" "+strings.Join(c.redact(args), " "),
	)

	res, _, err := c.run(ctx, c.cfg.CastBinary, args)
	out := SendResult{Output: res.Output()}
	if err != nil {
		return out, fmt.Errorf("%w: %s send %s: %v", ErrCommandFailed, c.cfg.CastBinary, req.Signature, err)
	}
	if res.ExitCode != 0 {
		return out, fmt.Errorf("%w: %s send %s exited %d: %s", ErrCommandFailed, c.cfg.CastBinary, req.Signature, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}

	var receipt sendReceipt
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(res.Stdout))), &receipt); err == nil {
		out.TxHash = receipt.TransactionHash
		out.Status = receipt.Status
	}
	if out.Status != "" && out.Status != "0x1" && out.Status != "1" {
		return out, fmt.Errorf("%w: %s reverted in %s", ErrCommandFailed, req.Signature, out.TxHash)
	}
	return out, nil
}

// SendArgs builds the argument list for `cast send`.
func (c *Client) SendArgs(req SendRequest) []string {
	args := []string{"send", req.To, req.Signature}
	args = append(args, req.Args...)
	args = append(args, "--json")
	args = append(args, c.networkArgs(false)...)
	return args
}

// networkArgs are shared by forge and cast; only forge create takes
// --broadcast.
func (c *Client) networkArgs(broadcast bool) []string {
	args := []string{"--rpc-url", c.cfg.RPCURL, "--private-key", c.cfg.PrivateKey}
	if c.cfg.Legacy {
		args = append(args, "--legacy")
	}
	if broadcast {
		args = append(args, "--broadcast")
	}
	if c.cfg.GasPrice != "" {
		args = append(args, "--gas-price", c.cfg.GasPrice)
	}
	if c.cfg.PriorityGasPrice != "" {
		args = append(args, "--priority-gas-price", c.cfg.PriorityGasPrice)
	}
	return args
}

func (c *Client) run(ctx context.Context, name string, args []string) (Result, time.Duration, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	res, err := c.runner.Run(ctx, c.cfg.ProjectRoot, name, args...)
	return res, time.Since(start), err
}

// redact hides the signing key in log output.
func (c *Client) redact(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if c.cfg.PrivateKey != "" && strings.Contains(a, c.cfg.PrivateKey) {
			a = strings.ReplaceAll(a, c.cfg.PrivateKey, redacted)
		}
		out[i] = a
	}
	return out
}
