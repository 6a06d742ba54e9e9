// Package deployer deploys one resolved artifact through the build/deploy
// boundary and confirms that bytecode exists at the reported address.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/artpar/chainforge/internal/core/deployment"
	"github.com/artpar/chainforge/internal/core/domain"
	"github.com/artpar/chainforge/internal/shell/chain"
	"github.com/artpar/chainforge/internal/shell/forge"
	"github.com/artpar/chainforge/internal/shell/retry"
)

// errNoCode marks a confirmation check that found empty code.
var errNoCode = errors.New("empty code")

// Boundary is the external build/deploy tool.
type Boundary interface {
	Create(ctx context.Context, req forge.CreateRequest) (forge.CreateResult, error)
}

// Config holds deployer configuration.
type Config struct {
	// ConfirmDelay is the wait before the single re-check when no code is
	// found right after deployment.
	ConfirmDelay time.Duration
	// ConfirmChecks is the total number of code checks, including the first.
	ConfirmChecks int
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		ConfirmDelay:  30 * time.Second,
		ConfirmChecks: 2,
	}
}

// Outcome describes a successful deployment.
type Outcome struct {
	Address       string
	TxHash        string
	Method        deployment.ExtractionMethod
	ExitCode      int
	ConfirmChecks int
	Duration      time.Duration
}

// Deployer implements the artifact deploy step.
type Deployer struct {
	boundary Boundary
	code     chain.CodeReader
	config   Config
	logger   *slog.Logger
}

// New creates a deployer.
func New(boundary Boundary, code chain.CodeReader, config Config, logger *slog.Logger) *Deployer {
	if config.ConfirmDelay < 0 {
		config.ConfirmDelay = 0
	}
	if config.ConfirmChecks <= 0 {
		config.ConfirmChecks = DefaultConfig().ConfirmChecks
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{
		boundary: boundary,
		code:     code,
		config:   config,
		logger:   logger.With("component", "deployer"),
	}
}

// Deploy invokes the boundary, extracts the address from its output and
// confirms code at that address. Output is scanned even when the command
// exited nonzero or was killed by its timeout. It never writes state.
//
// Errors wrap domain.ErrDeployResultUnparseable when no address is found and
// domain.ErrBytecodeAbsent when code is still missing after the re-check.
func (d *Deployer) Deploy(ctx context.Context, phase string, art deployment.ResolvedArtifact) (Outcome, error) {
	spec := art.Spec
	logger := d.logger.With("phase", phase, "artifact", spec.Name, "category", spec.Category)

	res, err := d.boundary.Create(ctx, forge.CreateRequest{
		Contract:        spec.Source,
		Libraries:       art.LibraryLinks(),
		ConstructorArgs: art.ConstructorArgs,
	})
	if err != nil && ctx.Err() != nil {
		return Outcome{}, domain.NewDeployError("deploy", phase, spec.Name, "boundary invocation failed", err)
	}

	// Output of a timed-out command may hold an already broadcast address.
	ex, ok := deployment.ExtractAddress(res.Output)
	if err != nil {
		if !ok {
			return Outcome{}, domain.NewDeployError("deploy", phase, spec.Name, "boundary invocation failed", err)
		}
		logger.Warn("deploy command did not finish but reported an address, confirming on chain",
			"address", ex.Address,
			"error", err,
		)
	}
	if !ok {
		logger.Error("no address in deploy output",
			"exit_code", res.ExitCode,
			"output_tail", tail(res.Output, 2000),
		)
		return Outcome{}, domain.NewDeployError("deploy", phase, spec.Name,
			fmt.Sprintf("exit code %d, no address found", res.ExitCode),
			domain.ErrDeployResultUnparseable)
	}
	logger.Info("deploy output parsed",
		"address", ex.Address,
		"tx_hash", ex.TxHash,
		"method", ex.Method,
		"exit_code", res.ExitCode,
		"took", res.Duration,
	)

	checks, err := d.confirm(ctx, logger, ex.Address)
	if err != nil {
		if errors.Is(err, errNoCode) {
			return Outcome{}, domain.NewDeployError("confirm", phase, spec.Name,
				fmt.Sprintf("no code at %s after %d checks", ex.Address, checks),
				domain.ErrBytecodeAbsent)
		}
		return Outcome{}, domain.NewDeployError("confirm", phase, spec.Name, "code lookup failed", err)
	}

	return Outcome{
		Address:       ex.Address,
		TxHash:        ex.TxHash,
		Method:        ex.Method,
		ExitCode:      res.ExitCode,
		ConfirmChecks: checks,
		Duration:      res.Duration,
	}, nil
}

func (d *Deployer) confirm(ctx context.Context, logger *slog.Logger, address string) (int, error) {
	checks := 0
	err := retry.Do(ctx, retry.Policy{
		Name:        "confirm " + address,
		MaxAttempts: d.config.ConfirmChecks,
		Delay:       d.config.ConfirmDelay,
		Retryable:   func(err error) bool { return errors.Is(err, errNoCode) },
		Logger:      logger,
	}, func(ctx context.Context, attempt int) error {
		checks = attempt
		code, err := d.code.CodeAt(ctx, address)
		if err != nil {
			return err
		}
		if len(code) == 0 {
			return errNoCode
		}
		logger.Info("bytecode confirmed", "address", address, "bytes", len(code), "check", attempt)
		return nil
	})
	return checks, err
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
