package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/artpar/chainforge/internal/core/domain"
	"github.com/artpar/chainforge/internal/core/plan"
	"github.com/artpar/chainforge/internal/engine"
	"github.com/artpar/chainforge/internal/shell/chain"
	"github.com/artpar/chainforge/internal/shell/credential"
	"github.com/artpar/chainforge/internal/shell/deployer"
	"github.com/artpar/chainforge/internal/shell/forge"
	"github.com/artpar/chainforge/internal/shell/store"
	"github.com/artpar/chainforge/internal/shell/verifier"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess           = 0
	ExitConfigError       = 1
	ExitStateError        = 2
	ExitDependencyMissing = 3
	ExitUnparseable       = 4
	ExitBytecodeAbsent    = 5
	ExitDeployError       = 6
)

// AppError carries the exit code of a failed command.
type AppError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *AppError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ExitCodeFor maps a run error to the process exit code.
func ExitCodeFor(err error) int {
	var appErr *AppError
	var storeErr *store.StoreError
	var parseErr *plan.ParseError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &appErr):
		return appErr.ExitCode
	case errors.Is(err, domain.ErrHardDependencyMissing):
		return ExitDependencyMissing
	case errors.Is(err, domain.ErrDeployResultUnparseable):
		return ExitUnparseable
	case errors.Is(err, domain.ErrBytecodeAbsent):
		return ExitBytecodeAbsent
	case errors.As(err, &storeErr):
		return ExitStateError
	case errors.As(err, &parseErr), errors.Is(err, domain.ErrInvalidPlan), errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	default:
		return ExitDeployError
	}
}

// =============================================================================
// App
// =============================================================================

// App holds everything a command needs.
type App struct {
	config       *Config
	plan         domain.Plan
	repo         *store.Repository
	orchestrator *engine.Orchestrator
	chain        *chain.Client
	logger       *slog.Logger
}

// NewStatusApp wires the read-only pieces: plan and state.
func NewStatusApp(ctx context.Context, cfg *Config, logger *slog.Logger) (*App, error) {
	p, err := loadPlan(cfg.Plan.Path)
	if err != nil {
		return nil, &AppError{Op: "LoadPlan", Err: err, ExitCode: ExitConfigError}
	}
	repo, err := openRepository(ctx, cfg, "", logger)
	if err != nil {
		return nil, err
	}
	return &App{
		config:       cfg,
		plan:         p,
		repo:         repo,
		orchestrator: engine.NewOrchestrator(repo, nil, nil, nil, logger),
		logger:       logger,
	}, nil
}

// NewDeployApp wires the full pipeline against the configured network.
func NewDeployApp(ctx context.Context, cfg *Config, logger *slog.Logger) (*App, error) {
	p, err := loadPlan(cfg.Plan.Path)
	if err != nil {
		return nil, &AppError{Op: "LoadPlan", Err: err, ExitCode: ExitConfigError}
	}

	cred, err := credential.Resolve(cfg.Credential, logger)
	if err != nil {
		return nil, &AppError{Op: "ResolveCredential", Err: err, ExitCode: ExitConfigError}
	}

	client, err := chain.Dial(ctx, cfg.Network.RPCURL, logger)
	if err != nil {
		return nil, &AppError{Op: "Dial", Err: err, ExitCode: ExitDeployError}
	}
	if cfg.Network.ChainID != 0 {
		if err := client.CheckChainID(ctx, cfg.Network.ChainID); err != nil {
			client.Close()
			return nil, &AppError{Op: "CheckChainID", Err: err, ExitCode: ExitConfigError}
		}
	}

	forgeClient, err := forge.NewClient(forge.Config{
		Binary:           cfg.Forge.Binary,
		CastBinary:       cfg.Forge.CastBinary,
		ProjectRoot:      cfg.Forge.ProjectRoot,
		RPCURL:           cfg.Network.RPCURL,
		PrivateKey:       cred.PrivateKey,
		Legacy:           cfg.Network.Legacy,
		Broadcast:        cfg.Network.Broadcast,
		GasPrice:         cfg.Network.GasPrice,
		PriorityGasPrice: cfg.Network.PriorityGasPrice,
		ExtraArgs:        cfg.Network.ExtraArgs,
		Timeout:          cfg.Forge.Timeout,
	}, nil, logger)
	if err != nil {
		client.Close()
		return nil, &AppError{Op: "NewForgeClient", Err: err, ExitCode: ExitConfigError}
	}

	v, err := newVerifier(cfg, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	repo, err := openRepository(ctx, cfg, cred.Address, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	d := deployer.New(forgeClient, client, deployer.Config{
		ConfirmDelay:  cfg.Deploy.ConfirmDelay,
		ConfirmChecks: cfg.Deploy.ConfirmChecks,
	}, logger)

	return &App{
		config:       cfg,
		plan:         p,
		repo:         repo,
		orchestrator: engine.NewOrchestrator(repo, d, v, engine.CastPostSteps{Sender: forgeClient}, logger),
		chain:        client,
		logger:       logger,
	}, nil
}

// Close releases the state backend and RPC connection.
func (a *App) Close() {
	if a.chain != nil {
		a.chain.Close()
	}
	if err := a.repo.Close(); err != nil {
		a.logger.Warn("failed to close state backend", "error", err)
	}
}

func newVerifier(cfg *Config, logger *slog.Logger) (engine.Verifier, error) {
	if !cfg.Verification.Enabled {
		logger.Info("source verification disabled")
		return verifier.Disabled{}, nil
	}
	project, err := forge.LoadProject(cfg.Forge.ProjectRoot, cfg.Forge.Profile)
	if err != nil {
		return nil, &AppError{Op: "LoadProject", Err: err, ExitCode: ExitConfigError}
	}
	client := verifier.NewClient(verifier.Config{
		BaseURL:          cfg.Verification.BaseURL,
		APIKey:           cfg.Verification.APIKey,
		Timeout:          cfg.Verification.Timeout,
		TransportRetries: cfg.Verification.TransportRetries,
	}, logger)
	return verifier.NewSubmitter(client, forge.NewBuildInfoProvider(project, cfg.Verification.License), verifier.SubmitterConfig{
		MaxAttempts: cfg.Verification.MaxAttempts,
		PollDelay:   cfg.Verification.PollDelay,
	}, logger), nil
}

func openRepository(ctx context.Context, cfg *Config, deployerAddr string, logger *slog.Logger) (*store.Repository, error) {
	backend, err := store.Open(ctx, store.Config{
		Backend: cfg.State.Backend,
		Path:    cfg.State.Path,
		DSN:     cfg.State.DSN,
		Network: cfg.Network.Name,
	})
	if err != nil {
		return nil, &AppError{Op: "OpenState", Err: err, ExitCode: ExitStateError}
	}
	return store.NewRepository(backend, store.Options{
		Network:  cfg.Network.Name,
		Deployer: deployerAddr,
		Logger:   logger,
	}), nil
}

func loadPlan(path string) (domain.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("read plan: %w", err)
	}
	return plan.ParsePlan(data)
}
