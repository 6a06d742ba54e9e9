package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/artpar/chainforge/internal/core/crypto"
	"github.com/artpar/chainforge/internal/core/deployment"
	"github.com/artpar/chainforge/internal/engine"
	"github.com/artpar/chainforge/internal/shell/credential"
	"github.com/artpar/chainforge/internal/shell/report"
	"github.com/joho/godotenv"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const usage = `usage: chainforge <command> [flags]

commands:
  deploy     deploy the plan's phases (default)
  status     print recorded addresses for every artifact of the plan
  seal-key   encrypt a signing key with a passphrase, or store it in the OS keyring
  version    print version and exit
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// A missing .env is fine.
	_ = godotenv.Load()

	command := "deploy"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	switch command {
	case "deploy":
		return runDeploy(args, stdout, stderr)
	case "status":
		return runStatus(args, stdout, stderr)
	case "seal-key":
		return runSealKey(args, stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "chainforge %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return ExitSuccess
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", command, usage)
		return ExitConfigError
	}
}

// =============================================================================
// deploy
// =============================================================================

// deployFlags override the matching config keys when set.
type deployFlags struct {
	configPath     string
	phases         string
	force          string
	forceAll       bool
	rerunPostSteps bool
	dryRun         bool
}

func parseDeployFlags(args []string, stderr io.Writer) (deployFlags, error) {
	var f deployFlags
	fs := flag.NewFlagSet("deploy", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "Path to config file")
	fs.StringVar(&f.phases, "phase", "", "Comma-separated phases to run (default: all, in plan order)")
	fs.StringVar(&f.force, "force", "", "Comma-separated artifacts to redeploy even if recorded")
	fs.BoolVar(&f.forceAll, "force-all", false, "Redeploy every artifact of the selected phases")
	fs.BoolVar(&f.rerunPostSteps, "rerun-post-steps", false, "Run post-steps of completed phases again")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Report what would be deployed without deploying")
	return f, fs.Parse(args)
}

func (f deployFlags) runOptions(cfg *Config) engine.RunOptions {
	names := cfg.Deploy.Force
	if f.force != "" {
		names = splitList([]string{f.force})
	}
	return engine.RunOptions{
		Phases:         splitList([]string{f.phases}),
		Force:          deployment.NewForceSet(f.forceAll || cfg.Deploy.ForceAll, names...),
		RerunPostSteps: f.rerunPostSteps || cfg.Deploy.RerunPostSteps,
	}
}

func runDeploy(args []string, stdout, stderr io.Writer) int {
	flags, err := parseDeployFlags(args, stderr)
	if err != nil {
		return ExitConfigError
	}

	cfg, err := LoadConfig(flags.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	validate := cfg.ValidateDeploy
	if flags.dryRun {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	logger := SetupLogger(cfg)
	logger.Info("starting chainforge",
		"version", Version,
		"network", cfg.Network.Name,
		"plan", cfg.Plan.Path,
		"dry_run", flags.dryRun,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	newApp := NewDeployApp
	if flags.dryRun {
		newApp = NewStatusApp
	}
	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return ExitCodeFor(err)
	}
	defer app.Close()

	opts := flags.runOptions(cfg)
	var rep *engine.Report
	if flags.dryRun {
		rep, err = app.orchestrator.Preview(ctx, app.plan, opts)
	} else {
		rep, err = app.orchestrator.Run(ctx, app.plan, opts)
	}

	if rep != nil {
		report.Log(logger, rep)
		_ = report.Render(stdout, rep)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("interrupted, state persisted so far is kept; rerun to resume")
		}
		logger.Error("deployment failed", "error", err)
		return ExitCodeFor(err)
	}
	return ExitSuccess
}

// =============================================================================
// status
// =============================================================================

func runStatus(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	logger := SetupLogger(cfg)

	ctx := context.Background()
	app, err := NewStatusApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return ExitCodeFor(err)
	}
	defer app.Close()

	rep, err := app.orchestrator.Status(ctx, app.plan)
	if err != nil {
		logger.Error("failed to read state", "error", err)
		return ExitCodeFor(err)
	}
	_ = report.Render(stdout, rep)
	return ExitSuccess
}

// =============================================================================
// seal-key
// =============================================================================

func runSealKey(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("seal-key", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	generate := fs.Bool("generate", false, "Generate a new signing key instead of sealing credential.private_key")
	keyringUser := fs.String("keyring-user", "", "Store the key in the OS keyring under this user instead of printing a sealed key")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	key := cfg.Credential.PrivateKey
	if *generate {
		if key, err = crypto.GeneratePrivateKey(); err != nil {
			fmt.Fprintf(stderr, "generate key: %v\n", err)
			return ExitConfigError
		}
	}
	if key == "" {
		fmt.Fprintln(stderr, "no key to seal: set CHAINFORGE_CREDENTIAL_PRIVATE_KEY or pass -generate")
		return ExitConfigError
	}
	addr, err := crypto.AddressOf(key)
	if err != nil {
		fmt.Fprintf(stderr, "invalid key: %v\n", err)
		return ExitConfigError
	}

	if *keyringUser != "" {
		if _, err := credential.Store(cfg.Credential.KeyringService, *keyringUser, key); err != nil {
			fmt.Fprintf(stderr, "store key: %v\n", err)
			return ExitConfigError
		}
		fmt.Fprintf(stdout, "stored key for %s in keyring %s/%s\n", addr, cfg.Credential.KeyringService, *keyringUser)
		return ExitSuccess
	}

	if cfg.Credential.Passphrase == "" {
		fmt.Fprintln(stderr, "a passphrase is required: set CHAINFORGE_CREDENTIAL_PASSPHRASE")
		return ExitConfigError
	}
	sealed, err := crypto.Seal([]byte(key), cfg.Credential.Passphrase)
	if err != nil {
		fmt.Fprintf(stderr, "seal key: %v\n", err)
		return ExitConfigError
	}
	fmt.Fprintf(stdout, "deployer: %s\nsealed_key: %s\n", addr, sealed)
	return ExitSuccess
}
