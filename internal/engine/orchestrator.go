package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/artpar/chainforge/internal/core/deployment"
	"github.com/artpar/chainforge/internal/core/domain"
	"github.com/google/uuid"
)

// =============================================================================
// Orchestrator
// =============================================================================

// RunOptions selects what a run does.
type RunOptions struct {
	// Phases limits the run to the named phases, kept in plan order.
	// Empty runs every phase.
	Phases []string
	// Force names artifacts to redeploy even when recorded.
	Force deployment.ForceSet
	// RerunPostSteps runs post-steps of completed phases even when nothing
	// was deployed.
	RerunPostSteps bool
}

// Orchestrator runs deployment plans against one network.
type Orchestrator struct {
	state     StateStore
	deployer  ArtifactDeployer
	verifier  Verifier
	postSteps PostStepRunner
	logger    *slog.Logger
	newRunID  func() string
}

// NewOrchestrator wires an orchestrator.
func NewOrchestrator(state StateStore, d ArtifactDeployer, v Verifier, p PostStepRunner, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		state:     state,
		deployer:  d,
		verifier:  v,
		postSteps: p,
		logger:    logger.With("component", "orchestrator"),
		newRunID:  uuid.NewString,
	}
}

// Run executes the selected phases in plan order.
//
// Recorded artifacts are skipped unless forced, so a repeated or resumed run
// only deploys what is missing. A fatal error stops the run at once; every
// address confirmed before it stays persisted. The report is returned with
// the error and still lists every selected artifact; those the run never
// reached are shown as currently recorded.
func (o *Orchestrator) Run(ctx context.Context, plan domain.Plan, opts RunOptions) (*Report, error) {
	phases, err := selectPhases(plan, opts)
	if err != nil {
		return nil, err
	}
	if _, err := o.state.Load(ctx); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	runID := o.newRunID()
	logger := o.logger.With("run_id", runID)
	snap := o.state.Snapshot()
	report := &Report{RunID: runID, Network: snap.Network, Deployer: snap.Deployer}

	logger.Info("deployment started",
		"plan", plan.Name,
		"network", snap.Network,
		"deployer", snap.Deployer,
		"phases", phaseNames(phases),
	)
	start := time.Now()

	for i, ph := range phases {
		if err := ctx.Err(); err != nil {
			o.appendOutstanding(report, phases[i:])
			return report, err
		}
		pr, err := o.runPhase(ctx, logger.With("phase", ph.Name), ph, opts)
		if err != nil {
			report.Phases = append(report.Phases, o.fillPhase(pr, ph))
			o.appendOutstanding(report, phases[i+1:])
			logger.Error("deployment stopped", "phase", ph.Name, "error", err)
			return report, err
		}
		report.Phases = append(report.Phases, pr)
	}

	logger.Info("deployment finished",
		"deployed", report.Deployed(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return report, nil
}

// fillPhase lists the artifacts a stopped phase never reached, from state.
func (o *Orchestrator) fillPhase(pr PhaseReport, ph domain.Phase) PhaseReport {
	if len(pr.Artifacts) >= len(ph.Artifacts) {
		return pr
	}
	lookup := deployment.StateLookup(o.state.Snapshot())
	for _, spec := range ph.Artifacts[len(pr.Artifacts):] {
		pr.Artifacts = append(pr.Artifacts, artifactFromState(spec, lookup))
	}
	return pr
}

// appendOutstanding adds phases the run did not reach, as currently recorded.
func (o *Orchestrator) appendOutstanding(report *Report, phases []domain.Phase) {
	if len(phases) == 0 {
		return
	}
	report.Phases = append(report.Phases, BuildReport(phases, o.state.Snapshot()).Phases...)
}

func (o *Orchestrator) runPhase(ctx context.Context, logger *slog.Logger, ph domain.Phase, opts RunOptions) (PhaseReport, error) {
	pr := PhaseReport{Name: ph.Name}
	wasCompleted := o.state.PhaseStatus(ph.Name) == domain.PhaseCompleted

	if missing := deployment.PhaseGate(ph, o.state); len(missing) > 0 {
		pr.Missing = refStrings(missing)
		pr.Status = o.state.PhaseStatus(ph.Name)
		return pr, domain.NewDeployError("gate", ph.Name, "",
			"missing "+strings.Join(pr.Missing, ", "),
			domain.ErrHardDependencyMissing)
	}

	logger.Info("phase started", "artifacts", len(ph.Artifacts), "post_steps", len(ph.PostSteps))
	if err := o.state.BeginPhase(ctx, ph.Name); err != nil {
		return pr, err
	}

	deployed := 0
	for _, spec := range ph.Artifacts {
		ar, err := o.runArtifact(ctx, logger.With("artifact", spec.Name), ph.Name, spec, opts.Force)
		pr.Artifacts = append(pr.Artifacts, ar)
		if err != nil {
			pr.Status = domain.PhaseInProgress
			return pr, err
		}
		if ar.Status == StatusDeployed || ar.Status == StatusRedeployed {
			deployed++
		}
	}

	if !wasCompleted || deployed > 0 || opts.RerunPostSteps {
		steps, err := o.runPostSteps(ctx, logger, ph)
		pr.PostSteps = steps
		if err != nil {
			pr.Status = domain.PhaseInProgress
			return pr, err
		}
	} else if len(ph.PostSteps) > 0 {
		logger.Info("post-steps already applied, skipping", "hint", "use --rerun-post-steps to run them again")
	}

	if err := o.state.CompletePhase(ctx, ph.Name); err != nil {
		return pr, err
	}
	pr.Status = domain.PhaseCompleted
	logger.Info("phase completed", "deployed", deployed, "artifacts", len(ph.Artifacts))
	return pr, nil
}

func (o *Orchestrator) runArtifact(ctx context.Context, logger *slog.Logger, phase string, spec domain.ArtifactSpec, force deployment.ForceSet) (ArtifactReport, error) {
	ar := ArtifactReport{Name: spec.Name, Category: spec.Category}

	planned := deployment.PlanArtifact(spec, o.state, force)
	if planned.Action == deployment.ActionSkip {
		ar.Address = planned.Existing
		ar.Status = StatusSkipped
		logger.Info("already deployed, skipping", "address", planned.Existing)
		return ar, nil
	}

	resolved, err := deployment.Resolve(spec, o.state, o.state.Deployer())
	if err != nil {
		ar.Status = StatusFailed
		return ar, withPhase(err, phase)
	}

	if planned.Action == deployment.ActionRedeploy {
		logger.Warn("force redeploy", "previous", planned.Existing)
	}
	outcome, err := o.deployer.Deploy(ctx, phase, resolved)
	if err != nil {
		ar.Status = StatusFailed
		return ar, err
	}

	if planned.Action == deployment.ActionRedeploy {
		err = o.state.Replace(ctx, spec.Category, spec.Name, outcome.Address)
		ar.Status = StatusRedeployed
	} else {
		err = o.state.Record(ctx, spec.Category, spec.Name, outcome.Address)
		ar.Status = StatusDeployed
	}
	if err != nil {
		ar.Status = StatusFailed
		return ar, err
	}
	ar.Address = outcome.Address
	ar.TxHash = outcome.TxHash

	logger.Info("artifact deployed",
		"address", outcome.Address,
		"tx", outcome.TxHash,
		"duration", outcome.Duration.Round(time.Millisecond),
	)

	ar.Verification, err = o.verify(ctx, logger, spec, outcome.Address)
	if err != nil {
		return ar, err
	}
	return ar, nil
}

// verify never fails the artifact; only a cancelled context is returned.
func (o *Orchestrator) verify(ctx context.Context, logger *slog.Logger, spec domain.ArtifactSpec, address string) (string, error) {
	res, err := o.verifier.Verify(ctx, spec, address)
	switch {
	case ctx.Err() != nil:
		return "", ctx.Err()
	case err != nil:
		logger.Warn("verification skipped",
			"error", err,
			"hint", "verify "+address+" manually on the explorer",
		)
		return "incomplete", nil
	case res.Skipped:
		return "skipped", nil
	case res.Verified:
		return string(res.Record.Status), nil
	default:
		return "unverified", nil
	}
}

func (o *Orchestrator) runPostSteps(ctx context.Context, logger *slog.Logger, ph domain.Phase) ([]PostStepReport, error) {
	var reports []PostStepReport
	for _, step := range ph.PostSteps {
		sr := PostStepReport{Name: step.Name, Ran: true}
		stepLogger := logger.With("post_step", step.Name)

		resolved, err := deployment.ResolvePostStep(step, o.state, o.state.Deployer())
		if err != nil {
			return append(reports, sr), withPhase(err, ph.Name)
		}

		sr.TxHash, err = o.postSteps.Run(ctx, resolved)
		if ctx.Err() != nil {
			return append(reports, sr), ctx.Err()
		}
		if err != nil {
			err = fmt.Errorf("%w: %s: %v", domain.ErrPostStepFailure, step.Name, err)
			sr.Error = err.Error()
			stepLogger.Warn("post-step failed",
				"error", err,
				"hint", fmt.Sprintf("call %s on %s manually or rerun with --rerun-post-steps", step.Signature, resolved.Target),
			)
		} else {
			stepLogger.Info("post-step applied", "target", resolved.Target, "tx", sr.TxHash)
		}
		reports = append(reports, sr)
	}
	return reports, nil
}

// =============================================================================
// Dry Run & Status
// =============================================================================

// Preview reports what Run would do without deploying or writing state.
// Artifacts of earlier selected phases count as available to later ones.
func (o *Orchestrator) Preview(ctx context.Context, plan domain.Plan, opts RunOptions) (*Report, error) {
	phases, err := selectPhases(plan, opts)
	if err != nil {
		return nil, err
	}
	if _, err := o.state.Load(ctx); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	snap := o.state.Snapshot()
	report := &Report{Network: snap.Network, Deployer: snap.Deployer, DryRun: true}

	planned := make(map[domain.Ref]bool)
	lookup := deployment.LookupFunc(func(cat domain.Category, name string) (string, bool) {
		if addr, ok := snap.Address(cat, name); ok {
			return addr, true
		}
		return "", planned[domain.DeployedRef(cat, name)]
	})

	for _, ph := range phases {
		pr := PhaseReport{Name: ph.Name, Status: snap.PhaseStatusOf(ph.Name)}
		pr.Missing = refStrings(deployment.PhaseGate(ph, lookup))
		for _, spec := range ph.Artifacts {
			ar := ArtifactReport{Name: spec.Name, Category: spec.Category}
			p := deployment.PlanArtifact(spec, deployment.StateLookup(snap), opts.Force)
			ar.Address = p.Existing
			switch p.Action {
			case deployment.ActionSkip:
				ar.Status = StatusSkipped
			case deployment.ActionRedeploy:
				ar.Status = StatusRedeployed
			default:
				ar.Status = StatusWouldDeploy
			}
			planned[spec.Key()] = true
			pr.Artifacts = append(pr.Artifacts, ar)
		}
		report.Phases = append(report.Phases, pr)
	}
	return report, nil
}

// Status loads the state and reports every artifact of the plan.
func (o *Orchestrator) Status(ctx context.Context, plan domain.Plan) (*Report, error) {
	if _, err := o.state.Load(ctx); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return BuildReport(plan.Phases, o.state.Snapshot()), nil
}

// =============================================================================
// Helpers
// =============================================================================

// selectPhases applies the phase filter and rejects forced names that match
// no artifact of the selected phases.
func selectPhases(plan domain.Plan, opts RunOptions) ([]domain.Phase, error) {
	phases, err := plan.Select(opts.Phases)
	if err != nil {
		return nil, err
	}
	if unknown := opts.Force.Unmatched(phases); len(unknown) > 0 {
		return nil, fmt.Errorf("%w: force names no artifact of the selected phases: %s",
			domain.ErrInvalidPlan, strings.Join(unknown, ", "))
	}
	return phases, nil
}

func withPhase(err error, phase string) error {
	var de *domain.DeployError
	if errors.As(err, &de) && de.Phase == "" {
		de.Phase = phase
	}
	return err
}

func refStrings(refs []domain.Ref) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.String())
	}
	return out
}

func phaseNames(phases []domain.Phase) []string {
	names := make([]string, 0, len(phases))
	for _, ph := range phases {
		names = append(names, ph.Name)
	}
	return names
}
