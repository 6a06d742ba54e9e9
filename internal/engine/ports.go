// Package engine drives a deployment plan phase by phase: it gates each
// phase on its dependencies, deploys what is not recorded yet, persists
// every address as soon as it is confirmed, verifies best-effort and runs
// the phase's post-steps.
package engine

import (
	"context"

	"github.com/artpar/chainforge/internal/core/deployment"
	"github.com/artpar/chainforge/internal/core/domain"
	"github.com/artpar/chainforge/internal/shell/deployer"
	"github.com/artpar/chainforge/internal/shell/forge"
	"github.com/artpar/chainforge/internal/shell/verifier"
)

// =============================================================================
// Ports
// =============================================================================

// StateStore is the persisted deployment state. *store.Repository
// implements it.
type StateStore interface {
	Load(ctx context.Context) (*domain.DeploymentState, error)
	Get(cat domain.Category, name string) (string, bool)
	Deployer() string
	Record(ctx context.Context, cat domain.Category, name, address string) error
	Replace(ctx context.Context, cat domain.Category, name, address string) error
	BeginPhase(ctx context.Context, phase string) error
	CompletePhase(ctx context.Context, phase string) error
	PhaseStatus(phase string) domain.PhaseStatus
	Snapshot() *domain.DeploymentState
}

// ArtifactDeployer deploys one resolved artifact and confirms its code.
type ArtifactDeployer interface {
	Deploy(ctx context.Context, phase string, art deployment.ResolvedArtifact) (deployer.Outcome, error)
}

// Verifier submits a deployed artifact for source verification.
type Verifier interface {
	Verify(ctx context.Context, spec domain.ArtifactSpec, address string) (verifier.Result, error)
}

// PostStepRunner executes one resolved post-step.
type PostStepRunner interface {
	Run(ctx context.Context, step deployment.ResolvedPostStep) (string, error)
}

// =============================================================================
// Adapters
// =============================================================================

// Sender is the transaction boundary behind CastPostSteps.
type Sender interface {
	Send(ctx context.Context, req forge.SendRequest) (forge.SendResult, error)
}

// CastPostSteps runs post-steps as `cast send` transactions.
type CastPostSteps struct {
	Sender Sender
}

// Run sends the post-step transaction and returns its hash.
func (c CastPostSteps) Run(ctx context.Context, step deployment.ResolvedPostStep) (string, error) {
	res, err := c.Sender.Send(ctx, forge.SendRequest{
		To:        step.Target,
		Signature: step.Signature,
		Args:      step.Args,
	})
	return res.TxHash, err
}
