package engine

import (
	"github.com/artpar/chainforge/internal/core/deployment"
	"github.com/artpar/chainforge/internal/core/domain"
)

// NotDeployed is shown for artifacts without a recorded address.
const NotDeployed = "not deployed"

// ArtifactStatus is what happened to an artifact in a run.
type ArtifactStatus string

const (
	StatusDeployed    ArtifactStatus = "deployed"
	StatusRedeployed  ArtifactStatus = "redeployed"
	StatusSkipped     ArtifactStatus = "skipped"
	StatusRecorded    ArtifactStatus = "recorded"
	StatusPending     ArtifactStatus = "pending"
	StatusWouldDeploy ArtifactStatus = "would deploy"
	StatusFailed      ArtifactStatus = "failed"
)

// ArtifactReport is one line of the summary.
type ArtifactReport struct {
	Name         string
	Category     domain.Category
	Address      string // empty when not deployed
	Status       ArtifactStatus
	TxHash       string
	Verification string
}

// DisplayAddress returns the address or the not-deployed marker.
func (a ArtifactReport) DisplayAddress() string {
	if a.Address == "" {
		return NotDeployed
	}
	return a.Address
}

// PostStepReport is the outcome of one post-step.
type PostStepReport struct {
	Name   string
	TxHash string
	Error  string
	Ran    bool
}

// PhaseReport groups artifacts and post-steps of one phase.
type PhaseReport struct {
	Name      string
	Status    domain.PhaseStatus
	Missing   []string
	Artifacts []ArtifactReport
	PostSteps []PostStepReport
}

// Report is the summary of a run, a dry run or the current state.
type Report struct {
	RunID    string
	Network  string
	Deployer string
	DryRun   bool
	Phases   []PhaseReport
}

// Deployed counts artifacts deployed or redeployed in this run.
func (r *Report) Deployed() int {
	n := 0
	for _, ph := range r.Phases {
		for _, a := range ph.Artifacts {
			if a.Status == StatusDeployed || a.Status == StatusRedeployed {
				n++
			}
		}
	}
	return n
}

// BuildReport lists every artifact of the given phases against state, with
// its recorded address or the not-deployed marker.
func BuildReport(phases []domain.Phase, state *domain.DeploymentState) *Report {
	r := &Report{Network: state.Network, Deployer: state.Deployer}
	lookup := deployment.StateLookup(state)
	for _, ph := range phases {
		pr := PhaseReport{Name: ph.Name, Status: state.PhaseStatusOf(ph.Name)}
		for _, a := range ph.Artifacts {
			pr.Artifacts = append(pr.Artifacts, artifactFromState(a, lookup))
		}
		r.Phases = append(r.Phases, pr)
	}
	return r
}

// artifactFromState is recorded with its address, or pending.
func artifactFromState(a domain.ArtifactSpec, lookup deployment.AddressLookup) ArtifactReport {
	ar := ArtifactReport{Name: a.Name, Category: a.Category, Status: StatusPending}
	if addr, ok := lookup.Get(a.Category, a.Name); ok {
		ar.Address = addr
		ar.Status = StatusRecorded
	}
	return ar
}
