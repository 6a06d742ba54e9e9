package deployment

import (
	"sort"

	"github.com/artpar/chainforge/internal/core/domain"
)

// =============================================================================
// Artifact Action Planning
// =============================================================================

// Action is what the engine does with one artifact in the current run.
type Action string

const (
	ActionDeploy   Action = "deploy"   // not recorded yet
	ActionRedeploy Action = "redeploy" // recorded, but force-redeploy is set
	ActionSkip     Action = "skip"     // recorded, left untouched
)

// ForceSet selects artifacts to redeploy even when recorded.
type ForceSet struct {
	All   bool
	Names map[string]bool
}

// NewForceSet builds a ForceSet from artifact names.
func NewForceSet(all bool, names ...string) ForceSet {
	f := ForceSet{All: all, Names: make(map[string]bool, len(names))}
	for _, n := range names {
		f.Names[n] = true
	}
	return f
}

// Forces reports whether the artifact is forced.
func (f ForceSet) Forces(name string) bool {
	return f.All || f.Names[name]
}

// Unmatched returns forced names, sorted, that name no artifact of phases.
func (f ForceSet) Unmatched(phases []domain.Phase) []string {
	known := make(map[string]bool)
	for _, ph := range phases {
		for _, a := range ph.Artifacts {
			known[a.Name] = true
		}
	}
	var out []string
	for name := range f.Names {
		if !known[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// ArtifactPlan is the planned action for an artifact plus the address it
// already has, if any.
type ArtifactPlan struct {
	Action   Action
	Existing string
}

// PlanArtifact decides whether an artifact is deployed, redeployed or
// skipped. This is the skip-if-recorded rule that makes re-runs idempotent
// and lets an interrupted run resume where it stopped.
//
// Example:
//
//	plan := PlanArtifact(spec, StateLookup(state), NewForceSet(false))
//	if plan.Action == ActionSkip {
//	    // already deployed at plan.Existing
//	}
func PlanArtifact(spec domain.ArtifactSpec, lookup AddressLookup, force ForceSet) ArtifactPlan {
	existing, ok := lookup.Get(spec.Category, spec.Name)
	switch {
	case !ok:
		return ArtifactPlan{Action: ActionDeploy}
	case force.Forces(spec.Name):
		return ArtifactPlan{Action: ActionRedeploy, Existing: existing}
	default:
		return ArtifactPlan{Action: ActionSkip, Existing: existing}
	}
}

// PhaseGate returns every reference a phase needs that is neither recorded
// nor produced by an earlier artifact of the same phase. Post-step targets
// and arguments count too. A non-empty result means the phase must not start.
func PhaseGate(phase domain.Phase, lookup AddressLookup) []domain.Ref {
	var refs []domain.Ref
	refs = append(refs, phase.Prerequisites...)

	produced := make(map[domain.Ref]bool)
	for _, a := range phase.Artifacts {
		for _, r := range a.Refs() {
			if !produced[r] {
				refs = append(refs, r)
			}
		}
		produced[a.Key()] = true
	}
	for _, step := range phase.PostSteps {
		for _, r := range step.Refs() {
			if !produced[r] {
				refs = append(refs, r)
			}
		}
	}
	return MissingRefs(refs, lookup)
}
