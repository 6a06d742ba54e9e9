package domain

import (
	"fmt"
)

// =============================================================================
// Phase & Plan
// =============================================================================

// PostStep is a call made after a phase's artifacts are deployed, typically
// registering one deployed address into another contract.
type PostStep struct {
	Name        string
	Description string
	Target      Ref
	Signature   string // e.g. "setPriceOracle(address)"
	Args        []Arg
}

// Refs returns the deployed-artifact references of the step.
func (p PostStep) Refs() []Ref {
	refs := []Ref{p.Target}
	for _, arg := range p.Args {
		if arg.Ref != nil && arg.Ref.Kind == RefDeployed {
			refs = append(refs, *arg.Ref)
		}
	}
	return refs
}

// Phase is a named, ordered step of a deployment plan.
type Phase struct {
	Name          string
	Description   string
	Prerequisites []Ref
	Artifacts     []ArtifactSpec
	PostSteps     []PostStep
}

// Plan is the ordered sequence of phases for one protocol.
type Plan struct {
	Name   string
	Phases []Phase
}

// Phase looks up a phase by name.
func (p Plan) Phase(name string) (Phase, bool) {
	for _, ph := range p.Phases {
		if ph.Name == name {
			return ph, true
		}
	}
	return Phase{}, false
}

// Select returns the named phases in plan order. An empty selection returns
// every phase.
func (p Plan) Select(names []string) ([]Phase, error) {
	if len(names) == 0 {
		return p.Phases, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := p.Phase(n); !ok {
			return nil, fmt.Errorf("%w: unknown phase %q", ErrInvalidPlan, n)
		}
		want[n] = true
	}
	var out []Phase
	for _, ph := range p.Phases {
		if want[ph.Name] {
			out = append(out, ph)
		}
	}
	return out, nil
}

// Validate checks plan structure. It verifies that references respect the
// declared order but never reorders anything.
func (p Plan) Validate() error {
	if len(p.Phases) == 0 {
		return fmt.Errorf("%w: plan has no phases", ErrInvalidPlan)
	}

	phaseNames := make(map[string]bool)
	produced := make(map[Ref]string) // artifact key -> producing phase

	for _, ph := range p.Phases {
		if ph.Name == "" {
			return fmt.Errorf("%w: phase without name", ErrInvalidPlan)
		}
		if phaseNames[ph.Name] {
			return fmt.Errorf("%w: duplicate phase %q", ErrInvalidPlan, ph.Name)
		}
		phaseNames[ph.Name] = true

		known := make(map[Ref]bool)
		for k := range produced {
			known[k] = true
		}
		for _, r := range ph.Prerequisites {
			if r.Kind != RefDeployed {
				return fmt.Errorf("%w: phase %q: prerequisite %s is not an artifact", ErrInvalidPlan, ph.Name, r)
			}
			known[r] = true
		}

		for _, a := range ph.Artifacts {
			if err := validateArtifact(a); err != nil {
				return fmt.Errorf("phase %q: %w", ph.Name, err)
			}
			if prev, dup := produced[a.Key()]; dup {
				return fmt.Errorf("%w: artifact %s declared in phase %q and %q", ErrInvalidPlan, a.Key(), prev, ph.Name)
			}
			for _, r := range a.Refs() {
				if !known[r] {
					return fmt.Errorf("%w: phase %q: artifact %q references %s before it is deployed", ErrInvalidPlan, ph.Name, a.Name, r)
				}
			}
			produced[a.Key()] = ph.Name
			known[a.Key()] = true
		}

		for _, step := range ph.PostSteps {
			if step.Name == "" || step.Signature == "" {
				return fmt.Errorf("%w: phase %q: post-step needs name and signature", ErrInvalidPlan, ph.Name)
			}
			if step.Target.Kind != RefDeployed {
				return fmt.Errorf("%w: phase %q: post-step %q target must be an artifact", ErrInvalidPlan, ph.Name, step.Name)
			}
			for _, r := range step.Refs() {
				if !known[r] {
					return fmt.Errorf("%w: phase %q: post-step %q references unknown %s", ErrInvalidPlan, ph.Name, step.Name, r)
				}
			}
		}
	}
	return nil
}

func validateArtifact(a ArtifactSpec) error {
	if a.Name == "" {
		return fmt.Errorf("%w: artifact without name", ErrInvalidPlan)
	}
	if _, err := ParseCategory(string(a.Category)); err != nil {
		return fmt.Errorf("artifact %q: %w", a.Name, err)
	}
	if a.Source == "" {
		return fmt.Errorf("%w: artifact %q has no source", ErrInvalidPlan, a.Name)
	}
	for _, l := range a.Libraries {
		if l.Name == "" || l.Source == "" {
			return fmt.Errorf("%w: artifact %q: library link needs source and name", ErrInvalidPlan, a.Name)
		}
		if l.Ref.Kind != RefDeployed {
			return fmt.Errorf("%w: artifact %q: library %q must reference a deployed artifact", ErrInvalidPlan, a.Name, l.Name)
		}
	}
	return nil
}
