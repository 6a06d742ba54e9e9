package plan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/artpar/chainforge/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// refShorthand matches a whole scalar of the form ${category.Name}.
var refShorthand = regexp.MustCompile(`^\$\{([^}]+)\}$`)

// =============================================================================
// Parser Functions
// =============================================================================

// ParsePlan parses plan YAML into a validated domain.Plan.
// This is a pure function - no I/O, no side effects.
// Input: raw YAML bytes
// Output: Plan or error (ParseError for syntax, domain.ErrInvalidPlan for structure)
func ParsePlan(content []byte) (domain.Plan, error) {
	if strings.TrimSpace(string(content)) == "" {
		return domain.Plan{}, ErrEmptyInput
	}

	var doc document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return domain.Plan{}, NewParseError("", fmt.Sprintf("invalid YAML syntax: %v", err), ErrInvalidYAML)
	}

	p := domain.Plan{
		Name:   doc.Name,
		Phases: make([]domain.Phase, 0, len(doc.Phases)),
	}
	for i, pd := range doc.Phases {
		phase, err := convertPhase(fmt.Sprintf("phases[%d]", i), pd)
		if err != nil {
			return domain.Plan{}, err
		}
		p.Phases = append(p.Phases, phase)
	}

	if err := p.Validate(); err != nil {
		return domain.Plan{}, err
	}
	return p, nil
}

func convertPhase(field string, pd phaseDocument) (domain.Phase, error) {
	phase := domain.Phase{
		Name:        pd.Name,
		Description: pd.Description,
	}

	for i, s := range pd.Prerequisites {
		r, err := domain.ParseRef(s)
		if err != nil {
			return domain.Phase{}, NewParseError(fmt.Sprintf("%s.prerequisites[%d]", field, i), err.Error(), ErrInvalidReference)
		}
		phase.Prerequisites = append(phase.Prerequisites, r)
	}

	for i, ad := range pd.Artifacts {
		a, err := convertArtifact(fmt.Sprintf("%s.artifacts[%d]", field, i), ad)
		if err != nil {
			return domain.Phase{}, err
		}
		phase.Artifacts = append(phase.Artifacts, a)
	}

	for i, sd := range pd.PostSteps {
		s, err := convertPostStep(fmt.Sprintf("%s.post_steps[%d]", field, i), sd)
		if err != nil {
			return domain.Phase{}, err
		}
		phase.PostSteps = append(phase.PostSteps, s)
	}
	return phase, nil
}

func convertArtifact(field string, ad artifactDocument) (domain.ArtifactSpec, error) {
	cat, err := domain.ParseCategory(ad.Category)
	if err != nil {
		return domain.ArtifactSpec{}, NewParseError(field+".category", err.Error(), domain.ErrInvalidPlan)
	}

	args, err := convertArgs(field+".args", ad.Args)
	if err != nil {
		return domain.ArtifactSpec{}, err
	}

	spec := domain.ArtifactSpec{
		Name:             ad.Name,
		Category:         cat,
		Source:           ad.Source,
		Description:      ad.Description,
		ConstructorArgs:  args,
		DependsOn:        ad.DependsOn,
		VerifyCollisions: ad.VerifyCollisions,
	}

	for i, ld := range ad.Libraries {
		lf := fmt.Sprintf("%s.libraries[%d]", field, i)
		if ld.Source == "" || ld.Name == "" {
			return domain.ArtifactSpec{}, NewParseError(lf, "library link needs source and name", ErrInvalidLibrary)
		}
		refText := ld.Ref
		if refText == "" {
			refText = string(domain.CategoryLibraries) + "." + ld.Name
		}
		r, err := domain.ParseRef(refText)
		if err != nil || r.Kind != domain.RefDeployed {
			return domain.ArtifactSpec{}, NewParseError(lf+".ref", fmt.Sprintf("library %q must reference a deployed artifact", ld.Name), ErrInvalidLibrary)
		}
		spec.Libraries = append(spec.Libraries, domain.LibraryLink{Source: ld.Source, Name: ld.Name, Ref: r})
	}
	return spec, nil
}

func convertPostStep(field string, sd postStepDocument) (domain.PostStep, error) {
	target, err := domain.ParseRef(sd.Target)
	if err != nil {
		return domain.PostStep{}, NewParseError(field+".target", err.Error(), ErrInvalidReference)
	}
	args, err := convertArgs(field+".args", sd.Args)
	if err != nil {
		return domain.PostStep{}, err
	}
	return domain.PostStep{
		Name:        sd.Name,
		Description: sd.Description,
		Target:      target,
		Signature:   sd.Signature,
		Args:        args,
	}, nil
}

func convertArgs(field string, nodes []yaml.Node) ([]domain.Arg, error) {
	args := make([]domain.Arg, 0, len(nodes))
	for i := range nodes {
		arg, err := convertArg(fmt.Sprintf("%s[%d]", field, i), &nodes[i])
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

// convertArg accepts three argument forms:
//
//	"1000000"              literal
//	${tokens.USDC}         reference shorthand
//	{ref: tokens.USDC}     reference
//	{deployer: true}       deployer identity
//	{value: "${literal}"}  literal that would otherwise look like a reference
func convertArg(field string, node *yaml.Node) (domain.Arg, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if m := refShorthand.FindStringSubmatch(node.Value); m != nil {
			r, err := domain.ParseRef(m[1])
			if err != nil {
				return domain.Arg{}, NewParseError(field, err.Error(), ErrInvalidReference)
			}
			return domain.RefArg(r), nil
		}
		return domain.LiteralArg(node.Value), nil

	case yaml.MappingNode:
		var ad argDocument
		if err := node.Decode(&ad); err != nil {
			return domain.Arg{}, NewParseError(field, err.Error(), ErrInvalidArgument)
		}
		set := 0
		for _, b := range []bool{ad.Ref != "", ad.Deployer, ad.Value != ""} {
			if b {
				set++
			}
		}
		if set != 1 {
			return domain.Arg{}, NewParseError(field, "argument mapping needs exactly one of ref, deployer, value", ErrInvalidArgument)
		}
		switch {
		case ad.Deployer:
			return domain.RefArg(domain.DeployerRef()), nil
		case ad.Ref != "":
			r, err := domain.ParseRef(ad.Ref)
			if err != nil {
				return domain.Arg{}, NewParseError(field+".ref", err.Error(), ErrInvalidReference)
			}
			return domain.RefArg(r), nil
		default:
			return domain.LiteralArg(ad.Value), nil
		}

	default:
		return domain.Arg{}, NewParseError(field, "argument must be a scalar or a mapping; quote array literals", ErrInvalidArgument)
	}
}
