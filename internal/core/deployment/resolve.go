package deployment

import (
	"fmt"
	"strings"

	"github.com/artpar/chainforge/internal/core/domain"
)

// =============================================================================
// Dependency Resolution Functions
// =============================================================================

// Resolve replaces every reference in an artifact spec with the recorded
// address of the artifact it names.
//
// Behavior:
//   - DeployedRef(cat, name) - replaced with the address recorded for (cat, name)
//   - DeployerRef() - replaced with the deployer identity
//   - Literals are copied unchanged
//
// If any reference is absent the function fails with an error wrapping
// domain.ErrHardDependencyMissing that names every missing reference. This is
// a precondition check; callers never retry it.
//
// Example:
//
//	spec := domain.ArtifactSpec{
//	    Name:            "Pool",
//	    ConstructorArgs: []domain.Arg{domain.RefArg(domain.DeployedRef(domain.CategoryTokens, "USDC"))},
//	}
//	resolved, err := Resolve(spec, StateLookup(state), state.Deployer)
//	// resolved.ConstructorArgs: ["0xA0b8...eB48"]
func Resolve(spec domain.ArtifactSpec, lookup AddressLookup, deployer string) (ResolvedArtifact, error) {
	var missing []string

	args, argMissing := resolveArgs(spec.ConstructorArgs, lookup, deployer)
	missing = append(missing, argMissing...)

	libs := make([]ResolvedLibrary, 0, len(spec.Libraries))
	for _, link := range spec.Libraries {
		addr, ok := resolveRef(link.Ref, lookup, deployer)
		if !ok {
			missing = append(missing, link.Ref.String())
			continue
		}
		libs = append(libs, ResolvedLibrary{Source: link.Source, Name: link.Name, Address: addr})
	}

	if len(missing) > 0 {
		return ResolvedArtifact{}, domain.NewDeployError(
			"resolve", "", spec.Name,
			"missing "+strings.Join(missing, ", "),
			domain.ErrHardDependencyMissing,
		)
	}

	return ResolvedArtifact{
		Spec:            spec,
		ConstructorArgs: args,
		Libraries:       libs,
	}, nil
}

// ResolveArgs resolves a list of arguments with the same rules as Resolve.
func ResolveArgs(args []domain.Arg, lookup AddressLookup, deployer string) ([]string, error) {
	out, missing := resolveArgs(args, lookup, deployer)
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrHardDependencyMissing, strings.Join(missing, ", "))
	}
	return out, nil
}

// ResolvePostStep resolves the target and arguments of a post-step.
func ResolvePostStep(step domain.PostStep, lookup AddressLookup, deployer string) (ResolvedPostStep, error) {
	target, ok := resolveRef(step.Target, lookup, deployer)
	if !ok {
		return ResolvedPostStep{}, fmt.Errorf("%w: post-step %s target %s", domain.ErrHardDependencyMissing, step.Name, step.Target)
	}
	args, err := ResolveArgs(step.Args, lookup, deployer)
	if err != nil {
		return ResolvedPostStep{}, fmt.Errorf("post-step %s: %w", step.Name, err)
	}
	return ResolvedPostStep{
		Step:      step,
		Target:    target,
		Signature: step.Signature,
		Args:      args,
	}, nil
}

// MissingRefs returns the references that are not recorded, preserving input
// order and dropping duplicates.
func MissingRefs(refs []domain.Ref, lookup AddressLookup) []domain.Ref {
	var missing []domain.Ref
	seen := make(map[domain.Ref]bool)
	for _, r := range refs {
		if r.Kind != domain.RefDeployed || seen[r] {
			continue
		}
		seen[r] = true
		if _, ok := lookup.Get(r.Category, r.Name); !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

// FormatLibraryLink renders a library binding as "path:Name:address".
//
// Example:
//
//	FormatLibraryLink("src/libs/Math.sol", "MathLib", "0x5FbD...0aa3")
//	// Returns: "src/libs/Math.sol:MathLib:0x5FbD...0aa3"
func FormatLibraryLink(source, name, address string) string {
	return fmt.Sprintf("%s:%s:%s", source, name, address)
}

func resolveArgs(args []domain.Arg, lookup AddressLookup, deployer string) ([]string, []string) {
	out := make([]string, 0, len(args))
	var missing []string
	for _, arg := range args {
		if arg.Ref == nil {
			out = append(out, arg.Literal)
			continue
		}
		addr, ok := resolveRef(*arg.Ref, lookup, deployer)
		if !ok {
			missing = append(missing, arg.Ref.String())
			continue
		}
		out = append(out, addr)
	}
	return out, missing
}

func resolveRef(r domain.Ref, lookup AddressLookup, deployer string) (string, bool) {
	if r.Kind == domain.RefDeployer {
		return deployer, deployer != ""
	}
	return lookup.Get(r.Category, r.Name)
}
