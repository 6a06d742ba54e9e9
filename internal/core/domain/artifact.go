package domain

import (
	"fmt"
	"strings"
)

// =============================================================================
// References
// =============================================================================

// RefKind distinguishes what a reference resolves to.
type RefKind string

const (
	// RefDeployed resolves to the recorded address of another artifact.
	RefDeployed RefKind = "deployed"
	// RefDeployer resolves to the deployer identity of the state document.
	RefDeployer RefKind = "deployer"
)

// Ref is a typed pointer to an address that is only known at run time.
type Ref struct {
	Kind     RefKind
	Category Category
	Name     string
}

// DeployedRef references the recorded address of artifact name in cat.
func DeployedRef(cat Category, name string) Ref {
	return Ref{Kind: RefDeployed, Category: cat, Name: name}
}

// DeployerRef references the deployer identity.
func DeployerRef() Ref {
	return Ref{Kind: RefDeployer}
}

// String renders the reference as "category.Name" or "deployer".
func (r Ref) String() string {
	if r.Kind == RefDeployer {
		return "deployer"
	}
	return string(r.Category) + "." + r.Name
}

// ParseRef parses "category.Name" (or "deployer").
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "deployer" {
		return DeployerRef(), nil
	}
	cat, name, ok := strings.Cut(s, ".")
	if !ok || name == "" {
		return Ref{}, fmt.Errorf("%w: reference %q must be category.Name", ErrInvalidPlan, s)
	}
	c, err := ParseCategory(cat)
	if err != nil {
		return Ref{}, err
	}
	return DeployedRef(c, name), nil
}

// Arg is a constructor or call argument: either a literal or a reference.
type Arg struct {
	Literal string
	Ref     *Ref
}

// LiteralArg creates a literal argument.
func LiteralArg(v string) Arg {
	return Arg{Literal: v}
}

// RefArg creates an argument resolved from a reference.
func RefArg(r Ref) Arg {
	return Arg{Ref: &r}
}

// IsRef reports whether the argument must be resolved.
func (a Arg) IsRef() bool {
	return a.Ref != nil
}

// String renders literals as-is and references as ${category.Name}.
func (a Arg) String() string {
	if a.Ref != nil {
		return "${" + a.Ref.String() + "}"
	}
	return a.Literal
}

// =============================================================================
// Artifact Spec
// =============================================================================

// LibraryLink binds a linked library to the address of a deployed artifact.
type LibraryLink struct {
	Source string // Source file declaring the library, e.g. "src/libs/Math.sol"
	Name   string // Library symbol, e.g. "MathLib"
	Ref    Ref
}

// ArtifactSpec describes one deployable unit. It is static input from the
// plan and never changes at run time.
type ArtifactSpec struct {
	Name             string
	Category         Category
	Source           string // "path/File.sol:Contract"
	Description      string
	ConstructorArgs  []Arg
	Libraries        []LibraryLink
	DependsOn        []string
	VerifyCollisions []string
}

// SourcePath returns the file part of Source.
func (a ArtifactSpec) SourcePath() string {
	path, _, _ := strings.Cut(a.Source, ":")
	return path
}

// ContractName returns the symbol part of Source, defaulting to Name.
func (a ArtifactSpec) ContractName() string {
	if _, sym, ok := strings.Cut(a.Source, ":"); ok && sym != "" {
		return sym
	}
	return a.Name
}

// Refs returns every deployed-artifact reference the artifact needs, in
// declaration order (library links first, then constructor args).
func (a ArtifactSpec) Refs() []Ref {
	var refs []Ref
	for _, l := range a.Libraries {
		if l.Ref.Kind == RefDeployed {
			refs = append(refs, l.Ref)
		}
	}
	for _, arg := range a.ConstructorArgs {
		if arg.Ref != nil && arg.Ref.Kind == RefDeployed {
			refs = append(refs, *arg.Ref)
		}
	}
	return refs
}

// Key returns the reference other artifacts use to point at this one.
func (a ArtifactSpec) Key() Ref {
	return DeployedRef(a.Category, a.Name)
}
