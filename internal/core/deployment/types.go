package deployment

import (
	"github.com/artpar/chainforge/internal/core/domain"
)

// =============================================================================
// Lookup
// =============================================================================

// AddressLookup returns the recorded address of an artifact.
type AddressLookup interface {
	Get(cat domain.Category, name string) (string, bool)
}

// LookupFunc adapts a function to AddressLookup.
type LookupFunc func(cat domain.Category, name string) (string, bool)

// Get implements AddressLookup.
func (f LookupFunc) Get(cat domain.Category, name string) (string, bool) {
	return f(cat, name)
}

// StateLookup reads addresses straight from a state document.
func StateLookup(s *domain.DeploymentState) AddressLookup {
	return LookupFunc(s.Address)
}

// =============================================================================
// Resolved Artifact
// =============================================================================

// ResolvedLibrary is a library link with its address filled in.
type ResolvedLibrary struct {
	Source  string
	Name    string
	Address string
}

// ResolvedArtifact is an ArtifactSpec whose references are all literal.
// This is the pure output of resolution, ready for the deploy boundary.
type ResolvedArtifact struct {
	Spec            domain.ArtifactSpec
	ConstructorArgs []string
	Libraries       []ResolvedLibrary
}

// LibraryLinks renders every library binding in forge syntax.
func (r ResolvedArtifact) LibraryLinks() []string {
	links := make([]string, 0, len(r.Libraries))
	for _, l := range r.Libraries {
		links = append(links, FormatLibraryLink(l.Source, l.Name, l.Address))
	}
	return links
}

// ResolvedPostStep is a post-step whose references are all literal.
type ResolvedPostStep struct {
	Step      domain.PostStep
	Target    string
	Signature string
	Args      []string
}
