package domain

import (
	"fmt"
	"time"
)

// =============================================================================
// Address Categories
// =============================================================================

// Category groups deployed addresses inside the state document.
type Category string

const (
	CategoryLibraries    Category = "libraries"
	CategoryContracts    Category = "contracts"
	CategoryTokens       Category = "tokens"
	CategoryPriceOracles Category = "priceOracles"
)

// Categories returns every category in state document order.
func Categories() []Category {
	return []Category{
		CategoryLibraries,
		CategoryContracts,
		CategoryTokens,
		CategoryPriceOracles,
	}
}

// ParseCategory validates a category name.
// The lowercase spelling "priceoracles" is accepted for convenience.
func ParseCategory(s string) (Category, error) {
	switch s {
	case string(CategoryLibraries):
		return CategoryLibraries, nil
	case string(CategoryContracts):
		return CategoryContracts, nil
	case string(CategoryTokens):
		return CategoryTokens, nil
	case string(CategoryPriceOracles), "priceoracles", "price_oracles":
		return CategoryPriceOracles, nil
	default:
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidPlan, s)
	}
}

// =============================================================================
// Phase Status
// =============================================================================

// PhaseStatus is the persisted status of a single phase.
type PhaseStatus string

const (
	PhaseInProgress PhaseStatus = "in_progress"
	PhaseCompleted  PhaseStatus = "completed"
)

// PhaseLabelCompleted is the value of DeploymentState.Phase once the most
// recently run phase has finished.
const PhaseLabelCompleted = "completed"

// =============================================================================
// Deployment State
// =============================================================================

// DeploymentState is the persisted record of what has been deployed on one
// network. Its JSON encoding is the on-disk state document.
type DeploymentState struct {
	Network      string                 `json:"network"`
	Deployer     string                 `json:"deployer"`
	Timestamp    time.Time              `json:"timestamp"`
	Phase        string                 `json:"phase"`
	Libraries    map[string]string      `json:"libraries"`
	Contracts    map[string]string      `json:"contracts"`
	Tokens       map[string]string      `json:"tokens"`
	PriceOracles map[string]string      `json:"priceOracles"`
	Phases       map[string]PhaseStatus `json:"phases,omitempty"`
}

// NewDeploymentState creates an empty state document for a network.
func NewDeploymentState(network, deployer string) *DeploymentState {
	s := &DeploymentState{
		Network:  network,
		Deployer: deployer,
	}
	s.Normalize()
	return s
}

// Normalize allocates any nil maps. Documents decoded from older files may
// lack a category entirely.
func (s *DeploymentState) Normalize() {
	if s.Libraries == nil {
		s.Libraries = make(map[string]string)
	}
	if s.Contracts == nil {
		s.Contracts = make(map[string]string)
	}
	if s.Tokens == nil {
		s.Tokens = make(map[string]string)
	}
	if s.PriceOracles == nil {
		s.PriceOracles = make(map[string]string)
	}
	if s.Phases == nil {
		s.Phases = make(map[string]PhaseStatus)
	}
}

// Addresses returns the live map for a category, or nil for an unknown one.
func (s *DeploymentState) Addresses(cat Category) map[string]string {
	switch cat {
	case CategoryLibraries:
		return s.Libraries
	case CategoryContracts:
		return s.Contracts
	case CategoryTokens:
		return s.Tokens
	case CategoryPriceOracles:
		return s.PriceOracles
	default:
		return nil
	}
}

// Address returns the recorded address for (cat, name).
func (s *DeploymentState) Address(cat Category, name string) (string, bool) {
	m := s.Addresses(cat)
	if m == nil {
		return "", false
	}
	addr, ok := m[name]
	if !ok || addr == "" {
		return "", false
	}
	return addr, true
}

// SetAddress stores an address. It does not enforce immutability; that is
// the repository's job because only it knows whether an override is active.
func (s *DeploymentState) SetAddress(cat Category, name, address string) error {
	s.Normalize()
	m := s.Addresses(cat)
	if m == nil {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidPlan, cat)
	}
	m[name] = address
	return nil
}

// PhaseStatusOf returns the recorded status of a phase, or "" if it never ran.
func (s *DeploymentState) PhaseStatusOf(name string) PhaseStatus {
	if s.Phases == nil {
		return ""
	}
	return s.Phases[name]
}

// Count returns the number of recorded addresses across all categories.
func (s *DeploymentState) Count() int {
	return len(s.Libraries) + len(s.Contracts) + len(s.Tokens) + len(s.PriceOracles)
}

// Clone returns a deep copy.
func (s *DeploymentState) Clone() *DeploymentState {
	c := &DeploymentState{
		Network:      s.Network,
		Deployer:     s.Deployer,
		Timestamp:    s.Timestamp,
		Phase:        s.Phase,
		Libraries:    cloneMap(s.Libraries),
		Contracts:    cloneMap(s.Contracts),
		Tokens:       cloneMap(s.Tokens),
		PriceOracles: cloneMap(s.PriceOracles),
		Phases:       make(map[string]PhaseStatus, len(s.Phases)),
	}
	for k, v := range s.Phases {
		c.Phases[k] = v
	}
	return c
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
