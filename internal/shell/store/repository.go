package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/artpar/chainforge/internal/core/domain"
)

// =============================================================================
// Repository
// =============================================================================

// Options configures a Repository.
type Options struct {
	Network  string
	Deployer string
	// Clock stamps every write. Defaults to time.Now.
	Clock  func() time.Time
	Logger *slog.Logger
}

// Repository owns the state document of one network and writes it through to
// a Backend after every mutation. A single process may use a repository;
// concurrent writers to one document are not supported.
type Repository struct {
	backend Backend
	opts    Options
	logger  *slog.Logger
	state   *domain.DeploymentState
}

// NewRepository creates a repository on top of a backend.
func NewRepository(backend Backend, opts Options) *Repository {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		backend: backend,
		opts:    opts,
		logger:  logger.With("component", "state", "backend", backend.Name()),
	}
}

// Load reads the persisted document, or starts an empty one if none exists.
// Nothing is written until the first mutation.
func (r *Repository) Load(ctx context.Context) (*domain.DeploymentState, error) {
	state, err := r.backend.Read(ctx)
	switch {
	case err == nil:
		r.logger.Info("loaded deployment state",
			"network", state.Network,
			"phase", state.Phase,
			"addresses", state.Count(),
		)
	case isNotFound(err):
		state = domain.NewDeploymentState(r.opts.Network, r.opts.Deployer)
		r.logger.Info("no deployment state yet, starting empty", "network", r.opts.Network)
	default:
		return nil, err
	}

	state.Normalize()
	if state.Network == "" {
		state.Network = r.opts.Network
	}
	if r.opts.Deployer != "" && !strings.EqualFold(state.Deployer, r.opts.Deployer) {
		if state.Deployer != "" {
			r.logger.Warn("deployer differs from recorded state, using current signer",
				"recorded", state.Deployer,
				"current", r.opts.Deployer,
			)
		}
		state.Deployer = r.opts.Deployer
	}

	r.state = state
	return state.Clone(), nil
}

// Get returns the recorded address for (cat, name). An absent entry and an
// empty string are both reported as ("", false).
func (r *Repository) Get(cat domain.Category, name string) (string, bool) {
	if r.state == nil {
		return "", false
	}
	return r.state.Address(cat, name)
}

// Deployer returns the deployer identity of the loaded document.
func (r *Repository) Deployer() string {
	if r.state == nil {
		return r.opts.Deployer
	}
	return r.state.Deployer
}

// Record stores a newly deployed address and persists the whole document
// before returning. Recording the address that is already present is a
// no-op; recording a different one fails with ErrAddressImmutable.
func (r *Repository) Record(ctx context.Context, cat domain.Category, name, address string) error {
	if err := r.ensureLoaded("Record"); err != nil {
		return err
	}
	if existing, ok := r.state.Address(cat, name); ok {
		if strings.EqualFold(existing, address) {
			return nil
		}
		return NewStoreError("Record", r.backend.Name(),
			fmt.Sprintf("%s.%s is %s, refusing to record %s without force", cat, name, existing, address),
			ErrAddressImmutable)
	}
	return r.mutate(ctx, "Record", func(s *domain.DeploymentState) error {
		return s.SetAddress(cat, name, address)
	})
}

// Replace overwrites an address. Only the force-redeploy path uses it.
func (r *Repository) Replace(ctx context.Context, cat domain.Category, name, address string) error {
	if err := r.ensureLoaded("Replace"); err != nil {
		return err
	}
	previous, _ := r.state.Address(cat, name)
	if err := r.mutate(ctx, "Replace", func(s *domain.DeploymentState) error {
		return s.SetAddress(cat, name, address)
	}); err != nil {
		return err
	}
	r.logger.Info("address replaced", "category", cat, "name", name, "previous", previous, "address", address)
	return nil
}

// BeginPhase marks a phase as running.
func (r *Repository) BeginPhase(ctx context.Context, phase string) error {
	if err := r.ensureLoaded("BeginPhase"); err != nil {
		return err
	}
	return r.mutate(ctx, "BeginPhase", func(s *domain.DeploymentState) error {
		s.Phase = phase
		s.Phases[phase] = domain.PhaseInProgress
		return nil
	})
}

// CompletePhase marks a phase as finished and sets the phase label to
// "completed".
func (r *Repository) CompletePhase(ctx context.Context, phase string) error {
	if err := r.ensureLoaded("CompletePhase"); err != nil {
		return err
	}
	return r.mutate(ctx, "CompletePhase", func(s *domain.DeploymentState) error {
		s.Phase = domain.PhaseLabelCompleted
		s.Phases[phase] = domain.PhaseCompleted
		return nil
	})
}

// PhaseStatus returns the recorded status of a phase.
func (r *Repository) PhaseStatus(phase string) domain.PhaseStatus {
	if r.state == nil {
		return ""
	}
	return r.state.PhaseStatusOf(phase)
}

// Snapshot returns a copy of the current document.
func (r *Repository) Snapshot() *domain.DeploymentState {
	if r.state == nil {
		return domain.NewDeploymentState(r.opts.Network, r.opts.Deployer)
	}
	return r.state.Clone()
}

// Close closes the backend.
func (r *Repository) Close() error {
	return r.backend.Close()
}

// mutate applies fn to a copy and writes it; the in-memory document only
// changes once the write succeeded.
func (r *Repository) mutate(ctx context.Context, op string, fn func(*domain.DeploymentState) error) error {
	next := r.state.Clone()
	if err := fn(next); err != nil {
		return NewStoreError(op, r.backend.Name(), err.Error(), err)
	}
	next.Timestamp = r.opts.Clock().UTC()

	if err := r.backend.Write(ctx, next); err != nil {
		return err
	}
	r.state = next
	return nil
}

func (r *Repository) ensureLoaded(op string) error {
	if r.state == nil {
		return NewStoreError(op, r.backend.Name(), "state not loaded", ErrNotFound)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
