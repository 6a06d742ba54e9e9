package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/artpar/chainforge/internal/core/domain"
	"github.com/artpar/chainforge/internal/core/verification"
	"github.com/artpar/chainforge/internal/shell/retry"
)

// errNotYet keeps the poll loop going.
var errNotYet = errors.New("not verified yet")

// Service is the verification service API.
type Service interface {
	Submit(ctx context.Context, address string, bundle verification.SourceBundle) error
	Status(ctx context.Context, address string) (verification.Status, error)
}

// SourceProvider returns the source bundle that compiled an artifact.
type SourceProvider interface {
	Bundle(ctx context.Context, spec domain.ArtifactSpec) (verification.SourceBundle, error)
}

// SubmitterConfig holds the poll loop configuration.
type SubmitterConfig struct {
	MaxAttempts int           // polls per artifact, default 3
	PollDelay   time.Duration // wait before every poll, default 15s
}

// DefaultSubmitterConfig returns default configuration.
func DefaultSubmitterConfig() SubmitterConfig {
	return SubmitterConfig{
		MaxAttempts: 3,
		PollDelay:   15 * time.Second,
	}
}

// Result summarises one artifact's verification.
type Result struct {
	Verified    bool
	Skipped     bool
	Record      domain.VerificationRecord
	Polls       int
	Submissions int
}

// Submitter runs the submit/poll/resubmit loop for one artifact at a time.
type Submitter struct {
	service Service
	sources SourceProvider
	config  SubmitterConfig
	logger  *slog.Logger
}

// NewSubmitter creates a submitter.
func NewSubmitter(service Service, sources SourceProvider, config SubmitterConfig, logger *slog.Logger) *Submitter {
	def := DefaultSubmitterConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.PollDelay < 0 {
		config.PollDelay = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		service: service,
		sources: sources,
		config:  config,
		logger:  logger.With("component", "verifier"),
	}
}

// Verify submits the artifact at address and polls until the service
// reports it verified under the expected name, resubmitting after every
// unsuccessful poll while attempts remain.
//
// Running out of attempts is not an error: the result reports Verified=false
// and a "manual check needed" line is logged. Errors are returned only when
// no submission could be prepared (wrapping domain.ErrVerificationIncomplete)
// or when ctx ends.
func (s *Submitter) Verify(ctx context.Context, spec domain.ArtifactSpec, address string) (Result, error) {
	logger := s.logger.With("artifact", spec.Name, "address", address)
	expected := spec.ContractName()

	bundle, err := s.sources.Bundle(ctx, spec)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: source bundle: %v", domain.ErrVerificationIncomplete, spec.Name, err)
	}
	if len(spec.VerifyCollisions) > 0 {
		bundle = verification.RenameCollisions(bundle, expected, spec.VerifyCollisions)
		logger.Info("renamed colliding symbols in submitted source", "symbols", spec.VerifyCollisions)
	}

	var res Result
	submit := func(ctx context.Context) {
		res.Submissions++
		if err := s.service.Submit(ctx, address, bundle); err != nil {
			logger.Warn("verification submit failed", "submission", res.Submissions, "error", err)
		}
	}

	submit(ctx)

	err = retry.Do(ctx, retry.Policy{
		Name:        "verify " + spec.Name,
		MaxAttempts: s.config.MaxAttempts,
		Delay:       s.config.PollDelay,
		DelayFirst:  true,
		Logger:      logger,
	}, func(ctx context.Context, attempt int) error {
		res.Polls = attempt

		st, err := s.service.Status(ctx, address)
		if err != nil {
			logger.Warn("verification status failed", "poll", attempt, "error", err)
		}
		res.Record = verification.Evaluate(st, expected)

		switch verification.Decide(res.Record, attempt, s.config.MaxAttempts) {
		case verification.NextDone:
			return nil
		case verification.NextResubmit:
			if res.Record.Verified() {
				logger.Warn("verified under a different name, resubmitting",
					"reported", res.Record.ReportedName,
					"expected", expected,
				)
			}
			submit(ctx)
		}
		return errNotYet
	})

	switch {
	case err == nil:
		res.Verified = true
		logger.Info("verified", "status", res.Record.Status, "polls", res.Polls, "submissions", res.Submissions)
		return res, nil
	case errors.Is(err, errNotYet):
		logger.Warn("verification incomplete, manual check needed",
			"status", res.Record.Status,
			"reported_name", res.Record.ReportedName,
			"expected_name", expected,
			"polls", res.Polls,
		)
		return res, nil
	default:
		return res, err
	}
}

// Disabled is used when verification is turned off.
type Disabled struct{}

// Verify reports the artifact as skipped.
func (Disabled) Verify(ctx context.Context, spec domain.ArtifactSpec, address string) (Result, error) {
	return Result{Skipped: true}, nil
}
