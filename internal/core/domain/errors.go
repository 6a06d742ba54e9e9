package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Deployment Errors
// =============================================================================

var (
	// Fatal: abort the run, keep persisted state, exit nonzero.
	ErrHardDependencyMissing   = errors.New("hard dependency missing")
	ErrDeployResultUnparseable = errors.New("no address in deploy output")
	ErrBytecodeAbsent          = errors.New("no bytecode at deployed address")

	// Soft: logged with a remediation hint, never abort a phase.
	ErrVerificationIncomplete = errors.New("verification incomplete")
	ErrPostStepFailure        = errors.New("post-step failed")

	ErrInvalidPlan      = errors.New("invalid deployment plan")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrAddressImmutable = errors.New("address already recorded")
)

// IsFatal reports whether err belongs to a category that must abort the run.
// Anything that is not explicitly soft is treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !IsSoft(err)
}

// IsSoft reports whether err belongs to a category that is logged and skipped.
func IsSoft(err error) bool {
	return errors.Is(err, ErrVerificationIncomplete) || errors.Is(err, ErrPostStepFailure)
}

// DeployError wraps a taxonomy error with the step and artifact that failed.
type DeployError struct {
	Op       string // Step that failed (e.g., "resolve", "deploy", "confirm")
	Phase    string
	Artifact string
	Message  string
	Err      error
}

func (e *DeployError) Error() string {
	var where string
	switch {
	case e.Phase != "" && e.Artifact != "":
		where = fmt.Sprintf("%s %s/%s", e.Op, e.Phase, e.Artifact)
	case e.Artifact != "":
		where = fmt.Sprintf("%s %s", e.Op, e.Artifact)
	case e.Phase != "":
		where = fmt.Sprintf("%s phase %s", e.Op, e.Phase)
	default:
		where = e.Op
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", where, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", where, e.Message)
}

func (e *DeployError) Unwrap() error {
	return e.Err
}

// NewDeployError creates a new DeployError.
func NewDeployError(op, phase, artifact, message string, err error) *DeployError {
	return &DeployError{
		Op:       op,
		Phase:    phase,
		Artifact: artifact,
		Message:  message,
		Err:      err,
	}
}
