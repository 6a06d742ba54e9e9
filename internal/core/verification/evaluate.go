package verification

import (
	"strings"

	"github.com/artpar/chainforge/internal/core/domain"
)

// =============================================================================
// Status Classification
// =============================================================================

// Evaluate classifies a service response against the expected contract name.
//
// Partial verification (executable code matches, metadata hash differs)
// counts as verified. The reported name matches when it equals the expected
// name, or the symbol part of a "path:Symbol" name.
func Evaluate(st Status, expectedName string) domain.VerificationRecord {
	rec := domain.VerificationRecord{
		Status:       domain.VerificationUnverified,
		ReportedName: st.Name,
	}
	switch {
	case st.Verified:
		rec.Status = domain.VerificationVerified
	case st.PartiallyVerified:
		rec.Status = domain.VerificationPartiallyVerified
	case st.Name != "":
		rec.Status = domain.VerificationPending
	}
	rec.NameMatches = namesMatch(st.Name, expectedName)
	return rec
}

func namesMatch(reported, expected string) bool {
	if reported == "" || expected == "" {
		return false
	}
	return symbol(reported) == symbol(expected)
}

func symbol(name string) string {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// =============================================================================
// Poll Decisions
// =============================================================================

// Next is what the submitter does after a poll.
type Next string

const (
	NextDone     Next = "done"     // verified under the expected name
	NextResubmit Next = "resubmit" // not verified or wrong name, attempts remain
	NextGiveUp   Next = "give_up"  // ceiling reached
)

// Decide returns the action after poll number attempt (1-based) out of
// maxAttempts.
//
// Example:
//
//	Decide(Evaluate(Status{Verified: true, Name: "Other"}, "Pool"), 1, 3)
//	// Returns: NextResubmit
func Decide(rec domain.VerificationRecord, attempt, maxAttempts int) Next {
	if rec.Matched() {
		return NextDone
	}
	if attempt >= maxAttempts {
		return NextGiveUp
	}
	return NextResubmit
}
