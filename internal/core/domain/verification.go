package domain

// VerificationStatus is the state reported by the verification service.
type VerificationStatus string

const (
	VerificationUnverified        VerificationStatus = "unverified"
	VerificationPending           VerificationStatus = "pending"
	VerificationPartiallyVerified VerificationStatus = "partially_verified"
	VerificationVerified          VerificationStatus = "verified"
)

// VerificationRecord is the result of one poll. It is never persisted.
type VerificationRecord struct {
	Status       VerificationStatus
	ReportedName string
	NameMatches  bool
}

// Verified reports whether the service accepted the bytecode, fully or
// partially (metadata hash differs but executable code matches).
func (r VerificationRecord) Verified() bool {
	return r.Status == VerificationVerified || r.Status == VerificationPartiallyVerified
}

// Matched reports whether the record is a success: verified under the
// expected name.
func (r VerificationRecord) Matched() bool {
	return r.Verified() && r.NameMatches
}
