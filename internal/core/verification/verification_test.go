package verification

import (
	"testing"

	"github.com/artpar/chainforge/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Evaluate Tests
// =============================================================================

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		expected string
		want     domain.VerificationStatus
		matched  bool
	}{
		{"unverified", Status{}, "Pool", domain.VerificationUnverified, false},
		{"pending with name", Status{Name: "Pool"}, "Pool", domain.VerificationPending, false},
		{"verified match", Status{Verified: true, Name: "Pool"}, "Pool", domain.VerificationVerified, true},
		{"verified mismatch", Status{Verified: true, Name: "PoolBase"}, "Pool", domain.VerificationVerified, false},
		{"partial counts", Status{PartiallyVerified: true, Name: "Pool"}, "Pool", domain.VerificationPartiallyVerified, true},
		{"qualified expected name", Status{Verified: true, Name: "Pool"}, "src/core/Pool.sol:Pool", domain.VerificationVerified, true},
		{"verified without name", Status{Verified: true}, "Pool", domain.VerificationVerified, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Evaluate(tt.status, tt.expected)
			assert.Equal(t, tt.want, rec.Status)
			assert.Equal(t, tt.matched, rec.Matched())
			assert.Equal(t, tt.status.Name, rec.ReportedName)
		})
	}
}

func TestDecide(t *testing.T) {
	match := Evaluate(Status{Verified: true, Name: "Pool"}, "Pool")
	mismatch := Evaluate(Status{Verified: true, Name: "Other"}, "Pool")
	none := Evaluate(Status{}, "Pool")

	assert.Equal(t, NextDone, Decide(match, 1, 3))
	assert.Equal(t, NextDone, Decide(match, 3, 3))
	assert.Equal(t, NextResubmit, Decide(mismatch, 1, 3))
	assert.Equal(t, NextResubmit, Decide(none, 2, 3))
	assert.Equal(t, NextGiveUp, Decide(none, 3, 3))
	assert.Equal(t, NextGiveUp, Decide(mismatch, 3, 3))
}

// =============================================================================
// RenameCollisions Tests
// =============================================================================

func testBundle() SourceBundle {
	return SourceBundle{
		ContractName: "src/core/Pool.sol:Pool",
		Input: StandardInput{
			Language: "Solidity",
			Sources: map[string]SourceFile{
				"src/core/Pool.sol": {Content: `import "./PoolBase.sol";
contract Pool is PoolBase {}`},
				"src/core/PoolBase.sol": {Content: `contract PoolBase { PoolBaseConfig cfg; }`},
			},
		},
	}
}

func TestRenameCollisions(t *testing.T) {
	in := testBundle()
	out := RenameCollisions(in, "Pool", []string{"PoolBase"})

	assert.Equal(t, `import "./PoolBase.sol";
contract Pool is zzPoolBase {}`, out.Input.Sources["src/core/Pool.sol"].Content)
	assert.Equal(t, `contract zzPoolBase { PoolBaseConfig cfg; }`, out.Input.Sources["src/core/PoolBase.sol"].Content)

	// input untouched
	assert.Equal(t, `contract PoolBase { PoolBaseConfig cfg; }`, in.Input.Sources["src/core/PoolBase.sol"].Content)
}

func TestRenameCollisions_NeverRenamesTarget(t *testing.T) {
	out := RenameCollisions(testBundle(), "Pool", []string{"Pool", ""})
	assert.Equal(t, testBundle().Input.Sources, out.Input.Sources)
}

func TestRenameCollisions_Deterministic(t *testing.T) {
	a := RenameCollisions(testBundle(), "Pool", []string{"PoolBase", "PoolBaseConfig"})
	b := RenameCollisions(testBundle(), "Pool", []string{"PoolBaseConfig", "PoolBase", "PoolBase"})
	assert.Equal(t, a, b)
	assert.Equal(t, `contract zzPoolBase { zzPoolBaseConfig cfg; }`, a.Input.Sources["src/core/PoolBase.sol"].Content)
}
