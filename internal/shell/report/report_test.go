package report

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/artpar/chainforge/internal/core/domain"
	"github.com/artpar/chainforge/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *engine.Report {
	return &engine.Report{
		RunID:    "run-1",
		Network:  "sepolia",
		Deployer: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		Phases: []engine.PhaseReport{
			{
				Name:   "core",
				Status: domain.PhaseCompleted,
				Artifacts: []engine.ArtifactReport{
					{Name: "Pool", Category: domain.CategoryContracts, Address: "0x5FbDB2315678afecb367f032d93F642f64180aa3", Status: engine.StatusDeployed, Verification: "verified"},
					{Name: "Registry", Category: domain.CategoryContracts, Status: engine.StatusPending},
				},
				PostSteps: []engine.PostStepReport{{Name: "register-pool", Ran: true, Error: "post-step failed: reverted"}},
			},
		},
	}
}

func TestString(t *testing.T) {
	out := String(sampleReport())

	assert.Contains(t, out, "Deployment summary")
	assert.Contains(t, out, "sepolia")
	assert.Contains(t, out, "core (completed)")
	assert.Contains(t, out, "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	assert.Contains(t, out, engine.NotDeployed)
	assert.Contains(t, out, "register-pool")
}

func TestString_DryRunMissing(t *testing.T) {
	r := sampleReport()
	r.DryRun = true
	r.Phases[0].Missing = []string{"libraries.MathLib"}

	out := String(r)
	assert.Contains(t, out, "Dry run")
	assert.Contains(t, out, "missing: libraries.MathLib")
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	Log(logger, sampleReport())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], `address="not deployed"`)
	assert.Contains(t, lines[2], "recorded=1")
}
