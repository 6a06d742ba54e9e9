// Package deployment provides pure functions for artifact deployment planning.
//
// This package contains the functional core logic that turns a static
// artifact spec plus the recorded deployment state into something the shell
// can hand to the build/deploy boundary. All functions are pure (no I/O, no
// side effects).
//
// # Functions
//
//   - Resolution: Replace typed references with recorded addresses (Resolve, ResolveArgs, MissingRefs)
//   - Planning: Decide whether an artifact is skipped or deployed (PlanArtifact)
//   - Extraction: Pull the deployed address out of boundary output (ExtractAddress)
//   - Addresses: Validate and checksum addresses (NormalizeAddress)
//
// # Usage
//
// The engine (internal/engine) calls these functions for every artifact of a
// phase, then executes the result through internal/shell/deployer.
//
//	action := deployment.PlanArtifact(spec, state, force)
//	resolved, err := deployment.Resolve(spec, lookup, state.Deployer)
//	extraction, ok := deployment.ExtractAddress(output)
package deployment
