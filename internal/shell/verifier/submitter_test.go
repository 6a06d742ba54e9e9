package verifier

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/artpar/chainforge/internal/core/domain"
	"github.com/artpar/chainforge/internal/core/verification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedService answers Status from a fixed script, repeating the last
// entry once exhausted.
type scriptedService struct {
	mu        sync.Mutex
	script    []verification.Status
	polls     int
	submitted []verification.SourceBundle
	submitErr error
}

func (s *scriptedService) Submit(ctx context.Context, address string, bundle verification.SourceBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, bundle)
	return s.submitErr
}

func (s *scriptedService) Status(ctx context.Context, address string) (verification.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.polls
	s.polls++
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return s.script[i], nil
}

type staticSources struct {
	bundle verification.SourceBundle
	err    error
}

func (s staticSources) Bundle(ctx context.Context, spec domain.ArtifactSpec) (verification.SourceBundle, error) {
	return s.bundle, s.err
}

func poolSpec() domain.ArtifactSpec {
	return domain.ArtifactSpec{Name: "Pool", Category: domain.CategoryContracts, Source: "src/core/Pool.sol:Pool"}
}

func newTestSubmitter(svc Service, sources SourceProvider) *Submitter {
	return NewSubmitter(svc, sources, SubmitterConfig{MaxAttempts: 3, PollDelay: 0}, nil)
}

func TestVerify_ThirdPollSucceeds(t *testing.T) {
	svc := &scriptedService{script: []verification.Status{
		{},
		{},
		{Verified: true, Name: "Pool"},
	}}
	s := newTestSubmitter(svc, staticSources{bundle: testBundle()})

	res, err := s.Verify(context.Background(), poolSpec(), poolAddr)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, 3, res.Polls)
	assert.Equal(t, 3, svc.polls)
	assert.Equal(t, 3, res.Submissions, "initial submit plus one resubmission per failed poll")
}

func TestVerify_FirstPollSucceeds(t *testing.T) {
	svc := &scriptedService{script: []verification.Status{{Verified: true, Name: "Pool"}}}
	s := newTestSubmitter(svc, staticSources{bundle: testBundle()})

	res, err := s.Verify(context.Background(), poolSpec(), poolAddr)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, 1, res.Polls)
	assert.Equal(t, 1, res.Submissions)
}

func TestVerify_NameMismatchResubmits(t *testing.T) {
	svc := &scriptedService{script: []verification.Status{
		{Verified: true, Name: "PoolBase"},
		{Verified: true, Name: "Pool"},
	}}
	s := newTestSubmitter(svc, staticSources{bundle: testBundle()})

	res, err := s.Verify(context.Background(), poolSpec(), poolAddr)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, 2, res.Polls)
	assert.Len(t, svc.submitted, 2)
}

func TestVerify_CeilingIsSoft(t *testing.T) {
	svc := &scriptedService{script: []verification.Status{{}}}
	s := newTestSubmitter(svc, staticSources{bundle: testBundle()})

	res, err := s.Verify(context.Background(), poolSpec(), poolAddr)
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, 3, svc.polls, "never polls more than the ceiling")
	assert.Equal(t, domain.VerificationUnverified, res.Record.Status)
}

func TestVerify_PartialCountsAsVerified(t *testing.T) {
	svc := &scriptedService{script: []verification.Status{{PartiallyVerified: true, Name: "Pool"}}}
	s := newTestSubmitter(svc, staticSources{bundle: testBundle()})

	res, err := s.Verify(context.Background(), poolSpec(), poolAddr)
	require.NoError(t, err)
	assert.True(t, res.Verified)
}

func TestVerify_SubmitErrorsKeepPolling(t *testing.T) {
	svc := &scriptedService{
		script:    []verification.Status{{}, {Verified: true, Name: "Pool"}},
		submitErr: errors.New("503"),
	}
	s := newTestSubmitter(svc, staticSources{bundle: testBundle()})

	res, err := s.Verify(context.Background(), poolSpec(), poolAddr)
	require.NoError(t, err)
	assert.True(t, res.Verified)
}

func TestVerify_NoSourceBundleIsSoft(t *testing.T) {
	svc := &scriptedService{script: []verification.Status{{}}}
	s := newTestSubmitter(svc, staticSources{err: errors.New("no build info")})

	_, err := s.Verify(context.Background(), poolSpec(), poolAddr)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVerificationIncomplete)
	assert.False(t, domain.IsFatal(err))
	assert.Zero(t, svc.polls)
}

func TestVerify_RenamesCollisionsInSubmittedSource(t *testing.T) {
	bundle := testBundle()
	bundle.Input.Sources["src/core/PoolBase.sol"] = verification.SourceFile{Content: "contract PoolBase {}"}
	svc := &scriptedService{script: []verification.Status{{Verified: true, Name: "Pool"}}}
	s := newTestSubmitter(svc, staticSources{bundle: bundle})

	spec := poolSpec()
	spec.VerifyCollisions = []string{"PoolBase"}
	_, err := s.Verify(context.Background(), spec, poolAddr)
	require.NoError(t, err)

	require.Len(t, svc.submitted, 1)
	assert.Equal(t, "contract zzPoolBase {}", svc.submitted[0].Input.Sources["src/core/PoolBase.sol"].Content)
	assert.Equal(t, "contract PoolBase {}", bundle.Input.Sources["src/core/PoolBase.sol"].Content)
}

func TestVerify_EndToEndAgainstFakeExplorer(t *testing.T) {
	fe, srv := newFakeExplorer(t)
	fe.status[poolAddr] = contractResponse{IsVerified: true, Name: "Pool"}

	s := newTestSubmitter(NewClient(Config{BaseURL: srv.URL}, nil), staticSources{bundle: testBundle()})
	res, err := s.Verify(context.Background(), poolSpec(), poolAddr)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Len(t, fe.submissions, 1)
}

func TestDisabled(t *testing.T) {
	res, err := Disabled{}.Verify(context.Background(), poolSpec(), poolAddr)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}
