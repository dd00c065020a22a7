package usecase

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
	"github.com/shandysiswandi/authhelper/internal/keyring/outbound/db"
	"github.com/shandysiswandi/authhelper/internal/pkg/clock"
	"github.com/shandysiswandi/authhelper/internal/pkg/config"
	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
	"github.com/shandysiswandi/authhelper/internal/pkg/goroutine"
	"github.com/shandysiswandi/authhelper/internal/pkg/idempotency"
	"github.com/shandysiswandi/authhelper/internal/pkg/instrument"
	"github.com/shandysiswandi/authhelper/internal/pkg/uid"
	"github.com/shandysiswandi/authhelper/internal/pkg/validator"
)

// rfcSecret is the RFC 4226 / RFC 6238 SHA1 test secret.
var rfcSecret = []byte("12345678901234567890")

const testConfig = `
keyring:
  issuer: AuthHelper
  secret_size: 20
  totp:
    period: 30
    skew: 1
  hotp:
    window: 10
  validate:
    max_conflict_retries: 3
  qr:
    size: 256
`

type spyDB struct {
	*db.Memory

	mu       sync.Mutex
	gets     int
	advances int
	// advanceErr, when set, replaces every AdvanceCounter result.
	advanceErr error
}

func (s *spyDB) GetCredential(ctx context.Context, name string) (*entity.Credential, error) {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()
	return s.Memory.GetCredential(ctx, name)
}

func (s *spyDB) AdvanceCounter(ctx context.Context, name string, expected, next uint64) error {
	s.mu.Lock()
	s.advances++
	forced := s.advanceErr
	s.mu.Unlock()
	if forced != nil {
		return forced
	}
	return s.Memory.AdvanceCounter(ctx, name, expected, next)
}

func (s *spyDB) counts() (gets, advances int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets, s.advances
}

type recorder struct {
	mu       sync.Mutex
	created  []CredentialCreatedEvent
	deleted  []CredentialDeletedEvent
	advanced []CounterAdvancedEvent
}

func (r *recorder) PublishCredentialCreated(_ context.Context, msg CredentialCreatedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, msg)
	return nil
}

func (r *recorder) PublishCredentialDeleted(_ context.Context, msg CredentialDeletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, msg)
	return nil
}

func (r *recorder) PublishCounterAdvanced(_ context.Context, msg CounterAdvancedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advanced = append(r.advanced, msg)
	return nil
}

type fixture struct {
	uc    *Usecase
	db    *spyDB
	msgs  *recorder
	clock *clock.Fixed
	mgr   *goroutine.Manager
}

type fixtureOption func(*Dependency)

func withIdempotency(idemp idempotency.Idempotency) fixtureOption {
	return func(d *Dependency) { d.Idempotency = idemp }
}

func withConfigYAML(t *testing.T, doc string) fixtureOption {
	t.Helper()
	cfg, err := config.NewViperFromBytes("yaml", []byte(doc))
	require.NoError(t, err)
	return func(d *Dependency) { d.Config = cfg }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(testConfig))
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	f := &fixture{
		db:    &spyDB{Memory: db.NewMemory(instrument.NewNoop())},
		msgs:  &recorder{},
		clock: clock.NewFixedUnix(59),
		mgr:   goroutine.NewManager(32),
	}

	dep := Dependency{
		RepoDB:        f.db,
		RepoMessaging: f.msgs,
		Validator:     v,
		Config:        cfg,
		UUID:          uid.NewUUID(),
		Clock:         f.clock,
		Random:        bytes.NewReader(bytes.Repeat(rfcSecret, 16)),
		Instrument:    instrument.NewNoop(),
		Goroutine:     f.mgr,
	}
	for _, opt := range opts {
		opt(&dep)
	}

	f.uc = New(dep)
	return f
}

// drain waits for queued events. The fixture's manager cannot be reused afterwards.
func (f *fixture) drain(t *testing.T) *recorder {
	t.Helper()
	require.NoError(t, f.mgr.Wait())
	return f.msgs
}

func (f *fixture) issue(t *testing.T, in GenerateCredentialInput) *entity.Credential {
	t.Helper()
	out, err := f.uc.GenerateCredential(context.Background(), in)
	require.NoError(t, err)
	return &out.Credential
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	var gerr *goerror.Error
	require.True(t, errors.As(err, &gerr), "expected goerror, got %v", err)
	assert.Equal(t, status, gerr.StatusCode())
}
