package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
	"github.com/shandysiswandi/authhelper/internal/pkg/clock"
	"github.com/shandysiswandi/authhelper/internal/pkg/config"
	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
	"github.com/shandysiswandi/authhelper/internal/pkg/goroutine"
	"github.com/shandysiswandi/authhelper/internal/pkg/idempotency"
	"github.com/shandysiswandi/authhelper/internal/pkg/instrument"
	"github.com/shandysiswandi/authhelper/internal/pkg/otp"
	"github.com/shandysiswandi/authhelper/internal/pkg/qrcode"
	"github.com/shandysiswandi/authhelper/internal/pkg/uid"
	"github.com/shandysiswandi/authhelper/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTOTPSkew           uint64 = 1
	defaultHOTPWindow         uint64 = 10
	defaultMaxConflictRetries uint64 = 0
)

type CredentialCreatedEvent struct {
	ID        string
	Name      string
	Kind      otp.Kind
	Issuer    string
	Source    entity.Source
	CreatedAt time.Time
}

type CredentialDeletedEvent struct {
	ID        string
	Name      string
	DeletedAt time.Time
}

type CounterAdvancedEvent struct {
	ID         string
	Name       string
	From       uint64
	To         uint64
	Reason     string
	AdvancedAt time.Time
}

type repoMessaging interface {
	PublishCredentialCreated(ctx context.Context, msg CredentialCreatedEvent) error
	PublishCredentialDeleted(ctx context.Context, msg CredentialDeletedEvent) error
	PublishCounterAdvanced(ctx context.Context, msg CounterAdvancedEvent) error
}

type repoDB interface {
	GetCredential(ctx context.Context, name string) (*entity.Credential, error)
	ListCredentials(ctx context.Context) ([]entity.Credential, error)

	CreateCredential(ctx context.Context, cred entity.Credential) error
	AdvanceCounter(ctx context.Context, name string, expected, next uint64) error

	DeleteCredential(ctx context.Context, name string) error
}

type Usecase struct {
	repoDB        repoDB
	repoMessaging repoMessaging
	idemp         idempotency.Idempotency
	validator     validator.Validator
	cfg           config.Config
	uuid          uid.StringID
	clock         clock.Clocker
	random        io.Reader
	ins           instrument.Instrumentation
	goroutine     goroutine.Runner
}

type Dependency struct {
	RepoDB        repoDB
	RepoMessaging repoMessaging
	// Idempotency is optional; without it Idempotency-Key is ignored.
	Idempotency idempotency.Idempotency
	Validator   validator.Validator
	Config      config.Config
	UUID        uid.StringID
	Clock       clock.Clocker
	Random      io.Reader
	Instrument  instrument.Instrumentation
	Goroutine   goroutine.Runner
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:        dep.RepoDB,
		repoMessaging: dep.RepoMessaging,
		idemp:         dep.Idempotency,
		validator:     dep.Validator,
		cfg:           dep.Config,
		uuid:          dep.UUID,
		clock:         dep.Clock,
		random:        dep.Random,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("keyring.usecase").Start(ctx, name)
}

func (s *Usecase) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

func (s *Usecase) uintConfig(key string, def uint64) uint64 {
	if !s.cfg.IsSet(key) {
		return def
	}
	return s.cfg.GetUint64(key)
}

func (s *Usecase) defaultPeriod() uint64 {
	if p := s.cfg.GetUint64("keyring.totp.period"); p > 0 {
		return p
	}
	return otp.DefaultPeriod
}

func (s *Usecase) qrSize() int {
	if n := s.cfg.GetInt("keyring.qr.size"); n > 0 {
		return n
	}
	return qrcode.DefaultSize
}

// invalidParameters wraps validation failures so both the field map and
// entity.ErrInvalidParameters stay reachable.
func invalidParameters(err error) error {
	return goerror.NewInvalidInput(errors.Join(entity.ErrInvalidParameters, err))
}

func errCredentialNotFound() error {
	return goerror.NewBusinessCause(entity.ErrCredentialNotFound, "Credential not found", goerror.CodeNotFound)
}

func errCounterConflict() error {
	return goerror.NewBusinessCause(entity.ErrConflict, "Credential counter changed concurrently, retry the request", goerror.CodeConflict)
}

func errCodeFormat() error {
	return goerror.NewInvalidFormatCause(entity.ErrInvalidCodeFormat, "Code must be a numeric string of the credential's digit length")
}

func (s *Usecase) getCredential(ctx context.Context, name string) (*entity.Credential, error) {
	cred, err := s.repoDB.GetCredential(ctx, name)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "credential not found", "name", name)
		return nil, errCredentialNotFound()
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get credential", "name", name, "error", err)
		return nil, goerror.NewServer(err)
	}
	return cred, nil
}

// publish runs fn on the goroutine manager detached from request cancellation.
// Failures are logged only.
func (s *Usecase) publish(ctx context.Context, task string, fn func(ctx context.Context) error) {
	ok := s.goroutine.Go(context.WithoutCancel(ctx), task, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to publish event", "task", task, "error", err)
			return err
		}
		return nil
	})
	if !ok {
		slog.WarnContext(ctx, "event dropped", "task", task)
	}
}

func (s *Usecase) publishCounterAdvanced(ctx context.Context, cred *entity.Credential, next uint64, reason string) {
	ev := CounterAdvancedEvent{
		ID:         cred.ID,
		Name:       cred.Name,
		From:       cred.Counter,
		To:         next,
		Reason:     reason,
		AdvancedAt: s.now(),
	}
	s.publish(ctx, "publish_counter_advanced", func(ctx context.Context) error {
		return s.repoMessaging.PublishCounterAdvanced(ctx, ev)
	})
}
