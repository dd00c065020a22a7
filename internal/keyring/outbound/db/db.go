// Package db holds the credential store drivers: memory, sqlite, postgres and redis.
//
// Every driver reports a missing credential as goerror.ErrNotFound, a
// duplicate name as goerror.ErrConflict and a failed conditional counter
// advance as entity.ErrConflict.
package db

import (
	"context"
	"errors"
	"math"

	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
	"github.com/shandysiswandi/authhelper/internal/pkg/instrument"
	"github.com/shandysiswandi/authhelper/internal/pkg/otp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// ErrCounterOutOfRange is returned when a counter does not fit the signed 64-bit column.
var ErrCounterOutOfRange = errors.New("keyring: counter out of range")

// Store is the credential store contract shared by every driver.
type Store interface {
	GetCredential(ctx context.Context, name string) (*entity.Credential, error)
	CreateCredential(ctx context.Context, cred entity.Credential) error
	DeleteCredential(ctx context.Context, name string) error
	AdvanceCounter(ctx context.Context, name string, expected, next uint64) error
	ListCredentials(ctx context.Context) ([]entity.Credential, error)
	Ping(ctx context.Context) error
	Close() error
}

type tracer struct {
	ins    instrument.Instrumentation
	driver string
}

func (t tracer) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.ins.Tracer("keyring.outbound.db").Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", t.driver)),
	)
}

func (t tracer) endSpan(span trace.Span, err error) {
	if err != nil &&
		!errors.Is(err, goerror.ErrNotFound) &&
		!errors.Is(err, goerror.ErrConflict) &&
		!errors.Is(err, entity.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// checkAdvance rejects non-monotonic or unrepresentable counter moves before touching storage.
func checkAdvance(expected, next uint64) error {
	if next <= expected {
		return entity.ErrInvalidParameters
	}
	if next > math.MaxInt64 {
		return ErrCounterOutOfRange
	}
	return nil
}

// counterMiss explains a conditional advance that matched no row of an existing credential.
func counterMiss(kind string) error {
	if kind != otp.KindHOTP.String() {
		return entity.ErrInvalidParameters
	}
	return entity.ErrConflict
}

func checkCounter(c uint64) error {
	if c > math.MaxInt64 {
		return ErrCounterOutOfRange
	}
	return nil
}

// record is the flat column form shared by the SQL and redis drivers.
type record struct {
	ID        string
	Name      string
	Secret    string
	Kind      string
	Algorithm string
	Digits    int64
	Period    int64
	Counter   int64
	Issuer    string
	CreatedAt int64 // unix microseconds
}

func toRecord(c entity.Credential) record {
	return record{
		ID:        c.ID,
		Name:      c.Name,
		Secret:    otp.EncodeSecret(c.Secret),
		Kind:      c.Kind.String(),
		Algorithm: c.Algorithm.String(),
		Digits:    int64(c.Digits),
		Period:    int64(c.Period),
		Counter:   int64(c.Counter),
		Issuer:    c.Issuer,
		CreatedAt: c.CreatedAt.UnixMicro(),
	}
}

func (r record) credential() (*entity.Credential, error) {
	secret, err := otp.DecodeSecret(r.Secret)
	if err != nil {
		return nil, err
	}
	kind, err := otp.ParseKind(r.Kind)
	if err != nil {
		return nil, err
	}
	alg, err := otp.ParseAlgorithm(r.Algorithm)
	if err != nil {
		return nil, err
	}

	return &entity.Credential{
		ID:        r.ID,
		Name:      r.Name,
		Secret:    secret,
		Kind:      kind,
		Algorithm: alg,
		Digits:    int(r.Digits),
		Period:    uint64(r.Period),
		Counter:   uint64(r.Counter),
		Issuer:    r.Issuer,
		CreatedAt: unixMicro(r.CreatedAt),
	}, nil
}
