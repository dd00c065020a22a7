package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
	"github.com/shandysiswandi/authhelper/internal/pkg/instrument"
)

// Postgres stores credentials in PostgreSQL through a pgx pool.
type Postgres struct {
	tracer

	conn *pgxpool.Pool
}

// NewPostgres wraps an open pool. Call MigratePool once before use.
// Close closes the pool.
func NewPostgres(conn *pgxpool.Pool, ins instrument.Instrumentation) *Postgres {
	return &Postgres{
		tracer: tracer{ins: ins, driver: DriverPostgres},
		conn:   conn,
	}
}

// OpenPostgres connects to dsn, applies migrations and returns the store.
func OpenPostgres(ctx context.Context, dsn string, ins instrument.Instrumentation) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := MigratePool(pool); err != nil {
		pool.Close()
		return nil, err
	}

	return NewPostgres(pool, ins), nil
}

// MigratePool applies the postgres migrations over a database/sql view of the pool.
func MigratePool(pool *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	return MigratePostgres(sqlDB)
}

// mapError translates pgx errors: no rows to goerror.ErrNotFound and a
// unique violation (23505) to goerror.ErrConflict.
func (s *Postgres) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return goerror.ErrConflict
	}

	return err
}

const pgColumns = `id::text, name, secret, kind, algorithm, digits, period, counter, issuer, created_at`

func scanPgRecord(row pgx.Row) (*entity.Credential, error) {
	var (
		r         record
		digits    int16
		createdAt time.Time
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Secret, &r.Kind, &r.Algorithm, &digits, &r.Period, &r.Counter, &r.Issuer, &createdAt); err != nil {
		return nil, err
	}
	r.Digits = int64(digits)
	r.CreatedAt = createdAt.UnixMicro()
	return r.credential()
}

func (s *Postgres) GetCredential(ctx context.Context, name string) (_ *entity.Credential, err error) {
	ctx, span := s.startSpan(ctx, "GetCredential")
	defer func() { s.endSpan(span, err) }()

	const query = `SELECT ` + pgColumns + ` FROM keyring_credentials WHERE name = $1`

	cred, err := scanPgRecord(s.conn.QueryRow(ctx, query, name))
	if err != nil {
		return nil, s.mapError(err)
	}
	return cred, nil
}

func (s *Postgres) CreateCredential(ctx context.Context, cred entity.Credential) (err error) {
	ctx, span := s.startSpan(ctx, "CreateCredential")
	defer func() { s.endSpan(span, err) }()

	if err := checkCounter(cred.Counter); err != nil {
		return err
	}

	const query = `INSERT INTO keyring_credentials
		(id, name, secret, kind, algorithm, digits, period, counter, issuer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	r := toRecord(cred)
	_, err = s.conn.Exec(ctx, query,
		r.ID, r.Name, r.Secret, r.Kind, r.Algorithm, int16(r.Digits), r.Period, r.Counter, r.Issuer, unixMicro(r.CreatedAt))
	return s.mapError(err)
}

func (s *Postgres) DeleteCredential(ctx context.Context, name string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteCredential")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `DELETE FROM keyring_credentials WHERE name = $1`, name)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}
	return nil
}

func (s *Postgres) AdvanceCounter(ctx context.Context, name string, expected, next uint64) (err error) {
	ctx, span := s.startSpan(ctx, "AdvanceCounter")
	defer func() { s.endSpan(span, err) }()

	if err := checkAdvance(expected, next); err != nil {
		return err
	}

	const query = `UPDATE keyring_credentials SET counter = $1 WHERE name = $2 AND kind = 'hotp' AND counter = $3`

	tag, err := s.conn.Exec(ctx, query, int64(next), name, int64(expected))
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var kind string
	if err := s.conn.QueryRow(ctx, `SELECT kind FROM keyring_credentials WHERE name = $1`, name).Scan(&kind); err != nil {
		return s.mapError(err)
	}
	return counterMiss(kind)
}

func (s *Postgres) ListCredentials(ctx context.Context) (_ []entity.Credential, err error) {
	ctx, span := s.startSpan(ctx, "ListCredentials")
	defer func() { s.endSpan(span, err) }()

	const query = `SELECT ` + pgColumns + ` FROM keyring_credentials ORDER BY created_at DESC, name ASC`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	var out []entity.Credential
	for rows.Next() {
		cred, err := scanPgRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cred)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return out, nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *Postgres) Close() error {
	s.conn.Close()
	return nil
}
