package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
	"github.com/shandysiswandi/authhelper/internal/pkg/instrument"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"

// SQLiteFileDSN returns a WAL-mode DSN for a database file.
func SQLiteFileDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&%s", path, sqlitePragmas)
}

// SQLiteMemoryDSN returns a DSN for a named shared in-memory database.
func SQLiteMemoryDSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", url.PathEscape(name), sqlitePragmas)
}

// SQLite stores credentials through a single-connection writer and a small reader pool.
type SQLite struct {
	tracer

	writer *sql.DB
	reader *sql.DB
}

// OpenSQLite opens the writer and reader pools for dsn and applies migrations.
func OpenSQLite(ctx context.Context, dsn string, ins instrument.Instrumentation) (*SQLite, error) {
	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	if err := writer.PingContext(ctx); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("ping writer: %w", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(4)

	if err := reader.PingContext(ctx); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("ping reader: %w", err)
	}

	if err := MigrateSQLite(writer); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, err
	}

	return &SQLite{
		tracer: tracer{ins: ins, driver: DriverSQLite},
		writer: writer,
		reader: reader,
	}, nil
}

func (s *SQLite) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return goerror.ErrConflict
		}
	}

	return err
}

const sqliteColumns = `id, name, secret, kind, algorithm, digits, period, counter, issuer, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*entity.Credential, error) {
	var r record
	if err := row.Scan(&r.ID, &r.Name, &r.Secret, &r.Kind, &r.Algorithm, &r.Digits, &r.Period, &r.Counter, &r.Issuer, &r.CreatedAt); err != nil {
		return nil, err
	}
	return r.credential()
}

func (s *SQLite) GetCredential(ctx context.Context, name string) (_ *entity.Credential, err error) {
	ctx, span := s.startSpan(ctx, "GetCredential")
	defer func() { s.endSpan(span, err) }()

	const query = `SELECT ` + sqliteColumns + ` FROM keyring_credentials WHERE name = ?`

	cred, err := scanRecord(s.reader.QueryRowContext(ctx, query, name))
	if err != nil {
		return nil, s.mapError(err)
	}
	return cred, nil
}

func (s *SQLite) CreateCredential(ctx context.Context, cred entity.Credential) (err error) {
	ctx, span := s.startSpan(ctx, "CreateCredential")
	defer func() { s.endSpan(span, err) }()

	if err := checkCounter(cred.Counter); err != nil {
		return err
	}

	const query = `INSERT INTO keyring_credentials (` + sqliteColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	r := toRecord(cred)
	_, err = s.writer.ExecContext(ctx, query,
		r.ID, r.Name, r.Secret, r.Kind, r.Algorithm, r.Digits, r.Period, r.Counter, r.Issuer, r.CreatedAt)
	return s.mapError(err)
}

func (s *SQLite) DeleteCredential(ctx context.Context, name string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteCredential")
	defer func() { s.endSpan(span, err) }()

	res, err := s.writer.ExecContext(ctx, `DELETE FROM keyring_credentials WHERE name = ?`, name)
	if err != nil {
		return s.mapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return goerror.ErrNotFound
	}
	return nil
}

func (s *SQLite) AdvanceCounter(ctx context.Context, name string, expected, next uint64) (err error) {
	ctx, span := s.startSpan(ctx, "AdvanceCounter")
	defer func() { s.endSpan(span, err) }()

	if err := checkAdvance(expected, next); err != nil {
		return err
	}

	const query = `UPDATE keyring_credentials SET counter = ? WHERE name = ? AND kind = 'hotp' AND counter = ?`

	res, err := s.writer.ExecContext(ctx, query, int64(next), name, int64(expected))
	if err != nil {
		return s.mapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// zero rows: tell a missing credential apart from a lost race
	var kind string
	err = s.writer.QueryRowContext(ctx, `SELECT kind FROM keyring_credentials WHERE name = ?`, name).Scan(&kind)
	if err != nil {
		return s.mapError(err)
	}
	return counterMiss(kind)
}

func (s *SQLite) ListCredentials(ctx context.Context) (_ []entity.Credential, err error) {
	ctx, span := s.startSpan(ctx, "ListCredentials")
	defer func() { s.endSpan(span, err) }()

	const query = `SELECT ` + sqliteColumns + ` FROM keyring_credentials ORDER BY created_at DESC, name ASC`

	rows, err := s.reader.QueryContext(ctx, query)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	var out []entity.Credential
	for rows.Next() {
		cred, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cred)
	}

	return out, rows.Err()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.reader.PingContext(ctx)
}

// Close closes both pools and returns the first error encountered.
func (s *SQLite) Close() error {
	var firstErr error

	if err := s.reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}

	if err := s.writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}
