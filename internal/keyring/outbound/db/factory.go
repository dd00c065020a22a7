package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/authhelper/internal/pkg/instrument"
)

var (
	ErrUnknownDriver       = errors.New("keyring: unknown store driver")
	ErrPostgresDSNRequired = errors.New("keyring: postgres dsn is required")
	ErrRedisClientRequired = errors.New("keyring: redis client is required")
)

// Options selects and configures a store driver.
type Options struct {
	Driver string

	// SQLitePath is the database file. Empty opens a shared in-memory database named SQLiteName.
	SQLitePath string
	SQLiteName string

	PostgresDSN string

	Redis       redis.UniversalClient
	RedisPrefix string

	Instrument instrument.Instrumentation
}

// Open builds the store named by opts.Driver. An empty driver selects memory.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemory(opts.Instrument), nil

	case DriverSQLite:
		dsn := SQLiteFileDSN(opts.SQLitePath)
		if opts.SQLitePath == "" {
			name := opts.SQLiteName
			if name == "" {
				name = "keyring"
			}
			dsn = SQLiteMemoryDSN(name)
		} else if err := os.MkdirAll(filepath.Dir(opts.SQLitePath), 0o750); err != nil {
			return nil, fmt.Errorf("keyring: create sqlite dir: %w", err)
		}
		return OpenSQLite(ctx, dsn, opts.Instrument)

	case DriverPostgres:
		if opts.PostgresDSN == "" {
			return nil, ErrPostgresDSNRequired
		}
		return OpenPostgres(ctx, opts.PostgresDSN, opts.Instrument)

	case DriverRedis:
		if opts.Redis == nil {
			return nil, ErrRedisClientRequired
		}
		return NewRedis(opts.Redis, opts.RedisPrefix, opts.Instrument), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
