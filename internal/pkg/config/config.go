// Package config exposes typed, read-only access to application configuration.
//
// Values are addressed by dotted keys (for example "keyring.totp.period").
// Implementations return the zero value when a key is absent, so callers
// typically pair a lookup with IsSet or a sane fallback.
package config

import (
	"io"
	"time"
)

// TimeConfig defines helpers for retrieving duration values stored as integers.
type TimeConfig interface {
	// GetMillisecond retrieves the value for key as milliseconds.
	GetMillisecond(key string) time.Duration

	// GetSecond retrieves the value for key as seconds.
	GetSecond(key string) time.Duration

	// GetMinute retrieves the value for key as minutes.
	GetMinute(key string) time.Duration
}

// NumberConfig defines helpers for retrieving numeric values.
type NumberConfig interface {
	GetInt(key string) int
	GetInt64(key string) int64
	GetUint(key string) uint
	GetUint64(key string) uint64
	GetFloat64(key string) float64
}

// Config defines a set of methods for retrieving configuration values of various types.
type Config interface {
	io.Closer
	TimeConfig
	NumberConfig

	// IsSet reports whether key has a value from any source.
	IsSet(key string) bool

	// GetBool retrieves the value for key as a bool.
	GetBool(key string) bool

	// GetString retrieves the value for key as a string.
	GetString(key string) string

	// GetBinary retrieves the value for key decoded from base64.
	GetBinary(key string) []byte

	// GetArray retrieves the value for key as a slice of strings.
	// Configuration value is stored with format <element1>,<element2>,...
	GetArray(key string) []string

	// GetMap retrieves the value for key as a map of strings to strings.
	// Configuration value is stored with format <key1>:<value1>,<key2>:<value2>,...
	GetMap(key string) map[string]string
}
