// Package idempotency guards retried requests with a Redis-backed state machine.
//
// A key moves from absent to in_progress (SETNX) and then to completed or
// failed. Completed keys remember a short reference to the produced result,
// so a replay can return the original outcome instead of redoing the work.
package idempotency

import (
	"cmp"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrAlreadyInProgress = errors.New("operation already in progress")
	ErrAlreadyCompleted  = errors.New("operation already completed")
	ErrAlreadyFailed     = errors.New("operation already failed")
	ErrInvalidState      = errors.New("invalid state")
)

// State is what a key records about its operation.
type State string

const (
	StateNone       State = "none"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	// StateError is returned alongside an error when the key could not be read.
	StateError State = "error"
)

func (s State) String() string { return string(s) }

// stateErrs maps a state found on an existing key to what Exec returns.
var stateErrs = map[State]error{
	StateInProgress: ErrAlreadyInProgress,
	StateCompleted:  ErrAlreadyCompleted,
	StateFailed:     ErrAlreadyFailed,
}

const (
	defaultPrefix       = "idempotency:"
	defaultLockDuration = time.Minute
	defaultStateTTL     = 24 * time.Hour

	// refSep separates the completed marker from the stored result reference.
	refSep = "|"
	// claimAttempts bounds the SETNX/GET loop when a lock expires in between.
	claimAttempts = 2
)

type Idempotency interface {
	Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, string, error)
	MarkCompleted(ctx context.Context, key, ref string, ttl time.Duration) error
	MarkFailed(ctx context.Context, key string, ttl time.Duration) error
	Exec(ctx context.Context, key string, fn func(context.Context) (string, error), opts ...Option) (string, error)
}

// StateTracker stores key states in Redis under a common prefix.
type StateTracker struct {
	client redis.UniversalClient
	prefix string
}

func New(client redis.UniversalClient, prefix string) *StateTracker {
	return &StateTracker{client: client, prefix: cmp.Or(prefix, defaultPrefix)}
}

type Option func(*execOptions)

type execOptions struct {
	lockDuration time.Duration
	stateTTL     time.Duration
}

// WithLockDuration bounds how long an unfinished operation holds its key.
func WithLockDuration(d time.Duration) Option {
	return func(o *execOptions) { o.lockDuration = d }
}

// WithStateTTL sets how long a completed key is remembered.
func WithStateTTL(d time.Duration) Option {
	return func(o *execOptions) { o.stateTTL = d }
}

func newExecOptions(opts []Option) execOptions {
	var o execOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.lockDuration <= 0 {
		o.lockDuration = defaultLockDuration
	}
	if o.stateTTL <= 0 {
		o.stateTTL = defaultStateTTL
	}
	return o
}

// Acquire claims key for a new operation and returns StateNone when it
// succeeds. Otherwise it reports the state already recorded, with the stored
// reference for completed keys.
func (s *StateTracker) Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, string, error) {
	fk := s.prefix + key

	for range claimAttempts {
		claimed, err := s.client.SetNX(ctx, fk, StateInProgress.String(), lockDuration).Result()
		if err != nil {
			return StateError, "", err
		}
		if claimed {
			return StateNone, "", nil
		}

		raw, err := s.client.Get(ctx, fk).Result()
		if errors.Is(err, redis.Nil) {
			// the holder's lock expired between SETNX and GET
			continue
		}
		if err != nil {
			return StateError, "", err
		}
		return parseEntry(raw)
	}

	return StateError, "", ErrInvalidState
}

func parseEntry(raw string) (State, string, error) {
	state, ref, _ := strings.Cut(raw, refSep)
	switch st := State(state); st {
	case StateCompleted:
		return st, ref, nil
	case StateInProgress, StateFailed:
		return st, "", nil
	default:
		return StateError, "", ErrInvalidState
	}
}

func (s *StateTracker) MarkCompleted(ctx context.Context, key, ref string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, StateCompleted.String()+refSep+ref, ttl).Err()
}

// MarkFailed records a failure for ttl. A non-positive ttl releases the key
// so the client may retry at once.
func (s *StateTracker) MarkFailed(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return s.client.Del(ctx, s.prefix+key).Err()
	}
	return s.client.Set(ctx, s.prefix+key, StateFailed.String(), ttl).Err()
}

// Exec runs fn at most once per key. A replay of a completed key returns the
// stored reference together with ErrAlreadyCompleted. A failing fn releases
// the key.
func (s *StateTracker) Exec(ctx context.Context, key string, fn func(context.Context) (string, error), opts ...Option) (string, error) {
	o := newExecOptions(opts)

	state, ref, err := s.Acquire(ctx, key, o.lockDuration)
	if err != nil {
		return "", err
	}
	if err := stateErrs[state]; err != nil {
		return ref, err
	}

	ref, err = fn(ctx)
	if err != nil {
		if markErr := s.MarkFailed(ctx, key, 0); markErr != nil {
			err = errors.Join(err, markErr)
		}
		return "", err
	}

	return ref, s.MarkCompleted(ctx, key, ref, o.stateTTL)
}
