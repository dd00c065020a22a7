package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
	"github.com/shandysiswandi/authhelper/internal/pkg/instrument"
	"github.com/shandysiswandi/authhelper/internal/pkg/otp"
)

// DefaultRedisPrefix namespaces every key written by the redis store.
const DefaultRedisPrefix = "keyring:"

// Redis stores each credential as a hash and keeps a sorted set of names
// scored by creation time. Writes use WATCH/MULTI so a lost race surfaces as a
// conflict instead of a silent overwrite.
type Redis struct {
	tracer

	client redis.UniversalClient
	prefix string
}

func NewRedis(client redis.UniversalClient, prefix string, ins instrument.Instrumentation) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{
		tracer: tracer{ins: ins, driver: DriverRedis},
		client: client,
		prefix: prefix,
	}
}

func (s *Redis) credKey(name string) string { return s.prefix + "cred:" + name }

func (s *Redis) indexKey() string { return s.prefix + "creds" }

func (r record) hash() map[string]any {
	return map[string]any{
		"id":         r.ID,
		"name":       r.Name,
		"secret":     r.Secret,
		"kind":       r.Kind,
		"algorithm":  r.Algorithm,
		"digits":     r.Digits,
		"period":     r.Period,
		"counter":    r.Counter,
		"issuer":     r.Issuer,
		"created_at": r.CreatedAt,
	}
}

func recordFromHash(h map[string]string) (record, error) {
	r := record{
		ID:        h["id"],
		Name:      h["name"],
		Secret:    h["secret"],
		Kind:      h["kind"],
		Algorithm: h["algorithm"],
		Issuer:    h["issuer"],
	}

	ints := []struct {
		field string
		dst   *int64
	}{
		{"digits", &r.Digits},
		{"period", &r.Period},
		{"counter", &r.Counter},
		{"created_at", &r.CreatedAt},
	}
	for _, f := range ints {
		v, err := strconv.ParseInt(h[f.field], 10, 64)
		if err != nil {
			return record{}, fmt.Errorf("redis credential %q field %s: %w", r.Name, f.field, err)
		}
		*f.dst = v
	}

	return r, nil
}

func (s *Redis) GetCredential(ctx context.Context, name string) (_ *entity.Credential, err error) {
	ctx, span := s.startSpan(ctx, "GetCredential")
	defer func() { s.endSpan(span, err) }()

	h, err := s.client.HGetAll(ctx, s.credKey(name)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, goerror.ErrNotFound
	}

	r, err := recordFromHash(h)
	if err != nil {
		return nil, err
	}
	return r.credential()
}

func (s *Redis) CreateCredential(ctx context.Context, cred entity.Credential) (err error) {
	ctx, span := s.startSpan(ctx, "CreateCredential")
	defer func() { s.endSpan(span, err) }()

	if err := checkCounter(cred.Counter); err != nil {
		return err
	}

	r := toRecord(cred)
	key := s.credKey(r.Name)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return goerror.ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, r.hash())
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(r.CreatedAt), Member: r.Name})
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return goerror.ErrConflict
	}
	return err
}

func (s *Redis) DeleteCredential(ctx context.Context, name string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteCredential")
	defer func() { s.endSpan(span, err) }()

	var del *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.credKey(name))
		pipe.ZRem(ctx, s.indexKey(), name)
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return goerror.ErrNotFound
	}
	return nil
}

func (s *Redis) AdvanceCounter(ctx context.Context, name string, expected, next uint64) (err error) {
	ctx, span := s.startSpan(ctx, "AdvanceCounter")
	defer func() { s.endSpan(span, err) }()

	if err := checkAdvance(expected, next); err != nil {
		return err
	}

	key := s.credKey(name)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		vals, err := tx.HMGet(ctx, key, "kind", "counter").Result()
		if err != nil {
			return err
		}

		kind, _ := vals[0].(string)
		raw, _ := vals[1].(string)
		if kind == "" {
			return goerror.ErrNotFound
		}

		if kind != otp.KindHOTP.String() {
			return entity.ErrInvalidParameters
		}

		current, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("redis credential %q counter: %w", name, err)
		}
		if current != expected {
			return entity.ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "counter", int64(next))
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return entity.ErrConflict
	}
	return err
}

func (s *Redis) ListCredentials(ctx context.Context) (_ []entity.Credential, err error) {
	ctx, span := s.startSpan(ctx, "ListCredentials")
	defer func() { s.endSpan(span, err) }()

	names, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(names))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, name := range names {
			cmds[i] = pipe.HGetAll(ctx, s.credKey(name))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]entity.Credential, 0, len(names))
	for _, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			// deleted between ZRANGE and HGETALL
			continue
		}
		r, err := recordFromHash(h)
		if err != nil {
			return nil, err
		}
		cred, err := r.credential()
		if err != nil {
			return nil, err
		}
		out = append(out, *cred)
	}

	sortCredentials(out)
	return out, nil
}

func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the client is shared with other components and closed by its owner.
func (s *Redis) Close() error {
	return nil
}
