package db

import (
	"context"
	"sync"

	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
	"github.com/shandysiswandi/authhelper/internal/pkg/instrument"
	"go.uber.org/atomic"
)

type memRecord struct {
	cred    entity.Credential
	counter *atomic.Uint64
}

// Memory keeps credentials in process. Counters are advanced with a per-record
// compare-and-swap, so concurrent validations never share a counter value.
type Memory struct {
	tracer

	mu      sync.RWMutex
	records map[string]*memRecord

	// beforeSwap runs between lookup and compare-and-swap in AdvanceCounter. Tests only.
	beforeSwap func()
}

func NewMemory(ins instrument.Instrumentation) *Memory {
	return &Memory{
		tracer:  tracer{ins: ins, driver: DriverMemory},
		records: make(map[string]*memRecord),
	}
}

func (m *Memory) snapshot(rec *memRecord) entity.Credential {
	c := rec.cred
	c.Secret = append([]byte(nil), rec.cred.Secret...)
	c.Counter = rec.counter.Load()
	return c
}

func (m *Memory) GetCredential(ctx context.Context, name string) (_ *entity.Credential, err error) {
	_, span := m.startSpan(ctx, "GetCredential")
	defer func() { m.endSpan(span, err) }()

	m.mu.RLock()
	rec, ok := m.records[name]
	m.mu.RUnlock()
	if !ok {
		return nil, goerror.ErrNotFound
	}

	c := m.snapshot(rec)
	return &c, nil
}

func (m *Memory) CreateCredential(ctx context.Context, cred entity.Credential) (err error) {
	_, span := m.startSpan(ctx, "CreateCredential")
	defer func() { m.endSpan(span, err) }()

	if err := checkCounter(cred.Counter); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[cred.Name]; ok {
		return goerror.ErrConflict
	}

	stored := cred
	stored.Secret = append([]byte(nil), cred.Secret...)
	m.records[cred.Name] = &memRecord{cred: stored, counter: atomic.NewUint64(cred.Counter)}
	return nil
}

func (m *Memory) DeleteCredential(ctx context.Context, name string) (err error) {
	_, span := m.startSpan(ctx, "DeleteCredential")
	defer func() { m.endSpan(span, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[name]; !ok {
		return goerror.ErrNotFound
	}
	delete(m.records, name)
	return nil
}

func (m *Memory) AdvanceCounter(ctx context.Context, name string, expected, next uint64) (err error) {
	_, span := m.startSpan(ctx, "AdvanceCounter")
	defer func() { m.endSpan(span, err) }()

	if err := checkAdvance(expected, next); err != nil {
		return err
	}

	// the read lock spans lookup and swap so a concurrent delete or
	// re-create cannot leave the swap acting on a detached record
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[name]
	if !ok {
		return goerror.ErrNotFound
	}

	if !rec.cred.IsHOTP() {
		return entity.ErrInvalidParameters
	}
	if m.beforeSwap != nil {
		m.beforeSwap()
	}
	if !rec.counter.CompareAndSwap(expected, next) {
		return entity.ErrConflict
	}
	return nil
}

func (m *Memory) ListCredentials(ctx context.Context) (_ []entity.Credential, err error) {
	_, span := m.startSpan(ctx, "ListCredentials")
	defer func() { m.endSpan(span, err) }()

	m.mu.RLock()
	out := make([]entity.Credential, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, m.snapshot(rec))
	}
	m.mu.RUnlock()

	sortCredentials(out)
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
