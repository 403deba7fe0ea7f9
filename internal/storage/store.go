// Package storage persists the coordinator's durable state: the monitoring
// flag and the set of already-notified orders. Both survive process restarts;
// the session-scoped dedup keys deliberately do not.
package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	logx "sentinela/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "memory": process-local only (used by tests; nothing survives restart)
//
// If Driver is empty or "none", storage is disabled and Open returns (nil, nil).
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the minimal persistence API used by the coordinator.
type Store interface {
	// LoadState returns the persisted monitoring flag and the notified orders
	// in first-seen order. ok is false when no state was ever saved.
	LoadState(ctx context.Context) (monitoring bool, ok bool, orders []string, err error)

	SetMonitoring(ctx context.Context, monitoring bool) error

	// AddOrder appends an order to the durable notified set (idempotent).
	AddOrder(ctx context.Context, order string) error

	// ClearOrders empties the durable notified set.
	ClearOrders(ctx context.Context) error

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// Memory is an in-process Store. Safe for concurrent use.
type Memory struct {
	mu         sync.Mutex
	saved      bool
	monitoring bool
	orders     []string
	seen       map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{seen: map[string]struct{}{}}
}

func (m *Memory) LoadState(context.Context) (bool, bool, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.monitoring, m.saved, append([]string(nil), m.orders...), nil
}

func (m *Memory) SetMonitoring(_ context.Context, monitoring bool) error {
	m.mu.Lock()
	m.monitoring = monitoring
	m.saved = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) AddOrder(_ context.Context, order string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[order]; ok {
		return nil
	}
	m.seen[order] = struct{}{}
	m.orders = append(m.orders, order)
	return nil
}

func (m *Memory) ClearOrders(context.Context) error {
	m.mu.Lock()
	m.orders = nil
	m.seen = map[string]struct{}{}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
