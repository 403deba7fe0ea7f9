package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	logx "sentinela/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LoadState(ctx context.Context) (bool, bool, []string, error) {
	if s == nil || s.db == nil {
		return false, false, nil, ErrDisabled
	}

	monitoring := false
	saved := true
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = 'is_monitoring'`).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		saved = false
	case err != nil:
		return false, false, nil, err
	default:
		monitoring = v != 0
	}

	rows, err := s.db.QueryContext(ctx, `SELECT order_id FROM notified_orders ORDER BY seq ASC`)
	if err != nil {
		return false, false, nil, err
	}
	defer rows.Close()

	var orders []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return false, false, nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return false, false, nil, err
	}
	return monitoring, saved, orders, nil
}

func (s *sqliteStore) SetMonitoring(ctx context.Context, monitoring bool) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	v := 0
	if monitoring {
		v = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state(key, value) VALUES('is_monitoring', ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`, v)
	return err
}

func (s *sqliteStore) AddOrder(ctx context.Context, order string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if order == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notified_orders(order_id) VALUES(?)
		 ON CONFLICT(order_id) DO NOTHING`, order)
	return err
}

func (s *sqliteStore) ClearOrders(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM notified_orders`)
	return err
}
