// Package sqlite implements store.Store on SQLite. Entities are kept as JSON
// documents next to an optimistic version column.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/powerhub/core/errs"
	"github.com/kilianp07/powerhub/core/model"
	"github.com/kilianp07/powerhub/core/store"
)

const (
	kindHub    = "hub"
	kindTenant = "tenant"
	kindPolicy = "policy"
)

// Store persists entities to a SQLite database.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database at path and ensures schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	schema := `CREATE TABLE IF NOT EXISTS entities (
        kind TEXT NOT NULL,
        id TEXT NOT NULL,
        hub_id TEXT,
        status TEXT,
        version INTEGER NOT NULL,
        doc TEXT NOT NULL,
        PRIMARY KEY (kind, id)
    );
    CREATE INDEX IF NOT EXISTS idx_entities_hub ON entities(kind, hub_id);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Hub(ctx context.Context, id string) (model.Hub, error) {
	var h model.Hub
	v, err := s.get(ctx, kindHub, id, &h)
	h.Version = v
	return h, err
}

func (s *Store) Tenant(ctx context.Context, id string) (model.Tenant, error) {
	var t model.Tenant
	v, err := s.get(ctx, kindTenant, id, &t)
	t.Version = v
	return t, err
}

func (s *Store) Policy(ctx context.Context, id string) (model.CapacityPolicy, error) {
	var p model.CapacityPolicy
	v, err := s.get(ctx, kindPolicy, id, &p)
	p.Version = v
	return p, err
}

func (s *Store) Hubs(ctx context.Context) ([]model.Hub, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version, doc FROM entities WHERE kind = ? ORDER BY id`, kindHub)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, func(h *model.Hub, v int64) { h.Version = v })
}

func (s *Store) TenantsByHub(ctx context.Context, hubID string, status ...model.TenantStatus) ([]model.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version, doc FROM entities WHERE kind = ? AND hub_id = ? ORDER BY id`, kindTenant, hubID)
	if err != nil {
		return nil, err
	}
	all, err := scanAll(rows, func(t *model.Tenant, v int64) { t.Version = v })
	if err != nil || len(status) == 0 {
		return all, err
	}
	out := all[:0]
	for _, t := range all {
		if store.StatusMatch(t.Status, status) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) PoliciesByHub(ctx context.Context, hubID string) ([]model.CapacityPolicy, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version, doc FROM entities WHERE kind = ? AND hub_id = ? ORDER BY id`, kindPolicy, hubID)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, func(p *model.CapacityPolicy, v int64) { p.Version = v })
}

// Commit writes every entity of c in one transaction.
func (s *Store) Commit(ctx context.Context, c store.Changes) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, h := range c.Hubs {
		if err = put(ctx, tx, kindHub, h.ID, "", string(h.Status), h.Version, h); err != nil {
			return err
		}
	}
	for _, t := range c.Tenants {
		if err = put(ctx, tx, kindTenant, t.ID, t.HubID, string(t.Status), t.Version, t); err != nil {
			return err
		}
	}
	for _, p := range c.Policies {
		if err = put(ctx, tx, kindPolicy, p.ID, p.HubID, string(p.State), p.Version, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) get(ctx context.Context, kind, id string, dst any) (int64, error) {
	var (
		version int64
		doc     string
	)
	err := s.db.QueryRowContext(ctx, `SELECT version, doc FROM entities WHERE kind = ? AND id = ?`, kind, id).Scan(&version, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errs.NotFound(kind, id)
	}
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal([]byte(doc), dst); err != nil {
		return 0, fmt.Errorf("unmarshal %s %s: %w", kind, id, err)
	}
	return version, nil
}

func put(ctx context.Context, tx *sql.Tx, kind, id, hubID, status string, version int64, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var res sql.Result
	if version == 0 {
		res, err = tx.ExecContext(ctx,
			`INSERT INTO entities (kind, id, hub_id, status, version, doc) VALUES (?, ?, ?, ?, 1, ?) ON CONFLICT(kind, id) DO NOTHING`,
			kind, id, hubID, status, string(doc))
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE entities SET hub_id = ?, status = ?, version = version + 1, doc = ? WHERE kind = ? AND id = ? AND version = ?`,
			hubID, status, string(doc), kind, id, version)
	}
	if err != nil {
		return fmt.Errorf("write %s %s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.Conflict(kind, id)
	}
	return nil
}

func scanAll[T any](rows *sql.Rows, setVersion func(*T, int64)) ([]T, error) {
	defer func() { _ = rows.Close() }()
	var out []T
	for rows.Next() {
		var (
			version int64
			doc     string
		)
		if err := rows.Scan(&version, &doc); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(doc), &v); err != nil {
			return nil, fmt.Errorf("unmarshal entity: %w", err)
		}
		setVersion(&v, version)
		out = append(out, v)
	}
	return out, rows.Err()
}
