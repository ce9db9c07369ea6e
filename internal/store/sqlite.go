package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"assetlink/internal/domain"
	logx "assetlink/pkg/logx"
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
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
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

func (s *sqliteStore) Insert(ctx context.Context, t *domain.PersistentTask) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(id, producer_id, binding_id, asset_id, contract_id,
		                   interval_ns, expiry_ns, data_type, asset_properties,
		                   created_at_ms, updated_at_ms)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ProducerID, t.BindingID, t.AssetID, t.ContractID,
		int64(t.Interval), t.Expiry.UnixNano(), nullRaw(t.DataType), nullRaw(t.AssetProperties),
		now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*domain.PersistentTask, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, producer_id, binding_id, asset_id, contract_id,
		        interval_ns, expiry_ns, data_type, asset_properties,
		        created_at_ms, updated_at_ms
		 FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

func (s *sqliteStore) ListAll(ctx context.Context) ([]domain.PersistentTask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, producer_id, binding_id, asset_id, contract_id,
		        interval_ns, expiry_ns, data_type, asset_properties,
		        created_at_ms, updated_at_ms
		 FROM tasks ORDER BY created_at_ms`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PersistentTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (*domain.PersistentTask, error) {
	var (
		t                  domain.PersistentTask
		intervalNS         int64
		expiryNS           int64
		dataType, props    sql.NullString
		createdMS, updatMS int64
	)
	if err := r.Scan(&t.ID, &t.ProducerID, &t.BindingID, &t.AssetID, &t.ContractID,
		&intervalNS, &expiryNS, &dataType, &props, &createdMS, &updatMS); err != nil {
		return nil, err
	}
	t.Interval = time.Duration(intervalNS)
	t.Expiry = time.Unix(0, expiryNS)
	if dataType.Valid {
		t.DataType = []byte(dataType.String)
	}
	if props.Valid {
		t.AssetProperties = []byte(props.String)
	}
	t.CreatedAt = time.UnixMilli(createdMS)
	t.UpdatedAt = time.UnixMilli(updatMS)
	return &t, nil
}

func nullRaw(v []byte) any {
	if len(v) == 0 {
		return nil
	}
	return string(v)
}
