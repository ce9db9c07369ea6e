package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"assetlink/internal/domain"
	logx "assetlink/pkg/logx"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS tasks (
    id               TEXT PRIMARY KEY,
    producer_id      TEXT NOT NULL,
    binding_id       TEXT NOT NULL,
    asset_id         TEXT NOT NULL,
    contract_id      TEXT NOT NULL,
    interval_ns      BIGINT NOT NULL,
    expiry_ns        BIGINT NOT NULL,
    data_type        JSONB,
    asset_properties JSONB,
    created_at_ms    BIGINT NOT NULL,
    updated_at_ms    BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_expiry ON tasks(expiry_ns);
`

type postgresStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func openPostgres(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate tasks table: %w", err)
	}
	return &postgresStore{pool: pool, log: log}, nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *postgresStore) Insert(ctx context.Context, t *domain.PersistentTask) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tasks (id, producer_id, binding_id, asset_id, contract_id,
		                    interval_ns, expiry_ns, data_type, asset_properties,
		                    created_at_ms, updated_at_ms)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		t.ID, t.ProducerID, t.BindingID, t.AssetID, t.ContractID,
		int64(t.Interval), t.Expiry.UnixNano(), nullRaw(t.DataType), nullRaw(t.AssetProperties),
		now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	return nil
}

func (s *postgresStore) Get(ctx context.Context, id string) (*domain.PersistentTask, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, producer_id, binding_id, asset_id, contract_id,
		        interval_ns, expiry_ns, data_type, asset_properties,
		        created_at_ms, updated_at_ms
		 FROM tasks WHERE id = $1`, id)
	t, err := scanPGTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *postgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

func (s *postgresStore) ListAll(ctx context.Context) ([]domain.PersistentTask, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, producer_id, binding_id, asset_id, contract_id,
		        interval_ns, expiry_ns, data_type, asset_properties,
		        created_at_ms, updated_at_ms
		 FROM tasks ORDER BY created_at_ms`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []domain.PersistentTask
	for rows.Next() {
		t, err := scanPGTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanPGTask(r rowScanner) (*domain.PersistentTask, error) {
	var (
		t                    domain.PersistentTask
		intervalNS           int64
		expiryNS             int64
		dataType, props      []byte
		createdMS, updatedMS int64
	)
	if err := r.Scan(&t.ID, &t.ProducerID, &t.BindingID, &t.AssetID, &t.ContractID,
		&intervalNS, &expiryNS, &dataType, &props, &createdMS, &updatedMS); err != nil {
		return nil, err
	}
	t.Interval = time.Duration(intervalNS)
	t.Expiry = time.Unix(0, expiryNS)
	t.DataType = dataType
	t.AssetProperties = props
	t.CreatedAt = time.UnixMilli(createdMS)
	t.UpdatedAt = time.UnixMilli(updatedMS)
	return &t, nil
}
