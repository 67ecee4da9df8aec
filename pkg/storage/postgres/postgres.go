// Package postgres provides a PostgreSQL implementation of transport.HistoryStore.
// It uses pgx/v5 for connection pooling and keyset pagination for listing.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/greetings/pkg/api"
	"github.com/rhuss/greetings/pkg/storage"
	"github.com/rhuss/greetings/pkg/transport"
)

// Store is a PostgreSQL-backed HistoryStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements transport.HistoryStore at compile time.
var _ transport.HistoryStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

const selectColumns = `id, status, message, emissions, delay_ms, created_at, completed_at`

// SaveGreeting persists a finished stream's record.
func (s *Store) SaveGreeting(ctx context.Context, rec *api.GreetingRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO greetings (
			id, tenant_id, status, message, emissions, delay_ms, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		rec.ID, storage.GetTenant(ctx), string(rec.Status), rec.Message,
		rec.Emissions, int64(rec.DelayMS), rec.CreatedAt, rec.CompletedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting greeting: %w", err)
	}
	return nil
}

// GetGreeting retrieves a record by stream ID.
func (s *Store) GetGreeting(ctx context.Context, id string) (*api.GreetingRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM greetings WHERE id = $1`
	args := []any{id}

	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying greeting: %w", err)
	}
	return rec, nil
}

// ListGreetings returns a page of records ordered by creation time. The
// After cursor is resolved to its (created_at, id) key; an unknown cursor
// yields an empty page.
func (s *Store) ListGreetings(ctx context.Context, opts transport.ListOptions) (*transport.GreetingList, error) {
	opts = transport.NormalizeListOptions(opts)
	tenantID := storage.GetTenant(ctx)

	query := `SELECT ` + selectColumns + ` FROM greetings WHERE 1=1`
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if tenantID != "" {
		query += " AND tenant_id = " + next(tenantID)
	}

	cmp, dir := "<", "DESC"
	if opts.Order == "asc" {
		cmp, dir = ">", "ASC"
	}

	if opts.After != "" {
		cursor, err := s.GetGreeting(ctx, opts.After)
		if errors.Is(err, storage.ErrNotFound) {
			return emptyList(), nil
		}
		if err != nil {
			return nil, err
		}
		query += fmt.Sprintf(" AND (created_at, id) %s (%s, %s)", cmp, next(cursor.CreatedAt), next(cursor.ID))
	}

	query += fmt.Sprintf(" ORDER BY created_at %s, id %s LIMIT %s", dir, dir, next(opts.Limit+1))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing greetings: %w", err)
	}
	defer rows.Close()

	var data []*api.GreetingRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning greeting: %w", err)
		}
		data = append(data, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing greetings: %w", err)
	}

	result := emptyList()
	if len(data) > opts.Limit {
		data = data[:opts.Limit]
		result.HasMore = true
	}
	if len(data) > 0 {
		result.Data = data
		result.FirstID = data[0].ID
		result.LastID = data[len(data)-1].ID
	}
	return result, nil
}

// DeleteGreeting removes a record.
func (s *Store) DeleteGreeting(ctx context.Context, id string) error {
	query := "DELETE FROM greetings WHERE id = $1"
	args := []any{id}

	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}

	result, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting greeting: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (*api.GreetingRecord, error) {
	var rec api.GreetingRecord
	var status string
	var delay int64
	if err := row.Scan(
		&rec.ID, &status, &rec.Message, &rec.Emissions,
		&delay, &rec.CreatedAt, &rec.CompletedAt,
	); err != nil {
		return nil, err
	}
	rec.Object = "greeting"
	rec.Status = api.GreetingStatus(status)
	rec.DelayMS = uint64(delay)
	return &rec, nil
}

func emptyList() *transport.GreetingList {
	return &transport.GreetingList{Object: "list", Data: []*api.GreetingRecord{}}
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
