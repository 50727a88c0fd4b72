// Package postgres is a pgx-backed ports.AuthenticationRepository, with
// goose migrations applied on startup.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"mediahub.app/sessioncore/internal/ports"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connect opens a pool against dsn and verifies connectivity with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return pool, nil
}

// Migrate applies every embedded migration using goose against dsn,
// opening its own database/sql connection since goose does not speak pgx
// natively.
func Migrate(dsn string) error {
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}
	defer db.Close()

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// AuthTokens is a pgx-backed ports.AuthenticationRepository.
type AuthTokens struct {
	pool *pgxpool.Pool
}

func NewAuthTokens(pool *pgxpool.Pool) *AuthTokens {
	return &AuthTokens{pool: pool}
}

func (a *AuthTokens) Get(ctx context.Context, query ports.AuthQuery) ([]ports.AuthInfo, error) {
	sql := `SELECT access_token, user_id, device_id, is_active, date_created
	        FROM access_tokens
	        WHERE ($1 = '' OR access_token = $1)
	          AND ($2 = '' OR user_id = $2)
	          AND ($3 = '' OR device_id = $3)
	          AND ($4::boolean IS NULL OR is_active = $4)
	        ORDER BY date_created DESC`
	if query.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", query.Limit)
	}

	rows, err := a.pool.Query(ctx, sql, query.AccessToken, query.UserID, query.DeviceID, query.IsActive)
	if err != nil {
		return nil, fmt.Errorf("querying access tokens: %w", err)
	}
	defer rows.Close()

	var out []ports.AuthInfo
	for rows.Next() {
		var info ports.AuthInfo
		if err := rows.Scan(&info.AccessToken, &info.UserID, &info.DeviceID, &info.IsActive, &info.DateCreated); err != nil {
			return nil, fmt.Errorf("scanning access token row: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (a *AuthTokens) Create(ctx context.Context, info ports.AuthInfo) error {
	const sql = `INSERT INTO access_tokens (access_token, user_id, device_id, is_active, date_created)
	             VALUES ($1, $2, $3, $4, $5)`
	_, err := a.pool.Exec(ctx, sql, info.AccessToken, info.UserID, info.DeviceID, info.IsActive, info.DateCreated)
	if err != nil {
		return fmt.Errorf("inserting access token: %w", err)
	}
	return nil
}

func (a *AuthTokens) Update(ctx context.Context, info ports.AuthInfo) error {
	const sql = `UPDATE access_tokens SET is_active = $2 WHERE access_token = $1`
	tag, err := a.pool.Exec(ctx, sql, info.AccessToken, info.IsActive)
	if err != nil {
		return fmt.Errorf("updating access token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("access token not found: %s", info.AccessToken)
	}
	return nil
}

// IsNotFound reports whether err is pgx's no-rows sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

var _ ports.AuthenticationRepository = (*AuthTokens)(nil)
