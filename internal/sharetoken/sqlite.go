package sharetoken

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wrale/sitepub/internal/expiry"
	"github.com/wrale/sitepub/internal/sqlitedb"
)

const tokenColumns = `id, project_id, name, duration, secret_hash, created_at, expires_at, revoked_at`

// SQLiteStore implements the Store interface on a relational table
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on a database opened with sqlitedb.Open
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// CheckHealth verifies the database is reachable
func (s *SQLiteStore) CheckHealth(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite health check failed: %w", err)
	}
	return nil
}

// SaveShareToken inserts a new token
func (s *SQLiteStore) SaveShareToken(ctx context.Context, token *ShareToken) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO share_tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
		token.ID,
		token.ProjectID,
		token.Name,
		string(token.Duration),
		token.SecretHash,
		sqlitedb.ToMillis(token.CreatedAt),
		sqlitedb.ToMillis(token.ExpiresAt),
	)
	if err != nil {
		if sqlitedb.IsUniqueViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("inserting share token: %w", err)
	}
	return nil
}

// GetShareToken retrieves a token of the project
func (s *SQLiteStore) GetShareToken(ctx context.Context, projectID, id string) (*ShareToken, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM share_tokens WHERE id = ? AND project_id = ?`, id, projectID)
	return scanOne(row)
}

// ListShareTokens returns the project's tokens ordered by creation time
func (s *SQLiteStore) ListShareTokens(ctx context.Context, projectID string) ([]*ShareToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM share_tokens WHERE project_id = ? ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying share tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*ShareToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating share tokens: %w", err)
	}
	return tokens, nil
}

// RevokeShareToken sets revoked_at with a single conditional update; the first writer wins
func (s *SQLiteStore) RevokeShareToken(ctx context.Context, projectID, id string, at time.Time) (*ShareToken, bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE share_tokens SET revoked_at = ? WHERE id = ? AND project_id = ? AND revoked_at IS NULL`,
		sqlitedb.ToMillis(at), id, projectID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("revoking share token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("reading revoke result: %w", err)
	}

	token, err := s.GetShareToken(ctx, projectID, id)
	if err != nil {
		return nil, false, err
	}
	return token, token != nil && affected == 1, nil
}

// GetShareTokenBySecretHash resolves a secret hash to its token
func (s *SQLiteStore) GetShareTokenBySecretHash(ctx context.Context, secretHash string) (*ShareToken, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM share_tokens WHERE secret_hash = ?`, secretHash)
	return scanOne(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*ShareToken, error) {
	token, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return token, err
}

func scanToken(row scanner) (*ShareToken, error) {
	var (
		token     ShareToken
		duration  string
		createdAt int64
		expiresAt int64
		revokedAt sql.NullInt64
	)
	if err := row.Scan(
		&token.ID,
		&token.ProjectID,
		&token.Name,
		&duration,
		&token.SecretHash,
		&createdAt,
		&expiresAt,
		&revokedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning share token: %w", err)
	}

	token.Duration = expiry.Duration(duration)
	token.CreatedAt = sqlitedb.FromMillis(createdAt)
	token.ExpiresAt = sqlitedb.FromMillis(expiresAt)
	if revokedAt.Valid {
		t := sqlitedb.FromMillis(revokedAt.Int64)
		token.RevokedAt = &t
	}
	return &token, nil
}
