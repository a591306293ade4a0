package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wrale/sitepub/internal/sqlitedb"
)

// SQLiteStore implements the Store interface on the projects table
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

// CreateProject inserts a project
func (s *SQLiteStore) CreateProject(ctx context.Context, p *Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, owner, visibility, www, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Owner, p.Visibility, p.WWW,
		sqlitedb.ToMillis(p.CreatedAt), sqlitedb.ToMillis(p.UpdatedAt),
	)
	if err != nil {
		if sqlitedb.IsUniqueViolation(err) {
			return ErrNameTaken
		}
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

// UpdateProject replaces visibility, www and updated_at
func (s *SQLiteStore) UpdateProject(ctx context.Context, p *Project) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET visibility = ?, www = ?, updated_at = ? WHERE id = ?`,
		p.Visibility, p.WWW, sqlitedb.ToMillis(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading update result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProjectByName retrieves a project by name
func (s *SQLiteStore) GetProjectByName(ctx context.Context, name string) (*Project, error) {
	var (
		p                    Project
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, owner, visibility, www, created_at, updated_at FROM projects WHERE name = ?`, name,
	).Scan(&p.ID, &p.Name, &p.Owner, &p.Visibility, &p.WWW, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}
	p.CreatedAt = sqlitedb.FromMillis(createdAt)
	p.UpdatedAt = sqlitedb.FromMillis(updatedAt)
	return &p, nil
}
