// Package project registers published projects and resolves them for their owners
package project

import (
	"context"
	"errors"
	"time"
)

// Errors returned by the project registry
var (
	// ErrNotFound indicates the project does not exist or is not owned by the caller
	ErrNotFound = errors.New("project not found")

	// ErrNameTaken indicates the project name is registered to another owner
	ErrNameTaken = errors.New("project name already taken")
)

// Project is a published site owned by an authenticated subject
type Project struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Owner      string    `json:"owner"`
	Visibility string    `json:"visibility"`
	WWW        bool      `json:"www"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store defines the persistence interface for projects
type Store interface {
	// CreateProject inserts a project. It fails with ErrNameTaken if the name exists.
	CreateProject(ctx context.Context, p *Project) error

	// UpdateProject replaces the mutable settings of an existing project
	UpdateProject(ctx context.Context, p *Project) error

	// GetProjectByName returns the project registered under name, or nil
	GetProjectByName(ctx context.Context, name string) (*Project, error)

	// CheckHealth verifies the storage backend is reachable
	CheckHealth(ctx context.Context) error
}
