package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wrale/sitepub/internal/validation"
)

// Settings are the caller-controlled publish options of a project.
// Nil fields keep the stored value on update and take the defaults on first publish.
type Settings struct {
	Visibility *string `json:"visibility,omitempty"`
	WWW        *bool   `json:"www,omitempty"`
}

// Service registers projects and resolves them for their owners
type Service struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a project registry service
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, now: time.Now, logger: logger}
}

// Publish registers the project for owner, or updates its settings if owner already holds it
func (s *Service) Publish(ctx context.Context, owner, name string, settings Settings) (*Project, error) {
	name = validation.NormalizeProjectName(name)
	if err := validation.ValidateProjectName(name); err != nil {
		return nil, err
	}
	if settings.Visibility != nil {
		if err := validation.ValidateVisibility(*settings.Visibility); err != nil {
			return nil, err
		}
	}
	if owner == "" {
		return nil, fmt.Errorf("owner is required")
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	existing, err := s.store.GetProjectByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("getting project: %w", err)
	}

	if existing == nil {
		p := &Project{
			ID:         uuid.NewString(),
			Name:       name,
			Owner:      owner,
			Visibility: validation.VisibilityPublic,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		settings.apply(p)
		err := s.store.CreateProject(ctx, p)
		if errors.Is(err, ErrNameTaken) {
			// Lost a race with a concurrent first publish; retry as an update
			return s.Publish(ctx, owner, name, settings)
		}
		if err != nil {
			return nil, fmt.Errorf("creating project: %w", err)
		}
		s.logger.Info("project registered", zap.String("project", name), zap.String("owner", owner))
		return p, nil
	}

	if existing.Owner != owner {
		return nil, ErrNameTaken
	}

	settings.apply(existing)
	existing.UpdatedAt = now
	if err := s.store.UpdateProject(ctx, existing); err != nil {
		return nil, fmt.Errorf("updating project: %w", err)
	}
	s.logger.Info("project updated", zap.String("project", name), zap.String("owner", owner))
	return existing, nil
}

// apply copies the fields the caller set onto p
func (s Settings) apply(p *Project) {
	if s.Visibility != nil {
		p.Visibility = *s.Visibility
	}
	if s.WWW != nil {
		p.WWW = *s.WWW
	}
}

// Resolve returns the named project if owner holds it. Projects owned by others
// are reported as ErrNotFound.
func (s *Service) Resolve(ctx context.Context, owner, name string) (*Project, error) {
	p, err := s.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if p.Owner != owner {
		return nil, ErrNotFound
	}
	return p, nil
}

// Lookup returns the named project regardless of owner, for preview access checks
func (s *Service) Lookup(ctx context.Context, name string) (*Project, error) {
	name = validation.NormalizeProjectName(name)
	if validation.ValidateProjectName(name) != nil {
		return nil, ErrNotFound
	}
	p, err := s.store.GetProjectByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("getting project: %w", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// CheckHealth verifies the storage backend is healthy
func (s *Service) CheckHealth(ctx context.Context) error {
	return s.store.CheckHealth(ctx)
}
