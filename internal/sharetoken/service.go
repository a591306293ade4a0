package sharetoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wrale/sitepub/internal/expiry"
	"github.com/wrale/sitepub/internal/validation"
)

// maxCreateAttempts bounds retries when a generated id collides
const maxCreateAttempts = 3

// Service manages the share token lifecycle for projects
type Service struct {
	store          Store
	previewBaseURL string
	now            func() time.Time
	newID          func() string
	logger         *zap.Logger
}

// Option configures the service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a share token service that builds share URLs under previewBaseURL
func NewService(store Store, previewBaseURL string, opts ...Option) *Service {
	s := &Service{
		store:          store,
		previewBaseURL: previewBaseURL,
		now:            time.Now,
		newID:          uuid.NewString,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create issues a new share token for the project. The returned result is the only
// place the secret is ever exposed.
func (s *Service) Create(ctx context.Context, scope Scope, name, duration string) (*CreateResult, error) {
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}
	if err := validation.ValidateDuration(duration); err != nil {
		return nil, err
	}

	secret, hash, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generating secret: %w", err)
	}

	shareURL, err := buildShareURL(s.previewBaseURL, scope, secret)
	if err != nil {
		return nil, fmt.Errorf("building share URL: %w", err)
	}

	createdAt := s.now().UTC().Truncate(time.Millisecond)
	expiresAt, err := expiry.Compute(createdAt, expiry.Duration(duration))
	if err != nil {
		return nil, fmt.Errorf("computing expiry: %w", err)
	}

	token := &ShareToken{
		ProjectID:  scope.ProjectID,
		Name:       name,
		Duration:   expiry.Duration(duration),
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
		SecretHash: hash,
	}

	for attempt := 1; ; attempt++ {
		token.ID = s.newID()
		err = s.store.SaveShareToken(ctx, token)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicateID) || attempt >= maxCreateAttempts {
			return nil, fmt.Errorf("saving share token: %w", err)
		}
	}

	s.logger.Info("share token created",
		zap.String("project_id", token.ProjectID),
		zap.String("share_token_id", token.ID),
		zap.String("duration", string(token.Duration)),
		zap.Time("expires_at", token.ExpiresAt),
	)

	return &CreateResult{
		ShareToken: token.View(createdAt),
		Token:      secret,
		ShareURL:   shareURL,
	}, nil
}

// List returns every share token of the project with state evaluated now
func (s *Service) List(ctx context.Context, projectID string) (*ListResult, error) {
	tokens, err := s.store.ListShareTokens(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing share tokens: %w", err)
	}

	now := s.now()
	views := make([]View, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, t.View(now))
	}
	return &ListResult{ShareTokens: views}, nil
}

// Revoke marks the token revoked. Revoking an already revoked token returns the
// stored record unchanged.
func (s *Service) Revoke(ctx context.Context, projectID, id string) (*RevokeResult, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	token, changed, err := s.store.RevokeShareToken(ctx, projectID, id, s.now().UTC().Truncate(time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("revoking share token: %w", err)
	}
	if token == nil {
		return nil, ErrNotFound
	}

	if changed {
		s.logger.Info("share token revoked",
			zap.String("project_id", projectID),
			zap.String("share_token_id", id),
		)
	} else {
		s.logger.Debug("share token already revoked",
			zap.String("project_id", projectID),
			zap.String("share_token_id", id),
		)
	}

	return &RevokeResult{ShareToken: token.View(s.now())}, nil
}

// Authorize resolves a secret presented for preview access of the project.
// It returns ErrNotFound for unknown secrets or secrets of other projects, and
// ErrRevoked or ErrExpired for tokens that no longer grant access.
func (s *Service) Authorize(ctx context.Context, projectID, secret string) (*ShareToken, error) {
	if secret == "" {
		return nil, ErrNotFound
	}

	hash := HashSecret(secret)
	token, err := s.store.GetShareTokenBySecretHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("looking up share token: %w", err)
	}
	if token == nil || token.ProjectID != projectID || !matchesHash(secret, token.SecretHash) {
		return nil, ErrNotFound
	}

	switch {
	case token.IsRevoked():
		return nil, ErrRevoked
	case token.IsExpired(s.now()):
		return nil, ErrExpired
	}
	return token, nil
}

// CheckHealth verifies the storage backend is healthy
func (s *Service) CheckHealth(ctx context.Context) error {
	return s.store.CheckHealth(ctx)
}
