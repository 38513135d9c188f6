package identity

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/identity/entity"
	identityrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/identity/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/record"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/store"
)

// IdentityService resolves provider accounts to identities and maintains
// their provider links.
type IdentityService struct {
	repo   *identityrepo.IdentityRepo
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewIdentityService(r *identityrepo.IdentityRepo, logger *zap.SugaredLogger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &IdentityService{repo: r, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreateOrUpdate upserts the identity owning (provider, profile.ID). An
// existing identity only has that provider's link replaced; a new one starts
// at token version 0 and belongs to service. Losing a create race to a
// concurrent caller returns a Conflict error; retrying resolves to an update.
func (s *IdentityService) CreateOrUpdate(ctx context.Context, provider entity.Provider, service entity.Service, profile entity.Profile, tokens entity.TokenSet) (*entity.Identity, error) {
	if profile.ID == "" {
		return nil, apperr.BadRequest(nil, "provider profile has no id")
	}
	link := entity.ProviderLink{Profile: profile, Tokens: tokens}

	existing, err := s.repo.GetByProviderUser(ctx, provider, profile.ID)
	switch {
	case err == nil:
		updated, err := s.repo.SetProviderLink(ctx, existing.ID, provider, link, s.now())
		if err != nil {
			return nil, classify(err, "failed to update identity")
		}
		s.logger.Debugw("identity provider link updated", "id", updated.ID, "provider", provider)
		return updated, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, classify(err, "failed to look up identity")
	}

	now := s.now()
	i := &entity.Identity{
		ID:             record.NewID(),
		ProviderLinks:  map[entity.Provider]entity.ProviderLink{provider: link},
		TokenVersion:   0,
		IssuingService: service,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, i); err != nil {
		return nil, classify(err, "failed to create identity")
	}
	s.logger.Infow("identity created", "id", i.ID, "provider", provider, "service", service)
	return i, nil
}

// Get returns the identity with the given id.
func (s *IdentityService) Get(ctx context.Context, id string) (*entity.Identity, error) {
	i, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, classify(err, "identity not found")
	}
	return i, nil
}

// List returns every identity.
func (s *IdentityService) List(ctx context.Context) ([]entity.Identity, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, classify(err, "failed to list identities")
	}
	return out, nil
}

// ReplaceTokens swaps the stored provider token set, keeping the profile.
// When tokens carries no refresh token the stored one is kept.
func (s *IdentityService) ReplaceTokens(ctx context.Context, id string, provider entity.Provider, tokens entity.TokenSet) (*entity.Identity, error) {
	i, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	link, ok := i.Link(provider)
	if !ok {
		return nil, apperr.NotFound(nil, "identity has no link for "+string(provider))
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = link.Tokens.RefreshToken
	}
	link.Tokens = tokens
	updated, err := s.repo.SetProviderLink(ctx, id, provider, link, s.now())
	if err != nil {
		return nil, classify(err, "failed to update identity")
	}
	return updated, nil
}

// InvalidateSessions bumps the token version so every previously issued
// session token for the identity stops authenticating.
func (s *IdentityService) InvalidateSessions(ctx context.Context, id string) (*entity.Identity, error) {
	i, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.SetTokenVersion(ctx, id, i.TokenVersion+1)
	if err != nil {
		return nil, classify(err, "failed to invalidate sessions")
	}
	s.logger.Infow("identity sessions invalidated", "id", id, "token_version", updated.TokenVersion)
	return updated, nil
}

func classify(err error, message string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(err, message)
	case errors.Is(err, store.ErrConflict):
		return apperr.Conflict(err, "identity already exists for this provider account")
	default:
		return apperr.Internal(err, message)
	}
}
