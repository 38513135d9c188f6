package credential

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/credential/entity"
	credentialrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/credential/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/record"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/store"
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
	NeedsRehash(hash string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) cost() int {
	if b.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return b.Cost
}

func (b BcryptHasher) Hash(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), b.cost())
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// NeedsRehash reports whether hash was produced with a different cost.
func (b BcryptHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != b.cost()
}

var (
	ErrBadCredentials = errors.New("invalid credentials")
	ErrEmptyField     = errors.New("username and password are required")
)

// CredentialService orchestrates registration and password login.
type CredentialService struct {
	repo   *credentialrepo.CredentialRepo
	hasher PasswordHasher
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewCredentialService(r *credentialrepo.CredentialRepo, hasher PasswordHasher, logger *zap.SugaredLogger) *CredentialService {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &CredentialService{repo: r, hasher: hasher, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Register creates a credential. A taken username is a Conflict.
func (s *CredentialService) Register(ctx context.Context, username, password string, metadata json.RawMessage) (*entity.Credential, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.BadRequest(ErrEmptyField, ErrEmptyField.Error())
	}

	_, err := s.repo.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return nil, apperr.Conflict(store.ErrConflict, "username already taken")
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperr.Internal(err, "failed to look up username")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperr.Internal(err, "failed to hash password")
	}
	now := s.now()
	c := &entity.Credential{
		ID:           record.NewID(),
		Username:     username,
		PasswordHash: hash,
		Metadata:     metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Put(ctx, c); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Conflict(err, "username already taken")
		}
		return nil, apperr.Internal(err, "failed to create credential")
	}
	s.logger.Infow("credential registered", "id", c.ID, "username", c.Username)
	return c, nil
}

// Login verifies the password for username. Unknown usernames and wrong
// passwords fail the same way.
func (s *CredentialService) Login(ctx context.Context, username, password string) (*entity.Credential, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.BadRequest(ErrEmptyField, ErrEmptyField.Error())
	}
	c, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Unauthorized(ErrBadCredentials, "invalid credentials")
		} // avoid user enumeration
		return nil, apperr.Internal(err, "failed to look up username")
	}
	if c.PasswordHash == "" || !s.hasher.Verify(c.PasswordHash, password) {
		return nil, apperr.Unauthorized(ErrBadCredentials, "invalid credentials")
	}

	if s.hasher.NeedsRehash(c.PasswordHash) {
		s.rehash(ctx, c, password)
	}
	return c, nil
}

func (s *CredentialService) rehash(ctx context.Context, c *entity.Credential, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warnw("password rehash failed", "id", c.ID, "err", err)
		return
	}
	updated := *c
	updated.PasswordHash = hash
	updated.UpdatedAt = s.now()
	if err := s.repo.Put(ctx, &updated); err != nil {
		s.logger.Warnw("password rehash not stored", "id", c.ID, "err", err)
		return
	}
	*c = updated
}

// Get returns the credential with the given id.
func (s *CredentialService) Get(ctx context.Context, id string) (*entity.Credential, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound(err, "credential not found")
		}
		return nil, apperr.Internal(err, "failed to load credential")
	}
	return c, nil
}

// Truncate deletes every credential and returns how many were removed.
func (s *CredentialService) Truncate(ctx context.Context) (int, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return 0, apperr.Internal(err, "failed to scan credentials")
	}
	deleted := 0
	for _, c := range all {
		if err := s.repo.Delete(ctx, c.ID); err != nil {
			return deleted, apperr.Internal(err, "failed to delete credential "+c.ID)
		}
		deleted++
	}
	s.logger.Infow("credentials truncated", "count", deleted)
	return deleted, nil
}
