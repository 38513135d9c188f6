package credential

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/apperr"
	credentialrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/credential/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/store/memtable"
)

func newService(t *testing.T) (*CredentialService, *memtable.Table) {
	t.Helper()
	table := memtable.New(credentialrepo.Indexes()...)
	repo := credentialrepo.NewCredentialRepo(table, nil)
	return NewCredentialService(repo, BcryptHasher{Cost: bcrypt.MinCost}, nil), table
}

func TestRegisterLoginScenario(t *testing.T) {
	ctx := context.Background()
	svc, table := newService(t)

	created, err := svc.Register(ctx, "alice", "pw1", nil)
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z]{20}$`, created.ID)
	assert.NotEqual(t, "pw1", created.PasswordHash)

	_, err = svc.Register(ctx, "alice", "pw2", nil)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
	assert.Equal(t, 1, table.Len())

	logged, err := svc.Login(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, logged.ID)
}

func TestLogin_Rejects(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.Register(ctx, "alice", "pw1", nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		kind     apperr.Kind
	}{
		{"wrong password", "alice", "pw2", apperr.KindUnauthorized},
		{"unknown user", "bob", "pw1", apperr.KindUnauthorized},
		{"empty password", "alice", "", apperr.KindBadRequest},
		{"empty username", "  ", "pw1", apperr.KindBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.username, tt.password)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestRegister_Metadata(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	created, err := svc.Register(ctx, "carol", "pw", json.RawMessage(`{"plan":"pro","seats":3}`))
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"plan":"pro","seats":3}`, string(got.Metadata))
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
}

func TestLogin_RehashesOnCostChange(t *testing.T) {
	ctx := context.Background()
	table := memtable.New(credentialrepo.Indexes()...)
	repo := credentialrepo.NewCredentialRepo(table, nil)

	old := NewCredentialService(repo, BcryptHasher{Cost: bcrypt.MinCost}, nil)
	created, err := old.Register(ctx, "dave", "pw", nil)
	require.NoError(t, err)

	current := NewCredentialService(repo, BcryptHasher{Cost: bcrypt.MinCost + 1}, nil)
	_, err = current.Login(ctx, "dave", "pw")
	require.NoError(t, err)

	stored, err := current.Get(ctx, created.ID)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(stored.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)

	_, err = current.Login(ctx, "dave", "pw")
	require.NoError(t, err)
}

func TestGetAndTruncate(t *testing.T) {
	ctx := context.Background()
	svc, table := newService(t)

	_, err := svc.Get(ctx, "MISSING")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	for _, name := range []string{"a", "b", "c"} {
		_, err := svc.Register(ctx, name, "pw", nil)
		require.NoError(t, err)
	}
	n, err := svc.Truncate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, table.Len())

	_, err = svc.Register(ctx, "a", "pw", nil)
	require.NoError(t, err)
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("secret")
	require.NoError(t, err)
	assert.True(t, h.Verify(hash, "secret"))
	assert.False(t, h.Verify(hash, "Secret"))
	assert.False(t, h.NeedsRehash(hash))
	assert.True(t, h.NeedsRehash("not-a-hash"))
	assert.Equal(t, bcrypt.DefaultCost, BcryptHasher{}.cost())
}
