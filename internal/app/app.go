// Package app builds the stores and services shared by the commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/codec"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/credential"
	credentialrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/credential/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/identity"
	identityrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/identity/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/linkstate"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/oauth"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/store/memtable"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/store/pgtable"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/database"
)

// Backends holds the storage the services run on.
type Backends struct {
	Credentials store.Table
	Identities  store.Table
	States      linkstate.Store

	db    *sqlx.DB
	redis *linkstate.RedisStore
}

// OpenBackends connects to the configured backend.
func OpenBackends(ctx context.Context, cfg config.Config) (*Backends, error) {
	if cfg.Backend == config.BackendMemory {
		return &Backends{
			Credentials: memtable.New(credentialrepo.Indexes()...),
			Identities:  memtable.New(identityrepo.Indexes()...),
			States:      linkstate.NewMemoryStore(cfg.Redis.TTL, nil),
		}, nil
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	credentials, err := pgtable.New(db, cfg.AuthTableName, credentialrepo.Indexes()...)
	if err != nil {
		db.Close()
		return nil, err
	}
	identities, err := pgtable.New(db, cfg.UserTableName, identityrepo.Indexes()...)
	if err != nil {
		db.Close()
		return nil, err
	}
	states, err := linkstate.Connect(ctx, cfg.Redis)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Backends{Credentials: credentials, Identities: identities, States: states, db: db, redis: states}, nil
}

// EnsureTables creates missing tables and indexes. In-memory tables need none.
func (b *Backends) EnsureTables(ctx context.Context) error {
	for _, t := range []store.Table{b.Credentials, b.Identities} {
		pg, ok := t.(*pgtable.Table)
		if !ok {
			continue
		}
		if err := pg.EnsureTable(ctx); err != nil {
			return fmt.Errorf("ensure table: %w", err)
		}
	}
	return nil
}

// Ping checks every remote backend.
func (b *Backends) Ping(ctx context.Context) error {
	var errs []error
	if b.db != nil {
		errs = append(errs, b.db.PingContext(ctx))
	}
	if b.redis != nil {
		errs = append(errs, b.redis.Health(ctx))
	}
	return errors.Join(errs...)
}

func (b *Backends) Close() error {
	var errs []error
	if b.redis != nil {
		errs = append(errs, b.redis.Close())
	}
	if b.db != nil {
		errs = append(errs, b.db.Close())
	}
	return errors.Join(errs...)
}

// Services are the domain services wired over a set of backends.
type Services struct {
	Credentials *credential.CredentialService
	Identities  *identity.IdentityService
	Sessions    *session.Service
	Broker      *oauth.Broker
	Flow        *oauth.Flow
}

func NewServices(cfg config.Config, b *Backends, logger *zap.SugaredLogger) *Services {
	c := codec.New(logger.Named("codec"))
	credentials := credential.NewCredentialService(credentialrepo.NewCredentialRepo(b.Credentials, c), nil, logger.Named("credential"))
	identities := identity.NewIdentityService(identityrepo.NewIdentityRepo(b.Identities, c), logger.Named("identity"))
	sessions := session.NewService(cfg.JWTSecret, cfg.SessionTTL, identities)
	broker := oauth.NewBroker(oauth.GoogleProviderConfig(cfg.Google.ClientID, cfg.Google.ClientSecret), b.States, nil, logger.Named("oauth"))
	return &Services{
		Credentials: credentials,
		Identities:  identities,
		Sessions:    sessions,
		Broker:      broker,
		Flow:        oauth.NewFlow(broker, identities, sessions, logger.Named("oauth")),
	}
}
