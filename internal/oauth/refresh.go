package oauth

import (
	"context"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/identity/entity"
)

// TokenStore lists identities and replaces their provider tokens.
type TokenStore interface {
	List(ctx context.Context) ([]entity.Identity, error)
	ReplaceTokens(ctx context.Context, id string, provider entity.Provider, tokens entity.TokenSet) (*entity.Identity, error)
}

// RefreshReport summarizes a refresh run.
type RefreshReport struct {
	Refreshed int
	Skipped   int
	Failed    int
}

// Refresher renews the stored provider tokens of every identity.
type Refresher struct {
	broker *Broker
	store  TokenStore
	logger *zap.SugaredLogger
}

func NewRefresher(broker *Broker, store TokenStore, logger *zap.SugaredLogger) *Refresher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Refresher{broker: broker, store: store, logger: logger}
}

// RefreshAll refreshes each identity linked to the broker's provider. A
// failure for one identity is logged and counted; only a failed listing or a
// cancelled context stops the run.
func (r *Refresher) RefreshAll(ctx context.Context) (RefreshReport, error) {
	var report RefreshReport
	identities, err := r.store.List(ctx)
	if err != nil {
		return report, err
	}
	provider := r.broker.Provider()
	for _, i := range identities {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		link, ok := i.Link(provider)
		if !ok || link.Tokens.RefreshToken == "" {
			report.Skipped++
			continue
		}
		tokens, err := r.broker.RefreshTokens(ctx, link.Tokens.RefreshToken)
		if err != nil {
			report.Failed++
			r.logger.Warnw("token refresh failed", "identity", i.ID, "provider", provider, "err", err)
			continue
		}
		if _, err := r.store.ReplaceTokens(ctx, i.ID, provider, tokens); err != nil {
			report.Failed++
			r.logger.Warnw("storing refreshed tokens failed", "identity", i.ID, "provider", provider, "err", err)
			continue
		}
		report.Refreshed++
	}
	r.logger.Infow("token refresh finished", "refreshed", report.Refreshed, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}
