package oauth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/identity/entity"
)

// Stage is a step of the authorization code flow. A flow only moves forward;
// a failure at any stage ends it.
type Stage int

const (
	StageLinkRequested Stage = iota
	StageRedirectIssued
	StageCallbackReceived
	StageTokenExchanged
	StageProfileFetched
	StageIdentityResolved
	StageSessionIssued
)

func (s Stage) String() string {
	switch s {
	case StageLinkRequested:
		return "link_requested"
	case StageRedirectIssued:
		return "redirect_issued"
	case StageCallbackReceived:
		return "callback_received"
	case StageTokenExchanged:
		return "token_exchanged"
	case StageProfileFetched:
		return "profile_fetched"
	case StageIdentityResolved:
		return "identity_resolved"
	case StageSessionIssued:
		return "session_issued"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// StageError records the last stage a failed flow reached.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return "oauth flow failed after " + e.Stage.String() + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// IdentityResolver upserts the identity for a provider account.
type IdentityResolver interface {
	CreateOrUpdate(ctx context.Context, provider entity.Provider, service entity.Service, profile entity.Profile, tokens entity.TokenSet) (*entity.Identity, error)
}

// SessionIssuer signs session tokens.
type SessionIssuer interface {
	Sign(userID string, tokenVersion int64, service entity.Service) (string, error)
}

// Result is the outcome of a completed flow.
type Result struct {
	Identity *entity.Identity
	Token    string
}

// Flow drives the broker, identity resolution and session issuance in order.
type Flow struct {
	broker     *Broker
	identities IdentityResolver
	sessions   SessionIssuer
	logger     *zap.SugaredLogger
}

func NewFlow(broker *Broker, identities IdentityResolver, sessions SessionIssuer, logger *zap.SugaredLogger) *Flow {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Flow{broker: broker, identities: identities, sessions: sessions, logger: logger}
}

// Start issues the authorization link for a new flow.
func (f *Flow) Start(ctx context.Context, redirectURI string, service entity.Service) (string, error) {
	link, ls, err := f.broker.BuildAuthorizationLink(ctx, redirectURI, service)
	if err != nil {
		return "", f.fail(StageLinkRequested, err)
	}
	f.logger.Debugw("oauth link issued", "state", ls.ID, "provider", ls.Provider, "service", service)
	return link, nil
}

// Complete runs a callback through to SessionIssued. No identity is written
// unless the state, the code exchange and the profile fetch all succeed.
func (f *Flow) Complete(ctx context.Context, code, state string) (*Result, error) {
	stage := StageCallbackReceived

	ls, tokens, err := f.broker.HandleCallback(ctx, code, state)
	if err != nil {
		return nil, f.fail(stage, err)
	}
	stage = StageTokenExchanged

	profile, err := f.broker.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		return nil, f.fail(stage, err)
	}
	stage = StageProfileFetched

	service := entity.Service(ls.Service)
	i, err := f.identities.CreateOrUpdate(ctx, f.broker.Provider(), service, profile, tokens)
	if err != nil {
		return nil, f.fail(stage, err)
	}
	stage = StageIdentityResolved

	token, err := f.sessions.Sign(i.ID, i.TokenVersion, i.IssuingService)
	if err != nil {
		return nil, f.fail(stage, err)
	}
	f.logger.Infow("oauth flow completed", "identity", i.ID, "provider", f.broker.Provider(), "stage", StageSessionIssued)
	return &Result{Identity: i, Token: token}, nil
}

func (f *Flow) fail(stage Stage, err error) error {
	f.logger.Warnw("oauth flow failed", "stage", stage, "err", err)
	return &StageError{Stage: stage, Err: err}
}
