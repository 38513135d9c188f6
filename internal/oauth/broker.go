// Package oauth runs the authorization code flow against the reference
// provider: state issuance, code exchange, profile fetch and token refresh.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/linkstate"
)

const (
	GoogleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v1/userinfo"
)

// GoogleScopes is the scope set requested on every authorization link.
var GoogleScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// maxProfileBytes caps the userinfo response body.
const maxProfileBytes = 1 << 20

// ProviderConfig describes the provider endpoints and client credentials.
type ProviderConfig struct {
	Provider     entity.Provider
	ClientID     string
	ClientSecret string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
	Scopes       []string
}

// GoogleProviderConfig returns the Google endpoints with the given credentials.
func GoogleProviderConfig(clientID, clientSecret string) ProviderConfig {
	endpoint := google.Endpoint
	endpoint.AuthURL = GoogleAuthURL
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	return ProviderConfig{
		Provider:     entity.ProviderGoogle,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoint,
		UserInfoURL:  GoogleUserInfoURL,
		Scopes:       GoogleScopes,
	}
}

// Broker talks to the provider and owns the link states of in-flight flows.
type Broker struct {
	cfg    ProviderConfig
	states linkstate.Store
	client *http.Client
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewBroker returns a Broker. A nil client means http.DefaultClient.
func NewBroker(cfg ProviderConfig, states linkstate.Store, client *http.Client, logger *zap.SugaredLogger) *Broker {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Broker{cfg: cfg, states: states, client: client, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Provider reports which provider the broker talks to.
func (b *Broker) Provider() entity.Provider { return b.cfg.Provider }

func (b *Broker) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     b.cfg.ClientID,
		ClientSecret: b.cfg.ClientSecret,
		Endpoint:     b.cfg.Endpoint,
		RedirectURL:  redirectURI,
		Scopes:       b.cfg.Scopes,
	}
}

func (b *Broker) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, b.client)
}

// callbackFailed is the one message every rejected callback step reports.
// The failing step stays in the wrapped cause and the logs.
const callbackFailed = "authorization failed"

// BuildAuthorizationLink persists a new link state for redirectURI and
// returns the provider URL carrying its id as state.
func (b *Broker) BuildAuthorizationLink(ctx context.Context, redirectURI string, service entity.Service) (string, linkstate.LinkState, error) {
	ls, err := b.states.Create(ctx, linkstate.New(string(b.cfg.Provider), redirectURI, string(service), b.now()))
	if err != nil {
		return "", linkstate.LinkState{}, apperr.Internal(err, "failed to store link state")
	}
	link := b.oauthConfig(redirectURI).AuthCodeURL(ls.ID,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
	return link, ls, nil
}

// HandleCallback consumes the link state named by state and exchanges code
// for provider tokens. Unknown, consumed or expired states are Unauthorized
// and no provider call is made for them.
func (b *Broker) HandleCallback(ctx context.Context, code, state string) (linkstate.LinkState, entity.TokenSet, error) {
	ls, err := b.states.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, linkstate.ErrExpiredOrNotFound) {
			return linkstate.LinkState{}, entity.TokenSet{}, apperr.Unauthorized(err, callbackFailed)
		}
		return linkstate.LinkState{}, entity.TokenSet{}, apperr.Internal(err, "failed to read link state")
	}

	tok, err := b.oauthConfig(ls.RedirectURI).Exchange(b.clientContext(ctx), code)
	if err != nil {
		return ls, entity.TokenSet{}, tokenError(err, callbackFailed)
	}

	if err := b.states.Delete(ctx, ls.ID); err != nil {
		b.logger.Warnw("failed to delete consumed link state", "id", ls.ID, "err", err)
	}
	return ls, tokenSet(tok), nil
}

// FetchProfile loads the provider profile for accessToken. Any failure to get
// a well-formed profile is Unauthorized.
func (b *Broker) FetchProfile(ctx context.Context, accessToken string) (entity.Profile, error) {
	u, err := url.Parse(b.cfg.UserInfoURL)
	if err != nil {
		return entity.Profile{}, apperr.Internal(err, "invalid userinfo url")
	}
	q := u.Query()
	q.Set("alt", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return entity.Profile{}, apperr.Internal(err, "failed to build userinfo request")
	}
	ctx = b.clientContext(ctx)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))
	resp, err := client.Do(req)
	if err != nil {
		return entity.Profile{}, apperr.Unauthorized(err, callbackFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProfileBytes))
		return entity.Profile{}, apperr.Unauthorized(fmt.Errorf("userinfo returned %d", resp.StatusCode), callbackFailed)
	}
	var profile entity.Profile
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(&profile); err != nil {
		return entity.Profile{}, apperr.Unauthorized(err, callbackFailed)
	}
	if profile.ID == "" {
		return entity.Profile{}, apperr.Unauthorized(errors.New("userinfo has no id"), callbackFailed)
	}
	return profile, nil
}

// RefreshTokens runs a refresh token grant. If the provider omits a new
// refresh token the one passed in is kept.
func (b *Broker) RefreshTokens(ctx context.Context, refreshToken string) (entity.TokenSet, error) {
	if refreshToken == "" {
		return entity.TokenSet{}, apperr.BadRequest(nil, "no refresh token")
	}
	tok, err := b.oauthConfig("").TokenSource(b.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return entity.TokenSet{}, tokenError(err, "token refresh failed")
	}
	set := tokenSet(tok)
	if set.RefreshToken == "" {
		set.RefreshToken = refreshToken
	}
	return set, nil
}

func tokenSet(tok *oauth2.Token) entity.TokenSet {
	set := entity.TokenSet{
		AccessToken:  tok.AccessToken,
		ExpiresIn:    tok.ExpiresIn,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if set.ExpiresIn == 0 && !tok.Expiry.IsZero() {
		set.ExpiresIn = int64(time.Until(tok.Expiry).Round(time.Second) / time.Second)
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		set.Scope = scope
	}
	return set
}

// tokenError maps token endpoint rejections to Unauthorized and transport
// failures to Internal.
func tokenError(err error, message string) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return apperr.Unauthorized(err, message)
	}
	return apperr.Internal(err, message)
}
