package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/identity/entity"
)

// ServiceHeader names the calling service on link requests.
const ServiceHeader = "X-JUDETHING-SERVICE"

const (
	callbackPath     = "/oauth/google-redirect"
	localRedirectURI = "http://localhost:3000" + callbackPath
)

// Authenticator resolves a bearer header to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (*entity.Identity, error)
}

// HandlerConfig controls redirect and service resolution.
type HandlerConfig struct {
	// Local selects the localhost redirect and the LOCALHOST service.
	Local bool
	// PublicHost overrides the request host in redirect URIs.
	PublicHost string
}

// Handler exposes the OAuth endpoints.
type Handler struct {
	flow     *Flow
	sessions Authenticator
	cfg      HandlerConfig
	logger   *zap.SugaredLogger
}

func NewHandler(flow *Flow, sessions Authenticator, cfg HandlerConfig, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{flow: flow, sessions: sessions, cfg: cfg, logger: logger}
}

// LinkResponse carries one authorization link per provider.
type LinkResponse struct {
	Google string `json:"google"`
}

// TokenResponse carries the issued session token.
type TokenResponse struct {
	Token string `json:"token"`
}

// IdentityView is the identity as shown to its owner. Provider tokens are omitted.
type IdentityView struct {
	ID             string                             `json:"id"`
	Profiles       map[entity.Provider]entity.Profile `json:"profiles"`
	IssuingService entity.Service                     `json:"issuing_service"`
	CreatedAt      time.Time                          `json:"created_at"`
	UpdatedAt      time.Time                          `json:"updated_at"`
}

func NewIdentityView(i *entity.Identity) IdentityView {
	profiles := make(map[entity.Provider]entity.Profile, len(i.ProviderLinks))
	for p, l := range i.ProviderLinks {
		profiles[p] = l.Profile
	}
	return IdentityView{
		ID:             i.ID,
		Profiles:       profiles,
		IssuingService: i.IssuingService,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

// Links handles GET /oauth/.
func (h *Handler) Links(w http.ResponseWriter, r *http.Request) {
	service, err := h.resolveService(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	link, err := h.flow.Start(r.Context(), h.RedirectURI(r), service)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, LinkResponse{Google: link})
}

// GoogleRedirect handles the provider callback.
func (h *Handler) GoogleRedirect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		h.logger.Debugw("provider denied authorization", "error", providerErr)
		h.writeError(w, apperr.Unauthorized(errors.New("provider error: "+providerErr), callbackFailed))
		return
	}
	state := q.Get("state")
	if state == "" {
		h.logger.Debugw("callback without state")
		h.writeError(w, apperr.Unauthorized(errors.New("missing state"), callbackFailed))
		return
	}
	code := q.Get("code")
	if code == "" {
		h.writeError(w, apperr.BadRequest(nil, "missing code"))
		return
	}
	res, err := h.flow.Complete(r.Context(), code, state)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, TokenResponse{Token: res.Token})
}

// Me returns the identity behind the bearer token.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	i, err := h.sessions.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, NewIdentityView(i))
}

// RedirectURI is the callback URI registered with the provider for r.
func (h *Handler) RedirectURI(r *http.Request) string {
	if h.cfg.Local {
		return localRedirectURI
	}
	host := h.cfg.PublicHost
	if host == "" {
		host = r.Host
	}
	return "https://" + strings.TrimSuffix(host, "/") + callbackPath
}

func (h *Handler) resolveService(r *http.Request) (entity.Service, error) {
	if h.cfg.Local {
		return entity.ServiceLocalhost, nil
	}
	name := r.Header.Get(ServiceHeader)
	if name == "" {
		return "", apperr.BadRequest(nil, "missing "+ServiceHeader+" header")
	}
	service, err := entity.ParseService(name)
	if err != nil {
		return "", apperr.BadRequest(err, "unknown service")
	}
	return service, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("oauth request failed", "err", err)
	} else {
		h.logger.Debugw("oauth request rejected", "status", status, "err", err)
	}
	h.writeJSON(w, status, apperr.BodyOf(err))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
