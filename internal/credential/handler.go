package credential

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/apperr"
)

// Handler exposes HTTP endpoints for credential operations (register / login / lookup).
type Handler struct {
	svc    *CredentialService
	logger *zap.SugaredLogger
}

func NewHandler(svc *CredentialService, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, logger: logger}
}

// CredentialsRequest is the body of register and login.
type CredentialsRequest struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c.View())
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		h.writeError(w, apperr.BadRequest(err, "invalid payload"))
		return
	}
	c, err := h.svc.Register(r.Context(), req.Username, req.Password, req.Metadata)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, c.View())
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		h.writeError(w, apperr.BadRequest(err, "invalid payload"))
		return
	}
	c, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c.View())
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("credential request failed", "err", err)
	} else {
		h.logger.Debugw("credential request rejected", "status", status, "err", err)
	}
	h.writeJSON(w, status, apperr.BodyOf(err))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
