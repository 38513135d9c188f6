package credential

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/credential/entity"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, _ := newService(t)
	h := NewHandler(svc, nil)
	r := chi.NewRouter()
	r.Get("/auth/{id}", h.Get)
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_RegisterLoginGet(t *testing.T) {
	r := newRouter(t)

	rec := do(t, r, http.MethodPost, "/auth/register", `{"username":"alice","password":"pw1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password_hash")
	var created entity.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "alice", created.Username)

	rec = do(t, r, http.MethodPost, "/auth/register", `{"username":"alice","password":"pw2"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"CONFLICT","message":"username already taken"}`, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/auth/login", `{"username":"alice","password":"pw1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var logged entity.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logged))
	assert.Equal(t, created.ID, logged.ID)

	rec = do(t, r, http.MethodPost, "/auth/login", `{"username":"alice","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, r, http.MethodGet, "/auth/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	rec = do(t, r, http.MethodGet, "/auth/NOSUCHID", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_BadPayload(t *testing.T) {
	r := newRouter(t)
	for _, path := range []string{"/auth/register", "/auth/login"} {
		rec := do(t, r, http.MethodPost, path, `{"username":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		rec = do(t, r, http.MethodPost, path, `{"username":"","password":""}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}
