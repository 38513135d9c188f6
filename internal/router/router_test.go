package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/credential"
	credentialrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/credential/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/dev"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/identity"
	identityrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/identity/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/linkstate"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/oauth"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/store/memtable"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

func newTestRouter(t *testing.T, logger *zap.SugaredLogger) http.Handler {
	t.Helper()
	creds := credential.NewCredentialService(
		credentialrepo.NewCredentialRepo(memtable.New(credentialrepo.Indexes()...), nil),
		credential.BcryptHasher{Cost: bcrypt.MinCost}, logger)
	identities := identity.NewIdentityService(identityrepo.NewIdentityRepo(memtable.New(identityrepo.Indexes()...), nil), logger)
	sessions := session.NewService("router-secret", 0, identities)
	broker := oauth.NewBroker(oauth.GoogleProviderConfig("cid", "secret"), linkstate.NewMemoryStore(0, nil), nil, logger)
	flow := oauth.NewFlow(broker, identities, sessions, logger)
	return RegisterRoutes(logger, Handlers{
		Credential: credential.NewHandler(creds, logger),
		OAuth:      oauth.NewHandler(flow, sessions, oauth.HandlerConfig{Local: true}, logger),
		Dev:        dev.NewHandler("test", time.Minute, 10, logger),
	})
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	h := newTestRouter(t, zap.NewNop().Sugar())

	rec := serve(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = serve(h, http.MethodPost, "/auth/register", `{"username":"alice","password":"pw1"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = serve(h, http.MethodPost, "/auth/login", `{"username":"alice","password":"pw1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, http.MethodGet, "/oauth/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "accounts.google.com")

	rec = serve(h, http.MethodGet, "/oauth/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(h, http.MethodGet, "/dev/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stage":"test"`)

	rec = serve(h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, http.MethodDelete, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := newTestRouter(t, zap.New(core).Sugar())

	rec := serve(h, http.MethodGet, "/health", "")
	generated := rec.Header().Get(RequestIDHeader)
	assert.True(t, utilities.IsKSUID(generated))

	supplied := utilities.NewKSUID()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, supplied)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, supplied, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "not a ksuid")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "not a ksuid", rec.Header().Get(RequestIDHeader))

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 3)
	assert.Equal(t, generated, entries[0].ContextMap()["request_id"])
	assert.Equal(t, supplied, entries[1].ContextMap()["request_id"])
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
}

func TestRecoverMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core).Sugar()
	h := RequestIDMiddleware(LoggingMiddleware(logger)(RecoverMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))))

	rec := serve(h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"INTERNAL","message":"an unexpected error occurred"}`, rec.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("handler panic").Len())
	requests := logs.FilterMessage("http request").All()
	require.Len(t, requests, 1)
	assert.Equal(t, zapcore.WarnLevel, requests[0].Level)
}
