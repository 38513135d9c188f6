package oauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"golang.org/x/oauth2"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/identity/entity"
)

// fakeProvider serves the token and userinfo endpoints of an OAuth provider.
type fakeProvider struct {
	srv *httptest.Server

	mu          sync.Mutex
	codes       map[string]bool
	tokenForms  []url.Values
	profile     entity.Profile
	profileCode int
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{
		codes:       map[string]bool{"good-code": true},
		profile:     entity.Profile{ID: "1089", Email: "alice@example.com", VerifiedEmail: true, Name: "Alice"},
		profileCode: http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", p.token)
	mux.HandleFunc("/userinfo", p.userinfo)
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakeProvider) config() ProviderConfig {
	return ProviderConfig{
		Provider:     entity.ProviderGoogle,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.srv.URL + "/auth",
			TokenURL:  p.srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		UserInfoURL: p.srv.URL + "/userinfo",
		Scopes:      GoogleScopes,
	}
}

func (p *fakeProvider) tokenCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tokenForms)
}

func (p *fakeProvider) lastTokenForm() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenForms[len(p.tokenForms)-1]
}

func (p *fakeProvider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.tokenForms = append(p.tokenForms, r.PostForm)
	valid := p.codes[r.PostForm.Get("code")]
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if !valid {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"expires_in":    3599,
			"token_type":    "Bearer",
			"scope":         "openid email profile",
			"refresh_token": "refresh-1",
		})
	case "refresh_token":
		if r.PostForm.Get("refresh_token") != "refresh-1" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-2",
			"expires_in":   3599,
			"token_type":   "Bearer",
			"scope":        "openid email profile",
		})
	default:
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unsupported_grant_type"})
	}
}

func (p *fakeProvider) userinfo(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	profile, status := p.profile, p.profileCode
	p.mu.Unlock()

	auth := r.Header.Get("Authorization")
	if auth != "Bearer access-1" && auth != "Bearer access-2" {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if r.URL.Query().Get("alt") != "json" {
		http.Error(w, "alt=json required", http.StatusBadRequest)
		return
	}
	if status != http.StatusOK {
		http.Error(w, "unavailable", status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(profile)
}
