package entity

import (
	"fmt"
	"strings"
	"time"
)

// Provider names an external identity provider.
type Provider string

const ProviderGoogle Provider = "GOOGLE"

// ParseProvider accepts a provider name in any case.
func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToUpper(strings.TrimSpace(s))) {
	case ProviderGoogle:
		return ProviderGoogle, nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// Service is the calling service a session was issued for.
type Service string

const ServiceLocalhost Service = "LOCALHOST"

// ParseService accepts a service name in any case.
func ParseService(s string) (Service, error) {
	switch Service(strings.ToUpper(strings.TrimSpace(s))) {
	case ServiceLocalhost:
		return ServiceLocalhost, nil
	}
	return "", fmt.Errorf("unknown service %q", s)
}

// Profile is the provider's view of the user. ID is the provider's opaque user id.
type Profile struct {
	ID            string `json:"id"`
	Email         string `json:"email,omitempty"`
	VerifiedEmail bool   `json:"verified_email,omitempty"`
	Name          string `json:"name,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// TokenSet is the provider's token response, stored as is.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ProviderLink ties an identity to one provider account.
type ProviderLink struct {
	Profile Profile  `json:"profile"`
	Tokens  TokenSet `json:"tokens"`
}

// Identity is the durable user record.
type Identity struct {
	ID             string                    `json:"id"`
	ProviderLinks  map[Provider]ProviderLink `json:"provider_links"`
	TokenVersion   int64                     `json:"token_version"`
	IssuingService Service                   `json:"issuing_service"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

// Link returns the link for provider, if any.
func (i Identity) Link(provider Provider) (ProviderLink, bool) {
	l, ok := i.ProviderLinks[provider]
	return l, ok
}
