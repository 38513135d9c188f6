// Package linkstate stores the short-lived, single-use state tokens that tie
// an outbound OAuth redirect to its callback.
package linkstate

import (
	"context"
	"errors"
	"time"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/record"
)

// DefaultTTL is how long an unconsumed link state stays valid.
const DefaultTTL = 10 * time.Minute

// ErrExpiredOrNotFound is returned by Consume for ids that were never issued,
// were already consumed, or outlived the TTL.
var ErrExpiredOrNotFound = errors.New("linkstate: expired or not found")

// LinkState is the server-side half of the OAuth state parameter. ID is the
// value sent to the provider as state.
type LinkState struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	RedirectURI string    `json:"redirect_uri"`
	Service     string    `json:"service"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// New returns a LinkState with a fresh id.
func New(provider, redirectURI, service string, now time.Time) LinkState {
	return LinkState{
		ID:          record.NewID(),
		Provider:    provider,
		RedirectURI: redirectURI,
		Service:     service,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Store persists link states. Consume returns a state at most once; Delete
// is idempotent.
type Store interface {
	Create(ctx context.Context, ls LinkState) (LinkState, error)
	Consume(ctx context.Context, id string) (LinkState, error)
	Delete(ctx context.Context, id string) error
}
