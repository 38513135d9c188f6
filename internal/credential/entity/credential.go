package entity

import (
	"encoding/json"
	"time"
)

// Credential is a username/password login record.
type Credential struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"password_hash"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// View is the credential as returned to callers, without the password hash.
type View struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (c Credential) View() View {
	return View{ID: c.ID, Username: c.Username, Metadata: c.Metadata, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}
