package repo

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/codec"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/record"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/store"
)

// ProviderUserIndex maps (provider, provider user id) to at most one identity.
const ProviderUserIndex = "provider_user_idx"

const (
	attrProviderLinks = "provider_links"
	attrTokenVersion  = "token_version"
	attrUpdatedAt     = "updated_at"
)

// Indexes returns the secondary indexes of the identity table.
func Indexes() []store.Index {
	return []store.Index{{
		Name:   ProviderUserIndex,
		Unique: true,
		Keys:   providerUserKeys,
	}}
}

func providerUserKeys(item codec.Item) []string {
	links, _ := item[attrProviderLinks].(codec.AttrMap)
	keys := make([]string, 0, len(links))
	for provider, raw := range links {
		link, _ := raw.(codec.AttrMap)
		profile, _ := link["profile"].(codec.AttrMap)
		if id, ok := profile["id"].(codec.AttrString); ok && id != "" {
			keys = append(keys, ProviderUserKey(entity.Provider(provider), string(id)))
		}
	}
	sort.Strings(keys)
	return keys
}

// ProviderUserKey is the index key for a provider account.
func ProviderUserKey(provider entity.Provider, providerUserID string) string {
	return store.CompositeKey(string(provider), providerUserID)
}

// IdentityRepo reads and writes identities through a store.Table.
type IdentityRepo struct {
	table store.Table
	codec *codec.Codec
}

func NewIdentityRepo(table store.Table, c *codec.Codec) *IdentityRepo {
	if c == nil {
		c = codec.New(nil)
	}
	return &IdentityRepo{table: table, codec: c}
}

// Get loads an identity by id. Missing ids return store.ErrNotFound.
func (r *IdentityRepo) Get(ctx context.Context, id string) (*entity.Identity, error) {
	item, err := r.table.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.decode(item)
}

// GetByProviderUser returns the identity linked to the provider account, or
// store.ErrNotFound.
func (r *IdentityRepo) GetByProviderUser(ctx context.Context, provider entity.Provider, providerUserID string) (*entity.Identity, error) {
	items, err := r.table.Query(ctx, ProviderUserIndex, ProviderUserKey(provider, providerUserID))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, store.ErrNotFound
	}
	return r.decode(items[0])
}

// Create writes a new identity. A taken provider account returns store.ErrConflict.
func (r *IdentityRepo) Create(ctx context.Context, i *entity.Identity) error {
	item, err := record.ToItem(r.codec, i)
	if err != nil {
		return err
	}
	return r.table.Put(ctx, item)
}

// List returns every identity.
func (r *IdentityRepo) List(ctx context.Context) ([]entity.Identity, error) {
	items, err := r.table.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record.FromItems[entity.Identity](r.codec, items)
}

// SetProviderLink replaces provider_links.<provider> only. Links of other
// providers and the token version are left as stored.
func (r *IdentityRepo) SetProviderLink(ctx context.Context, id string, provider entity.Provider, link entity.ProviderLink, now time.Time) (*entity.Identity, error) {
	value, err := record.ToValue(link)
	if err != nil {
		return nil, &record.EncodeError{Cause: err}
	}
	// Link before timestamp: a failed link write leaves updated_at untouched.
	if _, err := r.table.UpdateAttribute(ctx, id, []string{attrProviderLinks, string(provider)}, r.codec.Encode(value)); err != nil {
		return nil, err
	}
	item, err := r.table.UpdateAttribute(ctx, id, []string{attrUpdatedAt}, codec.AttrString(now.Format(time.RFC3339Nano)))
	if err != nil {
		return nil, err
	}
	return r.decode(item)
}

// SetTokenVersion overwrites the token version.
func (r *IdentityRepo) SetTokenVersion(ctx context.Context, id string, version int64) (*entity.Identity, error) {
	item, err := r.table.UpdateAttribute(ctx, id, []string{attrTokenVersion}, codec.AttrNumber(strconv.FormatInt(version, 10)))
	if err != nil {
		return nil, err
	}
	return r.decode(item)
}

func (r *IdentityRepo) decode(item codec.Item) (*entity.Identity, error) {
	i, err := record.FromItem[entity.Identity](r.codec, item)
	if err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	return &i, nil
}
