package repo

import (
	"context"
	"fmt"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/codec"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/credential/entity"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/record"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/store"
)

// UsernameIndex keeps usernames unique.
const UsernameIndex = "username_idx"

// Indexes returns the secondary indexes of the credential table.
func Indexes() []store.Index {
	return []store.Index{store.AttributeIndex(UsernameIndex, "username", true)}
}

// CredentialRepo provides data access for credentials through a store.Table.
type CredentialRepo struct {
	table store.Table
	codec *codec.Codec
}

func NewCredentialRepo(table store.Table, c *codec.Codec) *CredentialRepo {
	if c == nil {
		c = codec.New(nil)
	}
	return &CredentialRepo{table: table, codec: c}
}

// Put writes c. A username owned by another credential returns store.ErrConflict.
func (r *CredentialRepo) Put(ctx context.Context, c *entity.Credential) error {
	item, err := record.ToItem(r.codec, c)
	if err != nil {
		return err
	}
	return r.table.Put(ctx, item)
}

// Get loads a credential by id or returns store.ErrNotFound.
func (r *CredentialRepo) Get(ctx context.Context, id string) (*entity.Credential, error) {
	item, err := r.table.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.decode(item)
}

// GetByUsername looks a credential up through the username index.
func (r *CredentialRepo) GetByUsername(ctx context.Context, username string) (*entity.Credential, error) {
	items, err := r.table.Query(ctx, UsernameIndex, username)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, store.ErrNotFound
	}
	return r.decode(items[0])
}

// List returns every credential.
func (r *CredentialRepo) List(ctx context.Context) ([]entity.Credential, error) {
	items, err := r.table.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record.FromItems[entity.Credential](r.codec, items)
}

func (r *CredentialRepo) Delete(ctx context.Context, id string) error {
	return r.table.Delete(ctx, id)
}

func (r *CredentialRepo) decode(item codec.Item) (*entity.Credential, error) {
	c, err := record.FromItem[entity.Credential](r.codec, item)
	if err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	return &c, nil
}
