package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation"
)

const (
	PurposeObligations = "obligations"
	PurposeOccurrences = "occurrences"
)

// CacheRepo is the local durable tier. Each owner's obligations and
// occurrences are stored as one JSON list apiece under
// "<prefix><ownerID>:<purpose>" and every write replaces the whole list.
// There is no locking: two writers for the same owner can overwrite each
// other.
type CacheRepo struct {
	kv     KV
	prefix string
}

// NewCacheRepo creates the local tier. Prefix may be empty.
func NewCacheRepo(kv KV, prefix string) *CacheRepo {
	if prefix == "" {
		prefix = "scheduler:"
	}
	return &CacheRepo{kv: kv, prefix: prefix}
}

// Key returns the storage key for an owner's list of the given purpose.
func (c *CacheRepo) Key(ownerID, purpose string) string {
	return c.prefix + ownerID + ":" + purpose
}

func loadList[T any](ctx context.Context, kv KV, key string) ([]T, error) {
	b, err := kv.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	out := []T{}
	if len(b) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

func saveList[T any](ctx context.Context, kv KV, key string, items []T) error {
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Save(ctx, key, b); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (c *CacheRepo) obligations(ctx context.Context, ownerID string) ([]obligation.Obligation, error) {
	return loadList[obligation.Obligation](ctx, c.kv, c.Key(ownerID, PurposeObligations))
}

func (c *CacheRepo) saveObligations(ctx context.Context, ownerID string, list []obligation.Obligation) error {
	return saveList(ctx, c.kv, c.Key(ownerID, PurposeObligations), list)
}

func indexOf(list []obligation.Obligation, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *CacheRepo) List(ctx context.Context, ownerID string) ([]obligation.Obligation, error) {
	return c.obligations(ctx, ownerID)
}

func (c *CacheRepo) Get(ctx context.Context, ownerID, id string) (*obligation.Obligation, error) {
	list, err := c.obligations(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	i := indexOf(list, id)
	if i < 0 {
		return nil, obligation.ErrNotFound
	}
	return &list[i], nil
}

func (c *CacheRepo) Create(ctx context.Context, ob obligation.Obligation) error {
	list, err := c.obligations(ctx, ob.OwnerID)
	if err != nil {
		return err
	}
	if indexOf(list, ob.ID) >= 0 {
		return fmt.Errorf("obligation %s already exists", ob.ID)
	}
	return c.saveObligations(ctx, ob.OwnerID, append(list, ob))
}

func (c *CacheRepo) Mutate(ctx context.Context, ownerID, id string, fn MutateFunc) (*obligation.Obligation, error) {
	list, err := c.obligations(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	i := indexOf(list, id)
	if i < 0 {
		return nil, obligation.ErrNotFound
	}
	next, err := fn(list[i])
	if err != nil {
		return nil, err
	}
	list[i] = next
	if err := c.saveObligations(ctx, ownerID, list); err != nil {
		return nil, err
	}
	return &next, nil
}

func (c *CacheRepo) Delete(ctx context.Context, ownerID, id string) error {
	list, err := c.obligations(ctx, ownerID)
	if err != nil {
		return err
	}
	i := indexOf(list, id)
	if i < 0 {
		return obligation.ErrNotFound
	}
	list = append(list[:i], list[i+1:]...)
	return c.saveObligations(ctx, ownerID, list)
}

// Execute appends the occurrence before storing the advanced obligation.
func (c *CacheRepo) Execute(ctx context.Context, ownerID, id string, fn ExecuteFunc) (*obligation.Obligation, *obligation.Occurrence, error) {
	list, err := c.obligations(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	i := indexOf(list, id)
	if i < 0 {
		return nil, nil, obligation.ErrNotFound
	}
	next, occ, err := fn(list[i])
	if err != nil {
		return nil, nil, err
	}
	occs, err := c.ListOccurrences(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	if err := saveList(ctx, c.kv, c.Key(ownerID, PurposeOccurrences), append(occs, occ)); err != nil {
		return nil, nil, err
	}
	list[i] = next
	if err := c.saveObligations(ctx, ownerID, list); err != nil {
		return nil, nil, err
	}
	return &next, &occ, nil
}

func (c *CacheRepo) ListOccurrences(ctx context.Context, ownerID string) ([]obligation.Occurrence, error) {
	return loadList[obligation.Occurrence](ctx, c.kv, c.Key(ownerID, PurposeOccurrences))
}
