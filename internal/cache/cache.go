package cache

import (
	"context"
	"time"
)

const (
	keyPrefixList      = "shopops:shopping_list:v1:"
	KeyPurchaseHistory = "shopops:purchasing_history:v1"
)

// ViewCache stores JSON-encodable read models. A miss is (false, nil).
type ViewCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ListKey caches a shopping list with its items. Prices are never cached.
func ListKey(listID string) string {
	return keyPrefixList + listID
}

type NoopViewCache struct{}

func (NoopViewCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopViewCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

func (NoopViewCache) Delete(_ context.Context, _ ...string) error {
	return nil
}
