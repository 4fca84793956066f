package purchasing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shopops/backend/internal/domain"
	"shopops/backend/internal/store"
	"shopops/backend/internal/xid"
)

const listDateLayout = "1/2/2006"

type MergeStore interface {
	ListMergeSourceItems(ctx context.Context, requestIDs []string) ([]domain.MergeSourceItem, error)
	CreateMergedShoppingList(ctx context.Context, list domain.ShoppingList, requestIDs []string) (*domain.ShoppingList, error)
}

type Aggregator struct {
	store    MergeStore
	relay    ChangePublisher
	location *time.Location
	now      func() time.Time
}

func NewAggregator(mergeStore MergeStore, relay ChangePublisher, location *time.Location) *Aggregator {
	if location == nil {
		location = time.UTC
	}
	return &Aggregator{
		store:    mergeStore,
		relay:    publisherOrNoop(relay),
		location: location,
		now:      time.Now,
	}
}

// Merge consolidates the given pending requests of one shop into a new
// shopping list and flags the requests merged. The list, its items and the
// merge flags are written in a single store call, so a failure leaves every
// request pending and no list behind.
func (a *Aggregator) Merge(ctx context.Context, shopName string, requestIDs []string) (*domain.ShoppingList, error) {
	shopName = strings.TrimSpace(shopName)
	if shopName == "" {
		return nil, &ValidationError{Field: "shop_name", Reason: "required"}
	}
	ids := normalizeIDs(requestIDs)
	if len(ids) == 0 {
		return nil, &ValidationError{Field: "request_ids", Reason: "at least one request is required"}
	}

	sources, err := a.store.ListMergeSourceItems(ctx, ids)
	if err != nil {
		return nil, &AggregationError{Stage: StageFetchItems, Err: err}
	}
	if err := checkSources(shopName, ids, sources); err != nil {
		return nil, err
	}

	now := a.now()
	list := domain.ShoppingList{
		ID:        xid.New(),
		Name:      ListName(shopName, now.In(a.location)),
		ShopName:  shopName,
		CreatedAt: now.UTC(),
		Items:     Aggregate(sources),
	}
	for i := range list.Items {
		list.Items[i].ID = xid.New()
		list.Items[i].ListID = list.ID
	}

	created, err := a.store.CreateMergedShoppingList(ctx, list, ids)
	if err != nil {
		return nil, &AggregationError{Stage: StageCreateList, Err: err}
	}

	events := make([]domain.ChangeEvent, 0, 1+len(created.Items)+len(ids))
	events = append(events, newChangeEvent(domain.TableShoppingLists, domain.ChangeInsert, "id", created.ID, toListRow(*created), nil, created.CreatedAt))
	for _, item := range created.Items {
		events = append(events, newChangeEvent(domain.TableShoppingListItems, domain.ChangeInsert, "list_id", created.ID, item, nil, created.CreatedAt))
	}
	for _, id := range ids {
		events = append(events, newChangeEvent(domain.TableStockRequests, domain.ChangeUpdate, "shop_name", shopName,
			map[string]any{"id": id, "shop_name": shopName, "is_merged": true},
			map[string]any{"id": id, "shop_name": shopName, "is_merged": false},
			created.CreatedAt))
	}
	publishAll(ctx, a.relay, events...)

	return created, nil
}

// Aggregate sums quantities per product id in order of first appearance.
// Items whose product no longer exists are dropped. Name and unit are copied
// from the product so the list keeps them if the catalog changes later.
func Aggregate(items []domain.MergeSourceItem) []domain.ShoppingListItem {
	positions := make(map[string]int, len(items))
	merged := make([]domain.ShoppingListItem, 0, len(items))
	for _, item := range items {
		if item.Product == nil {
			continue
		}
		if pos, ok := positions[item.Product.ID]; ok {
			merged[pos].Quantity += item.Quantity
			continue
		}
		positions[item.Product.ID] = len(merged)
		merged = append(merged, domain.ShoppingListItem{
			ProductID:   item.Product.ID,
			ProductName: item.Product.Name,
			ProductUnit: item.Product.Unit,
			Quantity:    item.Quantity,
		})
	}
	return merged
}

func ListName(shopName string, at time.Time) string {
	return fmt.Sprintf("%s Shopping List - %s", shopName, at.Format(listDateLayout))
}

func checkSources(shopName string, ids []string, sources []domain.MergeSourceItem) error {
	found := make(map[string]struct{}, len(ids))
	for _, source := range sources {
		found[source.RequestID] = struct{}{}
		if source.ShopName != shopName {
			return &ValidationError{Field: "request_ids", Reason: fmt.Sprintf("request %s belongs to shop %q", source.RequestID, source.ShopName)}
		}
		if source.Quantity < 1 {
			return &ValidationError{Field: "quantity", Reason: fmt.Sprintf("item %s has non-positive quantity %d", source.ItemID, source.Quantity)}
		}
		if source.IsMerged {
			return &AggregationError{Stage: StageFetchItems, Err: fmt.Errorf("request %s: %w", source.RequestID, store.ErrAlreadyMerged)}
		}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return &ValidationError{Field: "request_ids", Reason: fmt.Sprintf("unknown request %s", id)}
		}
	}
	return nil
}

func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	normalized := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		normalized = append(normalized, id)
	}
	return normalized
}
