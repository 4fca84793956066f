package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"shopops/backend/internal/cache"
	"shopops/backend/internal/domain"
	"shopops/backend/internal/events"
	"shopops/backend/internal/purchasing"
	"shopops/backend/internal/realtime"
	"shopops/backend/internal/store"
	"shopops/backend/internal/xid"
)

var ErrForbidden = errors.New("admin role required")

const defaultViewTTL = 30 * time.Second

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Relay     realtime.Relay
	ViewCache cache.ViewCache
	ViewTTL   time.Duration
	Events    events.Publisher
	// Location is used for the date in generated shopping list names.
	Location *time.Location
}

type Service struct {
	repo       store.Repository
	aggregator *purchasing.Aggregator
	tracker    *purchasing.Tracker
	finalizer  *purchasing.Finalizer
	relay      realtime.Relay
	views      cache.ViewCache
	viewTTL    time.Duration
	events     events.Publisher
	loads      singleflight.Group
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Relay == nil {
		opts.Relay = realtime.NewHub(0)
	}
	if opts.ViewCache == nil {
		opts.ViewCache = cache.NoopViewCache{}
	}
	if opts.ViewTTL <= 0 {
		opts.ViewTTL = defaultViewTTL
	}
	if opts.Events == nil {
		opts.Events = events.NoopPublisher{}
	}

	s := &Service{
		repo:    repo,
		relay:   opts.Relay,
		views:   opts.ViewCache,
		viewTTL: opts.ViewTTL,
		events:  opts.Events,
	}
	changes := invalidatingRelay{Relay: opts.Relay, service: s}
	s.aggregator = purchasing.NewAggregator(repo, changes, opts.Location)
	s.tracker = purchasing.NewTracker(repo, changes)
	s.finalizer = purchasing.NewFinalizer(repo, changes)
	return s
}

// invalidatingRelay drops cached lists touched by an event before the event
// reaches subscribers, so a viewer refetching on notification reads fresh data.
type invalidatingRelay struct {
	realtime.Relay
	service *Service
}

func (r invalidatingRelay) Publish(ctx context.Context, event domain.ChangeEvent) error {
	if keys := staleKeys(event); len(keys) > 0 {
		r.service.invalidate(ctx, keys...)
	}
	return r.Relay.Publish(ctx, event)
}

func staleKeys(event domain.ChangeEvent) []string {
	if event.FilterValue == "" {
		return nil
	}
	switch event.Table {
	case domain.TableShoppingListItems, domain.TableShoppingLists:
		return []string{cache.ListKey(event.FilterValue)}
	case domain.TablePurchasingHistory:
		return []string{cache.ListKey(event.FilterValue), cache.KeyPurchaseHistory}
	}
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) SubmitStockRequest(ctx context.Context, req domain.StockRequestCreateRequest) (domain.StockRequest, error) {
	shopName := strings.TrimSpace(req.ShopName)
	if shopName == "" {
		return domain.StockRequest{}, &purchasing.ValidationError{Field: "shop_name", Reason: "required"}
	}
	if len(req.Items) == 0 {
		return domain.StockRequest{}, &purchasing.ValidationError{Field: "items", Reason: "at least one item is required"}
	}

	items := make([]domain.StockRequestItem, 0, len(req.Items))
	for _, input := range req.Items {
		productID := strings.TrimSpace(input.ProductID)
		if productID == "" {
			return domain.StockRequest{}, &purchasing.ValidationError{Field: "product_id", Reason: "required"}
		}
		if input.Quantity < 1 {
			return domain.StockRequest{}, &purchasing.ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be at least 1 for product %s", productID)}
		}
		items = append(items, domain.StockRequestItem{ProductID: productID, Quantity: input.Quantity})
	}

	created, err := s.repo.CreateStockRequest(ctx, domain.StockRequest{
		ID:        xid.New(),
		ShopName:  shopName,
		CreatedAt: time.Now().UTC(),
		Items:     items,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.StockRequest{}, &purchasing.ValidationError{Field: "product_id", Reason: "unknown product"}
		}
		return domain.StockRequest{}, err
	}

	s.publishChange(ctx, domain.TableStockRequests, domain.ChangeInsert, "shop_name", created.ShopName, created)
	s.logAudit(ctx, "stock_request_submit", "stock_request", created.ID, fmt.Sprintf("shop=%s items=%d", created.ShopName, len(created.Items)))
	return *created, nil
}

// PendingRequests groups unmerged requests by shop. Shops are sorted by name;
// requests inside a shop stay newest first.
func (s *Service) PendingRequests(ctx context.Context, shopName string) (domain.PendingRequestsResponse, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.PendingRequestsResponse{}, err
	}

	requests, err := s.repo.ListPendingStockRequests(ctx, strings.TrimSpace(shopName))
	if err != nil {
		return domain.PendingRequestsResponse{}, err
	}

	byShop := make(map[string][]domain.StockRequest, 8)
	for _, req := range requests {
		byShop[req.ShopName] = append(byShop[req.ShopName], req)
	}
	shops := make([]domain.ShopPendingRequests, 0, len(byShop))
	for shop, reqs := range byShop {
		shops = append(shops, domain.ShopPendingRequests{ShopName: shop, Requests: reqs})
	}
	slices.SortFunc(shops, func(a, b domain.ShopPendingRequests) int {
		return strings.Compare(a.ShopName, b.ShopName)
	})
	return domain.PendingRequestsResponse{Shops: shops}, nil
}

func (s *Service) MergeStockRequests(ctx context.Context, req domain.MergeRequest) (domain.MergeResponse, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.MergeResponse{}, err
	}

	list, err := s.aggregator.Merge(ctx, req.ShopName, req.RequestIDs)
	if err != nil {
		return domain.MergeResponse{}, err
	}

	merged := countDistinct(req.RequestIDs)
	s.logAudit(ctx, "stock_request_merge", "shopping_list", list.ID, fmt.Sprintf("shop=%s requests=%d items=%d", list.ShopName, merged, len(list.Items)))
	s.publishEvent(ctx, events.Event{
		Type:       events.TypeStockRequestsMerged,
		Key:        list.ID,
		OccurredAt: list.CreatedAt,
		Payload: map[string]any{
			"shopping_list": list,
			"request_ids":   req.RequestIDs,
		},
	})
	return domain.MergeResponse{ShoppingList: *list, MergedCount: merged}, nil
}

// MergePendingForShop merges every request of the shop that is pending right
// now. Requests submitted after the snapshot stay pending.
func (s *Service) MergePendingForShop(ctx context.Context, shopName string) (domain.MergeResponse, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.MergeResponse{}, err
	}
	shopName = strings.TrimSpace(shopName)
	if shopName == "" {
		return domain.MergeResponse{}, &purchasing.ValidationError{Field: "shop_name", Reason: "required"}
	}

	pending, err := s.repo.ListPendingStockRequests(ctx, shopName)
	if err != nil {
		return domain.MergeResponse{}, err
	}
	if len(pending) == 0 {
		return domain.MergeResponse{}, &purchasing.ValidationError{Field: "shop_name", Reason: "no pending requests for " + shopName}
	}
	ids := make([]string, 0, len(pending))
	// Oldest first so aggregation order follows submission order.
	for i := len(pending) - 1; i >= 0; i-- {
		ids = append(ids, pending[i].ID)
	}
	return s.MergeStockRequests(ctx, domain.MergeRequest{ShopName: shopName, RequestIDs: ids})
}

func (s *Service) ShoppingListView(ctx context.Context, listID string) (domain.ShoppingListView, error) {
	listID = strings.TrimSpace(listID)
	if listID == "" {
		return domain.ShoppingListView{}, &purchasing.ValidationError{Field: "list_id", Reason: "required"}
	}

	list, err := s.cachedList(ctx, listID)
	if err != nil {
		return domain.ShoppingListView{}, err
	}
	return s.tracker.Present(ctx, list)
}

func (s *Service) cachedList(ctx context.Context, listID string) (domain.ShoppingList, error) {
	key := cache.ListKey(listID)
	var cached domain.ShoppingList
	if hit, err := s.views.Get(ctx, key, &cached); err != nil {
		log.Printf("[cache] WARN: read %s failed: %v", key, err)
	} else if hit {
		return cached, nil
	}

	loaded, err, _ := s.loads.Do(key, func() (any, error) {
		list, err := s.repo.GetShoppingList(ctx, listID)
		if err != nil {
			return nil, err
		}
		if err := s.views.Set(ctx, key, list, s.viewTTL); err != nil {
			log.Printf("[cache] WARN: write %s failed: %v", key, err)
		}
		return *list, nil
	})
	if err != nil {
		return domain.ShoppingList{}, err
	}
	return loaded.(domain.ShoppingList), nil
}

func (s *Service) SetItemChecked(ctx context.Context, listID string, itemID string, checked bool) (domain.ShoppingListItem, error) {
	list, err := s.repo.GetShoppingList(ctx, listID)
	if err != nil {
		return domain.ShoppingListItem{}, err
	}
	if !slices.ContainsFunc(list.Items, func(item domain.ShoppingListItem) bool { return item.ID == itemID }) {
		return domain.ShoppingListItem{}, &purchasing.ToggleError{ItemID: itemID, Err: store.ErrNotFound}
	}

	return s.tracker.SetItemChecked(ctx, itemID, checked)
}

func (s *Service) FinalizePurchase(ctx context.Context, listID string, req domain.FinalizeRequest) (domain.FinalizeResponse, error) {
	record, list, err := s.finalizer.Finalize(ctx, listID, req.TotalCost)
	if err != nil {
		return domain.FinalizeResponse{}, err
	}

	s.logAudit(ctx, "purchase_finalize", "shopping_list", list.ID, fmt.Sprintf("total_cost=%s", record.TotalCost.StringFixed(2)))
	s.publishEvent(ctx, events.Event{
		Type:       events.TypePurchaseFinalized,
		Key:        list.ID,
		OccurredAt: record.PurchaseDate,
		Payload:    record,
	})
	return domain.FinalizeResponse{Purchase: *record}, nil
}

// WatchShoppingList subscribes to item changes and purchase records of one
// list. The caller must Close the subscription.
func (s *Service) WatchShoppingList(ctx context.Context, listID string) (*realtime.Subscription, error) {
	if _, err := s.repo.GetShoppingList(ctx, listID); err != nil {
		return nil, err
	}
	return s.relay.Subscribe(realtime.Filter{Column: "list_id", Value: listID}), nil
}

func (s *Service) PurchaseHistory(ctx context.Context) (domain.PurchaseHistoryResponse, error) {
	var cached domain.PurchaseHistoryResponse
	if hit, err := s.views.Get(ctx, cache.KeyPurchaseHistory, &cached); err != nil {
		log.Printf("[cache] WARN: read %s failed: %v", cache.KeyPurchaseHistory, err)
	} else if hit {
		return cached, nil
	}

	loaded, err, _ := s.loads.Do(cache.KeyPurchaseHistory, func() (any, error) {
		history, err := s.repo.ListPurchaseHistory(ctx, 500)
		if err != nil {
			return nil, err
		}
		total := decimal.Zero
		for _, record := range history {
			total = total.Add(record.TotalCost)
		}
		resp := domain.PurchaseHistoryResponse{Purchases: history, TotalSpent: total}
		if err := s.views.Set(ctx, cache.KeyPurchaseHistory, resp, s.viewTTL); err != nil {
			log.Printf("[cache] WARN: write %s failed: %v", cache.KeyPurchaseHistory, err)
		}
		return resp, nil
	})
	if err != nil {
		return domain.PurchaseHistoryResponse{}, err
	}
	return loaded.(domain.PurchaseHistoryResponse), nil
}

func (s *Service) SubmitDailyReport(ctx context.Context, req domain.DailyReportCreateRequest) (domain.DailyReport, error) {
	req.ShopName = strings.TrimSpace(req.ShopName)
	req.SalesmanName = strings.TrimSpace(req.SalesmanName)
	if req.ShopName == "" {
		return domain.DailyReport{}, &purchasing.ValidationError{Field: "shop_name", Reason: "required"}
	}
	if req.SalesmanName == "" {
		return domain.DailyReport{}, &purchasing.ValidationError{Field: "salesman_name", Reason: "required"}
	}
	if req.TotalSales.IsNegative() || req.TotalExpenses.IsNegative() {
		return domain.DailyReport{}, &purchasing.ValidationError{Field: "totals", Reason: "must not be negative"}
	}

	report, err := s.repo.CreateDailyReport(ctx, domain.DailyReport{
		ID:            xid.New(),
		ShopName:      req.ShopName,
		SalesmanName:  req.SalesmanName,
		TotalSales:    req.TotalSales.Round(2),
		TotalExpenses: req.TotalExpenses.Round(2),
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return domain.DailyReport{}, err
	}
	s.logAudit(ctx, "daily_report_submit", "daily_report", report.ID, fmt.Sprintf("shop=%s", report.ShopName))
	return *report, nil
}

func (s *Service) ListDailyReports(ctx context.Context, limit int) ([]domain.DailyReport, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListDailyReports(ctx, limit)
}

// Dashboard runs the three counts concurrently.
func (s *Service) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	var stats domain.DashboardStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.CountProducts(gctx)
		stats.Products = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountDailyReports(gctx)
		stats.DailyReports = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountPendingStockRequests(gctx)
		stats.PendingRequests = n
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.DashboardStats{}, err
	}
	return stats, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, &purchasing.ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"}
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.views.Delete(ctx, keys...); err != nil {
		log.Printf("[cache] WARN: invalidate %v failed: %v", keys, err)
	}
}

func (s *Service) publishChange(ctx context.Context, table string, eventType string, column string, value string, row any) {
	event := domain.ChangeEvent{
		Table:        table,
		Type:         eventType,
		FilterColumn: column,
		FilterValue:  value,
		CommittedAt:  time.Now().UTC(),
	}
	if payload, err := json.Marshal(row); err == nil {
		event.New = payload
	}
	if err := s.relay.Publish(ctx, event); err != nil {
		log.Printf("[relay] WARN: publish %s %s failed: %v", eventType, table, err)
	}
}

func (s *Service) publishEvent(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		log.Printf("[events] WARN: publish %s key=%s failed: %v", event.Type, event.Key, err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New(),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func countDistinct(ids []string) int {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}
