package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"shopops/backend/internal/domain"
	"shopops/backend/internal/store"
	"shopops/backend/internal/xid"
)

type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	requestsByID map[string]domain.StockRequest
	listsByID    map[string]domain.ShoppingList
	listIDByItem map[string]string
	purchases    []domain.PurchaseRecord
	dailyReports []domain.DailyReport
	auditLogs    []domain.AuditLog
	usersByName  map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_EMPLOYEE_PASSWORD;
// hardcoded dev defaults are used (with a warning) when they are unset.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	employeePwd := envOr("SEED_EMPLOYEE_PASSWORD", "employee123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_EMPLOYEE_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_EMPLOYEE_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"employee", employeePwd, domain.RoleEmployee},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.MinCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store holding a small demo catalog and the dev users.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	for _, p := range []domain.Product{
		{ID: "0b7c7a54-3f0e-4b8e-9d43-1c1f2b7a0001", Name: "Flour 25kg", Unit: "sack", Price: decimal.RequireFromString("18.50")},
		{ID: "0b7c7a54-3f0e-4b8e-9d43-1c1f2b7a0002", Name: "Sugar 1kg", Unit: "box", Price: decimal.RequireFromString("3.50")},
		{ID: "0b7c7a54-3f0e-4b8e-9d43-1c1f2b7a0003", Name: "Cooking Oil 5L", Unit: "bottle", Price: decimal.RequireFromString("10.00")},
		{ID: "0b7c7a54-3f0e-4b8e-9d43-1c1f2b7a0004", Name: "Eggs 30pcs", Unit: "tray", Price: decimal.RequireFromString("6.20")},
		{ID: "0b7c7a54-3f0e-4b8e-9d43-1c1f2b7a0005", Name: "Paper Cups", Unit: "box", Price: decimal.RequireFromString("12.75")},
		{ID: "0b7c7a54-3f0e-4b8e-9d43-1c1f2b7a0006", Name: "Mineral Water 600ml", Unit: "crate", Price: decimal.RequireFromString("4.80")},
	} {
		p.CreatedAt = now
		s.products[p.ID] = p
	}
	s.usersByName = seedUsers()
	return s
}

// New returns an empty store with no products and no users.
func New() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		requestsByID: make(map[string]domain.StockRequest),
		listsByID:    make(map[string]domain.ShoppingList),
		listIDByItem: make(map[string]string),
		purchases:    make([]domain.PurchaseRecord, 0, 16),
		dailyReports: make([]domain.DailyReport, 0, 16),
		auditLogs:    make([]domain.AuditLog, 0, 64),
		usersByName:  make(map[string]domain.UserAccount),
	}
}

// PutProduct and RemoveProduct stand in for the externally maintained catalog.
func (s *Store) PutProduct(product domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.products[product.ID] = product
}

func (s *Store) RemoveProduct(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, productID)
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) CountProducts(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.products)), nil
}

func (s *Store) CreateStockRequest(_ context.Context, req domain.StockRequest) (*domain.StockRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(req.ShopName) == "" || len(req.Items) == 0 {
		return nil, store.ErrInvalidTransaction
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, store.ErrInvalidTransaction
		}
		if _, ok := s.products[item.ProductID]; !ok {
			return nil, store.ErrNotFound
		}
	}

	if req.ID == "" {
		req.ID = xid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.IsMerged = false
	items := make([]domain.StockRequestItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.ID == "" {
			item.ID = xid.New()
		}
		item.RequestID = req.ID
		item.ProductName = ""
		item.ProductUnit = ""
		items = append(items, item)
	}
	req.Items = items

	s.requestsByID[req.ID] = req
	created := s.joinRequest(req)
	return &created, nil
}

func (s *Store) ListPendingStockRequests(_ context.Context, shopName string) ([]domain.StockRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]domain.StockRequest, 0, len(s.requestsByID))
	for _, req := range s.requestsByID {
		if req.IsMerged {
			continue
		}
		if shopName != "" && req.ShopName != shopName {
			continue
		}
		pending = append(pending, s.joinRequest(req))
	}
	slices.SortFunc(pending, func(a, b domain.StockRequest) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return pending, nil
}

func (s *Store) CountPendingStockRequests(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, req := range s.requestsByID {
		if !req.IsMerged {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListMergeSourceItems(_ context.Context, requestIDs []string) ([]domain.MergeSourceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.MergeSourceItem, 0, len(requestIDs)*4)
	for _, requestID := range requestIDs {
		req, ok := s.requestsByID[requestID]
		if !ok {
			continue
		}
		for _, item := range req.Items {
			source := domain.MergeSourceItem{
				ItemID:    item.ID,
				RequestID: req.ID,
				ShopName:  req.ShopName,
				IsMerged:  req.IsMerged,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			}
			if product, ok := s.products[item.ProductID]; ok {
				p := product
				source.Product = &p
			}
			items = append(items, source)
		}
	}
	return items, nil
}

func (s *Store) CreateMergedShoppingList(_ context.Context, list domain.ShoppingList, requestIDs []string) (*domain.ShoppingList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(list.Name) == "" || len(requestIDs) == 0 {
		return nil, store.ErrInvalidTransaction
	}
	for _, requestID := range requestIDs {
		req, ok := s.requestsByID[requestID]
		if !ok {
			return nil, store.ErrNotFound
		}
		if req.IsMerged {
			return nil, store.ErrAlreadyMerged
		}
	}
	for _, item := range list.Items {
		if strings.TrimSpace(item.ProductName) == "" || item.Quantity < 1 {
			return nil, store.ErrInvalidTransaction
		}
	}

	if list.ID == "" {
		list.ID = xid.New()
	}
	if list.CreatedAt.IsZero() {
		list.CreatedAt = time.Now().UTC()
	}
	list.TotalCost = nil
	items := make([]domain.ShoppingListItem, 0, len(list.Items))
	for _, item := range list.Items {
		if item.ID == "" {
			item.ID = xid.New()
		}
		item.ListID = list.ID
		item.IsChecked = false
		items = append(items, item)
		s.listIDByItem[item.ID] = list.ID
	}
	list.Items = items
	s.listsByID[list.ID] = list

	for _, requestID := range requestIDs {
		req := s.requestsByID[requestID]
		req.IsMerged = true
		s.requestsByID[requestID] = req
	}

	created := cloneShoppingList(list)
	return &created, nil
}

func (s *Store) GetShoppingList(_ context.Context, listID string) (*domain.ShoppingList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, ok := s.listsByID[listID]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneShoppingList(list)
	return &found, nil
}

func (s *Store) SetShoppingListItemChecked(_ context.Context, itemID string, checked bool) (domain.ShoppingListItem, domain.ShoppingListItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listID, ok := s.listIDByItem[itemID]
	if !ok {
		return domain.ShoppingListItem{}, domain.ShoppingListItem{}, store.ErrNotFound
	}
	list := s.listsByID[listID]
	if list.Finalized() {
		return domain.ShoppingListItem{}, domain.ShoppingListItem{}, store.ErrListFinalized
	}

	for i := range list.Items {
		if list.Items[i].ID != itemID {
			continue
		}
		before := list.Items[i]
		list.Items[i].IsChecked = checked
		after := list.Items[i]
		s.listsByID[listID] = list
		return before, after, nil
	}
	return domain.ShoppingListItem{}, domain.ShoppingListItem{}, store.ErrNotFound
}

func (s *Store) FinalizePurchase(_ context.Context, record domain.PurchaseRecord) (*domain.ShoppingList, *domain.PurchaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !record.TotalCost.IsPositive() || record.PurchaseDate.IsZero() {
		return nil, nil, store.ErrInvalidTransaction
	}
	list, ok := s.listsByID[record.ListID]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	if list.Finalized() {
		return nil, nil, store.ErrAlreadyFinalized
	}
	for _, item := range list.Items {
		if !item.IsChecked {
			return nil, nil, store.ErrListIncomplete
		}
	}

	if record.ID == "" {
		record.ID = xid.New()
	}
	total := record.TotalCost
	list.TotalCost = &total
	s.listsByID[list.ID] = list

	record.ListName = list.Name
	s.purchases = append(s.purchases, record)

	updated := cloneShoppingList(list)
	saved := record
	return &updated, &saved, nil
}

func (s *Store) ListPurchaseHistory(_ context.Context, limit int) ([]domain.PurchaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}
	history := slices.Clone(s.purchases)
	slices.SortFunc(history, func(a, b domain.PurchaseRecord) int {
		return b.PurchaseDate.Compare(a.PurchaseDate)
	})
	if len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

func (s *Store) CreateDailyReport(_ context.Context, report domain.DailyReport) (*domain.DailyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(report.ShopName) == "" || strings.TrimSpace(report.SalesmanName) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if report.TotalSales.IsNegative() || report.TotalExpenses.IsNegative() {
		return nil, store.ErrInvalidTransaction
	}
	if report.ID == "" {
		report.ID = xid.New()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	s.dailyReports = append(s.dailyReports, report)
	created := report
	return &created, nil
}

func (s *Store) ListDailyReports(_ context.Context, limit int) ([]domain.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}
	reports := slices.Clone(s.dailyReports)
	slices.SortFunc(reports, func(a, b domain.DailyReport) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

func (s *Store) CountDailyReports(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.dailyReports)), nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
		if len(logs) >= limit {
			break
		}
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrInvalidTransaction
	}
	if _, exists := s.usersByName[username]; exists {
		return store.ErrInvalidTransaction
	}
	user.Username = username
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByName[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByName))
	for _, user := range s.usersByName {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, ok := s.usersByName[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByName[username] = user
	return nil
}

// joinRequest copies req and fills product name/unit from the live catalog.
func (s *Store) joinRequest(req domain.StockRequest) domain.StockRequest {
	joined := req
	joined.Items = make([]domain.StockRequestItem, 0, len(req.Items))
	for _, item := range req.Items {
		if product, ok := s.products[item.ProductID]; ok {
			item.ProductName = product.Name
			item.ProductUnit = product.Unit
		}
		joined.Items = append(joined.Items, item)
	}
	return joined
}

func cloneShoppingList(src domain.ShoppingList) domain.ShoppingList {
	dst := src
	dst.Items = slices.Clone(src.Items)
	if src.TotalCost != nil {
		total := *src.TotalCost
		dst.TotalCost = &total
	}
	return dst
}
