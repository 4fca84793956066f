package store

import (
	"context"
	"errors"
	"time"

	"shopops/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrAlreadyMerged      = errors.New("stock request already merged")
	ErrAlreadyFinalized   = errors.New("shopping list already finalized")
	ErrListIncomplete     = errors.New("shopping list has unchecked items")
	ErrListFinalized      = errors.New("shopping list is finalized and read-only")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CountProducts(ctx context.Context) (int64, error)

	// CreateStockRequest writes the request and its items atomically.
	CreateStockRequest(ctx context.Context, req domain.StockRequest) (*domain.StockRequest, error)
	// ListPendingStockRequests returns unmerged requests, newest first, with
	// product name/unit joined onto the items. An empty shopName means all shops.
	ListPendingStockRequests(ctx context.Context, shopName string) ([]domain.StockRequest, error)
	CountPendingStockRequests(ctx context.Context) (int64, error)
	ListMergeSourceItems(ctx context.Context, requestIDs []string) ([]domain.MergeSourceItem, error)
	// CreateMergedShoppingList inserts the list and its items and flags every
	// request in requestIDs as merged, all or nothing. It fails with
	// ErrAlreadyMerged when any request was merged concurrently.
	CreateMergedShoppingList(ctx context.Context, list domain.ShoppingList, requestIDs []string) (*domain.ShoppingList, error)

	GetShoppingList(ctx context.Context, listID string) (*domain.ShoppingList, error)
	// SetShoppingListItemChecked returns the row before and after the update.
	SetShoppingListItemChecked(ctx context.Context, itemID string, checked bool) (before domain.ShoppingListItem, after domain.ShoppingListItem, err error)
	// FinalizePurchase sets the list total and appends the purchase record in
	// one unit. It fails with ErrAlreadyFinalized or ErrListIncomplete without
	// writing anything.
	FinalizePurchase(ctx context.Context, record domain.PurchaseRecord) (*domain.ShoppingList, *domain.PurchaseRecord, error)
	ListPurchaseHistory(ctx context.Context, limit int) ([]domain.PurchaseRecord, error)

	CreateDailyReport(ctx context.Context, report domain.DailyReport) (*domain.DailyReport, error)
	ListDailyReports(ctx context.Context, limit int) ([]domain.DailyReport, error)
	CountDailyReports(ctx context.Context) (int64, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
