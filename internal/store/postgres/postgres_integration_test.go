package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shopops/backend/internal/domain"
	"shopops/backend/internal/store"
	"shopops/backend/internal/xid"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("SHOPOPS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SHOPOPS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func seedProduct(t *testing.T, s *Store, price string) string {
	t.Helper()
	ctx := context.Background()
	id := xid.New()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, unit, price, created_at)
		VALUES ($1, 'Integration Flour', 'sack', $2, now())
	`, id, price); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	})
	return id
}

func TestMergeAndFinalizeLifecycle(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	productID := seedProduct(t, s, "12.50")
	shop := "it-shop-" + xid.New()

	req, err := s.CreateStockRequest(ctx, domain.StockRequest{
		ShopName: shop,
		Items:    []domain.StockRequestItem{{ProductID: productID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("create stock request: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_requests WHERE id = $1`, req.ID)
	})
	if req.Items[0].ProductName != "Integration Flour" {
		t.Fatalf("expected joined product name, got %q", req.Items[0].ProductName)
	}

	sources, err := s.ListMergeSourceItems(ctx, []string{req.ID})
	if err != nil {
		t.Fatalf("list merge sources: %v", err)
	}
	if len(sources) != 1 || sources[0].Product == nil || !sources[0].Product.Price.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("unexpected merge sources %+v", sources)
	}

	listID := xid.New()
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM purchasing_history WHERE list_id = $1`, listID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM shopping_lists WHERE id = $1`, listID)
	})
	list, err := s.CreateMergedShoppingList(ctx, domain.ShoppingList{
		ID:       listID,
		Name:     shop + " Shopping List - 3/5/2026",
		ShopName: shop,
		Items:    []domain.ShoppingListItem{{ProductID: productID, ProductName: "Integration Flour", ProductUnit: "sack", Quantity: 3}},
	}, []string{req.ID})
	if err != nil {
		t.Fatalf("create merged list: %v", err)
	}

	if _, err := s.CreateMergedShoppingList(ctx, domain.ShoppingList{Name: "again", Items: nil}, []string{req.ID}); !errors.Is(err, store.ErrAlreadyMerged) {
		t.Fatalf("expected ErrAlreadyMerged on second merge, got %v", err)
	}

	record := domain.PurchaseRecord{ListID: list.ID, PurchaseDate: time.Now().UTC(), TotalCost: decimal.RequireFromString("36.00")}
	if _, _, err := s.FinalizePurchase(ctx, record); !errors.Is(err, store.ErrListIncomplete) {
		t.Fatalf("expected ErrListIncomplete, got %v", err)
	}

	if _, after, err := s.SetShoppingListItemChecked(ctx, list.Items[0].ID, true); err != nil || !after.IsChecked {
		t.Fatalf("check item: %v", err)
	}

	// Two finalizers race; exactly one must win.
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.FinalizePurchase(ctx, record)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, store.ErrAlreadyFinalized):
		default:
			t.Fatalf("unexpected finalize error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful finalize, got %d", wins)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM purchasing_history WHERE list_id = $1`, list.ID).Scan(&count); err != nil {
		t.Fatalf("count history: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one purchasing_history row, got %d", count)
	}

	if _, _, err := s.SetShoppingListItemChecked(ctx, list.Items[0].ID, false); !errors.Is(err, store.ErrListFinalized) {
		t.Fatalf("expected ErrListFinalized, got %v", err)
	}
}
