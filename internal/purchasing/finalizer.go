package purchasing

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopops/backend/internal/domain"
	"shopops/backend/internal/store"
	"shopops/backend/internal/xid"
)

type FinalizeStore interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetShoppingList(ctx context.Context, listID string) (*domain.ShoppingList, error)
	FinalizePurchase(ctx context.Context, record domain.PurchaseRecord) (*domain.ShoppingList, *domain.PurchaseRecord, error)
}

type Finalizer struct {
	store FinalizeStore
	relay ChangePublisher
	now   func() time.Time
}

func NewFinalizer(finalizeStore FinalizeStore, relay ChangePublisher) *Finalizer {
	return &Finalizer{store: finalizeStore, relay: publisherOrNoop(relay), now: time.Now}
}

// Finalize records the actual spend for a fully checked list. A nil totalCost
// takes the current estimate. The list total and the purchase record are
// written together; a list that already carries a total is rejected with
// store.ErrAlreadyFinalized.
func (f *Finalizer) Finalize(ctx context.Context, listID string, totalCost *decimal.Decimal) (*domain.PurchaseRecord, *domain.ShoppingList, error) {
	listID = strings.TrimSpace(listID)
	if listID == "" {
		return nil, nil, &ValidationError{Field: "list_id", Reason: "required"}
	}
	if totalCost != nil && !totalCost.IsPositive() {
		return nil, nil, &ValidationError{Field: "total_cost", Reason: "must be greater than zero"}
	}

	list, err := f.store.GetShoppingList(ctx, listID)
	if err != nil {
		return nil, nil, &FinalizationError{ListID: listID, Err: err}
	}
	if list.Finalized() {
		return nil, nil, &FinalizationError{ListID: listID, Err: store.ErrAlreadyFinalized}
	}
	if !AllChecked(list.Items) {
		return nil, nil, &FinalizationError{ListID: listID, Err: store.ErrListIncomplete}
	}

	var cost decimal.Decimal
	if totalCost != nil {
		cost = *totalCost
	} else {
		products, err := f.store.ListProducts(ctx)
		if err != nil {
			return nil, nil, &FinalizationError{ListID: listID, Err: err}
		}
		cost = EstimatedTotal(list.Items, domain.NewPriceLookup(products))
	}
	cost = cost.Round(2)
	if !cost.IsPositive() {
		return nil, nil, &ValidationError{Field: "total_cost", Reason: "must be greater than zero"}
	}

	record := domain.PurchaseRecord{
		ID:           xid.New(),
		ListID:       listID,
		PurchaseDate: f.now().UTC(),
		TotalCost:    cost,
	}
	updated, saved, err := f.store.FinalizePurchase(ctx, record)
	if err != nil {
		return nil, nil, &FinalizationError{ListID: listID, Err: err}
	}

	publishAll(ctx, f.relay,
		newChangeEvent(domain.TableShoppingLists, domain.ChangeUpdate, "id", updated.ID, toListRow(*updated), toListRow(*list), saved.PurchaseDate),
		newChangeEvent(domain.TablePurchasingHistory, domain.ChangeInsert, "list_id", updated.ID, saved, nil, saved.PurchaseDate),
	)
	return saved, updated, nil
}
