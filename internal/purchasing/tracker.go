package purchasing

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopops/backend/internal/domain"
)

type ListStore interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetShoppingList(ctx context.Context, listID string) (*domain.ShoppingList, error)
	SetShoppingListItemChecked(ctx context.Context, itemID string, checked bool) (domain.ShoppingListItem, domain.ShoppingListItem, error)
}

// Tracker owns the check-off state of shopping list items while a list is
// being purchased.
type Tracker struct {
	store ListStore
	relay ChangePublisher
	now   func() time.Time
}

func NewTracker(listStore ListStore, relay ChangePublisher) *Tracker {
	return &Tracker{store: listStore, relay: publisherOrNoop(relay), now: time.Now}
}

// SetItemChecked persists the checked flag of one item and emits an UPDATE on
// shopping_list_items filtered by the item's list. Setting the current value
// again is a no-op write that still succeeds.
func (t *Tracker) SetItemChecked(ctx context.Context, itemID string, checked bool) (domain.ShoppingListItem, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.ShoppingListItem{}, &ValidationError{Field: "item_id", Reason: "required"}
	}

	before, after, err := t.store.SetShoppingListItemChecked(ctx, itemID, checked)
	if err != nil {
		return domain.ShoppingListItem{}, &ToggleError{ItemID: itemID, Err: err}
	}

	publishAll(ctx, t.relay, newChangeEvent(domain.TableShoppingListItems, domain.ChangeUpdate, "list_id", after.ListID, after, before, t.now().UTC()))
	return after, nil
}

// View loads a list and splits it for display with the estimate computed
// against current catalog prices.
func (t *Tracker) View(ctx context.Context, listID string) (domain.ShoppingListView, error) {
	list, err := t.store.GetShoppingList(ctx, listID)
	if err != nil {
		return domain.ShoppingListView{}, err
	}
	return t.Present(ctx, *list)
}

// Present builds the view of an already loaded list. Prices are read from the
// catalog on every call, so a cached list still gets a current estimate.
func (t *Tracker) Present(ctx context.Context, list domain.ShoppingList) (domain.ShoppingListView, error) {
	products, err := t.store.ListProducts(ctx)
	if err != nil {
		return domain.ShoppingListView{}, err
	}
	return BuildView(list, domain.NewPriceLookup(products)), nil
}

func BuildView(list domain.ShoppingList, prices domain.PriceLookup) domain.ShoppingListView {
	view := domain.ShoppingListView{
		List:           list,
		Unchecked:      make([]domain.ShoppingListItem, 0, len(list.Items)),
		Checked:        make([]domain.ShoppingListItem, 0, len(list.Items)),
		AllChecked:     AllChecked(list.Items),
		EstimatedTotal: EstimatedTotal(list.Items, prices),
		Finalized:      list.Finalized(),
	}
	for _, item := range list.Items {
		if item.IsChecked {
			view.Checked = append(view.Checked, item)
		} else {
			view.Unchecked = append(view.Unchecked, item)
		}
	}
	return view
}

// EstimatedTotal sums quantity * unit price over all items. Items without a
// known price (product deleted or never linked) contribute zero. The result is
// advisory only and never persisted.
func EstimatedTotal(items []domain.ShoppingListItem, prices domain.PriceLookup) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item.ProductID == "" {
			continue
		}
		price, ok := prices[item.ProductID]
		if !ok {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// AllChecked reports whether every item is checked. An empty list counts as
// complete.
func AllChecked(items []domain.ShoppingListItem) bool {
	for _, item := range items {
		if !item.IsChecked {
			return false
		}
	}
	return true
}
