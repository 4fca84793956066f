// Package purchasing holds the stock request consolidation and purchase
// lifecycle: merging pending requests into a shopping list, tracking item
// check-off, and committing the final purchase record.
package purchasing

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"shopops/backend/internal/domain"
)

// ChangePublisher receives row-level change events after a write commits.
// realtime.Relay satisfies it.
type ChangePublisher interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(_ context.Context, _ domain.ChangeEvent) error { return nil }

func publisherOrNoop(p ChangePublisher) ChangePublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

func newChangeEvent(table string, eventType string, filterColumn string, filterValue string, newRow any, oldRow any, at time.Time) domain.ChangeEvent {
	event := domain.ChangeEvent{
		Table:        table,
		Type:         eventType,
		FilterColumn: filterColumn,
		FilterValue:  filterValue,
		CommittedAt:  at,
	}
	if newRow != nil {
		if payload, err := json.Marshal(newRow); err == nil {
			event.New = payload
		}
	}
	if oldRow != nil {
		if payload, err := json.Marshal(oldRow); err == nil {
			event.Old = payload
		}
	}
	return event
}

// publishAll delivers events in order. The write has already committed, so a
// relay failure is logged and viewers reconcile on their next read.
func publishAll(ctx context.Context, relay ChangePublisher, events ...domain.ChangeEvent) {
	for _, event := range events {
		if err := relay.Publish(ctx, event); err != nil {
			log.Printf("[relay] WARN: publish %s %s failed: %v", event.Type, event.Table, err)
		}
	}
}

// listRow is the shopping_lists row shape (without items) used in change events.
type listRow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ShopName  string    `json:"shop_name"`
	CreatedAt time.Time `json:"created_at"`
	TotalCost any       `json:"total_cost"`
}

func toListRow(list domain.ShoppingList) listRow {
	row := listRow{ID: list.ID, Name: list.Name, ShopName: list.ShopName, CreatedAt: list.CreatedAt}
	if list.TotalCost != nil {
		row.TotalCost = *list.TotalCost
	}
	return row
}
