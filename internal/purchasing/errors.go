package purchasing

import "fmt"

// Stages reported by AggregationError.
const (
	StageFetchItems = "fetch_items"
	StageCreateList = "create_list"
)

// ValidationError rejects malformed input before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type AggregationError struct {
	Stage string
	Err   error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("merge stock requests (%s): %v", e.Stage, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

type ToggleError struct {
	ItemID string
	Err    error
}

func (e *ToggleError) Error() string {
	return fmt.Sprintf("update shopping list item %s: %v", e.ItemID, e.Err)
}

func (e *ToggleError) Unwrap() error { return e.Err }

type FinalizationError struct {
	ListID string
	Err    error
}

func (e *FinalizationError) Error() string {
	return fmt.Sprintf("finalize purchase for list %s: %v", e.ListID, e.Err)
}

func (e *FinalizationError) Unwrap() error { return e.Err }
