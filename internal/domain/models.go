package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit,omitempty"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

// PriceLookup is a point-in-time snapshot of catalog prices keyed by product id.
type PriceLookup map[string]decimal.Decimal

func NewPriceLookup(products []Product) PriceLookup {
	lookup := make(PriceLookup, len(products))
	for _, p := range products {
		lookup[p.ID] = p.Price
	}
	return lookup
}

type StockRequest struct {
	ID        string             `json:"id"`
	ShopName  string             `json:"shop_name"`
	IsMerged  bool               `json:"is_merged"`
	CreatedAt time.Time          `json:"created_at"`
	Items     []StockRequestItem `json:"items"`
}

type StockRequestItem struct {
	ID          string `json:"id"`
	RequestID   string `json:"request_id"`
	ProductID   string `json:"product_id,omitempty"`
	Quantity    int    `json:"quantity"`
	ProductName string `json:"product_name,omitempty"`
	ProductUnit string `json:"product_unit,omitempty"`
}

type StockRequestCreateRequest struct {
	ShopName string                  `json:"shop_name"`
	Items    []StockRequestItemInput `json:"items"`
}

type StockRequestItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type ShopPendingRequests struct {
	ShopName string         `json:"shop_name"`
	Requests []StockRequest `json:"requests"`
}

type PendingRequestsResponse struct {
	Shops []ShopPendingRequests `json:"shops"`
}

// MergeSourceItem is a stock request item joined to its request and product,
// as read by the aggregator. Product is nil when the catalog row is gone.
type MergeSourceItem struct {
	ItemID    string
	RequestID string
	ShopName  string
	IsMerged  bool
	ProductID string
	Quantity  int
	Product   *Product
}

type MergeRequest struct {
	ShopName   string   `json:"shop_name"`
	RequestIDs []string `json:"request_ids"`
}

type MergeResponse struct {
	ShoppingList ShoppingList `json:"shopping_list"`
	MergedCount  int          `json:"merged_count"`
}

type ShoppingList struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	ShopName  string             `json:"shop_name"`
	CreatedAt time.Time          `json:"created_at"`
	TotalCost *decimal.Decimal   `json:"total_cost"`
	Items     []ShoppingListItem `json:"items"`
}

func (l ShoppingList) Finalized() bool {
	return l.TotalCost != nil
}

type ShoppingListItem struct {
	ID          string `json:"id"`
	ListID      string `json:"list_id"`
	ProductID   string `json:"product_id,omitempty"`
	ProductName string `json:"product_name"`
	ProductUnit string `json:"product_unit,omitempty"`
	Quantity    int    `json:"quantity"`
	IsChecked   bool   `json:"is_checked"`
}

type ShoppingListView struct {
	List           ShoppingList       `json:"shopping_list"`
	Unchecked      []ShoppingListItem `json:"unchecked_items"`
	Checked        []ShoppingListItem `json:"checked_items"`
	AllChecked     bool               `json:"all_checked"`
	EstimatedTotal decimal.Decimal    `json:"estimated_total"`
	Finalized      bool               `json:"finalized"`
}

type ItemCheckRequest struct {
	IsChecked bool `json:"is_checked"`
}

type FinalizeRequest struct {
	TotalCost *decimal.Decimal `json:"total_cost,omitempty"`
}

type PurchaseRecord struct {
	ID           string          `json:"id"`
	ListID       string          `json:"list_id"`
	ListName     string          `json:"list_name,omitempty"`
	PurchaseDate time.Time       `json:"purchase_date"`
	TotalCost    decimal.Decimal `json:"total_cost"`
}

type FinalizeResponse struct {
	Purchase PurchaseRecord `json:"purchase"`
}

type PurchaseHistoryResponse struct {
	Purchases  []PurchaseRecord `json:"purchases"`
	TotalSpent decimal.Decimal  `json:"total_spent"`
}

type DailyReport struct {
	ID            string          `json:"id"`
	ShopName      string          `json:"shop_name"`
	SalesmanName  string          `json:"salesman_name"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Net is sales minus expenses. It is derived, never stored.
func (r DailyReport) Net() decimal.Decimal {
	return r.TotalSales.Sub(r.TotalExpenses)
}

func (r DailyReport) MarshalJSON() ([]byte, error) {
	type plain DailyReport
	return json.Marshal(struct {
		plain
		Net decimal.Decimal `json:"net"`
	}{plain: plain(r), Net: r.Net()})
}

type DailyReportCreateRequest struct {
	ShopName      string          `json:"shop_name"`
	SalesmanName  string          `json:"salesman_name"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
}

type DashboardStats struct {
	Products        int64 `json:"products"`
	DailyReports    int64 `json:"daily_reports"`
	PendingRequests int64 `json:"pending_requests"`
}

const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

const (
	TableStockRequests     = "stock_requests"
	TableShoppingLists     = "shopping_lists"
	TableShoppingListItems = "shopping_list_items"
	TablePurchasingHistory = "purchasing_history"
)

// ChangeEvent is a row-level change as delivered to change-feed subscribers.
// FilterColumn/FilterValue name the column a subscriber may filter on
// (for example list_id on shopping_list_items).
type ChangeEvent struct {
	Table        string          `json:"table"`
	Type         string          `json:"type"`
	FilterColumn string          `json:"filter_column,omitempty"`
	FilterValue  string          `json:"filter_value,omitempty"`
	New          json.RawMessage `json:"new,omitempty"`
	Old          json.RawMessage `json:"old,omitempty"`
	CommittedAt  time.Time       `json:"committed_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
