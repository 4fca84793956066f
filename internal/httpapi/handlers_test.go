package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"shopops/backend/internal/domain"
	"shopops/backend/internal/service"
	"shopops/backend/internal/store/memory"
)

const (
	flourID = "0b7c7a54-3f0e-4b8e-9d43-1c1f2b7a0001"
	sugarID = "0b7c7a54-3f0e-4b8e-9d43-1c1f2b7a0002"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, service.Options{})
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

type testClient struct {
	t       *testing.T
	handler http.Handler
	token   string
	csrf    string
}

func newTestClient(t *testing.T, api *API, username string, password string) *testClient {
	t.Helper()
	return &testClient{
		t:       t,
		handler: api.Handler(),
		token:   login(t, api, username, password),
		csrf:    fetchCSRFToken(t, api),
	}
}

func (c *testClient) do(method string, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-CSRF-Token", c.csrf)
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func (c *testClient) expect(rec *httptest.ResponseRecorder, status int, dest any) {
	c.t.Helper()
	if rec.Code != status {
		c.t.Fatalf("expected %d, got %d (body: %s)", status, rec.Code, rec.Body.String())
	}
	if dest != nil {
		if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
			c.t.Fatalf("decode body: %v", err)
		}
	}
}

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("decimal %q: %v", value, err)
	}
	return d
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_EmployeeCanBrowse(t *testing.T) {
	api := newTestAPI(t)
	employee := newTestClient(t, api, "employee", "employee123")

	var body struct {
		Products []domain.Product `json:"products"`
	}
	employee.expect(employee.do(http.MethodGet, "/api/v1/products", nil), http.StatusOK, &body)
	if len(body.Products) != 6 {
		t.Fatalf("expected 6 seeded products, got %d", len(body.Products))
	}
}

func TestEmployeeCannotReachAdminRoutes(t *testing.T) {
	api := newTestAPI(t)
	employee := newTestClient(t, api, "employee", "employee123")

	for _, path := range []string{
		"/api/v1/stock-requests/pending",
		"/api/v1/purchasing-history",
		"/api/v1/dashboard",
		"/api/v1/audit-logs",
		"/api/v1/shopping-lists/anything",
	} {
		rec := employee.do(http.MethodGet, path, nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", path, rec.Code)
		}
	}

	rec := employee.do(http.MethodPost, "/api/v1/stock-requests/merge", domain.MergeRequest{ShopName: "Main St"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("merge: expected 403, got %d", rec.Code)
	}
}

func TestSubmitStockRequestValidation(t *testing.T) {
	api := newTestAPI(t)
	employee := newTestClient(t, api, "employee", "employee123")

	cases := []struct {
		name string
		body any
		want int
	}{
		{"missing shop", domain.StockRequestCreateRequest{Items: []domain.StockRequestItemInput{{ProductID: flourID, Quantity: 1}}}, http.StatusBadRequest},
		{"zero quantity", domain.StockRequestCreateRequest{ShopName: "Main St", Items: []domain.StockRequestItemInput{{ProductID: flourID}}}, http.StatusBadRequest},
		{"unknown product", domain.StockRequestCreateRequest{ShopName: "Main St", Items: []domain.StockRequestItemInput{{ProductID: "nope", Quantity: 1}}}, http.StatusBadRequest},
		{"unknown field", map[string]any{"shop_name": "Main St", "note": "x"}, http.StatusBadRequest},
		{"valid", domain.StockRequestCreateRequest{ShopName: "Main St", Items: []domain.StockRequestItemInput{{ProductID: flourID, Quantity: 2}}}, http.StatusCreated},
	}
	for _, tc := range cases {
		rec := employee.do(http.MethodPost, "/api/v1/stock-requests", tc.body)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d (body: %s)", tc.name, tc.want, rec.Code, rec.Body.String())
		}
	}
}

func TestPurchaseLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	employee := newTestClient(t, api, "employee", "employee123")
	admin := newTestClient(t, api, "admin", "admin123")

	for _, items := range [][]domain.StockRequestItemInput{
		{{ProductID: flourID, Quantity: 2}, {ProductID: sugarID, Quantity: 1}},
		{{ProductID: flourID, Quantity: 1}},
	} {
		employee.expect(employee.do(http.MethodPost, "/api/v1/stock-requests", domain.StockRequestCreateRequest{ShopName: "Main St", Items: items}), http.StatusCreated, nil)
	}

	var pending domain.PendingRequestsResponse
	admin.expect(admin.do(http.MethodGet, "/api/v1/stock-requests/pending?shop_name=Main+St", nil), http.StatusOK, &pending)
	if len(pending.Shops) != 1 || len(pending.Shops[0].Requests) != 2 {
		t.Fatalf("unexpected pending requests %+v", pending)
	}

	var merged domain.MergeResponse
	admin.expect(admin.do(http.MethodPost, "/api/v1/stock-requests/merge", map[string]string{"shop_name": "Main St"}), http.StatusCreated, &merged)
	if merged.MergedCount != 2 || len(merged.ShoppingList.Items) != 2 {
		t.Fatalf("unexpected merge response %+v", merged)
	}
	listPath := "/api/v1/shopping-lists/" + merged.ShoppingList.ID

	ids := make([]string, 0, len(pending.Shops[0].Requests))
	for _, request := range pending.Shops[0].Requests {
		ids = append(ids, request.ID)
	}
	rec := admin.do(http.MethodPost, "/api/v1/stock-requests/merge", domain.MergeRequest{ShopName: "Main St", RequestIDs: ids})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 when merging twice, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var view domain.ShoppingListView
	admin.expect(admin.do(http.MethodGet, listPath, nil), http.StatusOK, &view)
	if !view.EstimatedTotal.Equal(mustDecimal(t, "59")) || view.AllChecked {
		t.Fatalf("unexpected view %+v", view)
	}

	rec = admin.do(http.MethodPost, listPath+"/finalize", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for incomplete list, got %d", rec.Code)
	}

	for _, item := range view.Unchecked {
		admin.expect(admin.do(http.MethodPatch, listPath+"/items/"+item.ID, domain.ItemCheckRequest{IsChecked: true}), http.StatusOK, nil)
	}
	rec = admin.do(http.MethodPatch, listPath+"/items/missing-item", domain.ItemCheckRequest{IsChecked: true})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown item, got %d", rec.Code)
	}

	cost := mustDecimal(t, "57.40")
	var finalized domain.FinalizeResponse
	admin.expect(admin.do(http.MethodPost, listPath+"/finalize", domain.FinalizeRequest{TotalCost: &cost}), http.StatusCreated, &finalized)
	if !finalized.Purchase.TotalCost.Equal(cost) || finalized.Purchase.ListID != merged.ShoppingList.ID {
		t.Fatalf("unexpected purchase %+v", finalized.Purchase)
	}

	rec = admin.do(http.MethodPost, listPath+"/finalize", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second finalize, got %d", rec.Code)
	}
	rec = admin.do(http.MethodPatch, listPath+"/items/"+view.Unchecked[0].ID, domain.ItemCheckRequest{IsChecked: false})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 toggling a finalized list, got %d", rec.Code)
	}

	var history domain.PurchaseHistoryResponse
	admin.expect(admin.do(http.MethodGet, "/api/v1/purchasing-history", nil), http.StatusOK, &history)
	if len(history.Purchases) != 1 || !history.TotalSpent.Equal(cost) {
		t.Fatalf("unexpected history %+v", history)
	}

	rec = admin.do(http.MethodGet, "/api/v1/purchasing-history?format=xlsx", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for xlsx export, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "spreadsheetml") {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected a zip container for xlsx export")
	}

	var stats domain.DashboardStats
	admin.expect(admin.do(http.MethodGet, "/api/v1/dashboard", nil), http.StatusOK, &stats)
	if stats.Products != 6 || stats.PendingRequests != 0 {
		t.Fatalf("unexpected dashboard %+v", stats)
	}
}

func TestMergeWithoutPendingRequests(t *testing.T) {
	api := newTestAPI(t)
	admin := newTestClient(t, api, "admin", "admin123")

	rec := admin.do(http.MethodPost, "/api/v1/stock-requests/merge", map[string]string{"shop_name": "Nowhere"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	rec = admin.do(http.MethodGet, "/api/v1/shopping-lists/unknown-list", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDailyReportsCSVExport(t *testing.T) {
	api := newTestAPI(t)
	employee := newTestClient(t, api, "employee", "employee123")
	admin := newTestClient(t, api, "admin", "admin123")

	employee.expect(employee.do(http.MethodPost, "/api/v1/daily-reports", map[string]any{
		"shop_name":      "Main St",
		"salesman_name":  "Dana",
		"total_sales":    "1200.50",
		"total_expenses": "200",
	}), http.StatusCreated, nil)

	rec := employee.do(http.MethodGet, "/api/v1/daily-reports", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee listing reports, got %d", rec.Code)
	}

	rec = admin.do(http.MethodGet, "/api/v1/daily-reports?format=csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", rec.Body.String())
	}
	if !strings.HasSuffix(lines[1], "Main St,Dana,1200.50,200.00,1000.50") {
		t.Fatalf("unexpected csv row %q", lines[1])
	}
}

func TestLiveFeedStreamsToggles(t *testing.T) {
	api := newTestAPI(t)
	employee := newTestClient(t, api, "employee", "employee123")
	admin := newTestClient(t, api, "admin", "admin123")

	employee.expect(employee.do(http.MethodPost, "/api/v1/stock-requests", domain.StockRequestCreateRequest{
		ShopName: "Main St",
		Items:    []domain.StockRequestItemInput{{ProductID: flourID, Quantity: 3}},
	}), http.StatusCreated, nil)
	var merged domain.MergeResponse
	admin.expect(admin.do(http.MethodPost, "/api/v1/stock-requests/merge", map[string]string{"shop_name": "Main St"}), http.StatusCreated, &merged)
	listID := merged.ShoppingList.ID
	itemID := merged.ShoppingList.Items[0].ID

	server := httptest.NewServer(admin.handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/shopping-lists/" + listID + "/live?access_token=" + admin.token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial live feed: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	admin.expect(admin.do(http.MethodPatch, "/api/v1/shopping-lists/"+listID+"/items/"+itemID, domain.ItemCheckRequest{IsChecked: true}), http.StatusOK, nil)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event domain.ChangeEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Table != domain.TableShoppingListItems || event.Type != domain.ChangeUpdate || event.FilterValue != listID {
		t.Fatalf("unexpected event %+v", event)
	}
	var item domain.ShoppingListItem
	if err := json.Unmarshal(event.New, &item); err != nil {
		t.Fatalf("decode new row: %v", err)
	}
	if item.ID != itemID || !item.IsChecked {
		t.Fatalf("unexpected item %+v", item)
	}
}

func TestLiveFeedRejectsMissingTokenAndUnknownList(t *testing.T) {
	api := newTestAPI(t)
	admin := newTestClient(t, api, "admin", "admin123")
	server := httptest.NewServer(admin.handler)
	defer server.Close()

	base := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/shopping-lists/"

	_, resp, err := websocket.DefaultDialer.Dial(base+"some-list/live", nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got resp=%v err=%v", resp, err)
	}

	_, resp, err = websocket.DefaultDialer.Dial(base+"some-list/live?access_token="+admin.token, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown list, got resp=%v err=%v", resp, err)
	}
}
