package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"shopops/backend/internal/domain"
	"shopops/backend/internal/store"
	"shopops/backend/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit, price, created_at
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Unit, &p.Price, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count)
	return count, err
}

func (s *Store) CreateStockRequest(ctx context.Context, req domain.StockRequest) (*domain.StockRequest, error) {
	req.ShopName = strings.TrimSpace(req.ShopName)
	if req.ShopName == "" || len(req.Items) == 0 {
		return nil, store.ErrInvalidTransaction
	}
	for _, item := range req.Items {
		if item.Quantity < 1 || item.ProductID == "" {
			return nil, store.ErrInvalidTransaction
		}
	}
	if req.ID == "" {
		req.ID = xid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.IsMerged = false

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stock_requests (id, shop_name, is_merged, created_at)
		VALUES ($1,$2,false,$3)
	`, req.ID, req.ShopName, req.CreatedAt); err != nil {
		return nil, err
	}

	for i := range req.Items {
		item := &req.Items[i]
		if item.ID == "" {
			item.ID = xid.New()
		}
		item.RequestID = req.ID
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stock_request_items (id, request_id, product_id, quantity, position)
			VALUES ($1,$2,$3,$4,$5)
		`, item.ID, req.ID, item.ProductID, item.Quantity, i); err != nil {
			if isForeignKeyViolation(err) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created, err := s.listStockRequests(ctx, `WHERE r.id = $1`, req.ID)
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, store.ErrNotFound
	}
	return &created[0], nil
}

func (s *Store) ListPendingStockRequests(ctx context.Context, shopName string) ([]domain.StockRequest, error) {
	return s.listStockRequests(ctx, `WHERE r.is_merged = false AND ($1 = '' OR r.shop_name = $1)`, shopName)
}

func (s *Store) listStockRequests(ctx context.Context, where string, arg any) ([]domain.StockRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.shop_name, r.is_merged, r.created_at
		FROM stock_requests r
		`+where+`
		ORDER BY r.created_at DESC, r.id ASC
	`, arg)
	if err != nil {
		return nil, err
	}
	requests := make([]domain.StockRequest, 0, 32)
	index := make(map[string]int, 32)
	ids := make([]string, 0, 32)
	for rows.Next() {
		var req domain.StockRequest
		if err := rows.Scan(&req.ID, &req.ShopName, &req.IsMerged, &req.CreatedAt); err != nil {
			_ = rows.Close()
			return nil, err
		}
		req.CreatedAt = req.CreatedAt.UTC()
		req.Items = make([]domain.StockRequestItem, 0, 4)
		index[req.ID] = len(requests)
		ids = append(ids, req.ID)
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()
	if len(ids) == 0 {
		return requests, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.request_id, COALESCE(i.product_id, ''), i.quantity,
			COALESCE(p.name, ''), COALESCE(p.unit, '')
		FROM stock_request_items i
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.request_id = ANY($1::text[])
		ORDER BY i.request_id, i.position
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item domain.StockRequestItem
		if err := itemRows.Scan(&item.ID, &item.RequestID, &item.ProductID, &item.Quantity, &item.ProductName, &item.ProductUnit); err != nil {
			return nil, err
		}
		pos := index[item.RequestID]
		requests[pos].Items = append(requests[pos].Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

func (s *Store) CountPendingStockRequests(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stock_requests WHERE is_merged = false`).Scan(&count)
	return count, err
}

func (s *Store) ListMergeSourceItems(ctx context.Context, requestIDs []string) ([]domain.MergeSourceItem, error) {
	items := make([]domain.MergeSourceItem, 0, len(requestIDs)*4)
	if len(requestIDs) == 0 {
		return items, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.request_id, r.shop_name, r.is_merged, COALESCE(i.product_id, ''), i.quantity,
			p.id, p.name, p.unit, p.price, p.created_at
		FROM stock_request_items i
		JOIN stock_requests r ON r.id = i.request_id
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.request_id = ANY($1::text[])
		ORDER BY array_position($1::text[], i.request_id), i.position
	`, requestIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item             domain.MergeSourceItem
			productID        sql.NullString
			productName      sql.NullString
			productUnit      sql.NullString
			productPrice     decimal.NullDecimal
			productCreatedAt sql.NullTime
		)
		if err := rows.Scan(
			&item.ItemID,
			&item.RequestID,
			&item.ShopName,
			&item.IsMerged,
			&item.ProductID,
			&item.Quantity,
			&productID,
			&productName,
			&productUnit,
			&productPrice,
			&productCreatedAt,
		); err != nil {
			return nil, err
		}
		if productID.Valid {
			item.Product = &domain.Product{
				ID:        productID.String,
				Name:      productName.String,
				Unit:      productUnit.String,
				Price:     productPrice.Decimal,
				CreatedAt: productCreatedAt.Time.UTC(),
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateMergedShoppingList(ctx context.Context, list domain.ShoppingList, requestIDs []string) (*domain.ShoppingList, error) {
	if strings.TrimSpace(list.Name) == "" || len(requestIDs) == 0 {
		return nil, store.ErrInvalidTransaction
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// Lock the requests so a concurrent merge of the same ids waits and then
	// sees is_merged = true.
	rows, err := tx.QueryContext(ctx, `
		SELECT id, is_merged
		FROM stock_requests
		WHERE id = ANY($1::text[])
		ORDER BY id
		FOR UPDATE
	`, requestIDs)
	if err != nil {
		return nil, err
	}
	found := 0
	alreadyMerged := false
	for rows.Next() {
		var id string
		var merged bool
		if err := rows.Scan(&id, &merged); err != nil {
			_ = rows.Close()
			return nil, err
		}
		found++
		alreadyMerged = alreadyMerged || merged
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()
	if found != len(requestIDs) {
		return nil, store.ErrNotFound
	}
	if alreadyMerged {
		return nil, store.ErrAlreadyMerged
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO shopping_lists (id, name, shop_name, total_cost, created_at)
		VALUES ($1,$2,$3,NULL,$4)
	`, list.ID, list.Name, list.ShopName, list.CreatedAt); err != nil {
		return nil, err
	}

	for i := range list.Items {
		item := &list.Items[i]
		if item.ID == "" {
			item.ID = xid.New()
		}
		item.ListID = list.ID
		item.IsChecked = false
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO shopping_list_items (id, list_id, product_id, product_name, product_unit, quantity, is_checked, position)
			VALUES ($1,$2,$3,$4,$5,$6,false,$7)
		`, item.ID, list.ID, nullIfEmpty(item.ProductID), item.ProductName, item.ProductUnit, item.Quantity, i); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE stock_requests
		SET is_merged = true
		WHERE id = ANY($1::text[])
	`, requestIDs); err != nil {
		return nil, err
	}

	created, err := loadShoppingList(ctx, tx, list.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

// Ids are minted by xid, so anything else cannot exist and skips the round trip.
func (s *Store) GetShoppingList(ctx context.Context, listID string) (*domain.ShoppingList, error) {
	if !xid.Valid(listID) {
		return nil, store.ErrNotFound
	}
	return loadShoppingList(ctx, s.db, listID)
}

func loadShoppingList(ctx context.Context, q queryer, listID string) (*domain.ShoppingList, error) {
	var list domain.ShoppingList
	var total decimal.NullDecimal
	err := q.QueryRowContext(ctx, `
		SELECT id, name, shop_name, total_cost, created_at
		FROM shopping_lists
		WHERE id = $1
	`, listID).Scan(&list.ID, &list.Name, &list.ShopName, &total, &list.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	list.CreatedAt = list.CreatedAt.UTC()
	if total.Valid {
		cost := total.Decimal
		list.TotalCost = &cost
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, list_id, COALESCE(product_id, ''), product_name, product_unit, quantity, is_checked
		FROM shopping_list_items
		WHERE list_id = $1
		ORDER BY position, id
	`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list.Items = make([]domain.ShoppingListItem, 0, 16)
	for rows.Next() {
		var item domain.ShoppingListItem
		if err := rows.Scan(&item.ID, &item.ListID, &item.ProductID, &item.ProductName, &item.ProductUnit, &item.Quantity, &item.IsChecked); err != nil {
			return nil, err
		}
		list.Items = append(list.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &list, nil
}

func (s *Store) SetShoppingListItemChecked(ctx context.Context, itemID string, checked bool) (domain.ShoppingListItem, domain.ShoppingListItem, error) {
	var before domain.ShoppingListItem
	if !xid.Valid(itemID) {
		return before, before, store.ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return before, before, err
	}
	defer func() { _ = tx.Rollback() }()

	// The list row is locked too so a toggle cannot interleave with finalize.
	var total decimal.NullDecimal
	err = tx.QueryRowContext(ctx, `
		SELECT i.id, i.list_id, COALESCE(i.product_id, ''), i.product_name, i.product_unit, i.quantity, i.is_checked, l.total_cost
		FROM shopping_list_items i
		JOIN shopping_lists l ON l.id = i.list_id
		WHERE i.id = $1
		FOR UPDATE OF i, l
	`, itemID).Scan(
		&before.ID,
		&before.ListID,
		&before.ProductID,
		&before.ProductName,
		&before.ProductUnit,
		&before.Quantity,
		&before.IsChecked,
		&total,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return before, before, store.ErrNotFound
		}
		return before, before, err
	}
	if total.Valid {
		return before, before, store.ErrListFinalized
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE shopping_list_items
		SET is_checked = $2
		WHERE id = $1
	`, itemID, checked); err != nil {
		return before, before, err
	}
	if err := tx.Commit(); err != nil {
		return before, before, err
	}

	after := before
	after.IsChecked = checked
	return before, after, nil
}

func (s *Store) FinalizePurchase(ctx context.Context, record domain.PurchaseRecord) (*domain.ShoppingList, *domain.PurchaseRecord, error) {
	if !record.TotalCost.IsPositive() || record.PurchaseDate.IsZero() || record.ListID == "" {
		return nil, nil, store.ErrInvalidTransaction
	}
	if record.ID == "" {
		record.ID = xid.New()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var name string
	var current decimal.NullDecimal
	err = tx.QueryRowContext(ctx, `
		SELECT name, total_cost
		FROM shopping_lists
		WHERE id = $1
		FOR UPDATE
	`, record.ListID).Scan(&name, &current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, store.ErrNotFound
		}
		return nil, nil, err
	}
	if current.Valid {
		return nil, nil, store.ErrAlreadyFinalized
	}

	var unchecked int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM shopping_list_items WHERE list_id = $1 AND is_checked = false
	`, record.ListID).Scan(&unchecked); err != nil {
		return nil, nil, err
	}
	if unchecked > 0 {
		return nil, nil, store.ErrListIncomplete
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE shopping_lists SET total_cost = $2 WHERE id = $1
	`, record.ListID, record.TotalCost); err != nil {
		return nil, nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO purchasing_history (id, list_id, purchase_date, total_cost)
		VALUES ($1,$2,$3,$4)
	`, record.ID, record.ListID, record.PurchaseDate, record.TotalCost); err != nil {
		if isUniqueViolation(err) {
			return nil, nil, store.ErrAlreadyFinalized
		}
		return nil, nil, err
	}

	updated, err := loadShoppingList(ctx, tx, record.ListID)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	record.ListName = name
	record.PurchaseDate = record.PurchaseDate.UTC()
	return updated, &record, nil
}

func (s *Store) ListPurchaseHistory(ctx context.Context, limit int) ([]domain.PurchaseRecord, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT h.id, COALESCE(h.list_id, ''), COALESCE(l.name, ''), h.purchase_date, h.total_cost
		FROM purchasing_history h
		LEFT JOIN shopping_lists l ON l.id = h.list_id
		ORDER BY h.purchase_date DESC, h.id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.PurchaseRecord, 0, limit)
	for rows.Next() {
		var record domain.PurchaseRecord
		if err := rows.Scan(&record.ID, &record.ListID, &record.ListName, &record.PurchaseDate, &record.TotalCost); err != nil {
			return nil, err
		}
		record.PurchaseDate = record.PurchaseDate.UTC()
		history = append(history, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Store) CreateDailyReport(ctx context.Context, report domain.DailyReport) (*domain.DailyReport, error) {
	report.ShopName = strings.TrimSpace(report.ShopName)
	report.SalesmanName = strings.TrimSpace(report.SalesmanName)
	if report.ShopName == "" || report.SalesmanName == "" {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_reports (id, shop_name, salesman_name, total_sales, total_expenses, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, report.ID, report.ShopName, report.SalesmanName, report.TotalSales, report.TotalExpenses, report.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := report
	return &created, nil
}

func (s *Store) ListDailyReports(ctx context.Context, limit int) ([]domain.DailyReport, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_name, salesman_name, total_sales, total_expenses, created_at
		FROM daily_reports
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]domain.DailyReport, 0, limit)
	for rows.Next() {
		var report domain.DailyReport
		if err := rows.Scan(&report.ID, &report.ShopName, &report.SalesmanName, &report.TotalSales, &report.TotalExpenses, &report.CreatedAt); err != nil {
			return nil, err
		}
		report.CreatedAt = report.CreatedAt.UTC()
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *Store) CountDailyReports(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM daily_reports`).Scan(&count)
	return count, err
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1
			AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if user.Role == "" {
		user.Role = domain.RoleEmployee
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidTransaction
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	return val
}
