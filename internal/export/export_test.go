package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"shopops/backend/internal/domain"
)

func TestPurchaseHistoryXLSX(t *testing.T) {
	history := []domain.PurchaseRecord{
		{ID: "p2", ListID: "l2", ListName: "Downtown Shopping List - 3/6/2026", PurchaseDate: time.Date(2026, 3, 6, 12, 30, 0, 0, time.UTC), TotalCost: decimal.RequireFromString("48.75")},
		{ID: "p1", ListID: "l1", PurchaseDate: time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC), TotalCost: decimal.RequireFromString("20")},
	}

	data, err := PurchaseHistoryXLSX(history, decimal.RequireFromString("68.75"))
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open xlsx failed: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(historySheet)
	if err != nil {
		t.Fatalf("read rows failed: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header, 2 rows and total; got %d rows: %v", len(rows), rows)
	}
	if rows[0][1] != "Shopping List" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][0] != "2026-03-06 12:30" || rows[1][1] != "Downtown Shopping List - 3/6/2026" || rows[1][2] != "48.75" {
		t.Fatalf("unexpected first row %v", rows[1])
	}
	if rows[2][1] != "Unknown List" {
		t.Fatalf("expected fallback list label, got %v", rows[2])
	}
	if rows[3][0] != "Total Spent" || rows[3][2] != "68.75" {
		t.Fatalf("unexpected total row %v", rows[3])
	}
}

func TestDailyReportsCSVQuotesFields(t *testing.T) {
	out, err := DailyReportsCSV([]domain.DailyReport{{
		ShopName:      "Main St, Unit 4",
		SalesmanName:  "Dana",
		TotalSales:    decimal.RequireFromString("1200.5"),
		TotalExpenses: decimal.RequireFromString("200"),
		CreatedAt:     time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC),
	}})
	if err != nil {
		t.Fatalf("csv export failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d", len(lines))
	}
	want := `2026-03-05,"Main St, Unit 4",Dana,1200.50,200.00,1000.50`
	if lines[1] != want {
		t.Fatalf("unexpected row\nwant %s\ngot  %s", want, lines[1])
	}
}
