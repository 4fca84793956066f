// Package export renders purchasing history and daily reports as downloadable
// spreadsheets.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"shopops/backend/internal/domain"
)

const (
	historySheet = "Purchasing History"
	dateLayout   = "2006-01-02 15:04"
)

// PurchaseHistoryXLSX writes one row per purchase, newest first as given, and
// a closing total row.
func PurchaseHistoryXLSX(history []domain.PurchaseRecord, totalSpent decimal.Decimal) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), historySheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(historySheet, "A1", &[]any{"Date", "Shopping List", "Total Cost"}); err != nil {
		return nil, err
	}

	for i, record := range history {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			record.PurchaseDate.UTC().Format(dateLayout),
			listLabel(record),
			record.TotalCost.InexactFloat64(),
		}
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return nil, err
		}
	}

	totalCell, err := excelize.CoordinatesToCellName(1, len(history)+2)
	if err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(historySheet, totalCell, &[]any{"Total Spent", "", totalSpent.InexactFloat64()}); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(historySheet, "A", "A", 18); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(historySheet, "B", "B", 40); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func listLabel(record domain.PurchaseRecord) string {
	if record.ListName != "" {
		return record.ListName
	}
	return "Unknown List"
}

func DailyReportsCSV(reports []domain.DailyReport) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"date", "shop_name", "salesman_name", "total_sales", "total_expenses", "net"}); err != nil {
		return "", err
	}
	for _, report := range reports {
		record := []string{
			report.CreatedAt.UTC().Format(time.DateOnly),
			report.ShopName,
			report.SalesmanName,
			report.TotalSales.StringFixed(2),
			report.TotalExpenses.StringFixed(2),
			report.Net().StringFixed(2),
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
