package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const commissionSheet = "Commission"

var commissionHeader = []interface{}{
	"Invoice", "Service date", "Invoice total", "Services commission",
	"Products commission", "Total commission", "Status",
}

// ExportReport renders the commission report as an .xlsx workbook.
func (s *CommissionService) ExportReport(ctx context.Context, stylistID uuid.UUID, start, end time.Time) ([]byte, error) {
	report, err := s.GetReport(ctx, stylistID, start, end)
	if err != nil {
		return nil, err
	}
	data, err := renderCommissionWorkbook(report)
	if err != nil {
		return nil, &Error{Kind: KindStorage, Message: "failed to render commission report", Err: err}
	}
	return data, nil
}

func renderCommissionWorkbook(report *CommissionReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", commissionSheet); err != nil {
		return nil, err
	}
	title := fmt.Sprintf("%s: %s to %s", report.StylistName,
		report.StartDate.Format("2006-01-02"), report.EndDate.Format("2006-01-02"))
	if err := f.SetCellValue(commissionSheet, "A1", title); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(commissionSheet, "A3", &commissionHeader); err != nil {
		return nil, err
	}

	row := 4
	for _, l := range report.Lines {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{
			l.InvoiceNumber,
			l.ServiceDate.Format("2006-01-02"),
			l.Total.InexactFloat64(),
			l.ServicesCommission.InexactFloat64(),
			l.ProductsCommission.InexactFloat64(),
			l.TotalCommission.InexactFloat64(),
			string(l.Status),
		}
		if err := f.SetSheetRow(commissionSheet, cell, &values); err != nil {
			return nil, err
		}
		row++
	}

	row++
	summary := [][]interface{}{
		{"Invoices", report.InvoiceCount},
		{"Total sales", report.TotalSales.InexactFloat64()},
		{"Total commission", report.TotalCommission.InexactFloat64()},
		{"Paid", report.PaidCommission.InexactFloat64()},
		{"Pending", report.PendingCommission.InexactFloat64()},
	}
	for _, values := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(commissionSheet, cell, &values); err != nil {
			return nil, err
		}
		row++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
