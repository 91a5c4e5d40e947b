// Package export renders quotations as CSV or Excel workbooks.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/xuri/excelize/v2"

	"seaprocure/internal/models"
)

// Formats accepted by Serve.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var itemHeaders = []string{"#", "Description", "Required Qty", "Offered Qty", "Quoted Price", "Line Total", "Offered Quality"}

// ItemRows returns one row per quotation item.
func ItemRows(q models.Quotation) [][]string {
	rows := make([][]string, 0, len(q.Items))
	for i, it := range q.Items {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			it.Description,
			formatNum(it.RequiredQty),
			formatNum(it.OfferedQty),
			formatNum(it.QuotedPrice),
			formatNum(it.QuotedPrice * it.OfferedQty),
			it.OfferedQuality,
		})
	}
	return rows
}

func summary(q models.Quotation) [][]string {
	t := q.Metadata.Terms
	return [][]string{
		{"Quotation", q.QuotationNumber},
		{"RFQ", q.RFQID},
		{"Vendor", q.VendorID},
		{"Title", q.Title},
		{"Status", q.Status},
		{"Currency", q.Currency},
		{"Total Amount", formatNum(q.TotalAmount)},
		{"Payment Term", t.PaymentTerm},
		{"Delivery Term", t.DeliveryTerm},
	}
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// WriteCSV writes the summary block, a blank line and the item table.
func WriteCSV(w io.Writer, q models.Quotation) error {
	writer := csv.NewWriter(w)
	for _, row := range summary(q) {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{}); err != nil {
		return err
	}
	if err := writer.Write(itemHeaders); err != nil {
		return err
	}
	for _, row := range ItemRows(q) {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteXLSX writes a workbook with a "Quotation" summary sheet and an
// "Items" sheet.
func WriteXLSX(w io.Writer, q models.Quotation) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Quotation"); err != nil {
		return err
	}
	for i, row := range summary(q) {
		if err := setRow(f, "Quotation", i+1, row); err != nil {
			return err
		}
	}
	f.SetColWidth("Quotation", "A", "A", 18)
	f.SetColWidth("Quotation", "B", "B", 40)

	if _, err := f.NewSheet("Items"); err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	if err := setRow(f, "Items", 1, itemHeaders); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(itemHeaders), 1)
	f.SetCellStyle("Items", "A1", last, headerStyle)

	for i, row := range ItemRows(q) {
		if err := setRow(f, "Items", i+2, row); err != nil {
			return err
		}
	}
	f.SetColWidth("Items", "B", "B", 40)

	return f.Write(w)
}

func setRow(f *excelize.File, sheet string, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return f.SetSheetRow(sheet, cell, &row)
}

// Serve writes q as an attachment in format ("csv" or "xlsx").
func Serve(w http.ResponseWriter, q models.Quotation, format string) error {
	switch format {
	case FormatXLSX:
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", q.QuotationNumber))
		return WriteXLSX(w, q)
	case FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", q.QuotationNumber))
		return WriteCSV(w, q)
	}
	return fmt.Errorf("unsupported export format %q", format)
}
