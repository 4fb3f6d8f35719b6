package billing

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
)

func rupees(d decimal.Decimal) string { return "Rs. " + d.StringFixed(2) }

// RenderStatementPDF renders a monthly statement as an A4 PDF.
func RenderStatementPDF(st *Statement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, "Monthly Statement", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	period := string(st.Month)
	if t, err := core.ParseMonth(string(st.Month)); err == nil {
		period = t.Start().Format("January 2006")
	}
	pdf.CellFormat(190, 6, period, "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Customer", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, fmt.Sprintf("Name: %s", st.CustomerName), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Phone: %s", st.Phone), "RB", 1, "L", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(28, 7, "Date", "1", 0, "C", true, 0, "")
	pdf.CellFormat(24, 7, "Type", "1", 0, "C", true, 0, "")
	pdf.CellFormat(98, 7, "Description", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 7, "Amount", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, l := range st.Entries {
		desc := l.Description
		if len(desc) > 55 {
			desc = desc[:52] + "..."
		}
		amount := rupees(l.Amount)
		if l.Category == CategoryPayment {
			amount = "- " + amount
		}
		pdf.CellFormat(28, 6, string(l.Date), "1", 0, "C", false, 0, "")
		pdf.CellFormat(24, 6, string(l.Category), "1", 0, "C", false, 0, "")
		pdf.CellFormat(98, 6, desc, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, amount, "1", 1, "R", false, 0, "")
	}
	pdf.Ln(5)

	s := st.Summary
	pdf.SetFont("Arial", "B", 12)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(190, 8, "Summary", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, "Milk: "+rupees(s.MilkTotal), "1", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Orders: "+rupees(s.OrderTotal), "1", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Udhar: "+rupees(s.UdharTotal), "1", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Payments: "+rupees(s.PaymentsTotal), "1", 1, "L", false, 0, "")

	if s.Outstanding.IsPositive() {
		pdf.SetFillColor(255, 200, 200)
	} else {
		pdf.SetFillColor(200, 255, 200)
	}
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(190, 10, "Outstanding: "+rupees(s.Outstanding), "1", 1, "C", true, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
