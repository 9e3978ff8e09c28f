package proposals

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/markup"
	"github.com/go-pdf/fpdf"
)

// pageWidth is the printable A4 width with 25mm side margins.
const pageWidth = 160.0

var itemColumns = []struct {
	title string
	width float64
	align string
}{
	{"Item", 75, "L"},
	{"Qtd.", 20, "C"},
	{"Valor Unitário", 32.5, "R"},
	{"Total", 32.5, "R"},
}

// PDFFilename names the download for p.
func PDFFilename(p *Proposal) string {
	return "proposta-" + p.ID.String()[:8] + ".pdf"
}

// RenderPDF writes p as an A4 commercial proposal: client block, priced
// items, financial summary and a generation footer stamped with issuedAt.
func RenderPDF(w io.Writer, p *Proposal, issuedAt time.Time) error {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(25, 25, 25)
	doc.SetAutoPageBreak(true, 15)
	doc.SetTitle("Proposta Comercial - "+p.Title, true)
	doc.SetCreator("nr01desk", true)
	doc.SetCreationDate(issuedAt)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.AddPage()

	title := p.Title
	if title == "" {
		title = "Sem título"
	}
	doc.SetFont("Helvetica", "B", 20)
	doc.SetTextColor(31, 31, 31)
	doc.MultiCell(0, 10, tr("Proposta Comercial"), "", "C", false)
	doc.MultiCell(0, 9, tr(title), "", "C", false)
	doc.Ln(8)

	heading := func(text string) {
		doc.SetFont("Helvetica", "B", 14)
		doc.SetTextColor(51, 51, 51)
		doc.CellFormat(0, 9, tr(text), "", 1, "L", false, 0, "")
		doc.SetTextColor(0, 0, 0)
	}
	field := func(label, value string) {
		doc.SetFont("Helvetica", "B", 10)
		doc.CellFormat(35, 7, tr(label), "", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 10)
		doc.CellFormat(0, 7, tr(value), "", 1, "L", false, 0, "")
	}

	heading("Informações do Cliente")
	field("Cliente:", orNA(p.ClientName))
	field("Email:", orNA(p.ClientEmail))
	field("Data:", displayDate(p.ProposalDate, issuedAt))
	field("Status:", strings.ToUpper(string(p.Status)))
	if p.TaxRegime != "" {
		field("Regime:", p.TaxRegime)
	}
	doc.Ln(6)

	if len(p.Items) > 0 {
		heading("Itens da Proposta")

		doc.SetFont("Helvetica", "B", 11)
		doc.SetFillColor(128, 128, 128)
		doc.SetTextColor(245, 245, 245)
		for _, col := range itemColumns {
			doc.CellFormat(col.width, 8, tr(col.title), "1", 0, "C", true, 0, "")
		}
		doc.Ln(-1)

		doc.SetFont("Helvetica", "", 10)
		doc.SetFillColor(245, 245, 220)
		doc.SetTextColor(0, 0, 0)
		for _, it := range p.Items {
			cells := []string{
				fitText(doc, tr, orNA(it.ServiceName), itemColumns[0].width-2),
				strconv.Itoa(it.Quantity),
				tr(markup.BRL(it.UnitPrice)),
				tr(markup.BRL(it.Total)),
			}
			for i, col := range itemColumns {
				doc.CellFormat(col.width, 7, cells[i], "1", 0, col.align, true, 0, "")
			}
			doc.Ln(-1)
		}
		doc.Ln(6)
	}

	heading("Resumo Financeiro")
	doc.SetFont("Helvetica", "", 10)
	for _, line := range [][2]string{
		{"Subtotal:", markup.BRL(p.TotalValue)},
		{"Desconto Geral:", markup.BRL(p.GeneralDiscount)},
		{"Taxa de Deslocamento:", markup.BRL(p.DisplacementFee)},
	} {
		doc.CellFormat(pageWidth-40, 7, tr(line[0]), "", 0, "R", false, 0, "")
		doc.CellFormat(40, 7, tr(line[1]), "", 1, "R", false, 0, "")
	}
	doc.SetLineWidth(0.6)
	x, y := doc.GetXY()
	doc.Line(x, y, x+pageWidth, y)
	doc.SetFont("Helvetica", "B", 13)
	doc.CellFormat(pageWidth-40, 9, "TOTAL:", "", 0, "R", false, 0, "")
	doc.CellFormat(40, 9, tr(markup.BRL(p.FinalTotal)), "", 1, "R", false, 0, "")
	doc.Ln(12)

	doc.SetFont("Helvetica", "", 8)
	doc.SetTextColor(90, 90, 90)
	doc.MultiCell(0, 4, tr("Proposta gerada pelo nr01desk\n"+issuedAt.Format("02/01/2006 15:04")), "", "C", false)

	if err := doc.Output(w); err != nil {
		return fmt.Errorf("failed to render proposal pdf: %w", err)
	}
	return nil
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// displayDate renders a proposal_date as dd/mm/yyyy, falling back to issuedAt.
func displayDate(date string, issuedAt time.Time) string {
	if d, err := time.Parse(DateLayout, date); err == nil {
		return d.Format("02/01/2006")
	}
	return issuedAt.Format("02/01/2006")
}

// fitText translates s for the core fonts, trimming it with an ellipsis
// until it fits width at the current font.
func fitText(doc *fpdf.Fpdf, tr func(string) string, s string, width float64) string {
	if doc.GetStringWidth(tr(s)) <= width {
		return tr(s)
	}
	r := []rune(s)
	for len(r) > 0 && doc.GetStringWidth(tr(string(r)+"...")) > width {
		r = r[:len(r)-1]
	}
	return tr(string(r) + "...")
}
