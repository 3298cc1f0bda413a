package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"task-list/internal/model"
)

// Layout in millimetres on A4 portrait.
const (
	pdfMarginX  = 14.0
	pdfTitleY   = 10.0
	pdfTableY   = 20.0
	pdfRowH     = 8.0
	pdfLineH    = 5.0
	pdfCellPad  = 1.5
	pdfBottomMg = 15.0
)

var pdfColumns = []struct {
	title string
	width float64
	align string
}{
	{"#", 12, "C"},
	{"Name", 70, "L"},
	{"Type", 40, "L"},
	{"Count", 25, "R"},
	{"Completed", 35, "C"},
}

// WritePDF writes a titled table of entries. Long cells wrap onto extra
// lines and the table header repeats on every page.
func WritePDF(w io.Writer, entries []model.Entry) error {
	if len(entries) == 0 {
		return ErrEmpty
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMarginX, pdfTableY, pdfMarginX)
	pdf.SetAutoPageBreak(false, pdfBottomMg)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	_, pageH := pdf.GetPageSize()

	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 16)
	pdf.Text(pdfMarginX, pdfTitleY, Title)
	writePDFHeader(pdf)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetFillColor(245, 245, 245)
	for i, e := range entries {
		cells := []string{
			strconv.Itoa(i + 1),
			e.Name,
			e.Type,
			strconv.Itoa(e.Count),
			completedLabel(e.Completed),
		}
		lines := make([][]string, len(cells))
		h := pdfRowH
		for j, col := range pdfColumns {
			lines[j] = wrapText(pdf, tr, cells[j], col.width-2*pdfCellPad)
			if lh := float64(len(lines[j]))*pdfLineH + 3; lh > h {
				h = lh
			}
		}

		if pdf.GetY()+h > pageH-pdfBottomMg {
			pdf.AddPage()
			writePDFHeader(pdf)
			pdf.SetFont("Helvetica", "", 10)
			pdf.SetFillColor(245, 245, 245)
		}

		style := "D"
		if i%2 == 1 {
			style = "FD"
		}
		x, y := pdfMarginX, pdf.GetY()
		for j, col := range pdfColumns {
			pdf.Rect(x, y, col.width, h, style)
			top := y + (h-float64(len(lines[j]))*pdfLineH)/2
			for k, line := range lines[j] {
				pdf.SetXY(x, top+float64(k)*pdfLineH)
				pdf.CellFormat(col.width, pdfLineH, line, "", 0, col.align, false, 0, "")
			}
			x += col.width
		}
		pdf.SetXY(pdfMarginX, y+h)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf write: %w", err)
	}
	return nil
}

func writePDFHeader(pdf *fpdf.Fpdf) {
	pdf.SetXY(pdfMarginX, pdf.GetY())
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(41, 128, 185)
	pdf.SetTextColor(255, 255, 255)
	for _, col := range pdfColumns {
		pdf.CellFormat(col.width, pdfRowH, col.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetTextColor(0, 0, 0)
}

// wrapText splits UTF-8 text into lines no wider than width, breaking at
// spaces where possible and inside words otherwise. Widths are measured on
// the translated text; the returned lines are translated.
func wrapText(pdf *fpdf.Fpdf, tr func(string) string, s string, width float64) []string {
	fits := func(r []rune) bool { return pdf.GetStringWidth(tr(string(r))) <= width }

	var (
		lines []string
		cur   []rune
	)
	for _, r := range strings.Join(strings.Fields(s), " ") {
		next := append(cur[:len(cur):len(cur)], r)
		if len(cur) == 0 || fits(next) {
			cur = next
			continue
		}
		if r == ' ' {
			lines = append(lines, string(cur))
			cur = nil
			continue
		}
		if sp := lastSpace(cur); sp > 0 {
			lines = append(lines, string(cur[:sp]))
			cur = append(append([]rune{}, cur[sp+1:]...), r)
			if fits(cur) || len(cur) == 1 {
				continue
			}
			lines = append(lines, string(cur[:len(cur)-1]))
			cur = []rune{r}
			continue
		}
		lines = append(lines, string(cur))
		cur = []rune{r}
	}
	lines = append(lines, string(cur))

	for i := range lines {
		lines[i] = tr(lines[i])
	}
	return lines
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == ' ' {
			return i
		}
	}
	return -1
}
