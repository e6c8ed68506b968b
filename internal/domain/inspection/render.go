package inspection

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Form is a validated submission ready to render.
type Form struct {
	Template    Template
	Values      map[string]string
	Checked     map[string]bool
	PhotoNames  []string
	SubmittedBy string
	SubmittedAt time.Time
}

// RenderPDF lays the form out on A4 pages: header, field values, checklists
// and the names of the attached photos.
func RenderPDF(form Form) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(form.Template.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	submitted := form.SubmittedAt.Format("2006-01-02 15:04 MST")
	if form.SubmittedBy != "" {
		submitted = fmt.Sprintf("Submitted by %s on %s", form.SubmittedBy, submitted)
	}
	pdf.CellFormat(0, 6, tr(submitted), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	for _, field := range form.Template.Fields {
		value := strings.TrimSpace(form.Values[field.Name])
		if value == "" {
			value = "-"
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(55, 7, tr(field.Label+":"), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 7, tr(value), "", "L", false)
	}

	if len(form.Template.Checkboxes) > 0 {
		heading(pdf, tr, "Checklist")
		checklist(pdf, tr, form.Template.Checkboxes, form.Checked)
	}
	for _, section := range form.Template.Sections {
		heading(pdf, tr, section.Title)
		checklist(pdf, tr, section.Checkboxes(), form.Checked)
	}

	if len(form.PhotoNames) > 0 {
		heading(pdf, tr, "Attached photos")
		pdf.SetFont("Helvetica", "", 10)
		for _, name := range form.PhotoNames {
			pdf.CellFormat(0, 6, tr(name), "", 1, "L", false, 0, "")
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func heading(pdf *gofpdf.Fpdf, tr func(string) string, title string) {
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(0, 8, tr(title), "", 1, "L", true, 0, "")
	pdf.Ln(1)
}

func checklist(pdf *gofpdf.Fpdf, tr func(string) string, boxes []Checkbox, checked map[string]bool) {
	pdf.SetFont("Helvetica", "", 10)
	for _, box := range boxes {
		mark := "[  ]"
		if checked[box.Name] {
			mark = "[X]"
		}
		pdf.CellFormat(12, 6, mark, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(box.Label), "", 1, "L", false, 0, "")
	}
}
