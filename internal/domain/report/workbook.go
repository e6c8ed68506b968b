package report

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet    = "All Employees"
	signedByAdmin   = "Signed by Admin"
	maxSheetName    = 31
	thumbnailWidth  = 80
	thumbnailHeight = 30
)

var columns = []struct {
	Header string
	Width  float64
}{
	{"Name", 20},
	{"Date", 15},
	{"Projects", 40},
	{"Total Hours", 15},
	{"Description", 30},
	{"Signature", 20},
}

type styles struct {
	header  int
	wrap    int
	italic  int
	bold    int
	boldNum int
}

// BuildWorkbook renders rep as an XLSX file: a summary sheet with every row
// and one sheet per employee closed by a TOTAL HOURS row. signatures maps a
// stored signature key to a PNG thumbnail; rows without one read
// "Signed by Admin".
func BuildWorkbook(rep Report, signatures map[string][]byte) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}
	if err := writeHeader(f, SummarySheet, st); err != nil {
		return nil, err
	}

	summaryRow := 2
	used := map[string]bool{strings.ToLower(SummarySheet): true}
	for _, emp := range rep.Employees {
		sheet := uniqueSheetName(SheetName(emp.Name), used)
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		if err := writeHeader(f, sheet, st); err != nil {
			return nil, err
		}

		empRow := 2
		for _, row := range emp.Rows {
			if err := writeRow(f, SummarySheet, summaryRow, row, signatures, st); err != nil {
				return nil, err
			}
			if err := writeRow(f, sheet, empRow, row, signatures, st); err != nil {
				return nil, err
			}
			summaryRow++
			empRow++
		}
		if err := writeTotal(f, sheet, empRow, "TOTAL HOURS:", emp.Total, st); err != nil {
			return nil, err
		}
	}
	if !rep.Empty() {
		if err := writeTotal(f, SummarySheet, summaryRow, "GRAND TOTAL:", rep.GrandTotal, st); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error
	if st.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFFF00"}, Pattern: 1},
	}); err != nil {
		return st, err
	}
	if st.wrap, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	}); err != nil {
		return st, err
	}
	if st.italic, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Italic: true},
		Alignment: &excelize.Alignment{Vertical: "top"},
	}); err != nil {
		return st, err
	}
	if st.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return st, err
	}
	if st.boldNum, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "right"},
	}); err != nil {
		return st, err
	}
	return st, nil
}

func writeHeader(f *excelize.File, sheet string, st styles) error {
	for i, col := range columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, col.Width); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, name+"1", col.Header); err != nil {
			return err
		}
	}
	return f.SetCellStyle(sheet, "A1", "F1", st.header)
}

func writeRow(f *excelize.File, sheet string, rowNum int, row Row, signatures map[string][]byte, st styles) error {
	values := []any{row.EmployeeName, row.Date.Format("2006-01-02"), row.ProjectLines, row.HoursWorked, row.Description}
	for i, value := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("E%d", rowNum), st.wrap); err != nil {
		return err
	}

	signatureCell := fmt.Sprintf("F%d", rowNum)
	if thumb, ok := signatures[row.Signature]; ok && row.Signature != "" && len(thumb) > 0 {
		if err := f.SetRowHeight(sheet, rowNum, 24); err != nil {
			return err
		}
		return f.AddPictureFromBytes(sheet, signatureCell, &excelize.Picture{
			Extension: ".png",
			File:      thumb,
			Format: &excelize.GraphicOptions{
				AltText:         "signature",
				LockAspectRatio: true,
				Positioning:     "oneCell",
			},
		})
	}
	if err := f.SetCellValue(sheet, signatureCell, signedByAdmin); err != nil {
		return err
	}
	return f.SetCellStyle(sheet, signatureCell, signatureCell, st.italic)
}

func writeTotal(f *excelize.File, sheet string, rowNum int, label string, total float64, st styles) error {
	start := fmt.Sprintf("A%d", rowNum)
	if err := f.MergeCell(sheet, start, fmt.Sprintf("C%d", rowNum)); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, start, label); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, start, start, st.bold); err != nil {
		return err
	}
	totalCell := fmt.Sprintf("D%d", rowNum)
	if err := f.SetCellValue(sheet, totalCell, total); err != nil {
		return err
	}
	return f.SetCellStyle(sheet, totalCell, totalCell, st.boldNum)
}

// SheetName replaces characters Excel forbids in sheet names and trims the
// result to the 31 character limit.
func SheetName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '?', '*', '[', ']', ':':
			return '-'
		}
		return r
	}, strings.TrimSpace(name))
	cleaned = strings.Trim(cleaned, "'")
	if cleaned == "" {
		cleaned = "Employee"
	}
	if utf8.RuneCountInString(cleaned) > maxSheetName {
		cleaned = string([]rune(cleaned)[:maxSheetName])
	}
	return cleaned
}

func uniqueSheetName(base string, used map[string]bool) string {
	name := base
	for i := 2; used[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		runes := []rune(base)
		if len(runes)+len(suffix) > maxSheetName {
			runes = runes[:maxSheetName-len(suffix)]
		}
		name = string(runes) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}
