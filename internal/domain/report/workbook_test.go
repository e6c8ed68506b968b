package report

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func signaturePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 80, 30))
	for x := 10; x < 70; x++ {
		img.Set(x, 15, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestBuildWorkbookLayout(t *testing.T) {
	rep := Aggregate(date(2024, 6, 3), date(2024, 6, 7), weekRecords())
	data, err := BuildWorkbook(rep, map[string][]byte{"signatures/alice.png": signaturePNG(t)})
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{SummarySheet, "Alice Smith", "bob"}, f.GetSheetList())

	rows, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Name", "Date", "Projects", "Total Hours", "Description", "Signature"}, rows[0])
	assert.Equal(t, "Alice Smith", rows[1][0])
	assert.Equal(t, "2024-06-03", rows[1][1])
	assert.Equal(t, "- Framing (8 hrs) @ Lot 4", rows[1][2])
	assert.Equal(t, "GRAND TOTAL:", rows[4][0])
	assert.Equal(t, "17.5", rows[4][3])

	pics, err := f.GetPictures(SummarySheet, "F2")
	require.NoError(t, err)
	assert.Len(t, pics, 1)

	fallback, err := f.GetCellValue(SummarySheet, "F3")
	require.NoError(t, err)
	assert.Equal(t, "Signed by Admin", fallback)

	aliceRows, err := f.GetRows("Alice Smith")
	require.NoError(t, err)
	require.Len(t, aliceRows, 4)
	assert.Equal(t, "TOTAL HOURS:", aliceRows[3][0])
	assert.Equal(t, "14.5", aliceRows[3][3])

	merged, err := f.GetMergeCells("Alice Smith")
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "A4", merged[0].GetStartAxis())
	assert.Equal(t, "C4", merged[0].GetEndAxis())
}

func TestBuildWorkbookEmptyReport(t *testing.T) {
	data, err := BuildWorkbook(Report{Start: date(2024, 6, 3), End: date(2024, 6, 7)}, nil)
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{SummarySheet}, f.GetSheetList())
	rows, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "a-b-c-d-e-f-g", SheetName("a/b\\c?d*e[f]g"))
	assert.Equal(t, "Employee", SheetName("  "))
	assert.Len(t, []rune(SheetName(strings.Repeat("x", 40))), 31)
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]bool{"all employees": true}
	assert.Equal(t, "Sam", uniqueSheetName("Sam", used))
	assert.Equal(t, "sam (2)", uniqueSheetName("sam", used))
	long := strings.Repeat("y", 31)
	assert.Equal(t, long, uniqueSheetName(long, used))
	dup := uniqueSheetName(long, used)
	assert.Len(t, dup, 31)
	assert.True(t, strings.HasSuffix(dup, " (2)"))
}
