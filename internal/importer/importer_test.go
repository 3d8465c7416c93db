package importer

import (
	"bytes"
	"strings"
	"testing"

	"wasender/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseTxt(t *testing.T) {
	input := strings.Join([]string{
		"+15550100001",
		"",
		"  +1 (555) 010-0002  ",
		"not-a-number",
		"+15550100001",
	}, "\n")

	result, err := Parse("recipients.txt", strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"+15550100001", "+15550100002"}, result.Accepted)
	assert.Equal(t, 1, result.Dropped)
}

func TestParseNoExtensionFallsBackToLines(t *testing.T) {
	result, err := Parse("recipients", strings.NewReader("+15550100001\n+15550100002\n"))
	require.NoError(t, err)
	assert.Len(t, result.Accepted, 2)
}

func TestParseCSV(t *testing.T) {
	input := strings.Join([]string{
		"+15550100001,Alice,VIP",
		"+15550100002,Bob",
		"garbage,Charlie",
		"+15550100002",
	}, "\n")

	result, err := Parse("list.csv", strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"+15550100001", "+15550100002"}, result.Accepted)
	assert.Equal(t, 1, result.Dropped)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "+15550100001"))
	require.NoError(t, f.SetCellValue(sheet, "B1", "Alice"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "+15550100002"))
	require.NoError(t, f.SetCellValue(sheet, "A3", "not-a-number"))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	result, err := Parse("list.xlsx", &buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"+15550100001", "+15550100002"}, result.Accepted)
	assert.Equal(t, 1, result.Dropped)
}

func TestParseXLSXCorrupt(t *testing.T) {
	_, err := Parse("list.xlsx", strings.NewReader("this is not a spreadsheet"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
}

func TestParseUnsupportedExtension(t *testing.T) {
	_, err := Parse("list.pdf", strings.NewReader("+15550100001"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
}

func TestParseEmptyFile(t *testing.T) {
	result, err := Parse("empty.txt", strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, result.Accepted)
	assert.Zero(t, result.Dropped)
}
