package importer

import (
	"bufio"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"wasender/internal/errors"
	"wasender/internal/validation"

	"github.com/xuri/excelize/v2"
)

// Result summarizes one import run. Accepted numbers are normalized and
// deduplicated; Dropped counts entries that were present but unusable.
type Result struct {
	Accepted []string `json:"accepted"`
	Dropped  int      `json:"dropped"`
}

// Parse reads a recipient list from an uploaded file. The format is chosen by
// extension: .csv (first column per row), .xlsx (first column per row on the
// first sheet) or plain text with one number per line. Malformed entries are
// dropped, never fatal.
func Parse(filename string, r io.Reader) (*Result, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return parseCSV(r)
	case ".xlsx":
		return parseXLSX(r)
	case ".txt", "":
		return parseLines(r)
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"unsupported recipient file format: "+filepath.Ext(filename))
	}
}

func parseLines(r io.Reader) (*Result, error) {
	var raw []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		raw = append(raw, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to read recipient file")
	}

	return dedupe(raw), nil
}

func parseCSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var raw []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to parse CSV file")
		}
		if len(record) == 0 {
			continue
		}
		raw = append(raw, strings.TrimSpace(record[0]))
	}

	return dedupe(raw), nil
}

func parseXLSX(r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to open XLSX file")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Result{Accepted: []string{}}, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to read XLSX rows")
	}

	var raw []string
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		raw = append(raw, strings.TrimSpace(row[0]))
	}

	return dedupe(raw), nil
}

func dedupe(raw []string) *Result {
	accepted, dropped := validation.DedupeRecipients(raw)
	return &Result{Accepted: accepted, Dropped: dropped}
}
