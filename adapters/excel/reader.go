package excel

import (
	"bytes"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"abstkit/internal"
	"abstkit/internal/errors"

	"github.com/xuri/excelize/v2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, logger: internal.DefaultLogger}
}

// ReadTable is shorthand for NewDataReader(path).ReadData()
func ReadTable(path string) (*Table, error) {
	return NewDataReader(path).ReadData()
}

// FileType returns "csv" or "xlsx"
func (r *DataReader) FileType() string {
	return r.fileType
}

// ReadData reads the CSV file, or the first sheet of a workbook
func (r *DataReader) ReadData() (*Table, error) {
	r.logger.Debug("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.NotFound(fmt.Sprintf("%s file %s", strings.ToUpper(r.fileType), r.filePath))
	}

	if r.fileType == "csv" {
		return r.readCSVData()
	}
	return r.ReadSheet("", 0)
}

// SheetNames lists the sheets of a workbook in order
func (r *DataReader) SheetNames() ([]string, error) {
	if r.fileType != "xlsx" {
		return nil, errors.InvalidInput(fmt.Sprintf("%s is not a workbook", r.filePath))
	}
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// ReadSheet reads one sheet; an empty name means the first sheet and
// limit > 0 keeps only the first limit data rows
func (r *DataReader) ReadSheet(sheet string, limit int) (*Table, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.InvalidInput(fmt.Sprintf("%s has no sheets", r.filePath))
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %s", sheet)
	}
	r.logger.Debug("[DataReader] %s read in %.2fms (%d rows)", sheet, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))

	if limit > 0 && len(rows) > limit+1 {
		rows = rows[:limit+1]
	}
	return r.processRows(rows)
}

// readCSVData reads CSV data, skipping malformed records instead of failing
func (r *DataReader) readCSVData() (*Table, error) {
	raw, err := os.ReadFile(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open CSV file")
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if stderrors.As(err, &parseErr) {
				skipped++
				continue
			}
			return nil, errors.Wrap(err, "failed to read CSV file")
		}
		rows = append(rows, record)
	}
	if skipped > 0 {
		r.logger.Warn("[DataReader] skipped %d malformed lines in %s", skipped, r.filePath)
	}

	return r.processRows(rows)
}

// processRows converts raw string rows into a Table
func (r *DataReader) processRows(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("%s has no header row", r.filePath))
	}

	headers := uniqueHeaders(rows[0])
	table := &Table{Source: r.filePath, Headers: headers}

	for _, raw := range rows[1:] {
		if isBlankRecord(raw) {
			continue
		}
		row := make(Row, len(headers))
		for j, cell := range raw {
			if j < len(headers) {
				row[headers[j]] = strings.TrimSpace(cell)
			}
		}
		table.Rows = append(table.Rows, row)
	}

	r.logger.Debug("[DataReader] %s file processed (%d columns, %d rows)",
		strings.ToUpper(r.fileType), len(headers), len(table.Rows))
	return table, nil
}

// uniqueHeaders trims names, fills blanks and suffixes duplicates with .1, .2, ...
func uniqueHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		headers[i] = name
	}
	return headers
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
