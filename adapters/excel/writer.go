package excel

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"time"

	"abstkit/internal/errors"

	"github.com/xuri/excelize/v2"
)

// Timestamp layouts used in output file names
const (
	StampMinute = "20060102_1504"
	StampSecond = "20060102_150405"
)

// Stamp formats now with the given layout
func Stamp(now time.Time, layout string) string {
	return now.Format(layout)
}

// TimestampedName is prefix + the current time in layout + suffix
func TimestampedName(prefix, suffix, layout string) string {
	return prefix + Stamp(time.Now(), layout) + suffix
}

// WriteCSV writes a UTF-8 CSV with a BOM so spreadsheet apps detect the encoding
func WriteCSV(path string, headers []string, rows [][]string) error {
	w, err := NewCSVAppender(path, headers)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Append(row); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// WriteTable writes a Table as BOM-prefixed CSV
func WriteTable(path string, t *Table) error {
	return WriteCSV(path, t.Headers, t.Records())
}

// CSVAppender writes rows as they are produced, flushing after each one
type CSVAppender struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVAppender creates the file, writes the BOM and header row
func NewCSVAppender(path string, headers []string) (*CSVAppender, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", path)
	}
	if _, err := f.Write(utf8BOM); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "failed to write %s", path)
	}
	a := &CSVAppender{file: f, writer: csv.NewWriter(f)}
	if headers != nil {
		if err := a.Append(headers); err != nil {
			f.Close()
			return nil, err
		}
	}
	return a, nil
}

// Append writes one record and flushes it
func (a *CSVAppender) Append(record []string) error {
	if err := a.writer.Write(record); err != nil {
		return errors.Wrap(err, "failed to write CSV record")
	}
	a.writer.Flush()
	return a.writer.Error()
}

// Close flushes and closes the file
func (a *CSVAppender) Close() error {
	a.writer.Flush()
	if err := a.writer.Error(); err != nil {
		a.file.Close()
		return err
	}
	return a.file.Close()
}

// WriteXLSX writes a single-sheet workbook
func WriteXLSX(path, sheet string, headers []string, rows [][]string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return errors.Wrap(err, "failed to name sheet")
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return errors.Wrap(err, "failed to open sheet writer")
	}
	all := append([][]string{headers}, rows...)
	for i, record := range all {
		cells := make([]interface{}, len(record))
		for j, v := range record {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return errors.Wrapf(err, "failed to write row %d", i+1)
		}
	}
	if err := sw.Flush(); err != nil {
		return errors.Wrap(err, "failed to flush sheet")
	}
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "failed to save %s", path)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}
	return nil
}
