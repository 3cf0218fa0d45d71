package batch

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// utf8BOM prefixes files saved as "CSV UTF-8" by spreadsheet tools.
const utf8BOM = "\ufeff"

// Input is a parsed spreadsheet: a header row and the data rows under it.
// Lines holds the 1-based source line of each row; blank rows are skipped,
// so it is not always the row index plus two.
type Input struct {
	Header []string
	Rows   [][]string
	Lines  []int
}

// Line returns the source line of row i.
func (in *Input) Line(i int) int {
	if i < len(in.Lines) {
		return in.Lines[i]
	}
	return i + 2
}

// sourceRow is one record and the line it started on.
type sourceRow struct {
	line  int
	cells []string
}

// ReadFile loads a .csv or .xlsx file. sheet selects an XLSX worksheet by
// name; empty means the first sheet.
func ReadFile(ctx context.Context, path, sheet string) (*Input, error) {
	var rowCh <-chan sourceRow
	var errCh <-chan error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rowCh, errCh = streamXLSX(ctx, path, sheet)
	case ".csv", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "batch: open input")
		}
		defer f.Close()
		rowCh, errCh = streamCSV(ctx, f)
	default:
		return nil, eris.Errorf("batch: unsupported input format %q", filepath.Ext(path))
	}

	return collect(rowCh, errCh)
}

// ReadCSV parses CSV from r.
func ReadCSV(ctx context.Context, r io.Reader) (*Input, error) {
	rowCh, errCh := streamCSV(ctx, r)
	return collect(rowCh, errCh)
}

func collect(rowCh <-chan sourceRow, errCh <-chan error) (*Input, error) {
	in := &Input{}
	first := true
	for row := range rowCh {
		if first {
			in.Header = row.cells
			if len(in.Header) > 0 {
				in.Header[0] = strings.TrimPrefix(in.Header[0], utf8BOM)
			}
			first = false
			continue
		}
		if blank(row.cells) {
			continue
		}
		in.Rows = append(in.Rows, row.cells)
		in.Lines = append(in.Lines, row.line)
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	if in.Header == nil {
		return nil, eris.New("batch: input has no header row")
	}
	return in, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// streamCSV reads CSV rows, header included, and sends them to a channel.
// Both channels are closed when processing completes.
func streamCSV(ctx context.Context, r io.Reader) (<-chan sourceRow, <-chan error) {
	rowCh := make(chan sourceRow, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1 // allow variable fields
		reader.TrimLeadingSpace = true

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			line, _ := reader.FieldPos(0)

			select {
			case rowCh <- sourceRow{line: line, cells: record}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// streamXLSX reads worksheet rows, header included, and sends them to a
// channel. Both channels are closed when processing completes.
func streamXLSX(ctx context.Context, path, sheetName string) (<-chan sourceRow, <-chan error) {
	rowCh := make(chan sourceRow, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := xlsx.OpenFile(path)
		if err != nil {
			errCh <- eris.Wrap(err, "xlsx: open file")
			return
		}

		sheet, err := getSheet(f, sheetName)
		if err != nil {
			errCh <- err
			return
		}

		for i, row := range sheet.Rows {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}

			select {
			case rowCh <- sourceRow{line: i + 1, cells: rowToStrings(row)}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
