package batch

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Output columns appended after the input columns.
var resultColumns = []string{"churn_probability", "churn", "verdict", "error"}

// rows renders the report as a table: input columns followed by the result
// columns.
func (rep *Report) rows() [][]string {
	header := append(append([]string(nil), rep.Header...), resultColumns...)
	out := make([][]string, 0, len(rep.Results)+1)
	out = append(out, header)

	for _, res := range rep.Results {
		row := make([]string, len(rep.Header), len(header))
		copy(row, res.Values)
		if res.OK() {
			row = append(row,
				strconv.FormatFloat(res.Prediction.Probability(), 'f', -1, 64),
				strconv.FormatBool(res.Prediction.Churn()),
				string(res.Prediction.Verdict()),
				"",
			)
		} else {
			row = append(row, "", "", "", res.Err.Error())
		}
		out = append(out, row)
	}
	return out
}

// WriteCSV writes the report as CSV.
func WriteCSV(w io.Writer, rep *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rep.rows()); err != nil {
		return eris.Wrap(err, "batch: write csv")
	}
	return nil
}

// WriteXLSX writes the report to a single-sheet workbook.
func WriteXLSX(w io.Writer, rep *Report) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("predictions")
	if err != nil {
		return eris.Wrap(err, "batch: add sheet")
	}
	for _, values := range rep.rows() {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "batch: write xlsx")
	}
	return nil
}

// WriteFile writes the report to path, as XLSX when the extension is .xlsx
// and CSV otherwise.
func WriteFile(path string, rep *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "batch: create output")
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		err = WriteXLSX(f, rep)
	} else {
		err = WriteCSV(f, rep)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = eris.Wrap(cerr, "batch: close output")
	}
	return err
}
