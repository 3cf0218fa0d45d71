package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/churn-cli/internal/artifact"
	"github.com/sells-group/churn-cli/internal/churn"
	"github.com/sells-group/churn-cli/internal/model"
)

func newTestRunner(t *testing.T, concurrency int) *Runner {
	t.Helper()
	art, err := artifact.Load("testdata/model.json")
	require.NoError(t, err)
	return NewRunner(churn.NewPredictor(art), concurrency)
}

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestRun_CSV(t *testing.T) {
	t.Parallel()

	in, err := ReadFile(context.Background(), "testdata/employees.csv", "")
	require.NoError(t, err)
	require.Len(t, in.Rows, 5)

	rep, err := newTestRunner(t, 3).Run(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, rep.Results, 5)
	assert.Equal(t, 2, rep.Scored)
	assert.Equal(t, 3, rep.Failed)

	// Results stay in input order.
	for i, res := range rep.Results {
		assert.Equal(t, i+2, res.Line)
		assert.Equal(t, in.Rows[i][0], res.Values[0])
	}

	first := rep.Results[0]
	require.True(t, first.OK())
	assert.InDelta(t, 0.5531848018859788, first.Prediction.Probability(), 1e-12)
	assert.Equal(t, model.DefaultEmployee(), first.Employee)

	second := rep.Results[1]
	require.True(t, second.OK())
	assert.Equal(t, 0, second.Employee.Promoted)
	assert.Equal(t, 1, second.Employee.Bonus)

	assert.True(t, model.IsInvalidFeature(rep.Results[2].Err))
	assert.Contains(t, rep.Results[2].Err.Error(), "department must be one of")
	assert.Contains(t, rep.Results[3].Err.Error(), "tenure is required")
	assert.Contains(t, rep.Results[4].Err.Error(), "promoted is malformed: maybe")
}

func TestRun_MissingColumns(t *testing.T) {
	t.Parallel()

	in := &Input{
		Header: []string{"department", "salary"},
		Rows:   [][]string{{"sales", "low"}},
	}
	_, err := newTestRunner(t, 1).Run(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing columns: promoted, review, projects, tenure, satisfaction, bonus, avg_hrs_month")
}

func TestRun_HeaderWithBOM(t *testing.T) {
	t.Parallel()

	in, err := ReadCSV(context.Background(), strings.NewReader(
		"\ufeffdepartment,promoted,review,projects,salary,tenure,satisfaction,bonus,avg_hrs_month\n"+
			"sales,0,0.5,3,low,5,0.5,0,180\n",
	))
	require.NoError(t, err)
	assert.Equal(t, "department", in.Header[0])

	rep, err := newTestRunner(t, 1).Run(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Scored)
	assert.Equal(t, "sales", rep.Results[0].Employee.Department)
}

func TestRun_LinesSkipBlankRows(t *testing.T) {
	t.Parallel()

	in, err := ReadCSV(context.Background(), strings.NewReader(
		"department,promoted,review,projects,salary,tenure,satisfaction,bonus,avg_hrs_month\n"+
			"sales,0,0.5,3,low,5,0.5,0,180\n"+
			",,,,,,,,\n"+
			"\n"+
			"legal,0,0.5,3,low,5,0.5,0,180\n",
	))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, in.Lines)

	rep, err := newTestRunner(t, 2).Run(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, rep.Results, 2)
	assert.Equal(t, 2, rep.Results[0].Line)
	assert.Equal(t, 5, rep.Results[1].Line)
	assert.False(t, rep.Results[1].OK())
}

func TestInput_LineWithoutSourceLines(t *testing.T) {
	t.Parallel()

	in := &Input{Rows: [][]string{{"a"}, {"b"}}}
	assert.Equal(t, 2, in.Line(0))
	assert.Equal(t, 3, in.Line(1))
}

func TestRun_HeaderCaseInsensitive(t *testing.T) {
	t.Parallel()

	in, err := ReadCSV(context.Background(), strings.NewReader(
		"Department, Promoted, Review, Projects, Salary, Tenure, Satisfaction, Bonus, AVG_HRS_MONTH\n"+
			"operations,0,0.577569,3,low,5.0,0.626759,0,180.86607\n"+
			",,,,,,,,\n",
	))
	require.NoError(t, err)
	require.Len(t, in.Rows, 1, "blank rows are skipped")

	rep, err := newTestRunner(t, 2).Run(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Scored)
}

type countingService struct {
	calls atomic.Int32
	next  churn.Service
}

func (c *countingService) Predict(ctx context.Context, e model.Employee) (model.Prediction, error) {
	c.calls.Add(1)
	return c.next.Predict(ctx, e)
}

func TestRun_ManyRows(t *testing.T) {
	t.Parallel()

	art, err := artifact.Load("testdata/model.json")
	require.NoError(t, err)
	svc := &countingService{next: churn.NewPredictor(art)}

	in := &Input{Header: append([]string(nil), model.FeatureKeys...)}
	for range 200 {
		in.Rows = append(in.Rows, []string{"operations", "0", "0.577569", "3", "low", "5.0", "0.626759", "0", "180.86607"})
	}

	rep, err := NewRunner(svc, 8).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 200, rep.Scored)
	assert.Equal(t, int32(200), svc.calls.Load())
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := &Input{Header: append([]string(nil), model.FeatureKeys...), Rows: [][]string{
		{"operations", "0", "0.577569", "3", "low", "5.0", "0.626759", "0", "180.86607"},
	}}
	_, err := newTestRunner(t, 1).Run(ctx, in)
	require.Error(t, err)
}

func TestReadFile_XLSX(t *testing.T) {
	t.Parallel()

	path := createTestXLSX(t, map[string][][]string{
		"Staff": {
			model.FeatureKeys,
			{"sales", "Yes", "0.514585", "4", "high", "8", "0.486957", "No", "190.332987"},
		},
	})

	in, err := ReadFile(context.Background(), path, "Staff")
	require.NoError(t, err)
	assert.Equal(t, model.FeatureKeys, in.Header)
	require.Len(t, in.Rows, 1)

	rep, err := newTestRunner(t, 1).Run(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Scored)
	assert.Equal(t, 1, rep.Results[0].Employee.Promoted)

	_, err = ReadFile(context.Background(), path, "Missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Missing" not found`)
}

func TestReadFile_Errors(t *testing.T) {
	t.Parallel()

	_, err := ReadFile(context.Background(), "testdata/employees.json", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported input format")

	_, err = ReadFile(context.Background(), filepath.Join(t.TempDir(), "none.csv"), "")
	require.Error(t, err)

	_, err = ReadCSV(context.Background(), strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header row")
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	in, err := ReadFile(context.Background(), "testdata/employees.csv", "")
	require.NoError(t, err)
	rep, err := newTestRunner(t, 2).Run(context.Background(), in)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rep))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)

	header := rows[0]
	assert.Equal(t, "employee_id", header[0])
	assert.Equal(t, []string{"churn_probability", "churn", "verdict", "error"}, header[len(header)-4:])

	first := rows[1]
	assert.Equal(t, "E-1", first[0])
	assert.Equal(t, "true", first[len(first)-3])
	assert.Equal(t, "churn", first[len(first)-2])
	assert.Empty(t, first[len(first)-1])

	bad := rows[3]
	assert.Empty(t, bad[len(bad)-4])
	assert.Contains(t, bad[len(bad)-1], "department")
}

func TestWriteFile_XLSX(t *testing.T) {
	t.Parallel()

	in, err := ReadFile(context.Background(), "testdata/employees.csv", "")
	require.NoError(t, err)
	rep, err := newTestRunner(t, 2).Run(context.Background(), in)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteFile(path, rep))

	back, err := ReadFile(context.Background(), path, "predictions")
	require.NoError(t, err)
	assert.Len(t, back.Rows, 5)
	assert.Equal(t, "verdict", back.Header[len(back.Header)-2])

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestReport_Records(t *testing.T) {
	t.Parallel()

	in, err := ReadFile(context.Background(), "testdata/employees.csv", "")
	require.NoError(t, err)
	rep, err := newTestRunner(t, 2).Run(context.Background(), in)
	require.NoError(t, err)

	recs := rep.Records("model_C=1.0")
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, model.SourceBatch, r.Source)
		assert.Equal(t, "model_C=1.0", r.Model)
	}
}
