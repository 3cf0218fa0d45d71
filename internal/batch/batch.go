// Package batch scores a spreadsheet of employee records.
package batch

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/churn-cli/internal/churn"
	"github.com/sells-group/churn-cli/internal/model"
)

// Result is the outcome for one input row. Exactly one of Prediction and
// Err is meaningful.
type Result struct {
	Line       int // 1-based source line, header is line 1
	Values     []string
	Employee   model.Employee
	Prediction model.Prediction
	Err        error
}

// OK reports whether the row was scored.
func (r Result) OK() bool { return r.Err == nil }

// Report holds every row's result in input order.
type Report struct {
	Header  []string
	Results []Result
	Scored  int
	Failed  int
}

// Runner scores rows concurrently with a bounded worker pool.
type Runner struct {
	svc         churn.Service
	concurrency int
}

// NewRunner returns a Runner using up to concurrency workers.
func NewRunner(svc churn.Service, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{svc: svc, concurrency: concurrency}
}

// Run scores every row of in. A row that cannot be parsed or predicted
// records its error and does not stop the batch. Run fails only when the
// header lacks a feature column or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, in *Input) (*Report, error) {
	columns, err := columnIndex(in.Header)
	if err != nil {
		return nil, err
	}

	zap.L().Info("batch: scoring",
		zap.Int("rows", len(in.Rows)),
		zap.Int("concurrency", r.concurrency),
	)

	results := make([]Result, len(in.Rows))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, row := range in.Rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := Result{Line: in.Line(i), Values: row}
			res.Employee, res.Prediction, res.Err = r.score(gctx, columns, row)
			if res.Err != nil {
				failed.Add(1)
				zap.L().Debug("batch: row failed", zap.Int("line", res.Line), zap.Error(res.Err))
			}
			results[i] = res
			return nil // a bad row never aborts the batch
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch: run")
	}

	rep := &Report{
		Header:  in.Header,
		Results: results,
		Failed:  int(failed.Load()),
	}
	rep.Scored = len(results) - rep.Failed

	zap.L().Info("batch: complete",
		zap.Int("scored", rep.Scored),
		zap.Int("failed", rep.Failed),
	)
	return rep, nil
}

func (r *Runner) score(ctx context.Context, columns map[string]int, row []string) (model.Employee, model.Prediction, error) {
	values := make(map[string]string, len(columns))
	for key, idx := range columns {
		if idx < len(row) {
			values[key] = row[idx]
		}
	}

	e, err := model.ParseEmployee(values)
	if err != nil {
		return model.Employee{}, model.Prediction{}, err
	}
	pred, err := r.svc.Predict(ctx, e)
	if err != nil {
		return e, model.Prediction{}, err
	}
	return e, pred, nil
}

// columnIndex maps each feature key to its column. Header names are matched
// case-insensitively; extra columns are carried through untouched.
func columnIndex(header []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := pos[key]; !dup {
			pos[key] = i
		}
	}

	columns := make(map[string]int, len(model.FeatureKeys))
	var missing []string
	for _, key := range model.FeatureKeys {
		idx, ok := pos[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		columns[key] = idx
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("batch: input is missing columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

// Records returns an audit record for every scored row.
func (rep *Report) Records(modelName string) []model.PredictionRecord {
	recs := make([]model.PredictionRecord, 0, rep.Scored)
	for _, res := range rep.Results {
		if !res.OK() {
			continue
		}
		recs = append(recs, model.PredictionRecord{
			Employee:   res.Employee,
			Prediction: res.Prediction,
			Model:      modelName,
			Source:     model.SourceBatch,
		})
	}
	return recs
}
