// Package query filters stored predictions with CEL expressions such as
// `churn && department == "sales"` or `probability > 0.8 && tenure < 3.0`.
package query

import (
	"github.com/google/cel-go/cel"
	"github.com/rotisserie/eris"

	"github.com/sells-group/churn-cli/internal/model"
)

// costLimit bounds the work a single evaluation may do.
const costLimit = 100000

// Filter is a compiled boolean expression over one prediction record. It is
// safe for concurrent use.
type Filter struct {
	expr string
	prog cel.Program
}

var env = newEnv()

func newEnv() *cel.Env {
	e, err := cel.NewEnv(
		cel.Variable(model.FieldDepartment, cel.StringType),
		cel.Variable(model.FieldPromoted, cel.IntType),
		cel.Variable(model.FieldReview, cel.DoubleType),
		cel.Variable(model.FieldProjects, cel.IntType),
		cel.Variable(model.FieldSalary, cel.StringType),
		cel.Variable(model.FieldTenure, cel.DoubleType),
		cel.Variable(model.FieldSatisfaction, cel.DoubleType),
		cel.Variable(model.FieldBonus, cel.IntType),
		cel.Variable(model.FieldAvgHrsMonth, cel.DoubleType),
		cel.Variable("probability", cel.DoubleType),
		cel.Variable("churn", cel.BoolType),
		cel.Variable("verdict", cel.StringType),
		cel.Variable("model", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("created_at", cel.TimestampType),
	)
	if err != nil {
		panic(eris.Wrap(err, "query: create CEL environment"))
	}
	return e
}

// Compile parses and type-checks expr. The expression must evaluate to a
// bool.
func Compile(expr string) (*Filter, error) {
	if expr == "" {
		return nil, eris.New("query: empty expression")
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, eris.Wrapf(issues.Err(), "query: compile %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, eris.Errorf("query: %q evaluates to %s, want bool", expr, ast.OutputType())
	}
	prog, err := env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, eris.Wrapf(err, "query: program %q", expr)
	}
	return &Filter{expr: expr, prog: prog}, nil
}

// String returns the source expression.
func (f *Filter) String() string { return f.expr }

// Match reports whether rec satisfies the filter.
func (f *Filter) Match(rec model.PredictionRecord) (bool, error) {
	out, _, err := f.prog.Eval(Vars(rec))
	if err != nil {
		return false, eris.Wrapf(err, "query: eval %q", f.expr)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, eris.Errorf("query: %q returned %T, want bool", f.expr, out.Value())
	}
	return matched, nil
}

// Apply returns the records that match, preserving order.
func (f *Filter) Apply(recs []model.PredictionRecord) ([]model.PredictionRecord, error) {
	out := make([]model.PredictionRecord, 0, len(recs))
	for _, rec := range recs {
		ok, err := f.Match(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Vars is the activation a filter sees for rec.
func Vars(rec model.PredictionRecord) map[string]any {
	e := rec.Employee
	return map[string]any{
		model.FieldDepartment:   e.Department,
		model.FieldPromoted:     int64(e.Promoted),
		model.FieldReview:       e.Review,
		model.FieldProjects:     int64(e.Projects),
		model.FieldSalary:       e.Salary,
		model.FieldTenure:       e.Tenure,
		model.FieldSatisfaction: e.Satisfaction,
		model.FieldBonus:        int64(e.Bonus),
		model.FieldAvgHrsMonth:  e.AvgHrsMonth,
		"probability":           rec.Prediction.Probability(),
		"churn":                 rec.Prediction.Churn(),
		"verdict":               string(rec.Prediction.Verdict()),
		"model":                 rec.Model,
		"source":                rec.Source,
		"created_at":            rec.CreatedAt,
	}
}
