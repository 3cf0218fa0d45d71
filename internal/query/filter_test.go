package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/churn-cli/internal/model"
)

func record(dept, salary string, prob float64) model.PredictionRecord {
	e := model.DefaultEmployee()
	e.Department = dept
	e.Salary = salary
	return model.PredictionRecord{
		ID:         dept + "-" + salary,
		Employee:   e,
		Prediction: model.NewPrediction(prob),
		Model:      "model_C=1.0",
		Source:     model.SourceAPI,
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFilter_Match(t *testing.T) {
	t.Parallel()

	rec := record("sales", "low", 0.82)

	tests := []struct {
		expr string
		want bool
	}{
		{`churn`, true},
		{`!churn`, false},
		{`department == "sales" && salary == "low"`, true},
		{`probability > 0.9`, false},
		{`verdict == "churn"`, true},
		{`projects == 3 && promoted == 0`, true},
		{`tenure >= 5.0 && avg_hrs_month < 190.0`, true},
		{`department in ["IT", "admin"]`, false},
		{`source == "api" && model.startsWith("model_")`, true},
		{`created_at > timestamp("2026-01-01T00:00:00Z")`, true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()

			f, err := Compile(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expr, f.String())

			got, err := f.Match(rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilter_Apply(t *testing.T) {
	t.Parallel()

	recs := []model.PredictionRecord{
		record("sales", "low", 0.9),
		record("IT", "high", 0.1),
		record("support", "low", 0.6),
		record("sales", "medium", 0.4),
	}

	f, err := Compile(`churn && salary == "low"`)
	require.NoError(t, err)

	got, err := f.Apply(recs)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sales-low", got[0].ID)
	assert.Equal(t, "support-low", got[1].ID)
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
		msg  string
	}{
		{"empty", ``, "empty expression"},
		{"syntax", `churn &&`, "query: compile"},
		{"unknown variable", `age > 30`, "query: compile"},
		{"type mismatch", `department > 3`, "query: compile"},
		{"not bool", `probability * 2.0`, "want bool"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := Compile(tt.expr)
			require.Error(t, err)
			assert.Nil(t, f)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestFilter_EvalError(t *testing.T) {
	t.Parallel()

	f, err := Compile(`projects / (promoted) > 1`)
	require.NoError(t, err)

	_, err = f.Match(record("sales", "low", 0.5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query: eval")
}
