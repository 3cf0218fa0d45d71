package churn

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/churn-cli/internal/artifact"
	"github.com/sells-group/churn-cli/internal/model"
)

func loadArtifact(t *testing.T, name string) *artifact.Artifact {
	t.Helper()
	art, err := artifact.Load("testdata/" + name)
	require.NoError(t, err)
	return art
}

func TestPredict_DefaultRecord(t *testing.T) {
	t.Parallel()

	p := NewPredictor(loadArtifact(t, "model.json"))
	pred, err := p.Predict(context.Background(), model.DefaultEmployee())
	require.NoError(t, err)

	assert.InDelta(t, 0.5531848018859788, pred.Probability(), 1e-12)
	assert.True(t, pred.Churn())
	assert.Equal(t, model.VerdictChurn, pred.Verdict())
	assert.Equal(t, "0.553", pred.FormatProbability())
}

func TestPredict_Deterministic(t *testing.T) {
	t.Parallel()

	p := NewPredictor(loadArtifact(t, "model.json"))
	e := model.DefaultEmployee()

	first, err := p.Predict(context.Background(), e)
	require.NoError(t, err)
	second, err := p.Predict(context.Background(), e)
	require.NoError(t, err)

	assert.Equal(t, math.Float64bits(first.Probability()), math.Float64bits(second.Probability()))
}

func TestPredict_Boundaries(t *testing.T) {
	t.Parallel()

	p := NewPredictor(loadArtifact(t, "model.json"))

	lo := model.Employee{
		Department: "sales", Promoted: 0, Review: 0.01, Projects: 1, Salary: "low",
		Tenure: 1, Satisfaction: 0, Bonus: 0, AvgHrsMonth: 171,
	}
	hi := model.Employee{
		Department: "IT", Promoted: 1, Review: 1, Projects: 5, Salary: "high",
		Tenure: 12, Satisfaction: 1, Bonus: 1, AvgHrsMonth: 201,
	}

	for _, e := range []model.Employee{lo, hi} {
		pred, err := p.Predict(context.Background(), e)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, pred.Probability(), 0.0)
		assert.LessOrEqual(t, pred.Probability(), 1.0)
		assert.Equal(t, pred.Probability() >= model.ChurnThreshold, pred.Churn())
	}
}

func TestPredict_EveryCategory(t *testing.T) {
	t.Parallel()

	p := NewPredictor(loadArtifact(t, "model.json"))
	for _, dept := range model.Departments {
		for _, salary := range model.SalaryTiers {
			e := model.DefaultEmployee()
			e.Department = dept
			e.Salary = salary

			pred, err := p.Predict(context.Background(), e)
			require.NoError(t, err, "%s/%s", dept, salary)
			assert.Equal(t, pred.Probability() >= 0.5, pred.Churn())
		}
	}
}

func TestPredict_ThresholdIsInclusive(t *testing.T) {
	t.Parallel()

	p := NewPredictor(loadArtifact(t, "zero.json"))
	pred, err := p.Predict(context.Background(), model.DefaultEmployee())
	require.NoError(t, err)

	assert.Equal(t, 0.5, pred.Probability())
	assert.True(t, pred.Churn())
	assert.Equal(t, "0.500", pred.FormatProbability())
}

func TestPredict_DecisionTree(t *testing.T) {
	t.Parallel()

	p := NewPredictor(loadArtifact(t, "tree.json"))

	e := model.DefaultEmployee()
	e.Review = 0.6
	pred, err := p.Predict(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, 0.2, pred.Probability())
	assert.Equal(t, model.VerdictNotChurn, pred.Verdict())
}

func TestPredict_InvalidRecord(t *testing.T) {
	t.Parallel()

	p := NewPredictor(loadArtifact(t, "model.json"))

	tests := []struct {
		name   string
		mutate func(*model.Employee)
		field  string
	}{
		{"missing salary", func(e *model.Employee) { e.Salary = "" }, "salary"},
		{"unknown department", func(e *model.Employee) { e.Department = "legal" }, "department"},
		{"review too low", func(e *model.Employee) { e.Review = 0 }, "review"},
		{"too many projects", func(e *model.Employee) { e.Projects = 6 }, "projects"},
		{"hours too high", func(e *model.Employee) { e.AvgHrsMonth = 201.5 }, "avg_hrs_month"},
		{"promoted not binary", func(e *model.Employee) { e.Promoted = 2 }, "promoted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := model.DefaultEmployee()
			tt.mutate(&e)

			_, err := p.Predict(context.Background(), e)
			require.Error(t, err)

			var ife *model.InvalidFeatureError
			require.True(t, errors.As(err, &ife))
			require.Len(t, ife.Violations, 1)
			assert.Equal(t, tt.field, ife.Violations[0].Field)
		})
	}
}

func TestPredict_CanceledContext(t *testing.T) {
	t.Parallel()

	p := NewPredictor(loadArtifact(t, "model.json"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Predict(ctx, model.DefaultEmployee())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPredict_Concurrent(t *testing.T) {
	t.Parallel()

	p := NewPredictor(loadArtifact(t, "model.json"))
	want, err := p.Predict(context.Background(), model.DefaultEmployee())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := p.Predict(context.Background(), model.DefaultEmployee())
			assert.NoError(t, err)
			assert.Equal(t, want.Probability(), got.Probability())
		}()
	}
	wg.Wait()
}

type recordingObserver struct {
	mu       sync.Mutex
	verdicts []model.Verdict
	errs     []error
}

func (o *recordingObserver) ObservePrediction(pred model.Prediction, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.verdicts = append(o.verdicts, pred.Verdict())
}

func (o *recordingObserver) ObserveError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

func TestPredict_Observer(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	p := NewPredictor(loadArtifact(t, "model.json"), WithObserver(obs))

	_, err := p.Predict(context.Background(), model.DefaultEmployee())
	require.NoError(t, err)

	bad := model.DefaultEmployee()
	bad.Salary = "none"
	_, err = p.Predict(context.Background(), bad)
	require.Error(t, err)

	assert.Equal(t, []model.Verdict{model.VerdictChurn}, obs.verdicts)
	require.Len(t, obs.errs, 1)
	assert.True(t, model.IsInvalidFeature(obs.errs[0]))
}

func TestPredictor_Artifact(t *testing.T) {
	t.Parallel()

	art := loadArtifact(t, "model.json")
	assert.Same(t, art, NewPredictor(art).Artifact())
}
