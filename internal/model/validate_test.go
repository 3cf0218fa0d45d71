package model

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func violationFields(t *testing.T, err error) []string {
	t.Helper()
	var ife *InvalidFeatureError
	require.True(t, errors.As(err, &ife), "expected InvalidFeatureError, got %v", err)
	fields := make([]string, len(ife.Violations))
	for i, v := range ife.Violations {
		fields[i] = v.Field
	}
	return fields
}

func TestEmployeeValidate_Default(t *testing.T) {
	t.Parallel()
	assert.NoError(t, DefaultEmployee().Validate())
}

func TestEmployeeValidate_Boundaries(t *testing.T) {
	t.Parallel()

	t.Run("all minimums", func(t *testing.T) {
		t.Parallel()
		e := DefaultEmployee()
		e.Satisfaction = 0.0
		e.Review = 0.01
		e.Projects = 1
		e.Tenure = 1.0
		e.AvgHrsMonth = 171.0
		assert.NoError(t, e.Validate())
	})

	t.Run("all maximums", func(t *testing.T) {
		t.Parallel()
		e := DefaultEmployee()
		e.Satisfaction = 1.0
		e.Review = 1.0
		e.Projects = 5
		e.Tenure = 12.0
		e.AvgHrsMonth = 201.0
		assert.NoError(t, e.Validate())
	})
}

func TestEmployeeValidate_OutOfDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Employee)
		field  string
		msg    string
	}{
		{"unknown department", func(e *Employee) { e.Department = "legal" }, "department", "must be one of"},
		{"department case matters", func(e *Employee) { e.Department = "it" }, "department", "must be one of"},
		{"empty salary", func(e *Employee) { e.Salary = "" }, "salary", "is required"},
		{"unknown salary", func(e *Employee) { e.Salary = "extreme" }, "salary", "must be one of low, medium, high"},
		{"promoted not binary", func(e *Employee) { e.Promoted = 2 }, "promoted", "must be one of 0, 1"},
		{"bonus negative", func(e *Employee) { e.Bonus = -1 }, "bonus", "must be one of"},
		{"review too low", func(e *Employee) { e.Review = 0.0 }, "review", "must be at least 0.01"},
		{"review too high", func(e *Employee) { e.Review = 1.01 }, "review", "must be at most 1"},
		{"projects zero", func(e *Employee) { e.Projects = 0 }, "projects", "must be at least 1"},
		{"projects six", func(e *Employee) { e.Projects = 6 }, "projects", "must be at most 5"},
		{"tenure short", func(e *Employee) { e.Tenure = 0.5 }, "tenure", "must be at least 1"},
		{"satisfaction negative", func(e *Employee) { e.Satisfaction = -0.1 }, "satisfaction", "must be at least 0"},
		{"hours high", func(e *Employee) { e.AvgHrsMonth = 201.5 }, "avg_hrs_month", "must be at most 201"},
		{"hours NaN", func(e *Employee) { e.AvgHrsMonth = math.NaN() }, "avg_hrs_month", "must be at least 171"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := DefaultEmployee()
			tt.mutate(&e)
			err := e.Validate()
			require.Error(t, err)
			assert.Equal(t, []string{tt.field}, violationFields(t, err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestDecodeEmployee(t *testing.T) {
	t.Parallel()

	t.Run("full record", func(t *testing.T) {
		t.Parallel()
		body := `{"department":"operations","promoted":0,"review":0.577569,"projects":3,
			"salary":"low","tenure":5.0,"satisfaction":0.626759,"bonus":0,"avg_hrs_month":180.86607}`
		e, err := DecodeEmployee(strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, DefaultEmployee(), e)
	})

	t.Run("zero values are present, not missing", func(t *testing.T) {
		t.Parallel()
		body := `{"department":"sales","promoted":0,"review":0.5,"projects":1,
			"salary":"high","tenure":1,"satisfaction":0,"bonus":0,"avg_hrs_month":171}`
		e, err := DecodeEmployee(strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, 0.0, e.Satisfaction)
		assert.Equal(t, 0, e.Bonus)
	})

	t.Run("salary omitted", func(t *testing.T) {
		t.Parallel()
		body := `{"department":"operations","promoted":0,"review":0.577569,"projects":3,
			"tenure":5.0,"satisfaction":0.626759,"bonus":0,"avg_hrs_month":180.86607}`
		_, err := DecodeEmployee(strings.NewReader(body))
		require.Error(t, err)
		assert.True(t, IsInvalidFeature(err))
		assert.Equal(t, []string{"salary"}, violationFields(t, err))
	})

	t.Run("empty object reports every field", func(t *testing.T) {
		t.Parallel()
		_, err := DecodeEmployee(strings.NewReader(`{}`))
		assert.Equal(t, FeatureKeys, violationFields(t, err))
	})

	t.Run("unknown keys are ignored", func(t *testing.T) {
		t.Parallel()
		body := `{"department":"IT","promoted":1,"review":0.9,"projects":5,"salary":"medium",
			"tenure":12,"satisfaction":1,"bonus":1,"avg_hrs_month":201,"employee_id":"e-42"}`
		e, err := DecodeEmployee(strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, "IT", e.Department)
	})

	t.Run("wrong json type", func(t *testing.T) {
		t.Parallel()
		body := `{"department":"IT","promoted":"yes","review":0.9,"projects":5,"salary":"medium",
			"tenure":12,"satisfaction":1,"bonus":1,"avg_hrs_month":201}`
		_, err := DecodeEmployee(strings.NewReader(body))
		require.Error(t, err)
		assert.Equal(t, []string{"promoted"}, violationFields(t, err))
		assert.Contains(t, err.Error(), "must be an integer")
	})

	t.Run("out of domain after decoding", func(t *testing.T) {
		t.Parallel()
		body := `{"department":"IT","promoted":1,"review":0.9,"projects":9,"salary":"medium",
			"tenure":12,"satisfaction":1,"bonus":1,"avg_hrs_month":201}`
		_, err := DecodeEmployee(strings.NewReader(body))
		assert.Equal(t, []string{"projects"}, violationFields(t, err))
	})

	t.Run("syntax error is not a feature error", func(t *testing.T) {
		t.Parallel()
		_, err := DecodeEmployee(strings.NewReader(`{"department":`))
		require.Error(t, err)
		assert.False(t, IsInvalidFeature(err))
	})
}

func TestParseEmployee(t *testing.T) {
	t.Parallel()

	full := map[string]string{
		"department":    "engineering",
		"promoted":      "Yes",
		"review":        "0.71",
		"projects":      "4",
		"salary":        "medium",
		"tenure":        "6.5",
		"satisfaction":  "0.3",
		"bonus":         "no",
		"avg_hrs_month": " 185.2 ",
	}

	t.Run("parses every field", func(t *testing.T) {
		t.Parallel()
		e, err := ParseEmployee(full)
		require.NoError(t, err)
		assert.Equal(t, Employee{
			Department:   "engineering",
			Promoted:     1,
			Review:       0.71,
			Projects:     4,
			Salary:       "medium",
			Tenure:       6.5,
			Satisfaction: 0.3,
			Bonus:        0,
			AvgHrsMonth:  185.2,
		}, e)
	})

	t.Run("blank salary is missing", func(t *testing.T) {
		t.Parallel()
		values := make(map[string]string, len(full))
		for k, v := range full {
			values[k] = v
		}
		values["salary"] = "  "
		_, err := ParseEmployee(values)
		assert.Equal(t, []string{"salary"}, violationFields(t, err))
	})

	t.Run("malformed numbers", func(t *testing.T) {
		t.Parallel()
		values := make(map[string]string, len(full))
		for k, v := range full {
			values[k] = v
		}
		values["projects"] = "three"
		values["bonus"] = "maybe"
		_, err := ParseEmployee(values)
		assert.Equal(t, []string{"projects", "bonus"}, violationFields(t, err))
		assert.Contains(t, err.Error(), "is malformed: three")
	})
}

func TestParseYesNo(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]int{"Yes": 1, "no": 0, "1": 1, "0": 0, "TRUE": 1, "n": 0} {
		got, err := ParseYesNo(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseYesNo("sometimes")
	assert.Error(t, err)
}
