// Package model defines the churn domain: the employee feature record, the
// prediction result and its two-branch verdict, and the input form schema.
package model

import (
	"strconv"
	"strings"
)

// Feature keys, in the order the input form presents them.
const (
	FieldDepartment   = "department"
	FieldPromoted     = "promoted"
	FieldReview       = "review"
	FieldProjects     = "projects"
	FieldSalary       = "salary"
	FieldTenure       = "tenure"
	FieldSatisfaction = "satisfaction"
	FieldBonus        = "bonus"
	FieldAvgHrsMonth  = "avg_hrs_month"
)

// FeatureKeys lists the nine feature keys in form order.
var FeatureKeys = []string{
	FieldDepartment,
	FieldPromoted,
	FieldReview,
	FieldProjects,
	FieldSalary,
	FieldTenure,
	FieldSatisfaction,
	FieldBonus,
	FieldAvgHrsMonth,
}

// Departments are the department names the vectorizer was trained on.
var Departments = []string{
	"sales",
	"retail",
	"operations",
	"engineering",
	"marketing",
	"support",
	"admin",
	"finance",
	"logistics",
	"IT",
}

// SalaryTiers are the salary categories the vectorizer was trained on.
var SalaryTiers = []string{"low", "medium", "high"}

// Employee is the feature record for one employee. Every field is required;
// domains are enforced by Validate.
type Employee struct {
	Department   string  `json:"department" validate:"required,oneof=sales retail operations engineering marketing support admin finance logistics IT"`
	Promoted     int     `json:"promoted" validate:"oneof=0 1"`
	Review       float64 `json:"review" validate:"min=0.01,max=1"`
	Projects     int     `json:"projects" validate:"min=1,max=5"`
	Salary       string  `json:"salary" validate:"required,oneof=low medium high"`
	Tenure       float64 `json:"tenure" validate:"min=1,max=12"`
	Satisfaction float64 `json:"satisfaction" validate:"min=0,max=1"`
	Bonus        int     `json:"bonus" validate:"oneof=0 1"`
	AvgHrsMonth  float64 `json:"avg_hrs_month" validate:"min=171,max=201"`
}

// DefaultEmployee returns the record every session starts from. The values
// double as a parity fixture and must not change.
func DefaultEmployee() Employee {
	return Employee{
		Department:   "operations",
		Promoted:     0,
		Review:       0.577569,
		Projects:     3,
		Salary:       "low",
		Tenure:       5.0,
		Satisfaction: 0.626759,
		Bonus:        0,
		AvgHrsMonth:  180.866070,
	}
}

// Features returns the record as the key/value mapping the vectorizer
// encodes. Categorical fields stay strings; everything else is a float64.
func (e Employee) Features() map[string]any {
	return map[string]any{
		FieldDepartment:   e.Department,
		FieldPromoted:     float64(e.Promoted),
		FieldReview:       e.Review,
		FieldProjects:     float64(e.Projects),
		FieldSalary:       e.Salary,
		FieldTenure:       e.Tenure,
		FieldSatisfaction: e.Satisfaction,
		FieldBonus:        float64(e.Bonus),
		FieldAvgHrsMonth:  e.AvgHrsMonth,
	}
}

// Pair is one row of the "parameters chosen" table.
type Pair struct {
	Feature string `json:"feature"`
	Value   string `json:"value"`
}

// Pairs returns the record as display rows in form order.
func (e Employee) Pairs() []Pair {
	return []Pair{
		{FieldDepartment, e.Department},
		{FieldPromoted, strconv.Itoa(e.Promoted)},
		{FieldReview, formatFloat(e.Review)},
		{FieldProjects, strconv.Itoa(e.Projects)},
		{FieldSalary, e.Salary},
		{FieldTenure, formatFloat(e.Tenure)},
		{FieldSatisfaction, formatFloat(e.Satisfaction)},
		{FieldBonus, strconv.Itoa(e.Bonus)},
		{FieldAvgHrsMonth, formatFloat(e.AvgHrsMonth)},
	}
}

// Key returns a canonical string that is equal for two records exactly when
// every field is equal. Floats use the shortest round-trip form, so distinct
// values never collide.
func (e Employee) Key() string {
	parts := make([]string, 0, len(FeatureKeys))
	for _, p := range e.Pairs() {
		parts = append(parts, p.Value)
	}
	return strings.Join(parts, "|")
}

// formatFloat renders the shortest round-trip form, always with a decimal
// point (5.0, not 5).
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".nN") {
		s += ".0"
	}
	return s
}
