package model

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

var validate = newValidator()

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldViolation describes why one feature was rejected.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// InvalidFeatureError reports a feature record with a missing, malformed or
// out-of-domain field. It is a per-request error: nothing else is affected.
type InvalidFeatureError struct {
	Violations []FieldViolation `json:"violations"`
}

func (e *InvalidFeatureError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Field + " " + v.Message
	}
	return "invalid feature record: " + strings.Join(msgs, "; ")
}

// IsInvalidFeature reports whether err is or wraps an *InvalidFeatureError.
func IsInvalidFeature(err error) bool {
	var ife *InvalidFeatureError
	return errors.As(err, &ife)
}

// Validate checks that every field is inside its declared domain.
func (e Employee) Validate() error {
	return featureError(validate.Struct(e))
}

// employeeWire is the presence-aware shape of an incoming record. A nil
// pointer means the key was absent.
type employeeWire struct {
	Department   *string  `json:"department" validate:"required"`
	Promoted     *int     `json:"promoted" validate:"required"`
	Review       *float64 `json:"review" validate:"required"`
	Projects     *int     `json:"projects" validate:"required"`
	Salary       *string  `json:"salary" validate:"required"`
	Tenure       *float64 `json:"tenure" validate:"required"`
	Satisfaction *float64 `json:"satisfaction" validate:"required"`
	Bonus        *int     `json:"bonus" validate:"required"`
	AvgHrsMonth  *float64 `json:"avg_hrs_month" validate:"required"`
}

func (w employeeWire) employee() (Employee, error) {
	if err := featureError(validate.Struct(w)); err != nil {
		return Employee{}, err
	}
	e := Employee{
		Department:   *w.Department,
		Promoted:     *w.Promoted,
		Review:       *w.Review,
		Projects:     *w.Projects,
		Salary:       *w.Salary,
		Tenure:       *w.Tenure,
		Satisfaction: *w.Satisfaction,
		Bonus:        *w.Bonus,
		AvgHrsMonth:  *w.AvgHrsMonth,
	}
	if err := e.Validate(); err != nil {
		return Employee{}, err
	}
	return e, nil
}

// DecodeEmployee reads one JSON feature record. Omitted keys and values of
// the wrong JSON type are reported as *InvalidFeatureError; unknown keys are
// ignored. Syntax errors are returned as plain errors.
func DecodeEmployee(r io.Reader) (Employee, error) {
	var w employeeWire
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return Employee{}, &InvalidFeatureError{Violations: []FieldViolation{{
				Field:   typeErr.Field,
				Message: "must be " + kindName(typeErr.Type),
			}}}
		}
		return Employee{}, eris.Wrap(err, "model: decode employee")
	}
	return w.employee()
}

// ParseEmployee builds a record from string values keyed by feature name, as
// read from a CSV row or command-line flags. Blank values count as missing.
// Promoted and bonus accept yes/no as well as 1/0.
func ParseEmployee(values map[string]string) (Employee, error) {
	var w employeeWire
	var violations []FieldViolation

	for _, key := range FeatureKeys {
		raw := strings.TrimSpace(values[key])
		if raw == "" {
			continue
		}
		var err error
		switch key {
		case FieldDepartment:
			w.Department = &raw
		case FieldSalary:
			w.Salary = &raw
		case FieldPromoted:
			w.Promoted, err = parseIntPtr(raw, ParseYesNo)
		case FieldBonus:
			w.Bonus, err = parseIntPtr(raw, ParseYesNo)
		case FieldProjects:
			w.Projects, err = parseIntPtr(raw, strconv.Atoi)
		case FieldReview:
			w.Review, err = parseFloatPtr(raw)
		case FieldTenure:
			w.Tenure, err = parseFloatPtr(raw)
		case FieldSatisfaction:
			w.Satisfaction, err = parseFloatPtr(raw)
		case FieldAvgHrsMonth:
			w.AvgHrsMonth, err = parseFloatPtr(raw)
		}
		if err != nil {
			violations = append(violations, FieldViolation{Field: key, Message: "is malformed: " + raw})
		}
	}
	if len(violations) > 0 {
		return Employee{}, &InvalidFeatureError{Violations: violations}
	}
	return w.employee()
}

// ParseYesNo maps the form's Yes/No answers to 1/0. It also accepts 1/0 and
// true/false, case-insensitively.
func ParseYesNo(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "1", "true":
		return 1, nil
	case "no", "n", "0", "false":
		return 0, nil
	}
	return 0, eris.Errorf("model: %q is not yes or no", s)
}

func parseIntPtr(raw string, parse func(string) (int, error)) (*int, error) {
	n, err := parse(raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func parseFloatPtr(raw string) (*float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// featureError converts validator output into an *InvalidFeatureError.
func featureError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return eris.Wrap(err, "model: validate employee")
	}
	out := &InvalidFeatureError{Violations: make([]FieldViolation, 0, len(verrs))}
	for _, fe := range verrs {
		out.Violations = append(out.Violations, FieldViolation{
			Field:   fe.Field(),
			Message: describe(fe),
		})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	}
	return "is invalid"
}

func kindName(t reflect.Type) string {
	if t == nil {
		return "of a different type"
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int64:
		return "an integer"
	case reflect.Float64:
		return "a number"
	case reflect.String:
		return "a string"
	}
	return "a " + t.String()
}
