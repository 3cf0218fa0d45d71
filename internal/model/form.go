package model

// Widget kinds used by the input form.
const (
	WidgetSelect = "select"
	WidgetPills  = "pills"
	WidgetSlider = "slider"
)

// FormField describes the input widget bound to one feature.
type FormField struct {
	Key      string   `json:"key"`
	Section  string   `json:"section"`
	Label    string   `json:"label"`
	Widget   string   `json:"widget"`
	Options  []string `json:"options,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Step     *float64 `json:"step,omitempty"`
	Initial  any      `json:"initial"`
	Integral bool     `json:"integral,omitempty"`
}

// YesNo are the two answers offered by pill widgets.
var YesNo = []string{"Yes", "No"}

// FormFields returns the widget descriptors in form order. Initial values are
// the widgets' own starting positions, which differ from DefaultEmployee.
func FormFields() []FormField {
	return []FormField{
		{
			Key:     FieldDepartment,
			Section: "Departments",
			Label:   "What department does the employee belong to?",
			Widget:  WidgetSelect,
			Options: Departments,
			Initial: "retail",
		},
		{
			Key:     FieldPromoted,
			Section: "Promoted status",
			Label:   "Was the employee promoted in the last 24 months?",
			Widget:  WidgetPills,
			Options: YesNo,
			Initial: "No",
		},
		{
			Key:     FieldReview,
			Section: "Review grade employee got",
			Label:   "Select a value between 0.01 and 1.0",
			Widget:  WidgetSlider,
			Min:     bound(0.01),
			Max:     bound(1.0),
			Step:    bound(0.01),
			Initial: 0.514585,
		},
		{
			Key:      FieldProjects,
			Section:  "How many projects employee is in",
			Label:    "Select a value 1 and 5",
			Widget:   WidgetSlider,
			Min:      bound(1),
			Max:      bound(5),
			Step:     bound(1),
			Initial:  4,
			Integral: true,
		},
		{
			Key:     FieldSalary,
			Section: "Tier of the employees salary",
			Label:   "Select the tier of the employees salary?",
			Widget:  WidgetSelect,
			Options: SalaryTiers,
			Initial: "high",
		},
		{
			Key:     FieldTenure,
			Section: "Number of years employee has been at the company",
			Label:   "Select a value between 1 and 12",
			Widget:  WidgetSlider,
			Min:     bound(1.0),
			Max:     bound(12.0),
			Step:    bound(0.1),
			Initial: 8.0,
		},
		{
			Key:     FieldSatisfaction,
			Section: "Rating of employees satisfaction from surveys",
			Label:   "Select a value between 0.0 and 1.0",
			Widget:  WidgetSlider,
			Min:     bound(0.0),
			Max:     bound(1.0),
			Step:    bound(0.1),
			Initial: 0.486957,
		},
		{
			Key:     FieldBonus,
			Section: "Bonus status",
			Label:   "Has the employee received a bonus in the last 24 months?",
			Widget:  WidgetPills,
			Options: YesNo,
			Initial: "Yes",
		},
		{
			Key:     FieldAvgHrsMonth,
			Section: "Avg hours of work per month by the employee",
			Label:   "Select a value between 171.0 and 201.0",
			Widget:  WidgetSlider,
			Min:     bound(171.0),
			Max:     bound(201.0),
			Step:    bound(0.1),
			Initial: 190.332987,
		},
	}
}

// FormFieldFor returns the descriptor for key, or nil if key is not a feature.
func FormFieldFor(key string) *FormField {
	for _, f := range FormFields() {
		if f.Key == key {
			return &f
		}
	}
	return nil
}

func bound(v float64) *float64 { return &v }
