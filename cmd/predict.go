package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/churn-cli/internal/churn"
	"github.com/sells-group/churn-cli/internal/model"
)

var (
	predictJSON   bool
	predictValues = map[string]*string{}
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict churn for one employee",
	Long:  "Scores one feature record. Every field defaults to the standard record; flags override single fields.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		art, err := loadArtifact("predict")
		if err != nil {
			return err
		}

		e, err := model.ParseEmployee(flagValues())
		if err != nil {
			return err
		}

		pred, err := churn.NewPredictor(art).Predict(ctx, e)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
			rec := model.PredictionRecord{
				Employee:   e,
				Prediction: pred,
				Model:      art.Name(),
				Source:     model.SourceCLI,
			}
			if err := st.SavePrediction(ctx, &rec); err != nil {
				zap.L().Warn("predict: save prediction", zap.Error(err))
			}
		}

		out := cmd.OutOrStdout()
		if predictJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Employee   model.Employee   `json:"employee"`
				Prediction model.Prediction `json:"prediction"`
			}{e, pred})
		}
		formatPrediction(out, e, pred)
		return nil
	},
}

func init() {
	def := model.DefaultEmployee()
	for _, p := range def.Pairs() {
		value := p.Value
		if p.Feature == model.FieldPromoted || p.Feature == model.FieldBonus {
			value = yesNo(value)
		}
		usage := p.Feature
		if f := model.FormFieldFor(p.Feature); f != nil {
			usage = f.Label
			if len(f.Options) > 0 {
				usage += " (" + strings.Join(f.Options, ", ") + ")"
			}
		}
		predictValues[p.Feature] = predictCmd.Flags().String(flagName(p.Feature), value, usage)
	}
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "print the record and prediction as JSON")
	rootCmd.AddCommand(predictCmd)
}

// flagValues collects the current flag values keyed by feature name.
func flagValues() map[string]string {
	values := make(map[string]string, len(predictValues))
	for key, v := range predictValues {
		values[key] = *v
	}
	return values
}

// flagName turns a feature key into a flag name (avg_hrs_month -> avg-hrs-month).
func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func yesNo(v string) string {
	if v == "1" {
		return "yes"
	}
	return "no"
}

// formatPrediction writes the parameters table followed by the verdict.
func formatPrediction(out io.Writer, e model.Employee, pred model.Prediction) {
	title := cases.Title(language.English)

	_, _ = fmt.Fprintln(out, "Parameters chosen")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FEATURE\tVALUE")
	_, _ = fmt.Fprintln(w, "-------\t-----")
	for _, p := range e.Pairs() {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", title.String(strings.ReplaceAll(p.Feature, "_", " ")), p.Value)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintf(out, "The employee is suspected to %s\n", pred.Verdict().Label())
	_, _ = fmt.Fprintf(out, "With the probability of %s\n", pred.FormatProbability())
	_, _ = fmt.Fprintln(out, pred.Verdict().Action())
}
