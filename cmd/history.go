package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/churn-cli/internal/model"
	"github.com/sells-group/churn-cli/internal/query"
	"github.com/sells-group/churn-cli/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored predictions",
	Long:  "Lists predictions from the audit log, newest first. --where takes a CEL expression over the record fields, probability, churn, verdict, model, source and created_at.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("history"); err != nil {
			return err
		}

		verdict, _ := cmd.Flags().GetString("verdict")
		source, _ := cmd.Flags().GetString("source")
		modelName, _ := cmd.Flags().GetString("model")
		where, _ := cmd.Flags().GetString("where")
		limit, _ := cmd.Flags().GetInt("limit")
		since, _ := cmd.Flags().GetDuration("since")
		asJSON, _ := cmd.Flags().GetBool("json")

		filter := store.PredictionFilter{
			Model:  modelName,
			Source: source,
			Limit:  limit,
		}
		if verdict != "" {
			v, err := model.ParseVerdict(verdict)
			if err != nil {
				return err
			}
			filter.Verdict = v
		}
		if since > 0 {
			filter.Since = time.Now().Add(-since)
		}

		var f *query.Filter
		if where != "" {
			var err error
			if f, err = query.Compile(where); err != nil {
				return err
			}
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recs, err := st.ListPredictions(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "history")
		}
		if f != nil {
			if recs, err = f.Apply(recs); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(recs)
		}

		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No predictions found.")
			return nil
		}

		formatHistory(out, recs)
		formatHistoryStats(out, computeHistoryStats(recs))
		return nil
	},
}

func init() {
	historyCmd.Flags().String("verdict", "", "filter by verdict (churn, not_churn)")
	historyCmd.Flags().String("source", "", "filter by source (api, cli, batch)")
	historyCmd.Flags().String("model", "", "filter by model name")
	historyCmd.Flags().String("where", "", `CEL filter, e.g. 'department == "sales" && probability > 0.7'`)
	historyCmd.Flags().Int("limit", 50, "max number of predictions to read")
	historyCmd.Flags().Duration("since", 0, "only predictions newer than this (e.g. 24h)")
	historyCmd.Flags().Bool("json", false, "print records as JSON")
	rootCmd.AddCommand(historyCmd)
}

// historyStats holds aggregate statistics over a set of predictions.
type historyStats struct {
	Total    int
	Churn    int
	NotChurn int
	AvgProb  float64
}

func computeHistoryStats(recs []model.PredictionRecord) historyStats {
	var s historyStats
	s.Total = len(recs)

	var sum float64
	for _, r := range recs {
		sum += r.Prediction.Probability()
		if r.Prediction.Churn() {
			s.Churn++
		} else {
			s.NotChurn++
		}
	}
	if s.Total > 0 {
		s.AvgProb = sum / float64(s.Total)
	}
	return s
}

// formatHistory writes a tabular list of predictions to out.
func formatHistory(out io.Writer, recs []model.PredictionRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tSOURCE\tDEPARTMENT\tSALARY\tPROBABILITY\tVERDICT")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t----------\t------\t-----------\t-------")

	for _, r := range recs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.Source,
			r.Employee.Department,
			r.Employee.Salary,
			r.Prediction.FormatProbability(),
			r.Prediction.Verdict().Label(),
		)
	}
	_ = w.Flush()
}

// formatHistoryStats writes aggregate stats to out.
func formatHistoryStats(out io.Writer, s historyStats) {
	_, _ = fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Churn:\t%d\n", s.Churn)
	_, _ = fmt.Fprintf(w, "Not churn:\t%d\n", s.NotChurn)
	_, _ = fmt.Fprintf(w, "Avg probability:\t%.3f\n", s.AvgProb)
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
