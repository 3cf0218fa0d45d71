package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/churn-cli/internal/batch"
	"github.com/sells-group/churn-cli/internal/churn"
)

var (
	batchInput       string
	batchOutput      string
	batchSheet       string
	batchConcurrency int
	batchSave        bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Score every row of a CSV or XLSX file",
	Long:  "Reads employee records from a CSV or XLSX file, scores each row and writes the input columns plus churn_probability, churn, verdict and error. Invalid rows are reported on their own line and do not stop the batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if batchConcurrency != 0 {
			cfg.Batch.Concurrency = batchConcurrency
		}

		art, err := loadArtifact("batch")
		if err != nil {
			return err
		}

		in, err := batch.ReadFile(ctx, batchInput, batchSheet)
		if err != nil {
			return err
		}

		svc := newService(churn.NewPredictor(art))
		rep, err := batch.NewRunner(svc, cfg.Batch.Concurrency).Run(ctx, in)
		if err != nil {
			return err
		}

		if batchOutput != "" {
			if err := batch.WriteFile(batchOutput, rep); err != nil {
				return err
			}
		} else if err := batch.WriteCSV(cmd.OutOrStdout(), rep); err != nil {
			return err
		}

		if batchSave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			if st == nil {
				return eris.New("batch: --save needs store.driver sqlite or postgres")
			}
			defer st.Close() //nolint:errcheck

			n, err := st.SavePredictions(ctx, rep.Records(art.Name()))
			if err != nil {
				return eris.Wrap(err, "batch: save predictions")
			}
			zap.L().Info("batch: saved predictions", zap.Int64("count", n))
		}

		fmt.Fprintf(os.Stderr, "Scored %d rows, %d failed.\n", rep.Scored, rep.Failed)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "input file (.csv or .xlsx)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "output file (.csv or .xlsx, default stdout as CSV)")
	batchCmd.Flags().StringVar(&batchSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "parallel scoring workers (default from config)")
	batchCmd.Flags().BoolVar(&batchSave, "save", false, "write predictions to the audit log")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}
