package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/churn-cli/internal/artifact"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect the model artifact",
}

var modelInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print artifact metadata",
	RunE: func(cmd *cobra.Command, _ []string) error {
		art, err := loadArtifact("predict")
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(art.Info())
		}
		formatModelInfo(out, art.Info())
		return nil
	},
}

func init() {
	modelInspectCmd.Flags().Bool("json", false, "print metadata as JSON")
	modelCmd.AddCommand(modelInspectCmd)
	rootCmd.AddCommand(modelCmd)
}

func formatModelInfo(out io.Writer, info artifact.Info) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Name:\t%s\n", info.Name)
	_, _ = fmt.Fprintf(w, "Path:\t%s\n", info.Path)
	_, _ = fmt.Fprintf(w, "Classifier:\t%s\n", info.ClassifierType)
	_, _ = fmt.Fprintf(w, "SHA-256:\t%s\n", info.Checksum)
	_, _ = fmt.Fprintf(w, "Features:\t%d\n", len(info.FeatureNames))
	_ = w.Flush()
	for _, name := range info.FeatureNames {
		_, _ = fmt.Fprintln(out, "  "+name)
	}
}
