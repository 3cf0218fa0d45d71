package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/churn-cli/internal/churn"
	"github.com/sells-group/churn-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve churn predictions over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		art, err := loadArtifact("serve")
		if err != nil {
			return err
		}

		metrics := server.NewMetrics()
		cached := newService(churn.NewPredictor(art))
		metrics.RegisterCache(cached)
		svc := churn.Observe(cached, metrics)

		opts := []server.Option{server.WithMetrics(metrics)}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
			opts = append(opts, server.WithStore(st))
		}

		return server.New(cfg.Server, art, svc, opts...).ListenAndServe(ctx, cfg.Server.Port)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
