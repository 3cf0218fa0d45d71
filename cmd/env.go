package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/churn-cli/internal/artifact"
	"github.com/sells-group/churn-cli/internal/churn"
	"github.com/sells-group/churn-cli/internal/config"
	"github.com/sells-group/churn-cli/internal/store"
)

// defaultSQLitePath is used when the sqlite driver has no database_url.
const defaultSQLitePath = "churn.db"

// loadArtifact validates cfg for mode and loads the configured model.
func loadArtifact(mode string) (*artifact.Artifact, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	return artifact.NewLoader(cfg.Model.Path).Get()
}

// newService wraps p in the configured prediction cache.
func newService(p *churn.Predictor) *churn.CachedPredictor {
	return churn.NewCachedPredictor(p, cfg.Cache.Size, time.Duration(cfg.Cache.TTLSecs)*time.Second)
}

// initStore opens and migrates the prediction audit log. It returns a nil
// Store when the driver is none.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case config.DriverNone, "":
		return nil, nil
	case config.DriverSQLite:
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		st, err = store.NewSQLite(dsn)
	case config.DriverPostgres:
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
