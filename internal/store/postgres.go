package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/churn-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock pools satisfy
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	postgresInsert = `INSERT INTO predictions (id, model, source, employee, probability, verdict, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	postgresGet    = `SELECT id, model, source, employee, probability, created_at FROM predictions WHERE id = $1`
)

var predictionColumns = []string{"id", "model", "source", "employee", "probability", "verdict", "created_at"}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns >= 0 && poolCfg.MinConns <= maxConns {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS predictions (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	model       TEXT NOT NULL,
	source      TEXT NOT NULL,
	employee    JSONB NOT NULL,
	probability DOUBLE PRECISION NOT NULL CHECK (probability >= 0 AND probability <= 1),
	verdict     TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_predictions_verdict ON predictions(verdict);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SavePrediction(ctx context.Context, rec *model.PredictionRecord) error {
	prepare(rec)
	row, err := copyRow(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: save prediction")
	}
	_, err = s.pool.Exec(ctx, postgresInsert, row...)
	return eris.Wrapf(err, "postgres: insert prediction %s", rec.ID)
}

// SavePredictions bulk-inserts records using the COPY protocol.
func (s *PostgresStore) SavePredictions(ctx context.Context, recs []model.PredictionRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(recs))
	for i := range recs {
		prepare(&recs[i])
		row, err := copyRow(&recs[i])
		if err != nil {
			return 0, eris.Wrap(err, "postgres: save predictions")
		}
		rows = append(rows, row)
	}

	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{"predictions"}, predictionColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: COPY INTO predictions")
	}
	return n, nil
}

func (s *PostgresStore) GetPrediction(ctx context.Context, id string) (*model.PredictionRecord, error) {
	rec, err := scanPostgresPrediction(s.pool.QueryRow(ctx, postgresGet, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get prediction %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) ListPredictions(ctx context.Context, filter PredictionFilter) ([]model.PredictionRecord, error) {
	query := `SELECT id, model, source, employee, probability, created_at FROM predictions WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Verdict != "" {
		query += ` AND verdict = ` + arg(string(filter.Verdict))
	}
	if filter.Model != "" {
		query += ` AND model = ` + arg(filter.Model)
	}
	if filter.Source != "" {
		query += ` AND source = ` + arg(filter.Source)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ` + arg(filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC, id LIMIT ` + arg(filter.limit())
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list predictions")
	}
	defer rows.Close()

	var recs []model.PredictionRecord
	for rows.Next() {
		rec, err := scanPostgresPrediction(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan prediction")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list predictions iterate")
}

func copyRow(rec *model.PredictionRecord) ([]any, error) {
	employeeJSON, err := json.Marshal(rec.Employee)
	if err != nil {
		return nil, eris.Wrap(err, "marshal employee")
	}
	return []any{
		rec.ID,
		rec.Model,
		rec.Source,
		employeeJSON,
		rec.Prediction.Probability(),
		string(rec.Prediction.Verdict()),
		rec.CreatedAt.UTC(),
	}, nil
}

func scanPostgresPrediction(row scannable) (*model.PredictionRecord, error) {
	var rec model.PredictionRecord
	var employeeJSON []byte
	var probability float64
	var createdAt time.Time

	if err := row.Scan(&rec.ID, &rec.Model, &rec.Source, &employeeJSON, &probability, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(employeeJSON, &rec.Employee); err != nil {
		return nil, eris.Wrap(err, "unmarshal employee")
	}
	rec.Prediction = model.NewPrediction(probability)
	rec.CreatedAt = createdAt.UTC()
	return &rec, nil
}
