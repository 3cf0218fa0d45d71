package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/churn-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS predictions (
	id          TEXT PRIMARY KEY,
	model       TEXT NOT NULL,
	source      TEXT NOT NULL,
	employee    TEXT NOT NULL,
	probability REAL NOT NULL,
	verdict     TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_predictions_verdict ON predictions(verdict);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsert = `INSERT INTO predictions (id, model, source, employee, probability, verdict, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) SavePrediction(ctx context.Context, rec *model.PredictionRecord) error {
	prepare(rec)
	args, err := insertArgs(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: save prediction")
	}
	_, err = s.db.ExecContext(ctx, sqliteInsert, args...)
	return eris.Wrapf(err, "sqlite: insert prediction %s", rec.ID)
}

func (s *SQLiteStore) SavePredictions(ctx context.Context, recs []model.PredictionRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsert)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	for i := range recs {
		prepare(&recs[i])
		args, err := insertArgs(&recs[i])
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: save predictions")
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert prediction %s", recs[i].ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return int64(len(recs)), nil
}

func (s *SQLiteStore) GetPrediction(ctx context.Context, id string) (*model.PredictionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, model, source, employee, probability, created_at FROM predictions WHERE id = ?`,
		id,
	)
	rec, err := scanPrediction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get prediction %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) ListPredictions(ctx context.Context, filter PredictionFilter) ([]model.PredictionRecord, error) {
	query := `SELECT id, model, source, employee, probability, created_at FROM predictions WHERE 1=1`
	var args []any

	if filter.Verdict != "" {
		query += ` AND verdict = ?`
		args = append(args, string(filter.Verdict))
	}
	if filter.Model != "" {
		query += ` AND model = ?`
		args = append(args, filter.Model)
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, filter.limit())

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list predictions")
	}
	defer rows.Close()

	var recs []model.PredictionRecord
	for rows.Next() {
		rec, err := scanPrediction(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prediction")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list predictions iterate")
}

// helpers

func newID() string {
	return uuid.New().String()
}

func insertArgs(rec *model.PredictionRecord) ([]any, error) {
	employeeJSON, err := json.Marshal(rec.Employee)
	if err != nil {
		return nil, eris.Wrap(err, "marshal employee")
	}
	return []any{
		rec.ID,
		rec.Model,
		rec.Source,
		string(employeeJSON),
		rec.Prediction.Probability(),
		string(rec.Prediction.Verdict()),
		rec.CreatedAt.UTC(),
	}, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPrediction(row scannable) (*model.PredictionRecord, error) {
	var rec model.PredictionRecord
	var employeeJSON string
	var probability float64
	var createdAt time.Time

	if err := row.Scan(&rec.ID, &rec.Model, &rec.Source, &employeeJSON, &probability, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(employeeJSON), &rec.Employee); err != nil {
		return nil, eris.Wrap(err, "unmarshal employee")
	}
	rec.Prediction = model.NewPrediction(probability)
	rec.CreatedAt = createdAt.UTC()
	return &rec, nil
}
