// Package store persists the prediction audit log.
package store

import (
	"context"
	"time"

	"github.com/sells-group/churn-cli/internal/model"
)

// PredictionFilter specifies criteria for listing predictions. Results are
// ordered newest first.
type PredictionFilter struct {
	Verdict model.Verdict `json:"verdict,omitempty"`
	Model   string        `json:"model,omitempty"`
	Source  string        `json:"source,omitempty"`
	Since   time.Time     `json:"since,omitempty"`
	Limit   int           `json:"limit,omitempty"`
	Offset  int           `json:"offset,omitempty"`
}

// DefaultListLimit caps a listing when the filter sets no limit.
const DefaultListLimit = 100

func (f PredictionFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Store defines the persistence interface for the prediction audit log.
type Store interface {
	// SavePrediction assigns rec an ID and creation time when unset and
	// writes it.
	SavePrediction(ctx context.Context, rec *model.PredictionRecord) error
	// SavePredictions writes many records at once and returns how many were
	// written.
	SavePredictions(ctx context.Context, recs []model.PredictionRecord) (int64, error)
	// GetPrediction returns nil, nil when no record has the id.
	GetPrediction(ctx context.Context, id string) (*model.PredictionRecord, error)
	ListPredictions(ctx context.Context, filter PredictionFilter) ([]model.PredictionRecord, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// prepare fills the generated fields of a record.
func prepare(rec *model.PredictionRecord) {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
}
