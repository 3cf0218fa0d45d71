package churn

import (
	"context"
	"time"

	"github.com/sells-group/churn-cli/internal/model"
)

// ObservedService reports every prediction it serves to an Observer,
// including those answered by a cache below it.
type ObservedService struct {
	next     Service
	observer Observer
}

// Observe wraps next so that o sees every outcome.
func Observe(next Service, o Observer) *ObservedService {
	return &ObservedService{next: next, observer: o}
}

// Predict implements Service.
func (s *ObservedService) Predict(ctx context.Context, e model.Employee) (model.Prediction, error) {
	start := time.Now()
	pred, err := s.next.Predict(ctx, e)
	if err != nil {
		s.observer.ObserveError(err)
		return pred, err
	}
	s.observer.ObservePrediction(pred, time.Since(start))
	return pred, nil
}
