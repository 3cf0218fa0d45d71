// Package churn turns a feature record into a churn prediction using a
// loaded model artifact.
package churn

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/churn-cli/internal/artifact"
	"github.com/sells-group/churn-cli/internal/model"
)

// Service predicts churn for one employee record.
type Service interface {
	Predict(ctx context.Context, e model.Employee) (model.Prediction, error)
}

// Observer receives the outcome of every prediction. Implementations must be
// safe for concurrent use.
type Observer interface {
	ObservePrediction(pred model.Prediction, elapsed time.Duration)
	ObserveError(err error)
}

// Predictor scores records against one immutable artifact. It holds no
// mutable state and is safe for concurrent use.
type Predictor struct {
	art      *artifact.Artifact
	observer Observer
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(p *Predictor) { p.observer = o }
}

// NewPredictor returns a Predictor bound to art.
func NewPredictor(art *artifact.Artifact, opts ...Option) *Predictor {
	p := &Predictor{art: art}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Artifact returns the artifact the predictor scores with.
func (p *Predictor) Artifact() *artifact.Artifact { return p.art }

// Predict validates e, encodes it and returns the classifier's verdict.
// A record with a missing or out-of-domain field yields an
// *model.InvalidFeatureError.
func (p *Predictor) Predict(ctx context.Context, e model.Employee) (model.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return model.Prediction{}, eris.Wrap(err, "churn: predict")
	}

	start := time.Now()
	pred, err := p.predict(e)
	if p.observer != nil {
		if err != nil {
			p.observer.ObserveError(err)
		} else {
			p.observer.ObservePrediction(pred, time.Since(start))
		}
	}
	return pred, err
}

func (p *Predictor) predict(e model.Employee) (model.Prediction, error) {
	if err := e.Validate(); err != nil {
		return model.Prediction{}, err
	}

	row, err := p.art.Vectorizer().Transform(e.Features())
	if err != nil {
		return model.Prediction{}, eris.Wrap(err, "churn: vectorize")
	}

	prob, err := p.art.Classifier().PredictProba(row)
	if err != nil {
		return model.Prediction{}, eris.Wrap(err, "churn: classify")
	}
	if math.IsNaN(prob) || prob < 0 || prob > 1 {
		return model.Prediction{}, eris.Errorf("churn: classifier returned probability %v outside [0, 1]", prob)
	}

	return model.NewPrediction(prob), nil
}
