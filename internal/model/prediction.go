package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ChurnThreshold is the inclusive probability at which an employee is
// classified as churning.
const ChurnThreshold = 0.5

// Verdict is the two-state decision rendered for a prediction.
type Verdict string

// Verdict values.
const (
	VerdictNotChurn Verdict = "not_churn"
	VerdictChurn    Verdict = "churn"
)

// ParseVerdict accepts the wire names and the display labels.
func ParseVerdict(s string) (Verdict, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(VerdictChurn):
		return VerdictChurn, nil
	case string(VerdictNotChurn), "not churn", "not-churn":
		return VerdictNotChurn, nil
	}
	return "", eris.Errorf("model: unknown verdict %q", s)
}

// Label is the short display name of the verdict.
func (v Verdict) Label() string {
	if v == VerdictChurn {
		return "Churn"
	}
	return "Not churn"
}

// Action is the follow-up line shown under the verdict.
func (v Verdict) Action() string {
	if v == VerdictChurn {
		return "Further action needed."
	}
	return "No action needed."
}

// Prediction is the classifier's output for one record. The verdict is
// derived from the probability, so the pair can never disagree.
type Prediction struct {
	probability float64
}

// NewPrediction wraps the positive-class probability returned by the model.
func NewPrediction(probability float64) Prediction {
	return Prediction{probability: probability}
}

// Probability is the estimated probability of churn.
func (p Prediction) Probability() float64 { return p.probability }

// Churn reports whether the probability reaches ChurnThreshold.
func (p Prediction) Churn() bool { return p.probability >= ChurnThreshold }

// Verdict returns the decision branch for this prediction.
func (p Prediction) Verdict() Verdict {
	if p.Churn() {
		return VerdictChurn
	}
	return VerdictNotChurn
}

// FormatProbability renders the probability to three decimals.
func (p Prediction) FormatProbability() string {
	return fmt.Sprintf("%.3f", p.probability)
}

type predictionJSON struct {
	ChurnProbability float64 `json:"churn_probability"`
	Churn            bool    `json:"churn"`
	Verdict          Verdict `json:"verdict"`
}

// MarshalJSON emits {churn_probability, churn, verdict}.
func (p Prediction) MarshalJSON() ([]byte, error) {
	return json.Marshal(predictionJSON{
		ChurnProbability: p.probability,
		Churn:            p.Churn(),
		Verdict:          p.Verdict(),
	})
}

// UnmarshalJSON reads churn_probability; churn and verdict are recomputed.
func (p *Prediction) UnmarshalJSON(data []byte) error {
	var raw predictionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode prediction")
	}
	p.probability = raw.ChurnProbability
	return nil
}

// PredictionRecord is one entry of the prediction audit log.
type PredictionRecord struct {
	ID         string     `json:"id"`
	Employee   Employee   `json:"employee"`
	Prediction Prediction `json:"prediction"`
	Model      string     `json:"model"`
	Source     string     `json:"source"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Prediction sources.
const (
	SourceAPI   = "api"
	SourceCLI   = "cli"
	SourceBatch = "batch"
)
