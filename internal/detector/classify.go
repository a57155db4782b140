package detector

import (
	"math"

	"github.com/gridwatch/sentinel/internal/model"
)

// Classify maps a raw detector statistic to a severity band and a
// confidence in [0,1]. The mapping is fixed and independent of which test
// produced the score; it operates on the score's magnitude since z-scores
// are signed. Severity and confidence are always derived together here —
// rule-based anomalies bypass this table entirely.
func Classify(score float64) (model.Severity, float64) {
	s := math.Abs(score)
	switch {
	case s > 3.0:
		return model.SeverityCritical, math.Min(0.95, s/5.0)
	case s > 2.0:
		return model.SeverityHigh, math.Min(0.85, s/4.0)
	case s > 1.5:
		return model.SeverityMedium, math.Min(0.70, s/3.0)
	default:
		return model.SeverityLow, math.Min(0.50, s/2.0)
	}
}

// RuleScore and RuleConfidence are the fixed values for rule-based
// anomalies: binary triggers carry no magnitude.
const (
	RuleScore      = 1.0
	RuleConfidence = 0.9
)
