package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Severity orders anomalies from most to least urgent. Lower rank = more severe.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank returns the sort rank of a severity: critical=1 through low=4.
// Unknown severities sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 1
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 4
	default:
		return 5
	}
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	return s.Rank() < 5
}

// AnomalyType tags how an anomaly relates to its context.
type AnomalyType string

const (
	TypePointAnomaly       AnomalyType = "point_anomaly"
	TypeContextualAnomaly  AnomalyType = "contextual_anomaly"
	TypeCollectiveAnomaly  AnomalyType = "collective_anomaly"
	TypeStatisticalOutlier AnomalyType = "statistical_outlier"
	TypeMLPredicted        AnomalyType = "ml_predicted"
)

// DetectionMethod identifies which test produced an anomaly.
type DetectionMethod string

const (
	MethodZScore         DetectionMethod = "z_score"
	MethodModifiedZScore DetectionMethod = "modified_z_score"
	MethodIQR            DetectionMethod = "iqr_method"
	MethodGrubbs         DetectionMethod = "grubbs_test"
	MethodBusinessRule   DetectionMethod = "business_rule"
)

// Anomaly is a single finding from one detection cycle.
type Anomaly struct {
	ID              string          `json:"id"`
	Timestamp       time.Time       `json:"timestamp"`
	EntityID        string          `json:"entity_id"`
	EntityType      string          `json:"entity_type,omitempty"`
	Type            AnomalyType     `json:"anomaly_type"`
	Severity        Severity        `json:"severity"`
	Score           float64         `json:"score"`
	Confidence      float64         `json:"confidence"`
	Description     string          `json:"description"`
	DataPoint       DataPoint       `json:"data_point,omitempty"`
	DetectionMethod DetectionMethod `json:"detection_method"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
	Acknowledged    bool            `json:"acknowledged"`
}

// AnomalyID derives the deterministic anomaly identifier from entity, method,
// and timestamp. Identical inputs collide by design so that re-running
// detection over the same data overwrites rather than duplicates.
func AnomalyID(entityID string, method DetectionMethod, ts time.Time) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s", entityID, method, ts.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:8])
}
