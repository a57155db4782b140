package pipeline

import "github.com/gridwatch/sentinel/internal/model"

type dedupeKey struct {
	entityID    string
	method      model.DetectionMethod
	description string
}

// Deduplicate collapses anomalies that share (entity, method, description),
// keeping the highest-confidence one. On equal confidence the first
// occurrence wins. Output preserves first-seen order.
func Deduplicate(anomalies []model.Anomaly) []model.Anomaly {
	if len(anomalies) <= 1 {
		return anomalies
	}

	out := make([]model.Anomaly, 0, len(anomalies))
	seen := make(map[dedupeKey]int, len(anomalies))

	for _, a := range anomalies {
		key := dedupeKey{a.EntityID, a.DetectionMethod, a.Description}
		if pos, ok := seen[key]; ok {
			if a.Confidence > out[pos].Confidence {
				out[pos] = a
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, a)
	}
	return out
}
