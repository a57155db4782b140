// Package export renders stored anomalies as CSV or Markdown for
// reporting and spreadsheet handoff.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/gridwatch/sentinel/internal/model"
)

// row is the flattened CSV shape of an anomaly.
type row struct {
	ID              string  `csv:"id"`
	Timestamp       string  `csv:"timestamp"`
	EntityID        string  `csv:"entity_id"`
	EntityType      string  `csv:"entity_type"`
	Type            string  `csv:"type"`
	Severity        string  `csv:"severity"`
	Score           float64 `csv:"score"`
	Confidence      float64 `csv:"confidence"`
	DetectionMethod string  `csv:"detection_method"`
	Description     string  `csv:"description"`
	Acknowledged    bool    `csv:"acknowledged"`
}

// CSV writes the anomalies as CSV with a header row.
func CSV(w io.Writer, anomalies []model.Anomaly) error {
	rows := make([]row, len(anomalies))
	for i, a := range anomalies {
		rows[i] = row{
			ID:              a.ID,
			Timestamp:       a.Timestamp.UTC().Format(time.RFC3339),
			EntityID:        a.EntityID,
			EntityType:      a.EntityType,
			Type:            string(a.Type),
			Severity:        string(a.Severity),
			Score:           a.Score,
			Confidence:      a.Confidence,
			DetectionMethod: string(a.DetectionMethod),
			Description:     a.Description,
			Acknowledged:    a.Acknowledged,
		}
	}

	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "export: marshal csv")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "export: write csv")
	}
	return nil
}

// Markdown writes the anomalies as a Markdown table grouped under a
// severity summary.
func Markdown(w io.Writer, anomalies []model.Anomaly) error {
	var b strings.Builder

	b.WriteString("# Anomaly Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Total anomalies: %d\n\n", len(anomalies))

	counts := make(map[model.Severity]int)
	for _, a := range anomalies {
		counts[a.Severity]++
	}
	for _, sev := range []model.Severity{model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow} {
		if counts[sev] > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", sev, counts[sev])
		}
	}
	b.WriteString("\n")

	if len(anomalies) > 0 {
		b.WriteString("| Severity | Entity | Method | Score | Confidence | Description | Timestamp |\n")
		b.WriteString("|----------|--------|--------|-------|------------|-------------|----------|\n")
		for _, a := range anomalies {
			fmt.Fprintf(&b, "| %s | %s | %s | %.2f | %.2f | %s | %s |\n",
				a.Severity, a.EntityID, a.DetectionMethod, a.Score, a.Confidence,
				escapePipes(a.Description), a.Timestamp.UTC().Format(time.RFC3339))
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return eris.Wrap(err, "export: write markdown")
	}
	return nil
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
