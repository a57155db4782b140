package pipeline

import (
	"sort"

	"github.com/gridwatch/sentinel/internal/model"
)

// fieldSeries holds one numeric field's values across a batch, with the
// index of the record each value came from.
type fieldSeries struct {
	values  []float64
	records []int
}

// numericSeries groups the batch's numeric values by field name. Fields
// are returned in sorted order so detection output is deterministic.
func numericSeries(batch []model.DataPoint) ([]string, map[string]*fieldSeries) {
	series := make(map[string]*fieldSeries)
	for i, record := range batch {
		for field := range record {
			v, ok := record.Numeric(field)
			if !ok {
				continue
			}
			s := series[field]
			if s == nil {
				s = &fieldSeries{}
				series[field] = s
			}
			s.values = append(s.values, v)
			s.records = append(s.records, i)
		}
	}

	fields := make([]string, 0, len(series))
	for field := range series {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields, series
}
