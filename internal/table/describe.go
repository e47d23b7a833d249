package table

import (
	"math"
	"slices"
)

// Kind is the inferred content type of a column.
type Kind string

const (
	KindNumeric Kind = "numeric"
	KindText    Kind = "text"
	KindEmpty   Kind = "empty"
)

// ColumnStats summarizes one column. Numeric fields are nil for text
// columns; Std is also nil when fewer than two values are present.
type ColumnStats struct {
	Name    string   `json:"name"`
	Kind    Kind     `json:"kind"`
	Count   int      `json:"count"`
	Missing int      `json:"missing"`
	Unique  int      `json:"unique"`
	Mean    *float64 `json:"mean,omitempty"`
	Std     *float64 `json:"std,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Q25     *float64 `json:"q25,omitempty"`
	Median  *float64 `json:"median,omitempty"`
	Q75     *float64 `json:"q75,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Top     string   `json:"top,omitempty"`
	Freq    int      `json:"freq,omitempty"`
}

// Kinds infers the content type of every column.
func Kinds(t *Table) []Kind {
	kinds := make([]Kind, len(t.Columns))
	for c := range t.Columns {
		kinds[c] = columnKind(t.Column(c))
	}
	return kinds
}

func columnKind(values []string) Kind {
	if _, ok := numericColumn(values); ok {
		return KindNumeric
	}
	for _, v := range values {
		if !IsMissing(v) {
			return KindText
		}
	}
	return KindEmpty
}

// Head returns a table holding at most the first n rows.
func Head(t *Table, n int) *Table {
	n = min(max(n, 0), len(t.Rows))
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = slices.Clone(t.Rows[i])
	}
	return t.withRows(rows)
}

// Describe computes summary statistics for every column. Quantiles use
// linear interpolation between closest ranks.
func Describe(t *Table) []ColumnStats {
	stats := make([]ColumnStats, len(t.Columns))
	for c, name := range t.Columns {
		values := t.Column(c)
		s := ColumnStats{Name: name, Kind: columnKind(values)}

		counts := make(map[string]int)
		var order []string
		for _, v := range values {
			if IsMissing(v) {
				s.Missing++
				continue
			}
			s.Count++
			if counts[v] == 0 {
				order = append(order, v)
			}
			counts[v]++
		}
		s.Unique = len(counts)

		if s.Kind == KindNumeric {
			nums, _ := numericColumn(values)
			describeNumbers(&s, nums)
		} else {
			for _, v := range order {
				if counts[v] > s.Freq {
					s.Top, s.Freq = v, counts[v]
				}
			}
		}
		stats[c] = s
	}
	return stats
}

func describeNumbers(s *ColumnStats, nums []float64) {
	sorted := slices.Clone(nums)
	slices.Sort(sorted)

	var sum float64
	for _, f := range sorted {
		sum += f
	}
	mean := sum / float64(len(sorted))
	s.Mean = &mean

	if len(sorted) > 1 {
		var sq float64
		for _, f := range sorted {
			sq += (f - mean) * (f - mean)
		}
		std := math.Sqrt(sq / float64(len(sorted)-1))
		s.Std = &std
	}

	s.Min = ptr(sorted[0])
	s.Q25 = ptr(quantile(sorted, 0.25))
	s.Median = ptr(quantile(sorted, 0.5))
	s.Q75 = ptr(quantile(sorted, 0.75))
	s.Max = ptr(sorted[len(sorted)-1])
}

// quantile expects sorted, non-empty input.
func quantile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

func ptr(f float64) *float64 {
	return &f
}
