package rollup

import (
	"math"
	"sort"
)

// Trend directions between the last two points of a series.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// SeriesStats summarizes one metric over a series.
type SeriesStats struct {
	Metric          string   `json:"metric"`
	Count           int      `json:"count"`
	Latest          float64  `json:"latest"`
	LatestDate      string   `json:"latest_date"`
	Previous        *float64 `json:"previous,omitempty"`
	PreviousDate    string   `json:"previous_date,omitempty"`
	Trend           string   `json:"trend,omitempty"`
	TrendPercentage *float64 `json:"trend_percentage,omitempty"`
	Max             float64  `json:"max"`
	MaxDate         string   `json:"max_date"`
	Min             float64  `json:"min"`
	MinDate         string   `json:"min_date"`
	Avg             float64  `json:"avg"`
	Median          float64  `json:"median"`
	Sum             float64  `json:"sum"`
	Range           float64  `json:"range"`
}

// Summarize computes SeriesStats over the points that carry metric. ok is false
// when none does. Ties for max and min keep the earliest date.
func Summarize(points []AggregatedPoint, metric string) (SeriesStats, bool) {
	type obs struct {
		date string
		v    float64
	}
	var data []obs
	for _, p := range points {
		if v, ok := p.Metrics[metric]; ok {
			data = append(data, obs{date: p.Date, v: v})
		}
	}
	if len(data) == 0 {
		return SeriesStats{}, false
	}
	sort.SliceStable(data, func(i, j int) bool { return data[i].date < data[j].date })

	s := SeriesStats{Metric: metric, Count: len(data)}
	values := make([]float64, len(data))
	maxI, minI := 0, 0
	for i, o := range data {
		values[i] = o.v
		s.Sum += o.v
		if o.v > data[maxI].v {
			maxI = i
		}
		if o.v < data[minI].v {
			minI = i
		}
	}
	last := data[len(data)-1]
	s.Latest, s.LatestDate = last.v, last.date
	s.Max, s.MaxDate = data[maxI].v, data[maxI].date
	s.Min, s.MinDate = data[minI].v, data[minI].date
	s.Avg = round2(s.Sum / float64(len(data)))
	s.Range = round2(s.Max - s.Min)
	s.Sum = round2(s.Sum)

	sort.Float64s(values)
	n := len(values)
	if n%2 == 0 {
		s.Median = round2((values[n/2-1] + values[n/2]) / 2)
	} else {
		s.Median = round2(values[n/2])
	}

	if n >= 2 {
		prev := data[len(data)-2]
		s.Previous = &prev.v
		s.PreviousDate = prev.date
		switch {
		case last.v > prev.v:
			s.Trend = TrendUp
		case last.v < prev.v:
			s.Trend = TrendDown
		default:
			s.Trend = TrendStable
		}
		var pct float64
		switch {
		case prev.v != 0:
			pct = math.Round((last.v-prev.v)/prev.v*1000) / 10
		case last.v > 0:
			pct = 100
		}
		s.TrendPercentage = &pct
	}
	return s, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
