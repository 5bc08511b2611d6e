// Package trend fits simple statistics over a daily activity series: a
// least-squares forecast of next week's coding time, z-score anomalies and
// a guess at the next study day.
package trend

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/drillbook/internal/domain"
)

const (
	DefaultWindow     = 30
	DefaultZThreshold = 2.0

	MetricCodingSeconds = "coding_seconds"
	MetricCommitCount   = "commit_count"
)

// Forecast is a linear fit of daily coding seconds projected over the next
// seven days. Projected values are clamped at zero.
type Forecast struct {
	Slope         float64
	Intercept     float64
	Projected     [7]float64
	TotalNextWeek float64
}

// ForecastWeeklyTime fits coding seconds against day index 0..n-1 with
// ordinary least squares and projects indices n..n+6.
func ForecastWeeklyTime(series []domain.DailyActivitySummary) Forecast {
	n := len(series)
	if n == 0 {
		return Forecast{}
	}

	var f Forecast
	if n == 1 {
		f.Intercept = float64(series[0].CodingSeconds)
	} else {
		var sumX, sumY, sumXY, sumXX float64
		for i, s := range series {
			x, y := float64(i), float64(s.CodingSeconds)
			sumX += x
			sumY += y
			sumXY += x * y
			sumXX += x * x
		}
		nf := float64(n)
		denom := nf*sumXX - sumX*sumX
		f.Slope = (nf*sumXY - sumX*sumY) / denom
		f.Intercept = (sumY - f.Slope*sumX) / nf
	}

	for i := range f.Projected {
		v := f.Intercept + f.Slope*float64(n+i)
		if v < 0 {
			v = 0
		}
		f.Projected[i] = v
		f.TotalNextWeek += v
	}
	return f
}

// Anomaly is a day whose value sits at least z standard deviations from the
// window mean for one metric.
type Anomaly struct {
	Date   time.Time
	Metric string
	Value  float64
	Mean   float64
	StdDev float64
	ZScore float64
}

// DetectAnomalies flags outlying days for coding seconds and commit count,
// each judged against its own population mean and standard deviation. A
// metric with zero deviation has no outliers.
func DetectAnomalies(series []domain.DailyActivitySummary, z float64) []Anomaly {
	if len(series) == 0 {
		return nil
	}
	metrics := []struct {
		name  string
		value func(domain.DailyActivitySummary) float64
	}{
		{MetricCodingSeconds, func(s domain.DailyActivitySummary) float64 { return float64(s.CodingSeconds) }},
		{MetricCommitCount, func(s domain.DailyActivitySummary) float64 { return float64(s.CommitCount) }},
	}

	var out []Anomaly
	for _, m := range metrics {
		values := make([]float64, len(series))
		for i, s := range series {
			values[i] = m.value(s)
		}
		mean, sd := meanStdDev(values)
		if sd == 0 {
			continue
		}
		for i, v := range values {
			if math.Abs(v-mean) >= z*sd {
				out = append(out, Anomaly{
					Date:   series[i].Date,
					Metric: m.name,
					Value:  v,
					Mean:   mean,
					StdDev: sd,
					ZScore: (v - mean) / sd,
				})
			}
		}
	}
	return out
}

func meanStdDev(values []float64) (mean, sd float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// PredictNextStudyDate adds the average gap between consecutive active days
// to the last active day. It needs at least two active days.
func PredictNextStudyDate(series []domain.DailyActivitySummary) (time.Time, bool) {
	var active []time.Time
	for _, s := range series {
		if s.Active() {
			active = append(active, s.Date)
		}
	}
	if len(active) < 2 {
		return time.Time{}, false
	}
	span := domain.DaysBetween(active[0], active[len(active)-1])
	gap := int(math.Round(float64(span) / float64(len(active)-1)))
	if gap < 1 {
		gap = 1
	}
	return domain.AddDays(active[len(active)-1], gap), true
}

// SeriesSource supplies a dense trailing series, oldest day first.
type SeriesSource interface {
	Series(days int) ([]domain.DailyActivitySummary, error)
}

// Report bundles the analyses for one window.
type Report struct {
	Days      int
	Forecast  Forecast
	Anomalies []Anomaly
	NextStudy time.Time
	HasNext   bool
}

// Analyzer runs every analysis over the same trailing window.
type Analyzer struct {
	Window     int
	ZThreshold float64
}

// NewAnalyzer returns an Analyzer, substituting defaults for non-positive
// arguments.
func NewAnalyzer(window int, z float64) Analyzer {
	if window <= 0 {
		window = DefaultWindow
	}
	if z <= 0 {
		z = DefaultZThreshold
	}
	return Analyzer{Window: window, ZThreshold: z}
}

// Analyze loads the window from src and runs the forecast, anomaly detection
// and next-study prediction over it.
func (a Analyzer) Analyze(src SeriesSource) (Report, error) {
	a = NewAnalyzer(a.Window, a.ZThreshold)
	series, err := src.Series(a.Window)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load series: %w", err)
	}
	next, ok := PredictNextStudyDate(series)
	return Report{
		Days:      len(series),
		Forecast:  ForecastWeeklyTime(series),
		Anomalies: DetectAnomalies(series, a.ZThreshold),
		NextStudy: next,
		HasNext:   ok,
	}, nil
}
