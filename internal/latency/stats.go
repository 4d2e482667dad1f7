package latency

import (
	"math"
	"time"

	"github.com/moolen/kubetrace/internal/models"
)

// Statistics summarizes segment durations in nanoseconds
type Statistics struct {
	Count  int     `json:"count" yaml:"count"`
	Min    int64   `json:"min" yaml:"min"`
	Max    int64   `json:"max" yaml:"max"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"stddev" yaml:"stddev"`
	Total  int64   `json:"total" yaml:"total"`
}

// ComputeStatistics summarizes segs. The standard deviation is the sample
// deviation and is 0 for fewer than two segments.
func ComputeStatistics(segs []models.PodStartup) Statistics {
	var st Statistics
	if len(segs) == 0 {
		return st
	}
	st.Count = len(segs)
	st.Min = math.MaxInt64
	st.Max = math.MinInt64

	// Welford's online mean and variance
	var mean, m2 float64
	for i, seg := range segs {
		d := seg.Length()
		st.Total += d
		st.Min = min(st.Min, d)
		st.Max = max(st.Max, d)
		delta := float64(d) - mean
		mean += delta / float64(i+1)
		m2 += delta * (float64(d) - mean)
	}
	st.Mean = mean
	if st.Count > 1 {
		st.StdDev = math.Sqrt(m2 / float64(st.Count-1))
	}
	return st
}

// MeanDuration returns the mean as a duration
func (s Statistics) MeanDuration() time.Duration {
	return time.Duration(s.Mean)
}

// Bucket is one bar of a duration histogram covering [Low, High)
type Bucket struct {
	Low   int64 `json:"low" yaml:"low"`
	High  int64 `json:"high" yaml:"high"`
	Count int   `json:"count" yaml:"count"`
}

// Density distributes segment durations over n equal buckets spanning
// [min, max]. The maximum falls in the last bucket.
func Density(segs []models.PodStartup, n int) []Bucket {
	if len(segs) == 0 || n <= 0 {
		return nil
	}
	st := ComputeStatistics(segs)
	span := st.Max - st.Min
	width := span / int64(n)
	if span%int64(n) != 0 || width == 0 {
		width++
	}

	buckets := make([]Bucket, n)
	for i := range buckets {
		buckets[i].Low = st.Min + int64(i)*width
		buckets[i].High = buckets[i].Low + width
	}
	for _, seg := range segs {
		i := int((seg.Length() - st.Min) / width)
		if i >= n {
			i = n - 1
		}
		buckets[i].Count++
	}
	return buckets
}
