package screener

import (
	"math"
)

// welford accumulates a running mean and sum of squared deviations.
type welford struct {
	count int
	mean  float64
	m2    float64
}

func (w *welford) add(x float64) {
	w.count++
	delta := x - w.mean
	w.mean += delta / float64(w.count)
	delta2 := x - w.mean
	w.m2 += delta * delta2
}

// sampleStdDev is the N-1 standard deviation; zero below two observations.
func (w *welford) sampleStdDev() float64 {
	if w.count < 2 {
		return 0
	}
	return math.Sqrt(w.m2 / float64(w.count-1))
}

// VolumeSeries is the per-symbol volume history over the screening window, oldest first.
type VolumeSeries struct {
	Symbol       string
	Volumes      []float64
	Mean         float64
	SampleStdDev float64
	CV           float64
}

// Summarize computes mean, sample standard deviation and coefficient of variation.
// CV is +Inf when the mean is zero so the series never passes a finite threshold.
func Summarize(symbol string, volumes []float64) VolumeSeries {
	var w welford
	for _, v := range volumes {
		w.add(v)
	}
	s := VolumeSeries{
		Symbol:       symbol,
		Volumes:      volumes,
		Mean:         w.mean,
		SampleStdDev: w.sampleStdDev(),
	}
	if s.Mean == 0 {
		s.CV = math.Inf(1)
	} else {
		s.CV = s.SampleStdDev / s.Mean
	}
	return s
}
