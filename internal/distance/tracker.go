package distance

import "math"

// RssiTracker holds a bounded FIFO of recent RSSI samples for one device
// and derives averages, confidence, and variance statistics from them.
type RssiTracker struct {
	samples    []int
	maxSamples int
}

// NewRssiTracker builds a tracker retaining at most maxSamples readings.
func NewRssiTracker(maxSamples int) *RssiTracker {
	return &RssiTracker{maxSamples: maxSamples}
}

// DefaultRssiTracker matches the teacher's five-sample default window.
func DefaultRssiTracker() *RssiTracker {
	return NewRssiTracker(5)
}

// AddSample appends a reading, evicting the oldest once maxSamples is hit.
func (t *RssiTracker) AddSample(rssi int) {
	if len(t.samples) >= t.maxSamples {
		t.samples = t.samples[1:]
	}
	t.samples = append(t.samples, rssi)
}

// WeightedAverage returns the linearly recency-weighted mean (recent
// samples weigh more), or ok=false if no samples exist.
func (t *RssiTracker) WeightedAverage() (int, bool) {
	if len(t.samples) == 0 {
		return 0, false
	}

	var weightedSum, weightTotal float64
	for i, rssi := range t.samples {
		weight := float64(i + 1)
		weightedSum += float64(rssi) * weight
		weightTotal += weight
	}

	return int(math.Round(weightedSum / weightTotal)), true
}

// Average returns the simple integer mean of all retained samples.
func (t *RssiTracker) Average() (int, bool) {
	if len(t.samples) == 0 {
		return 0, false
	}
	sum := 0
	for _, rssi := range t.samples {
		sum += rssi
	}
	return sum / len(t.samples), true
}

// SampleCount reports how many samples are currently retained.
func (t *RssiTracker) SampleCount() int {
	return len(t.samples)
}

// Confidence derives a Confidence tier from the current sample count.
func (t *RssiTracker) Confidence() Confidence {
	return ConfidenceFromSampleCount(len(t.samples))
}

// Clear discards all retained samples.
func (t *RssiTracker) Clear() {
	t.samples = nil
}

// Samples returns a copy of the currently retained samples.
func (t *RssiTracker) Samples() []int {
	out := make([]int, len(t.samples))
	copy(out, t.samples)
	return out
}

// Stats computes aggregate statistics over the current samples.
func (t *RssiTracker) Stats() (RssiStats, bool) {
	return RssiStatsFromSamples(t.samples)
}

// RssiStats summarizes a device's RSSI observations.
type RssiStats struct {
	SampleCount int
	MeanRSSI    float64
	Variance    float64
	MinRSSI     int
	MaxRSSI     int
}

// RssiStatsFromSamples computes mean, sample variance, and min/max over a
// slice of RSSI readings.
func RssiStatsFromSamples(samples []int) (RssiStats, bool) {
	n := len(samples)
	if n == 0 {
		return RssiStats{}, false
	}

	sum := 0
	min, max := samples[0], samples[0]
	for _, x := range samples {
		sum += x
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	mean := float64(sum) / float64(n)

	var variance float64
	if n > 1 {
		var sq float64
		for _, x := range samples {
			d := float64(x) - mean
			sq += d * d
		}
		variance = sq / float64(n-1)
	}

	return RssiStats{
		SampleCount: n,
		MeanRSSI:    mean,
		Variance:    variance,
		MinRSSI:     min,
		MaxRSSI:     max,
	}, true
}

// StdDev returns the sample standard deviation.
func (s RssiStats) StdDev() float64 {
	return math.Sqrt(s.Variance)
}

// IsStationary reports whether the device's signal pattern looks like a
// fixed, non-moving transmitter: enough samples and a tight spread.
func (s RssiStats) IsStationary() bool {
	return s.SampleCount >= 10 && s.StdDev() < 5.0
}
