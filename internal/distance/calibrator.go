package distance

import "math"

// AdaptiveCalibrator learns a path loss exponent from stationary devices'
// RSSI patterns: if RSSI is stable but the implied distance would swing
// wildly, the exponent is too low and needs raising, and vice versa.
type AdaptiveCalibrator struct {
	currentPathLoss        float64
	adjustmentAccumulator  float64
	observationCount       int
	learningRate           float64
	minPathLoss            float64
	maxPathLoss            float64
	peakRSSI               int
	peakCount              int
}

const noPeakRSSI = math.MinInt32

// NewAdaptiveCalibrator builds a calibrator seeded with initialPathLoss.
func NewAdaptiveCalibrator(initialPathLoss float64) *AdaptiveCalibrator {
	return &AdaptiveCalibrator{
		currentPathLoss: initialPathLoss,
		learningRate:    0.01,
		minPathLoss:     2.0,
		maxPathLoss:     5.0,
		peakRSSI:        noPeakRSSI,
	}
}

// DefaultAdaptiveCalibrator seeds the calibrator at the typical-indoor
// path loss exponent of 3.0.
func DefaultAdaptiveCalibrator() *AdaptiveCalibrator {
	return NewAdaptiveCalibrator(EnvTypicalIndoor)
}

// RecordPeakRSSI tracks very strong readings (close-range devices) for TX
// power inference. Only signals stronger than -45 dBm are considered.
func (c *AdaptiveCalibrator) RecordPeakRSSI(rssi int) {
	if rssi <= -45 {
		return
	}
	switch {
	case rssi > c.peakRSSI:
		c.peakRSSI = rssi
		c.peakCount = 1
	case rssi >= c.peakRSSI-3:
		c.peakCount++
	}
}

// InferredTXPower returns a TX-power-at-1m estimate derived from peak
// readings, once at least 3 corroborating peak observations exist.
func (c *AdaptiveCalibrator) InferredTXPower() (float64, bool) {
	if c.peakCount >= 3 && c.peakRSSI > noPeakRSSI {
		return float64(c.peakRSSI) - 3.0, true
	}
	return 0, false
}

// AnalyzeDevice inspects a stationary device's RSSI stats and accumulates
// evidence for adjusting the path loss exponent. Devices that aren't
// stationary, or that haven't accumulated at least 10 samples, are
// skipped entirely.
func (c *AdaptiveCalibrator) AnalyzeDevice(stats RssiStats, txPower float64) {
	if !stats.IsStationary() || stats.SampleCount < 10 {
		return
	}

	rssi := int(stats.MeanRSSI)
	currentDistance, ok := EstimateDistance(rssi, txPower, c.currentPathLoss)
	if !ok {
		currentDistance = 1.0
	}

	sensitivity := currentDistance * math.Log(10.0) / (10.0 * c.currentPathLoss)
	expectedDistanceStd := sensitivity * stats.StdDev()
	relativeVariation := expectedDistanceStd / math.Max(currentDistance, 0.1)

	const targetVariation = 0.25
	switch {
	case relativeVariation > targetVariation*1.5:
		c.adjustmentAccumulator += 0.1
	case relativeVariation < targetVariation*0.5:
		c.adjustmentAccumulator -= 0.1
	}

	c.observationCount++
	if c.observationCount >= 10 {
		c.applyAdjustment()
	}
}

func (c *AdaptiveCalibrator) applyAdjustment() {
	if c.observationCount == 0 {
		return
	}

	avgAdjustment := c.adjustmentAccumulator / float64(c.observationCount)
	delta := avgAdjustment * c.learningRate

	c.currentPathLoss = clamp(c.currentPathLoss+delta, c.minPathLoss, c.maxPathLoss)

	c.adjustmentAccumulator = 0.0
	c.observationCount = 0
}

// Flush forces any pending accumulated adjustment to apply immediately.
func (c *AdaptiveCalibrator) Flush() {
	c.applyAdjustment()
}

// PathLoss returns the current calibrated path loss exponent.
func (c *AdaptiveCalibrator) PathLoss() float64 {
	return c.currentPathLoss
}

// Status is a calibration snapshot suitable for display or telemetry.
type Status struct {
	PathLossExponent float64
	PeakRSSI         *int
	InferredTXPower  *float64
	ObservationCount int
}

// Status returns a snapshot of the calibrator's current state.
func (c *AdaptiveCalibrator) Status() Status {
	s := Status{
		PathLossExponent: c.currentPathLoss,
		ObservationCount: c.observationCount,
	}
	if c.peakRSSI > noPeakRSSI {
		peak := c.peakRSSI
		s.PeakRSSI = &peak
	}
	if tx, ok := c.InferredTXPower(); ok {
		s.InferredTXPower = &tx
	}
	return s
}
