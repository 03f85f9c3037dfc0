package distance

import (
	"math"
	"testing"
)

func TestEstimateDistance_AtReferencePower(t *testing.T) {
	d, ok := EstimateDistance(-43, -43.0, 3.0)
	if !ok {
		t.Fatal("expected a valid estimate")
	}
	if math.Abs(d-1.0) >= 0.1 {
		t.Errorf("EstimateDistance(-43,-43,3.0) = %v, want ~1.0", d)
	}
}

func TestEstimateDistance_WeakerSignalIsFarther(t *testing.T) {
	d, ok := EstimateDistance(-60, -43.0, 3.0)
	if !ok || d <= 3.0 {
		t.Errorf("EstimateDistance(-60,-43,3.0) = %v, want > 3.0", d)
	}
}

func TestEstimateDistance_StrongerSignalIsCloser(t *testing.T) {
	d, ok := EstimateDistance(-35, -43.0, 3.0)
	if !ok || d >= 1.0 {
		t.Errorf("EstimateDistance(-35,-43,3.0) = %v, want < 1.0", d)
	}
}

func TestEstimateDistance_InvalidInputs(t *testing.T) {
	if _, ok := EstimateDistance(10, -43.0, 3.0); ok {
		t.Error("positive RSSI should be rejected")
	}
	if _, ok := EstimateDistance(-50, -43.0, 0.0); ok {
		t.Error("zero path loss exponent should be rejected")
	}
}

func TestEstimateDistanceRange_BoundsStraddleCenter(t *testing.T) {
	r, ok := EstimateDistanceRange(-55, -43.0, 3.0, 5)
	if !ok {
		t.Fatal("expected a valid range")
	}
	if !(r.Min < r.Center && r.Center < r.Max) {
		t.Errorf("range = %+v, want min < center < max", r)
	}
	if r.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %v, want High", r.Confidence)
	}
	if got := r.Confidence.Indicator(); got != "" {
		t.Errorf("Indicator() = %q, want empty for high confidence", got)
	}
	if got := ConfidenceLow.Indicator(); got != "?" {
		t.Errorf("Indicator() = %q, want \"?\" for low confidence", got)
	}
}

func TestEstimateDistanceSmart_PrefersCalibratedTXPower(t *testing.T) {
	calibrated := -40.0
	estimate, ok := EstimateDistanceSmart(-55, "802.11ac", 3.0, 5, &calibrated)
	if !ok {
		t.Fatal("expected a valid estimate")
	}

	withoutCalibration, ok := EstimateDistanceRange(-55, TXPowerWifi5, 3.0, 5)
	if !ok {
		t.Fatal("expected a valid reference estimate")
	}
	if estimate.Center == withoutCalibration.Center {
		t.Errorf("EstimateDistanceSmart should use the calibrated TX power, not the generation default")
	}

	fromCalibrated, ok := EstimateDistanceRange(-55, calibrated, 3.0, 5)
	if !ok {
		t.Fatal("expected a valid calibrated estimate")
	}
	if estimate.Center != fromCalibrated.Center {
		t.Errorf("EstimateDistanceSmart(calibrated) = %v, want %v", estimate.Center, fromCalibrated.Center)
	}
}

func TestRssiTracker_Average(t *testing.T) {
	tr := NewRssiTracker(5)
	tr.AddSample(-50)
	tr.AddSample(-52)
	tr.AddSample(-48)

	avg, ok := tr.Average()
	if !ok || avg != -50 {
		t.Errorf("Average() = %v, ok=%v, want -50", avg, ok)
	}
	if tr.Confidence() != ConfidenceMedium {
		t.Errorf("Confidence() = %v, want Medium", tr.Confidence())
	}
}

func TestRssiTracker_WeightedAverageWeighsRecentSamplesMore(t *testing.T) {
	tr := DefaultRssiTracker()
	tr.AddSample(-60)
	tr.AddSample(-60)
	tr.AddSample(-40)

	weighted, ok := tr.WeightedAverage()
	if !ok {
		t.Fatal("expected a valid weighted average")
	}
	plain, _ := tr.Average()
	if weighted <= plain {
		t.Errorf("WeightedAverage() = %v, want > plain Average() %v since the strongest sample is most recent", weighted, plain)
	}
}

func TestRssiTracker_Clear(t *testing.T) {
	tr := NewRssiTracker(5)
	tr.AddSample(-50)
	tr.AddSample(-52)

	tr.Clear()

	if n := tr.SampleCount(); n != 0 {
		t.Errorf("SampleCount() after Clear() = %d, want 0", n)
	}
	if _, ok := tr.Average(); ok {
		t.Error("Average() after Clear() should report no samples")
	}
}

func TestRssiTracker_EvictsOldestOverCapacity(t *testing.T) {
	tr := NewRssiTracker(3)
	tr.AddSample(-10)
	tr.AddSample(-20)
	tr.AddSample(-30)
	tr.AddSample(-40)

	samples := tr.Samples()
	if len(samples) != 3 || samples[0] != -20 {
		t.Errorf("Samples() = %v, want [-20 -30 -40]", samples)
	}
}

func TestEstimateTXPowerFromWifiGeneration(t *testing.T) {
	cases := map[string]float64{
		"802.11ax (WiFi 6)": -38.0,
		"802.11ac (WiFi 5)": -41.0,
		"802.11n (WiFi 4)":  -45.0,
		"":                  -43.0,
	}
	for label, want := range cases {
		if got := EstimateTXPowerFromWifiGeneration(label); got != want {
			t.Errorf("EstimateTXPowerFromWifiGeneration(%q) = %v, want %v", label, got, want)
		}
	}
}

func TestCalibrateTXPower(t *testing.T) {
	result, ok := CalibrateTXPower(-55, 3.0, 3.0)
	if !ok {
		t.Fatal("expected a valid calibration")
	}
	if math.Abs(result.CalculatedTXPowerDBm-(-40.7)) >= 0.5 {
		t.Errorf("CalculatedTXPowerDBm = %v, want ~-40.7", result.CalculatedTXPowerDBm)
	}
}

func TestDistanceCategory(t *testing.T) {
	cases := map[float64]string{
		0.5:  "immediate (<1m)",
		2.0:  "very close (1-3m)",
		5.0:  "close (3-10m)",
		15.0: "nearby (10-20m)",
		30.0: "far (20-40m)",
		50.0: "very far (>40m)",
	}
	for d, want := range cases {
		if got := Category(d); got != want {
			t.Errorf("Category(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestRssiStats_IsStationary(t *testing.T) {
	samples := []int{-50, -51, -49, -50, -52, -50, -49, -51, -50, -50}
	stats, ok := RssiStatsFromSamples(samples)
	if !ok {
		t.Fatal("expected stats")
	}
	if !stats.IsStationary() {
		t.Errorf("stats = %+v, want stationary", stats)
	}
}

func TestAdaptiveCalibrator_InferredTXPowerRequiresThreePeaks(t *testing.T) {
	c := DefaultAdaptiveCalibrator()
	c.RecordPeakRSSI(-40)
	c.RecordPeakRSSI(-41)
	if _, ok := c.InferredTXPower(); ok {
		t.Fatal("two peak observations should not yet infer a TX power")
	}
	c.RecordPeakRSSI(-42)
	tx, ok := c.InferredTXPower()
	if !ok {
		t.Fatal("three corroborating peaks should infer a TX power")
	}
	if tx != -40.0-3.0 {
		t.Errorf("InferredTXPower() = %v, want %v", tx, -40.0-3.0)
	}
}

func TestAdaptiveCalibrator_AnalyzeDeviceAdjustsPathLoss(t *testing.T) {
	c := NewAdaptiveCalibrator(3.0)

	samples := []int{-50, -51, -49, -50, -52, -50, -49, -51, -50, -50}
	stats, ok := RssiStatsFromSamples(samples)
	if !ok {
		t.Fatal("expected stats")
	}

	for i := 0; i < 10; i++ {
		c.AnalyzeDevice(stats, -43.0)
	}
	c.Flush()

	status := c.Status()
	if status.PathLossExponent == 3.0 {
		t.Errorf("status = %+v, want the path loss exponent adjusted away from its initial 3.0", status)
	}
	if status.ObservationCount != 0 {
		t.Errorf("status.ObservationCount = %d, want 0 after Flush", status.ObservationCount)
	}
	if c.PathLoss() != status.PathLossExponent {
		t.Errorf("PathLoss() = %v, want %v", c.PathLoss(), status.PathLossExponent)
	}
}

func TestAdaptiveCalibrator_AnalyzeDeviceSkipsNonStationary(t *testing.T) {
	c := NewAdaptiveCalibrator(3.0)
	volatile, ok := RssiStatsFromSamples([]int{-30, -70, -30, -70, -30, -70, -30, -70, -30, -70})
	if !ok {
		t.Fatal("expected stats")
	}

	c.AnalyzeDevice(volatile, -43.0)
	if c.Status().ObservationCount != 0 {
		t.Errorf("non-stationary sample set should not accumulate an observation")
	}
}
