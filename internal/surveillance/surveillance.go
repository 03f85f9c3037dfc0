// Package surveillance implements C9: the weighted persistence-score
// analysis that flags devices loitering across the capture horizon.
package surveillance

import (
	"fmt"
	"sort"

	"github.com/lcalzada-xor/prowlsensor/internal/store"
)

// Alert is a device whose persistence score met or exceeded the configured
// threshold, annotated with the evidence behind that score.
type Alert struct {
	Device          store.Device
	Score           float64
	Reasons         []string
	ProbedSSIDs     []string
	LocationCount   int
	AppearanceCount int
}

// Analyzer scores devices by how persistently they appear across a
// capture horizon.
type Analyzer struct {
	timeWindowsMinutes    []int
	persistenceThreshold  float64
	store                 *store.Store
}

// New builds an Analyzer against store s, scoring coverage across
// timeWindowsMinutes and alerting at persistenceThreshold (0.0-1.0).
func New(s *store.Store, timeWindowsMinutes []int, persistenceThreshold float64) *Analyzer {
	return &Analyzer{
		store:                s,
		timeWindowsMinutes:   timeWindowsMinutes,
		persistenceThreshold: persistenceThreshold,
	}
}

// Analyze scores every device seen in the last hours and returns alerts
// for those meeting the persistence threshold, sorted by score descending.
func (a *Analyzer) Analyze(nowUnix int64, hours int) ([]Alert, error) {
	start := nowUnix - int64(hours)*3600

	devices, err := a.store.GetDevicesInTimeRange(start, nowUnix)
	if err != nil {
		return nil, fmt.Errorf("get devices in range: %w", err)
	}

	var alerts []Alert
	for _, device := range devices {
		probes, err := a.store.GetProbesForDevice(device.ID)
		if err != nil {
			return nil, fmt.Errorf("get probes for device %d: %w", device.ID, err)
		}
		if len(probes) == 0 {
			continue
		}

		score := a.calculatePersistenceScore(device, probes, start, nowUnix)
		reasons := a.getAlertReasons(device, probes, score)

		if score < a.persistenceThreshold {
			continue
		}

		ssids, err := a.store.GetUniqueSSIDsForDevice(device.ID)
		if err != nil {
			return nil, fmt.Errorf("get ssids for device %d: %w", device.ID, err)
		}
		locationCount, err := a.store.GetDeviceLocationCount(device.ID)
		if err != nil {
			return nil, fmt.Errorf("get location count for device %d: %w", device.ID, err)
		}

		alerts = append(alerts, Alert{
			Device:          device,
			Score:           score,
			Reasons:         reasons,
			ProbedSSIDs:     ssids,
			LocationCount:   locationCount,
			AppearanceCount: len(probes),
		})
	}

	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Score > alerts[j].Score })

	return alerts, nil
}

// calculatePersistenceScore blends four signals into a single 0.0-1.0
// persistence score: time-window coverage (40%), probe frequency (30%),
// session duration relative to the analysis horizon (20%), and location
// diversity (10%).
func (a *Analyzer) calculatePersistenceScore(device store.Device, probes []store.Probe, start, end int64) float64 {
	var score float64
	totalDuration := float64(end - start)

	windowScore := a.calculateWindowCoverage(probes, start, end)
	score += windowScore * 0.4

	frequencyScore := calculateFrequencyScore(probes, start, end)
	score += frequencyScore * 0.3

	duration := float64(device.LastSeen - device.FirstSeen)
	durationScore := duration / totalDuration
	if durationScore > 1.0 {
		durationScore = 1.0
	}
	score += durationScore * 0.2

	locationScore := calculateLocationScore(probes)
	score += locationScore * 0.1

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func (a *Analyzer) calculateWindowCoverage(probes []store.Probe, start, end int64) float64 {
	if len(a.timeWindowsMinutes) == 0 {
		return 0.0
	}

	windowsHit := 0
	for _, windowMinutes := range a.timeWindowsMinutes {
		windowSeconds := int64(windowMinutes) * 60
		windowStart := end - windowSeconds
		windowEnd := end

		for _, p := range probes {
			if p.Timestamp >= windowStart && p.Timestamp <= windowEnd {
				windowsHit++
				break
			}
		}
	}

	return float64(windowsHit) / float64(len(a.timeWindowsMinutes))
}

func calculateFrequencyScore(probes []store.Probe, start, end int64) float64 {
	durationHours := float64(end-start) / 3600.0
	if durationHours < 1.0 {
		durationHours = 1.0
	}
	probesPerHour := float64(len(probes)) / durationHours

	// Normalize: 10+ probes/hour saturates to 1.0.
	score := probesPerHour / 10.0
	if score > 1.0 {
		score = 1.0
	}
	return score
}

type gridCell struct {
	latCell, lonCell int64
}

func locationCells(probes []store.Probe) map[gridCell]struct{} {
	cells := make(map[gridCell]struct{})
	for _, p := range probes {
		if p.Lat == nil || p.Lon == nil {
			continue
		}
		lat, lon := *p.Lat, *p.Lon
		if lat == 0.0 && lon == 0.0 {
			continue
		}
		cells[gridCell{int64(lat * 1000.0), int64(lon * 1000.0)}] = struct{}{}
	}
	return cells
}

// calculateLocationScore rewards devices seen across multiple ~100m grid
// cells, on the theory that a device following the sensor is more
// suspicious than one parked in a single spot. Devices with zero geotagged
// probes score 0.0; a single location floors at 0.2; 3+ locations saturate
// to 1.0.
func calculateLocationScore(probes []store.Probe) float64 {
	cells := locationCells(probes)
	if len(cells) == 0 {
		return 0.0
	}

	score := (float64(len(cells)) - 1.0) / 2.0
	if score > 1.0 {
		score = 1.0
	}
	if score < 0.2 {
		score = 0.2
	}
	return score
}

// getAlertReasons explains a score using the device's own first_seen/
// last_seen span as the reference horizon, distinct from the (possibly
// wider) analysis horizon used to compute the score itself.
func (a *Analyzer) getAlertReasons(device store.Device, probes []store.Probe, score float64) []string {
	var reasons []string

	windowCoverage := a.calculateWindowCoverage(probes, device.FirstSeen, device.LastSeen)
	if windowCoverage >= 0.75 {
		reasons = append(reasons, "Present across multiple time windows")
	}

	durationHours := float64(device.LastSeen-device.FirstSeen) / 3600.0
	if durationHours < 0.1 {
		durationHours = 0.1
	}
	probesPerHour := float64(len(probes)) / durationHours
	if probesPerHour > 5.0 {
		reasons = append(reasons, fmt.Sprintf("High probe frequency: %.1f/hour", probesPerHour))
	}

	cells := locationCells(probes)
	if len(cells) > 1 {
		reasons = append(reasons, fmt.Sprintf("Seen at %d different locations", len(cells)))
	}

	durationMinutes := (device.LastSeen - device.FirstSeen) / 60
	if durationMinutes > 30 {
		reasons = append(reasons, fmt.Sprintf("Present for %d minutes", durationMinutes))
	}

	if len(reasons) == 0 {
		reasons = append(reasons, fmt.Sprintf("Persistence score: %.2f", score))
	}

	return reasons
}

// GetTimeWindowDevices returns devices seen within the last windowMinutes.
func (a *Analyzer) GetTimeWindowDevices(nowUnix int64, windowMinutes int) ([]store.Device, error) {
	start := nowUnix - int64(windowMinutes)*60
	return a.store.GetDevicesInTimeRange(start, nowUnix)
}

// WindowSummary reports how many devices were seen within one time window.
type WindowSummary struct {
	WindowMinutes int
	DeviceCount   int
	DeviceMACs    []string
}

// AnalyzeTimeWindows summarizes device counts across a set of rolling
// windows, useful for a quick "how busy is it right now" overview.
func AnalyzeTimeWindows(s *store.Store, nowUnix int64, windows []int) ([]WindowSummary, error) {
	results := make([]WindowSummary, 0, len(windows))

	for _, window := range windows {
		start := nowUnix - int64(window)*60
		devices, err := s.GetDevicesInTimeRange(start, nowUnix)
		if err != nil {
			return nil, fmt.Errorf("devices in %dm window: %w", window, err)
		}

		macs := make([]string, len(devices))
		for i, d := range devices {
			macs[i] = d.MAC
		}

		results = append(results, WindowSummary{
			WindowMinutes: window,
			DeviceCount:   len(devices),
			DeviceMACs:    macs,
		})
	}

	return results, nil
}
