// Package config loads the JSON configuration document that drives a
// capture session: which interface and channels to use, whether GPS
// fusion is enabled, the analyser's time windows, ignore-list paths, and
// the distance engine's calibration knobs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the top-level JSON document described in the external
// interfaces section of the specification.
type Config struct {
	Capture     CaptureConfig     `json:"capture"`
	GPS         GPSConfig         `json:"gps"`
	Analysis    AnalysisConfig    `json:"analysis"`
	IgnoreLists IgnoreListsConfig `json:"ignore_lists"`
	Distance    DistanceConfig    `json:"distance"`
}

type CaptureConfig struct {
	Interface string `json:"interface"`
	// Channels is the explicit channel list. ChannelsAlias, when set,
	// takes precedence and is resolved via hopping.ParseChannels (e.g.
	// "2.4ghz", "5ghz", "all", or a comma-separated channel list).
	Channels      []int  `json:"channels"`
	ChannelsAlias string `json:"channels_alias,omitempty"`
	HopIntervalMs int    `json:"hop_interval_ms"`
	DatabasePath  string `json:"database_path"`
}

type GPSConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type AnalysisConfig struct {
	TimeWindowsMinutes    []int   `json:"time_windows_minutes"`
	PersistenceThreshold float64 `json:"persistence_threshold"`
}

type IgnoreListsConfig struct {
	MacPath  string `json:"mac_path"`
	SsidPath string `json:"ssid_path"`
}

// DistanceConfig configures C8. CalibratedTxPower and the companion
// timestamp/distance fields are populated by a manual calibration run and
// rewritten into the config file (see §6 "Persisted calibration").
type DistanceConfig struct {
	Enabled             bool     `json:"enabled"`
	TxPowerDBm          float64  `json:"tx_power_dbm"`
	PathLossExponent    float64  `json:"path_loss_exponent"`
	UseSmartTxPower     bool     `json:"use_smart_tx_power"`
	CalibratedTxPower   *float64 `json:"calibrated_tx_power,omitempty"`
	CalibratedAt        *string  `json:"calibrated_at,omitempty"`
	CalibrationDistanceM *float64 `json:"calibration_distance_m,omitempty"`
	RssiAverageSamples  int      `json:"rssi_average_samples"`
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			Interface:     "wlan1",
			Channels:      []int{1, 6, 11},
			HopIntervalMs: 250,
			DatabasePath:  "./prowlsensor.db",
		},
		GPS: GPSConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    2947,
		},
		Analysis: AnalysisConfig{
			TimeWindowsMinutes:   []int{5, 10, 15, 20},
			PersistenceThreshold: 0.7,
		},
		IgnoreLists: IgnoreListsConfig{
			MacPath:  "ignore_lists/mac_list.json",
			SsidPath: "ignore_lists/ssid_list.json",
		},
		Distance: DistanceConfig{
			Enabled:            true,
			TxPowerDBm:         -45.0,
			PathLossExponent:   3.0,
			UseSmartTxPower:    false,
			RssiAverageSamples: 5,
		},
	}
}

// Load reads and parses a JSON configuration file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration back to path as indented JSON. Used after
// a manual calibration run persists a new reference TX power.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config %q: %w", path, err)
	}
	return nil
}

// LoadStringList reads a JSON array of strings from path, as used by the
// MAC and SSID ignore lists. An empty path yields an empty, non-error
// list.
func LoadStringList(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read list %q: %w", path, err)
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse list %q: %w", path, err)
	}
	return list, nil
}
