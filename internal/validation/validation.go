// Package validation implements C10: the two-phase startup check that
// resolves a usable monitor-mode interface (fatal on failure) and probes
// GPS reachability (never fatal).
package validation

import (
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/lcalzada-xor/prowlsensor/internal/config"
	"github.com/lcalzada-xor/prowlsensor/internal/logging"
)

// ErrNoMonitorInterface is returned when no usable monitor-mode interface
// could be resolved, the only fatal outcome of Validate.
var ErrNoMonitorInterface = errors.New("validation: no monitor mode interface available")

// Result carries the outcome of startup validation.
type Result struct {
	Interface    string
	GPSAvailable *bool // nil if GPS is disabled in config
	GPSError     string
}

// CheckGPSDReachable reports whether a gpsd-compatible daemon accepts a
// TCP connection at cfg.Host:cfg.Port within two seconds.
func CheckGPSDReachable(cfg config.GPSConfig) bool {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// startGpsd attempts to start the gpsd system service via systemctl. A
// failure here is never fatal; the caller only cares whether gpsd becomes
// reachable afterward.
func startGpsd(log *logging.Logger) {
	log.Infof("gps: attempting to start gpsd via systemctl")
	if err := exec.Command("systemctl", "start", "gpsd").Run(); err != nil {
		log.Warnf("gps: systemctl start gpsd failed: %v", err)
	}
}

// EnsureGPSDRunning checks GPS reachability, attempting to start the gpsd
// service once before giving up.
func EnsureGPSDRunning(cfg config.GPSConfig, log *logging.Logger) error {
	if CheckGPSDReachable(cfg) {
		log.Infof("gps: daemon reachable at %s:%d", cfg.Host, cfg.Port)
		return nil
	}

	log.Infof("gps: daemon not reachable at %s:%d, attempting to start", cfg.Host, cfg.Port)
	startGpsd(log)
	time.Sleep(2 * time.Second)

	if CheckGPSDReachable(cfg) {
		return nil
	}

	return fmt.Errorf(
		"GPS is enabled but gpsd is not reachable at %s:%d and could not be started; "+
			"check 'systemctl status gpsd' or disable GPS in the config",
		cfg.Host, cfg.Port,
	)
}

// isMonitorMode reports whether iface is currently in monitor mode,
// per 'iw dev <iface> info'.
func isMonitorMode(iface string) (bool, error) {
	out, err := exec.Command("iw", "dev", iface, "info").Output()
	if err != nil {
		return false, err
	}
	return strings.Contains(string(out), "type monitor"), nil
}

// findMonitorInterface scans 'iw dev' output for the first interface
// already in monitor mode.
func findMonitorInterface() (string, bool) {
	out, err := exec.Command("iw", "dev").Output()
	if err != nil {
		return "", false
	}

	var current string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Interface "):
			current = strings.TrimPrefix(line, "Interface ")
		case strings.HasPrefix(line, "type ") && strings.Contains(line, "monitor"):
			if current != "" {
				return current, true
			}
		}
	}
	return "", false
}

// setMonitorMode brings iface down, switches it to monitor type, and
// brings it back up via 'ip'/'iw'.
func setMonitorMode(iface string) error {
	_ = exec.Command("ip", "link", "set", iface, "down").Run()

	out, err := exec.Command("iw", "dev", iface, "set", "type", "monitor").CombinedOutput()
	if err != nil {
		return fmt.Errorf("iw set type monitor: %v: %s", err, strings.TrimSpace(string(out)))
	}

	if err := exec.Command("ip", "link", "set", iface, "up").Run(); err != nil {
		return fmt.Errorf("bring interface up: %w", err)
	}
	return nil
}

// ResolveMonitorInterface determines which interface to capture on. If
// setMonitor is true, it forces configuredInterface into monitor mode.
// Otherwise it first checks whether configuredInterface is already in
// monitor mode, and falls back to auto-detecting any monitor-mode
// interface on the system.
func ResolveMonitorInterface(configuredInterface string, setMonitor bool, log *logging.Logger) (string, error) {
	if setMonitor {
		if err := setMonitorMode(configuredInterface); err != nil {
			return "", fmt.Errorf("%w: failed to set monitor mode on %q: %v", ErrNoMonitorInterface, configuredInterface, err)
		}
		return configuredInterface, nil
	}

	if ok, err := isMonitorMode(configuredInterface); err == nil && ok {
		return configuredInterface, nil
	}

	if iface, ok := findMonitorInterface(); ok {
		log.Infof("validation: auto-detected monitor interface %s", iface)
		return iface, nil
	}

	return "", fmt.Errorf(
		"%w: %q is not in monitor mode and no other monitor interface was found; "+
			"rerun with --set-monitor or configure one manually",
		ErrNoMonitorInterface, configuredInterface,
	)
}

// Validate runs both startup checks: GPS reachability (always non-fatal)
// and monitor-mode interface resolution (the only fatal path). It should
// run before the store or capture engine are constructed.
func Validate(cfg *config.Config, setMonitor bool, log *logging.Logger) (Result, error) {
	var result Result

	if cfg.GPS.Enabled {
		if err := EnsureGPSDRunning(cfg.GPS, log); err != nil {
			log.Warnf("gps: validation failed, continuing without GPS: %v", err)
			ok := false
			result.GPSAvailable = &ok
			result.GPSError = err.Error()
		} else {
			ok := true
			result.GPSAvailable = &ok
		}
	}

	iface, err := ResolveMonitorInterface(cfg.Capture.Interface, setMonitor, log)
	if err != nil {
		return Result{}, err
	}
	result.Interface = iface

	return result, nil
}
