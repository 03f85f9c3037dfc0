// Command prowlsensor runs the passive probe-request surveillance sensor:
// it captures 802.11 probe requests on a monitor-mode interface, fuses
// them with GPS and distance estimates, persists them, and serves a
// status/event HTTP surface alongside periodic surveillance analysis.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/prowlsensor/internal/capture"
	"github.com/lcalzada-xor/prowlsensor/internal/config"
	"github.com/lcalzada-xor/prowlsensor/internal/distance"
	"github.com/lcalzada-xor/prowlsensor/internal/eventbus"
	"github.com/lcalzada-xor/prowlsensor/internal/hopping"
	"github.com/lcalzada-xor/prowlsensor/internal/ignore"
	"github.com/lcalzada-xor/prowlsensor/internal/logging"
	"github.com/lcalzada-xor/prowlsensor/internal/store"
	"github.com/lcalzada-xor/prowlsensor/internal/surveillance"
	"github.com/lcalzada-xor/prowlsensor/internal/telemetry"
	"github.com/lcalzada-xor/prowlsensor/internal/validation"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON configuration file")
	setMonitor := flag.Bool("set-monitor", false, "force the configured interface into monitor mode at startup")
	listenAddr := flag.String("listen", ":8080", "address for the status/event HTTP surface")
	calibrateDistanceM := flag.Float64("calibrate-distance-m", 0, "run a one-shot TX power calibration at this known distance, then exit")
	calibrateSeconds := flag.Int("calibrate-seconds", 15, "how long to sample RSSI during calibration")
	flag.Parse()

	log := logging.Default()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warnf("main: failed to load %s, using defaults: %v", *configPath, err)
		cfg = config.Default()
	}

	telemetry.InitMetrics()
	shutdownTracer, err := telemetry.InitTracer()
	if err != nil {
		log.Errorf("main: failed to init tracer: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("main: shutdown signal received")
		cancel()
	}()

	if cfg.Capture.ChannelsAlias != "" {
		cfg.Capture.Channels = hopping.ParseChannels(cfg.Capture.ChannelsAlias)
		log.Infof("main: resolved channel alias %q to %v", cfg.Capture.ChannelsAlias, cfg.Capture.Channels)
	}

	result, err := validation.Validate(cfg, *setMonitor, log)
	if err != nil {
		log.Errorf("main: startup validation failed: %v", err)
		os.Exit(1)
	}
	log.Infof("main: resolved capture interface %s (gps_available=%v)", result.Interface, result.GPSAvailable)

	st, err := store.Open(cfg.Capture.DatabasePath)
	if err != nil {
		log.Errorf("main: failed to open store: %v", err)
		os.Exit(1)
	}
	defer st.Close()

	macList, ssidList := loadIgnoreLists(cfg, log)
	ignoreLists := ignore.New(macList, ssidList)

	engine := capture.NewEngine(cfg, result.Interface, st, ignoreLists, log)

	if *calibrateDistanceM > 0 {
		runCalibration(ctx, engine, cfg, *configPath, *calibrateDistanceM, *calibrateSeconds, log)
		cancel()
		return
	}

	bus := eventbus.NewManager(log)
	go bus.RunCaptureRelay(ctx, engine.Events)

	analyzer := surveillance.New(st, cfg.Analysis.TimeWindowsMinutes, cfg.Analysis.PersistenceThreshold)
	go runAnalysisLoop(ctx, analyzer, bus, log)

	go func() {
		if err := engine.Run(ctx); err != nil {
			log.Errorf("main: capture engine stopped: %v", err)
			cancel()
		}
	}()

	server := &http.Server{
		Addr:    *listenAddr,
		Handler: otelhttp.NewHandler(buildRouter(bus, st, cfg, engine), "prowlsensor"),
	}
	go func() {
		log.Infof("main: status server listening on %s", *listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("main: status server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
	shutdownTracer(shutdownCtx)

	log.Infof("main: shutdown complete")
}

func buildRouter(bus *eventbus.Manager, st *store.Store, cfg *config.Config, engine *capture.Engine) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/events", bus.HandleWebSocket)
	r.HandleFunc("/windows", windowsHandler(st, cfg))
	r.HandleFunc("/calibration", calibrationHandler(engine))
	r.HandleFunc("/devices", devicesHandler(st))
	r.HandleFunc("/probes", probesHandler(st))
	return r
}

// devicesHandler lists every device the store has ever seen.
func devicesHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devices, err := st.GetAllDevices()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(devices)
	}
}

// probesHandler lists probes seen in the last hour, or in ?hours=N if set.
func probesHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hours := 1
		if v := r.URL.Query().Get("hours"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				hours = n
			}
		}
		now := time.Now().Unix()
		probes, err := st.GetProbesInTimeRange(now-int64(hours)*3600, now)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(probes)
	}
}

// calibrationHandler reports the distance engine's adaptively-learned
// path loss exponent, any inferred TX power, and the channel hopper's
// current channel list.
func calibrationHandler(engine *capture.Engine) http.HandlerFunc {
	type response struct {
		distance.Status
		Channels []int `json:"channels"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response{
			Status:   engine.CalibrationStatus(),
			Channels: engine.Channels(),
		})
	}
}

// windowsHandler reports, for each configured rolling time window, how
// many distinct devices have been seen.
func windowsHandler(st *store.Store, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := surveillance.AnalyzeTimeWindows(st, time.Now().Unix(), cfg.Analysis.TimeWindowsMinutes)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summaries)
	}
}

// runAnalysisLoop periodically re-runs the surveillance analyser and
// broadcasts its alerts to connected event subscribers.
func runAnalysisLoop(ctx context.Context, analyzer *surveillance.Analyzer, bus *eventbus.Manager, log *logging.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			alerts, err := analyzer.Analyze(time.Now().Unix(), 24)
			if err != nil {
				log.Warnf("main: surveillance analysis failed: %v", err)
				continue
			}
			if len(alerts) > 0 {
				log.Infof("main: %d surveillance alert(s)", len(alerts))
				bus.BroadcastAlerts(alerts)
			}
		}
	}
}

// runCalibration samples RSSI for a fixed duration at a known distance,
// back-calculates the implied TX power at 1m, and persists it into the
// config file as calibrated_tx_power/calibrated_at/calibration_distance_m.
func runCalibration(ctx context.Context, engine *capture.Engine, cfg *config.Config, configPath string, distanceM float64, seconds int, log *logging.Logger) {
	calCtx, calCancel := context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
	defer calCancel()

	log.Infof("main: calibrating at %.1fm for %ds", distanceM, seconds)
	if err := engine.Run(calCtx); err != nil {
		log.Errorf("main: calibration capture failed: %v", err)
		return
	}

	avgRSSI, ok := engine.AverageSignal()
	if !ok {
		log.Errorf("main: calibration collected no RSSI samples")
		return
	}

	result, ok := distance.CalibrateTXPower(avgRSSI, distanceM, cfg.Distance.PathLossExponent)
	if !ok {
		log.Errorf("main: calibration computation failed (avg_rssi=%d distance=%.1fm)", avgRSSI, distanceM)
		return
	}

	now := time.Now().Format(time.RFC3339)
	cfg.Distance.CalibratedTxPower = &result.CalculatedTXPowerDBm
	cfg.Distance.CalibratedAt = &now
	cfg.Distance.CalibrationDistanceM = &distanceM

	if err := cfg.Save(configPath); err != nil {
		log.Errorf("main: failed to persist calibration: %v", err)
		return
	}

	log.Infof("main: calibrated tx_power=%.1fdBm (avg_rssi=%d at %.1fm), saved to %s",
		result.CalculatedTXPowerDBm, avgRSSI, distanceM, configPath)
}

func loadIgnoreLists(cfg *config.Config, log *logging.Logger) ([]string, []string) {
	macs, err := config.LoadStringList(cfg.IgnoreLists.MacPath)
	if err != nil {
		log.Warnf("main: failed to load MAC ignore list %s: %v", cfg.IgnoreLists.MacPath, err)
	}
	ssids, err := config.LoadStringList(cfg.IgnoreLists.SsidPath)
	if err != nil {
		log.Warnf("main: failed to load SSID ignore list %s: %v", cfg.IgnoreLists.SsidPath, err)
	}
	return macs, ssids
}
