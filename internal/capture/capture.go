// Package capture implements C6: the orchestrating engine that ties the
// radiotap/802.11 parsers, the ignore filter, the channel hopper, the GPS
// client, and the distance estimator into a single per-packet pipeline
// feeding the persistent store.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/pcap"
	"github.com/google/uuid"

	"github.com/lcalzada-xor/prowlsensor/internal/config"
	"github.com/lcalzada-xor/prowlsensor/internal/distance"
	"github.com/lcalzada-xor/prowlsensor/internal/dot11"
	"github.com/lcalzada-xor/prowlsensor/internal/gpsclient"
	"github.com/lcalzada-xor/prowlsensor/internal/hopping"
	"github.com/lcalzada-xor/prowlsensor/internal/ignore"
	"github.com/lcalzada-xor/prowlsensor/internal/logging"
	"github.com/lcalzada-xor/prowlsensor/internal/radiotap"
	"github.com/lcalzada-xor/prowlsensor/internal/store"
	"github.com/lcalzada-xor/prowlsensor/internal/telemetry"
)

const (
	snapLen        = 65535
	readTimeout    = time.Second
	bpfProbeFilter = "type mgt subtype probe-req"
)

// Event is emitted for every admitted probe, for the eventbus to fan out.
// EventID is an external correlation id (independent of the store's
// internal device/probe autoincrement ids) so downstream consumers can
// reference a specific sighting without depending on storage internals.
type Event struct {
	EventID      string
	MAC          string
	SSID         string
	Timestamp    int64
	SignalDBm    *int
	DistanceM    *float64
	Lat          *float64
	Lon          *float64
	Capabilities dot11.Capabilities
}

// Engine runs the capture loop for one monitor-mode interface.
type Engine struct {
	iface        string
	channels     []int
	hopInterval  time.Duration
	gps          *gpsclient.Client
	gpsEnabled   bool
	ignoreLists  *ignore.Lists
	store        *store.Store
	distanceCfg  config.DistanceConfig
	log          *logging.Logger
	tracker      *distance.RssiTracker
	calibrator   *distance.AdaptiveCalibrator
	hopper       atomic.Pointer[hopping.ChannelHopper]

	Events chan Event
}

// NewEngine builds a capture Engine. iface is the already-resolved
// monitor-mode interface name (see internal/validation).
func NewEngine(cfg *config.Config, iface string, st *store.Store, ignoreLists *ignore.Lists, log *logging.Logger) *Engine {
	tracker := distance.DefaultRssiTracker()
	if cfg.Distance.RssiAverageSamples > 0 {
		tracker = distance.NewRssiTracker(cfg.Distance.RssiAverageSamples)
	}

	e := &Engine{
		iface:       iface,
		channels:    cfg.Capture.Channels,
		hopInterval: time.Duration(cfg.Capture.HopIntervalMs) * time.Millisecond,
		ignoreLists: ignoreLists,
		store:       st,
		distanceCfg: cfg.Distance,
		log:         log,
		tracker:     tracker,
		calibrator:  distance.NewAdaptiveCalibrator(cfg.Distance.PathLossExponent),
		Events:      make(chan Event, 512),
	}
	if cfg.GPS.Enabled {
		e.gps = gpsclient.New(cfg.GPS.Host, cfg.GPS.Port)
		e.gpsEnabled = true
	}
	return e
}

// CalibrationStatus reports the adaptive calibrator's current path loss
// exponent and any inferred TX power, for display or telemetry.
func (e *Engine) CalibrationStatus() distance.Status {
	return e.calibrator.Status()
}

// AverageSignal returns the tracked, recency-weighted RSSI average and
// whether any samples have been collected yet, for a manual calibration
// run.
func (e *Engine) AverageSignal() (int, bool) {
	return e.tracker.WeightedAverage()
}

// Channels returns the channel hopper's current channel list, or nil if
// the engine isn't running yet.
func (e *Engine) Channels() []int {
	hopper := e.hopper.Load()
	if hopper == nil {
		return nil
	}
	return hopper.GetChannels()
}

// Run opens the capture handle, starts the channel hopper and GPS client
// as background tasks, and processes packets until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	handle, err := pcap.OpenLive(e.iface, snapLen, true, readTimeout)
	if err != nil {
		return fmt.Errorf("open capture device %q: %w", e.iface, err)
	}
	defer handle.Close()

	if err := handle.SetBPFFilter(bpfProbeFilter); err != nil {
		e.log.Warnf("capture: BPF filter rejected (%v), filtering in software", err)
	}

	var wg sync.WaitGroup

	hopper := hopping.NewHopper(e.iface, e.channels, e.hopInterval, nil)
	e.hopper.Store(hopper)
	wg.Add(1)
	go func() {
		defer wg.Done()
		hopper.Start()
	}()
	go func() {
		<-ctx.Done()
		hopper.Stop()
	}()

	gpsFixes := make(chan gpsclient.Fix, 1)
	if e.gpsEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.gps.Run(ctx, gpsFixes)
		}()
	}

	var currentFix *gpsclient.Fix
	var packetCount, probeCount uint64

	e.log.Infof("capture: started on %s", e.iface)

	for {
		select {
		case <-ctx.Done():
			e.log.Infof("capture: stopped on %s (packets=%d probes=%d hopper_state=%s)", e.iface, packetCount, probeCount, hopper.State())
			wg.Wait()
			close(e.Events)
			return nil
		case fix := <-gpsFixes:
			f := fix
			currentFix = &f
			telemetry.GPSFixes.Inc()
		default:
		}

		data, _, err := handle.ReadPacketData()
		if err != nil {
			if err == pcap.NextErrorTimeoutExpired {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			telemetry.PacketsDropped.WithLabelValues(e.iface, "read_error").Inc()
			e.log.Warnf("capture: read error: %v", err)
			continue
		}

		packetCount++
		telemetry.PacketsCaptured.WithLabelValues(e.iface).Inc()

		if e.processPacket(data, currentFix) {
			probeCount++
		}
	}
}

// processPacket runs one captured frame through C1 -> C2 -> C3 -> C8 -> C7
// and, if admitted, emits an Event. Returns true if the packet yielded an
// admitted probe.
func (e *Engine) processPacket(data []byte, fix *gpsclient.Fix) bool {
	headerLen, err := radiotap.HeaderLength(data)
	if err != nil {
		return false
	}

	var signalDBm *int
	if rssi, ok, err := radiotap.SignalDBm(data); err == nil && ok {
		signalDBm = &rssi
	}

	if headerLen > len(data) {
		return false
	}
	frame := data[headerLen:]

	probe, err := dot11.Parse(frame, signalDBm)
	if err != nil {
		return false
	}

	if !e.ignoreLists.Admit(probe.SourceMAC, probe.SSID) {
		reason := "ssid"
		if e.ignoreLists.ShouldIgnoreMAC(probe.SourceMAC) {
			reason = "mac"
		}
		telemetry.ProbesIgnored.WithLabelValues(reason).Inc()
		return false
	}

	telemetry.PacketsProcessed.WithLabelValues(e.iface).Inc()
	telemetry.ProbesAdmitted.WithLabelValues(e.iface).Inc()

	now := time.Now().Unix()

	var distanceM *float64
	if e.distanceCfg.Enabled && signalDBm != nil {
		e.tracker.AddSample(*signalDBm)
		e.calibrator.RecordPeakRSSI(*signalDBm)
		if stats, ok := e.tracker.Stats(); ok {
			e.calibrator.AnalyzeDevice(stats, e.distanceCfg.TxPowerDBm)
		}

		if e.distanceCfg.UseSmartTxPower || e.distanceCfg.CalibratedTxPower != nil {
			estimate, ok := distance.EstimateDistanceSmart(
				*signalDBm,
				probe.Capabilities.WifiGeneration,
				e.distanceCfg.PathLossExponent,
				e.tracker.SampleCount(),
				e.distanceCfg.CalibratedTxPower,
			)
			if ok {
				distanceM = &estimate.Center
			}
		} else if d, ok := distance.EstimateDistance(*signalDBm, e.distanceCfg.TxPowerDBm, e.distanceCfg.PathLossExponent); ok {
			distanceM = &d
		}
	}

	var lat, lon *float64
	if fix != nil {
		latV, lonV := fix.Lat, fix.Lon
		lat, lon = &latV, &lonV
	}

	var channel *int
	if probe.Capabilities.Channel != 0 {
		ch := probe.Capabilities.Channel
		channel = &ch
	}

	capabilitiesJSON, err := json.Marshal(probe.Capabilities)
	if err != nil {
		capabilitiesJSON = nil
		e.log.Warnf("capture: failed to encode capabilities for %s: %v", probe.SourceMAC, err)
	}

	err = e.store.InsertProbe(store.ProbeCapture{
		MAC:          probe.SourceMAC,
		SSID:         probe.SSID,
		Timestamp:    now,
		Lat:          lat,
		Lon:          lon,
		SignalDBm:    signalDBm,
		Channel:      channel,
		DistanceM:    distanceM,
		Capabilities: capabilitiesJSON,
	})
	if err != nil {
		telemetry.StoreWrites.WithLabelValues("error").Inc()
		e.log.Warnf("capture: failed to persist probe from %s: %v", probe.SourceMAC, err)
		return false
	}
	telemetry.StoreWrites.WithLabelValues("ok").Inc()
	e.log.Debugf("capture: admitted probe from %s ssid=%q signal=%v distance=%v", probe.SourceMAC, probe.SSID, signalDBm, distanceM)

	select {
	case e.Events <- Event{
		EventID:      uuid.New().String(),
		MAC:          probe.SourceMAC,
		SSID:         probe.SSID,
		Timestamp:    now,
		SignalDBm:    signalDBm,
		DistanceM:    distanceM,
		Lat:          lat,
		Lon:          lon,
		Capabilities: probe.Capabilities,
	}:
	default:
		telemetry.PacketsDropped.WithLabelValues(e.iface, "event_backpressure").Inc()
	}

	return true
}
