package capture

import (
	"path/filepath"
	"testing"

	"github.com/lcalzada-xor/prowlsensor/internal/config"
	"github.com/lcalzada-xor/prowlsensor/internal/distance"
	"github.com/lcalzada-xor/prowlsensor/internal/gpsclient"
	"github.com/lcalzada-xor/prowlsensor/internal/ignore"
	"github.com/lcalzada-xor/prowlsensor/internal/logging"
	"github.com/lcalzada-xor/prowlsensor/internal/store"
)

// radiotapProbeFrame builds a minimal radiotap header (carrying a dBm
// antenna signal field) followed by a bare 802.11 probe-request frame.
func radiotapProbeFrame(sourceMAC [6]byte, ssid string, signalByte byte) []byte {
	radiotap := []byte{
		0x00, 0x00, // version, pad
		0x09, 0x00, // it_len = 9
		0x20, 0x00, 0x00, 0x00, // present = bit 5 (dBm antenna signal)
		signalByte,
	}

	frame := make([]byte, 24)
	frame[0] = 0x40 // mgmt, probe-req
	copy(frame[10:16], sourceMAC[:])

	ssidIE := append([]byte{0, byte(len(ssid))}, []byte(ssid)...)
	frame = append(frame, ssidIE...)

	return append(radiotap, frame...)
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "sensor.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	cfg.Distance.Enabled = true

	return &Engine{
		iface:       "mon0",
		ignoreLists: ignore.New(nil, nil),
		store:       st,
		distanceCfg: cfg.Distance,
		log:         logging.Default(),
		tracker:     nil,
		calibrator:  distance.NewAdaptiveCalibrator(cfg.Distance.PathLossExponent),
		Events:      make(chan Event, 4),
	}
}

func TestProcessPacket_AdmitsAndPersistsProbe(t *testing.T) {
	e := newTestEngine(t)
	e.tracker = distance.NewRssiTracker(5)

	mac := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	frame := radiotapProbeFrame(mac, "open-wifi", 0xD8) // 0xD8 = -40 dBm

	admitted := e.processPacket(frame, nil)
	if !admitted {
		t.Fatal("expected the probe to be admitted")
	}

	device, err := e.store.GetDeviceByMAC("AA:BB:CC:DD:EE:FF")
	if err != nil || device == nil {
		t.Fatalf("GetDeviceByMAC: device=%v err=%v", device, err)
	}

	select {
	case ev := <-e.Events:
		if ev.MAC != "AA:BB:CC:DD:EE:FF" || ev.SSID != "open-wifi" {
			t.Errorf("event = %+v", ev)
		}
		if ev.SignalDBm == nil || *ev.SignalDBm != -40 {
			t.Errorf("event.SignalDBm = %v, want -40", ev.SignalDBm)
		}
		if ev.DistanceM == nil {
			t.Error("expected a distance estimate")
		}
		if ev.Capabilities.WifiGeneration == "" {
			t.Error("expected a populated capabilities record on the event")
		}
	default:
		t.Fatal("expected an event to be emitted")
	}

	probes, err := e.store.GetProbesForDevice(device.ID)
	if err != nil || len(probes) != 1 {
		t.Fatalf("GetProbesForDevice: probes=%v err=%v", probes, err)
	}
	if len(probes[0].Capabilities) == 0 {
		t.Error("expected the persisted probe to carry a capabilities JSON blob")
	}
}

func TestProcessPacket_DropsIgnoredMAC(t *testing.T) {
	e := newTestEngine(t)
	e.tracker = distance.NewRssiTracker(5)
	e.ignoreLists = ignore.New([]string{"AA:BB:CC:DD:EE:FF"}, nil)

	mac := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	frame := radiotapProbeFrame(mac, "open-wifi", 0xD8)

	if e.processPacket(frame, nil) {
		t.Fatal("expected the probe to be dropped by the ignore filter")
	}

	n, err := e.store.CountProbes()
	if err != nil {
		t.Fatalf("CountProbes: %v", err)
	}
	if n != 0 {
		t.Errorf("CountProbes = %d, want 0", n)
	}
}

func TestProcessPacket_AttachesGPSFix(t *testing.T) {
	e := newTestEngine(t)
	e.tracker = distance.NewRssiTracker(5)

	mac := [6]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	frame := radiotapProbeFrame(mac, "", 0xD8)

	fix := &gpsclient.Fix{Lat: 33.4484, Lon: -112.0740}
	if !e.processPacket(frame, fix) {
		t.Fatal("expected the probe to be admitted")
	}

	select {
	case ev := <-e.Events:
		if ev.Lat == nil || ev.Lon == nil || *ev.Lat != 33.4484 {
			t.Errorf("event geo fields = lat=%v lon=%v", ev.Lat, ev.Lon)
		}
	default:
		t.Fatal("expected an event to be emitted")
	}
}
