package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sensor.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func TestInsertProbe_CreatesDeviceOnFirstSighting(t *testing.T) {
	s := openTestStore(t)

	err := s.InsertProbe(ProbeCapture{
		MAC:       "AA:BB:CC:DD:EE:FF",
		SSID:      "home-network",
		Timestamp: 1000,
	})
	if err != nil {
		t.Fatalf("InsertProbe: %v", err)
	}

	d, err := s.GetDeviceByMAC("AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("GetDeviceByMAC: %v", err)
	}
	if d == nil {
		t.Fatal("expected device to exist")
	}
	if d.FirstSeen != 1000 || d.LastSeen != 1000 {
		t.Errorf("device = %+v", d)
	}

	n, err := s.CountProbes()
	if err != nil {
		t.Fatalf("CountProbes: %v", err)
	}
	if n != 1 {
		t.Errorf("CountProbes = %d, want 1", n)
	}
}

func TestInsertProbe_AdvancesLastSeenOnRepeatSighting(t *testing.T) {
	s := openTestStore(t)

	mac := "11:22:33:44:55:66"
	if err := s.InsertProbe(ProbeCapture{MAC: mac, Timestamp: 1000}); err != nil {
		t.Fatalf("InsertProbe #1: %v", err)
	}
	if err := s.InsertProbe(ProbeCapture{MAC: mac, Timestamp: 2000}); err != nil {
		t.Fatalf("InsertProbe #2: %v", err)
	}

	n, err := s.CountDevices()
	if err != nil {
		t.Fatalf("CountDevices: %v", err)
	}
	if n != 1 {
		t.Fatalf("CountDevices = %d, want 1 (upsert should not create a second device)", n)
	}

	d, err := s.GetDeviceByMAC(mac)
	if err != nil {
		t.Fatalf("GetDeviceByMAC: %v", err)
	}
	if d.FirstSeen != 1000 || d.LastSeen != 2000 {
		t.Errorf("device = %+v, want first_seen=1000 last_seen=2000", d)
	}

	probes, err := s.GetProbesForDevice(d.ID)
	if err != nil {
		t.Fatalf("GetProbesForDevice: %v", err)
	}
	if len(probes) != 2 {
		t.Errorf("len(probes) = %d, want 2", len(probes))
	}
}

func TestGetDevicesInTimeRange(t *testing.T) {
	s := openTestStore(t)

	s.InsertProbe(ProbeCapture{MAC: "AA:AA:AA:AA:AA:01", Timestamp: 100})
	s.InsertProbe(ProbeCapture{MAC: "AA:AA:AA:AA:AA:02", Timestamp: 500})
	s.InsertProbe(ProbeCapture{MAC: "AA:AA:AA:AA:AA:03", Timestamp: 900})

	devices, err := s.GetDevicesInTimeRange(200, 800)
	if err != nil {
		t.Fatalf("GetDevicesInTimeRange: %v", err)
	}
	if len(devices) != 1 || devices[0].MAC != "AA:AA:AA:AA:AA:02" {
		t.Errorf("devices = %+v, want only the middle device", devices)
	}
}

func TestGetUniqueSSIDsForDevice_ExcludesEmpty(t *testing.T) {
	s := openTestStore(t)

	mac := "BB:BB:BB:BB:BB:BB"
	s.InsertProbe(ProbeCapture{MAC: mac, SSID: "cafe-wifi", Timestamp: 1})
	s.InsertProbe(ProbeCapture{MAC: mac, SSID: "", Timestamp: 2})
	s.InsertProbe(ProbeCapture{MAC: mac, SSID: "cafe-wifi", Timestamp: 3})
	s.InsertProbe(ProbeCapture{MAC: mac, SSID: "office-wifi", Timestamp: 4})

	d, _ := s.GetDeviceByMAC(mac)
	ssids, err := s.GetUniqueSSIDsForDevice(d.ID)
	if err != nil {
		t.Fatalf("GetUniqueSSIDsForDevice: %v", err)
	}
	if len(ssids) != 2 {
		t.Errorf("ssids = %v, want 2 distinct non-empty entries", ssids)
	}
}

func TestGetDeviceLocationCount_GridsNearbyFixes(t *testing.T) {
	s := openTestStore(t)

	mac := "CC:CC:CC:CC:CC:CC"
	// Two fixes within the same ~100m grid cell.
	s.InsertProbe(ProbeCapture{MAC: mac, Timestamp: 1, Lat: ptr(33.44841), Lon: ptr(-112.07401)})
	s.InsertProbe(ProbeCapture{MAC: mac, Timestamp: 2, Lat: ptr(33.44849), Lon: ptr(-112.07409)})
	// A fix in a distinct cell.
	s.InsertProbe(ProbeCapture{MAC: mac, Timestamp: 3, Lat: ptr(34.0), Lon: ptr(-111.0)})
	// An un-geotagged probe, which must not count as a location.
	s.InsertProbe(ProbeCapture{MAC: mac, Timestamp: 4})

	d, _ := s.GetDeviceByMAC(mac)
	n, err := s.GetDeviceLocationCount(d.ID)
	if err != nil {
		t.Fatalf("GetDeviceLocationCount: %v", err)
	}
	if n != 2 {
		t.Errorf("GetDeviceLocationCount = %d, want 2", n)
	}
}

func TestMigrateDistanceColumn_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensor.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open #1: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("Open #2 (re-migration should be a no-op): %v", err)
	}
	defer s2.Close()

	if err := s2.InsertProbe(ProbeCapture{MAC: "DD:DD:DD:DD:DD:DD", Timestamp: 1, DistanceM: ptr(12.5)}); err != nil {
		t.Fatalf("InsertProbe with distance_m: %v", err)
	}
}

func TestInsertProbe_PersistsCapabilitiesBlob(t *testing.T) {
	s := openTestStore(t)
	mac := "EE:EE:EE:EE:EE:EE"

	blob := []byte(`{"wifi_generation":"802.11ac"}`)
	if err := s.InsertProbe(ProbeCapture{MAC: mac, Timestamp: 1, Capabilities: blob}); err != nil {
		t.Fatalf("InsertProbe: %v", err)
	}

	device, err := s.GetDeviceByMAC(mac)
	if err != nil || device == nil {
		t.Fatalf("GetDeviceByMAC: device=%v err=%v", device, err)
	}
	probes, err := s.GetProbesForDevice(device.ID)
	if err != nil || len(probes) != 1 {
		t.Fatalf("GetProbesForDevice: probes=%v err=%v", probes, err)
	}
	if string(probes[0].Capabilities) != string(blob) {
		t.Errorf("Capabilities = %s, want %s", probes[0].Capabilities, blob)
	}
}

func TestInsertProbe_CapabilitiesOptional(t *testing.T) {
	s := openTestStore(t)
	mac := "FF:FF:FF:FF:FF:FF"

	if err := s.InsertProbe(ProbeCapture{MAC: mac, Timestamp: 1}); err != nil {
		t.Fatalf("InsertProbe: %v", err)
	}

	device, err := s.GetDeviceByMAC(mac)
	if err != nil || device == nil {
		t.Fatalf("GetDeviceByMAC: device=%v err=%v", device, err)
	}
	probes, err := s.GetProbesForDevice(device.ID)
	if err != nil || len(probes) != 1 {
		t.Fatalf("GetProbesForDevice: probes=%v err=%v", probes, err)
	}
	if probes[0].Capabilities != nil {
		t.Errorf("Capabilities = %v, want nil", probes[0].Capabilities)
	}
}
