package store

import "encoding/json"

// Device is a uniquely-identified transmitter observed across one or more
// probe requests.
type Device struct {
	ID        int64
	MAC       string
	FirstSeen int64
	LastSeen  int64
}

// Probe is a single observed probe request, optionally geo-tagged and
// capability-annotated. Capabilities holds the caller's JSON-encoded
// dot11.Capabilities record verbatim, so this package never needs to
// depend on the dot11 parser's types.
type Probe struct {
	ID           int64
	DeviceID     int64
	SSID         string
	Timestamp    int64
	Lat          *float64
	Lon          *float64
	SignalDBm    *int
	Channel      *int
	DistanceM    *float64
	Capabilities json.RawMessage
}

// ProbeCapture is the write-side input to InsertProbe: everything known
// about one observed probe before it has been assigned a device/probe id.
type ProbeCapture struct {
	MAC          string
	SSID         string
	Timestamp    int64
	Lat          *float64
	Lon          *float64
	SignalDBm    *int
	Channel      *int
	DistanceM    *float64
	Capabilities json.RawMessage
}
