// Package dot11 decodes 802.11 probe-request management frames and their
// station-info capability elements via manual byte-offset parsing of the
// MAC header and a single pass over the tagged parameter (IE) list.
package dot11

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lcalzada-xor/prowlsensor/internal/dot11/ie"
)

// ErrMalformedFrame is returned when the buffer is too short to contain a
// full 802.11 MAC header, or is not a probe request.
var ErrMalformedFrame = errors.New("dot11: malformed or non-probe-request frame")

const (
	frameTypeManagement = 0
	subtypeProbeRequest = 4

	ieIDSSID             = 0
	ieIDSupportedRates   = 1
	ieIDDSParameterSet   = 3
	ieIDExtendedRates    = 50
	ieIDHTCapabilities   = 45
	ieIDRSN              = 48
	ieIDVHTCapabilities  = 191
	ieIDVendorSpecific   = 221
	wpsOUIType           = 0x04
	microsoftOUIType     = byte(0x01) // WPA
)

var microsoftOUI = [3]byte{0x00, 0x50, 0xF2}

// RSNSummary mirrors ie.RSNInfo at the capability-record level.
type RSNSummary struct {
	Version         uint16
	GroupCipher     string
	PairwiseCiphers []string
	AKMSuites       []string
	MFPRequired     bool
	MFPCapable      bool
}

// WPASummary describes the vendor WPA information element (Microsoft OUI,
// type 1), parsed with the same cipher/AKM tables as RSN.
type WPASummary struct {
	Version         uint16
	GroupCipher     string
	PairwiseCiphers []string
	AKMSuites       []string
}

// WPSSummary describes the vendor WPS information element.
type WPSSummary struct {
	Manufacturer      string
	Model             string
	ModelNumber       string
	SerialNumber      string
	DeviceName        string
	PrimaryDeviceType string
	Configured        bool
	Locked            bool
}

// Capabilities is the derived capability record extracted from a probe
// request's station-info (tagged parameter) list.
type Capabilities struct {
	SupportedRates []float64
	MaxRateMbps    float64

	HasHT bool
	HasVHT bool
	HasHE bool

	HT  *HTCapabilities
	VHT *VHTCapabilities

	WifiGeneration string

	RSN *RSNSummary
	WPA *WPASummary
	WPS *WPSSummary

	VendorIEs []VendorIESummary

	Channel int
	IEIDs   []int
}

// ProbeRequest is a parsed probe-request frame: identity plus capabilities.
type ProbeRequest struct {
	SourceMAC    string
	SSID         string
	SignalDBm    *int
	Capabilities Capabilities
}

// Parse decodes an 802.11 frame buffer (radiotap header already stripped
// by the caller) into a ProbeRequest. Only type=Management, subtype=Probe
// Request frames are accepted; everything else yields ErrMalformedFrame.
func Parse(frame []byte, signalDBm *int) (*ProbeRequest, error) {
	if len(frame) < 24 {
		return nil, fmt.Errorf("%w: header too short (%d bytes)", ErrMalformedFrame, len(frame))
	}

	frameControl := binary.LittleEndian.Uint16(frame[0:2])
	ftype := int((frameControl >> 2) & 0x3)
	subtype := int((frameControl >> 4) & 0xF)
	if ftype != frameTypeManagement || subtype != subtypeProbeRequest {
		return nil, fmt.Errorf("%w: type=%d subtype=%d", ErrMalformedFrame, ftype, subtype)
	}

	sourceMAC := formatMAC(frame[10:16])
	stationInfo := frame[24:]

	req := &ProbeRequest{
		SourceMAC: sourceMAC,
		SignalDBm: signalDBm,
	}
	req.Capabilities = extractCapabilities(stationInfo)
	req.SSID = ie.ParseSSID(stationInfo)
	if req.SSID == "<HIDDEN>" {
		req.SSID = ""
	}

	return req, nil
}

func extractCapabilities(data []byte) Capabilities {
	var caps Capabilities

	ie.IterateIEs(data, func(id int, val []byte) {
		caps.IEIDs = append(caps.IEIDs, id)

		switch id {
		case ieIDSupportedRates, ieIDExtendedRates:
			for _, b := range val {
				rate := float64(b&0x7F) * 0.5
				caps.SupportedRates = append(caps.SupportedRates, rate)
				if rate > caps.MaxRateMbps {
					caps.MaxRateMbps = rate
				}
			}
		case ieIDHTCapabilities:
			caps.HasHT = true
			caps.HT = parseHTCapabilities(val)
		case ieIDVHTCapabilities:
			caps.HasVHT = true
			caps.VHT = parseVHTCapabilities(val)
		case ieIDRSN:
			if rsn, err := ie.ParseRSN(val); err == nil {
				caps.RSN = &RSNSummary{
					Version:         rsn.Version,
					GroupCipher:     rsn.GroupCipher,
					PairwiseCiphers: rsn.PairwiseCiphers,
					AKMSuites:       rsn.AKMSuites,
					MFPRequired:     rsn.Capabilities.MFPRequired,
					MFPCapable:      rsn.Capabilities.MFPCapable,
				}
			}
		case ieIDDSParameterSet:
			if len(val) >= 1 {
				caps.Channel = int(val[0])
			}
		case ieIDVendorSpecific:
			caps.VendorIEs = append(caps.VendorIEs, extractVendorIESummary(val))
			if len(val) >= 4 && [3]byte{val[0], val[1], val[2]} == microsoftOUI {
				switch val[3] {
				case microsoftOUIType:
					caps.WPA = parseWPA(val[4:])
				case wpsOUIType:
					caps.WPS = parseWPSSummary(val[4:])
				}
			}
		}
	})

	caps.HasHE = hasHECapability(data)
	caps.WifiGeneration = WifiGeneration(caps.HasHE, caps.HasVHT, caps.HasHT)
	return caps
}

func parseWPA(data []byte) *WPASummary {
	rsn, err := ie.ParseRSN(data)
	if err != nil {
		return nil
	}
	return &WPASummary{
		Version:         rsn.Version,
		GroupCipher:     rsn.GroupCipher,
		PairwiseCiphers: rsn.PairwiseCiphers,
		AKMSuites:       rsn.AKMSuites,
	}
}

func parseWPSSummary(data []byte) *WPSSummary {
	info := ie.ParseWPSAttributes(data)
	return &WPSSummary{
		Manufacturer:      info.Manufacturer,
		Model:             info.Model,
		ModelNumber:       info.ModelNumber,
		SerialNumber:      info.SerialNumber,
		DeviceName:        info.DeviceName,
		PrimaryDeviceType: info.PrimaryDeviceType,
		Configured:        info.State == "Configured",
		Locked:            info.Locked,
	}
}

func formatMAC(b []byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[0], b[1], b[2], b[3], b[4], b[5])
}
