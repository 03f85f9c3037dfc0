package dot11

import "github.com/lcalzada-xor/prowlsensor/internal/dot11/ie"

// HTCapabilities summarizes IE 45 (HT Capabilities), decoded from the
// first two bytes of the capabilities info field.
type HTCapabilities struct {
	Width40MHz bool
	ShortGI20  bool
	ShortGI40  bool
	TxSTBC     bool
	RxSTBC     int
}

func parseHTCapabilities(data []byte) *HTCapabilities {
	if len(data) < 2 {
		return nil
	}
	v := uint16(data[0]) | uint16(data[1])<<8
	return &HTCapabilities{
		Width40MHz: v&(1<<1) != 0,
		ShortGI20:  v&(1<<5) != 0,
		ShortGI40:  v&(1<<6) != 0,
		TxSTBC:     v&(1<<7) != 0,
		RxSTBC:     int((v >> 8) & 0x3),
	}
}

// VHTCapabilities summarizes IE 191 (VHT Capabilities), decoded from the
// first four bytes of the capabilities info field.
type VHTCapabilities struct {
	MaxMPDULength int
	ChannelWidth  int
	ShortGI80     bool
	ShortGI160    bool
	SUBeamformer  bool
	MUBeamformer  bool
}

func parseVHTCapabilities(data []byte) *VHTCapabilities {
	if len(data) < 4 {
		return nil
	}
	v := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24

	maxMPDU := 11454
	switch v & 0x3 {
	case 0:
		maxMPDU = 3895
	case 1:
		maxMPDU = 7991
	}

	return &VHTCapabilities{
		MaxMPDULength: maxMPDU,
		ChannelWidth:  int((v >> 2) & 0x3),
		ShortGI80:     v&(1<<5) != 0,
		ShortGI160:    v&(1<<6) != 0,
		SUBeamformer:  v&(1<<11) != 0,
		MUBeamformer:  v&(1<<19) != 0,
	}
}

// hasHECapability reports whether the Extension IE (255) with extension
// ID 35 (HE Capabilities) is present among the station-info elements.
func hasHECapability(data []byte) bool {
	found := false
	ie.IterateIEs(data, func(id int, val []byte) {
		if found || id != 255 || len(val) < 1 {
			return
		}
		if val[0] == 35 {
			found = true
		}
	})
	return found
}

// WifiGeneration maps the decoded capability booleans to a generation
// label per the first-match rule: HE -> ax, VHT -> ac, HT -> n, else Legacy.
func WifiGeneration(hasHE, hasVHT, hasHT bool) string {
	switch {
	case hasHE:
		return "802.11ax"
	case hasVHT:
		return "802.11ac"
	case hasHT:
		return "802.11n"
	default:
		return "Legacy"
	}
}

// VendorIESummary describes one Vendor-Specific IE (221) found in the
// station-info record.
type VendorIESummary struct {
	OUI      [3]byte
	OUIType  byte
	Length   int
	Label    string
}

var vendorOUILabels = map[[3]byte]string{
	{0x00, 0x50, 0xF2}: "Microsoft",
	{0x00, 0x0F, 0xAC}: "IEEE 802.11",
	{0x00, 0x03, 0x7F}: "Atheros",
	{0x00, 0x10, 0x18}: "Broadcom",
}

func extractVendorIESummary(val []byte) VendorIESummary {
	var s VendorIESummary
	if len(val) < 3 {
		return s
	}
	copy(s.OUI[:], val[0:3])
	if len(val) >= 4 {
		s.OUIType = val[3]
	}
	s.Length = len(val)
	s.Label = vendorOUILabels[s.OUI]
	return s
}
