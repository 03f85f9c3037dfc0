// Package radiotap decodes the radiotap header prefixed to monitor-mode
// 802.11 captures far enough to recover the dBm antenna signal field.
package radiotap

import (
	"encoding/binary"
	"errors"
)

// ErrMalformedHeader is returned when the radiotap header is truncated or
// internally inconsistent (bad version, it_len past the buffer, an
// unterminated present-word chain).
var ErrMalformedHeader = errors.New("radiotap: malformed header")

const (
	bitTSFT     = 0
	bitFlags    = 1
	bitRate     = 2
	bitChannel  = 3
	bitFHSS     = 4
	bitDBMSignal = 5
	bitExtended = 31
)

// HeaderLength returns it_len, the total byte length of the radiotap
// header (including this field), so callers can strip it to reach the
// 802.11 frame payload.
func HeaderLength(buf []byte) (int, error) {
	if len(buf) < 4 {
		return 0, ErrMalformedHeader
	}
	if buf[0] != 0 {
		return 0, ErrMalformedHeader
	}
	itLen := int(binary.LittleEndian.Uint16(buf[2:4]))
	if itLen > len(buf) || itLen < 8 {
		return 0, ErrMalformedHeader
	}
	return itLen, nil
}

// SignalDBm parses the radiotap header in buf and returns the dBm antenna
// signal field, if present. It walks the full chain of extended present
// bitmask words (following bit 31 across words) before computing the
// offset of the fixed-field region, then advances through TSFT, Flags,
// Rate, Channel and FHSS — honoring each field's natural alignment — to
// reach the signal byte.
func SignalDBm(buf []byte) (int, bool, error) {
	itLen, err := HeaderLength(buf)
	if err != nil {
		return 0, false, err
	}

	offset := 4
	var firstWord uint32
	for i := 0; ; i++ {
		if offset+4 > len(buf) || offset+4 > itLen {
			return 0, false, ErrMalformedHeader
		}
		word := binary.LittleEndian.Uint32(buf[offset : offset+4])
		if i == 0 {
			firstWord = word
		}
		offset += 4
		if word&(1<<bitExtended) == 0 {
			break
		}
	}
	present := firstWord

	if present&(1<<bitDBMSignal) == 0 {
		return 0, false, nil
	}

	fieldOffset := offset

	if present&(1<<bitTSFT) != 0 {
		fieldOffset = align(fieldOffset, 8)
		fieldOffset += 8
	}
	if present&(1<<bitFlags) != 0 {
		fieldOffset += 1
	}
	if present&(1<<bitRate) != 0 {
		fieldOffset += 1
	}
	if present&(1<<bitChannel) != 0 {
		fieldOffset = align(fieldOffset, 2)
		fieldOffset += 4
	}
	if present&(1<<bitFHSS) != 0 {
		fieldOffset += 2
	}

	// it_len bounds the present-word chain and the fixed fields that
	// precede the signal byte; the signal byte itself only needs to lie
	// within the captured buffer (some captures report it_len one byte
	// short of the trailing antenna-signal field).
	if fieldOffset >= len(buf) {
		return 0, false, ErrMalformedHeader
	}

	signal := int8(buf[fieldOffset])
	return int(signal), true, nil
}

func align(offset, n int) int {
	rem := offset % n
	if rem == 0 {
		return offset
	}
	return offset + (n - rem)
}
