// Package ignore implements the MAC/SSID admission filter applied to
// every parsed probe request before it reaches the store.
package ignore

import "strings"

// Lists holds the two admission sets. The zero value admits everything.
type Lists struct {
	macs  map[string]struct{}
	ssids map[string]struct{}
}

// New builds a Lists from raw MAC and SSID entries, normalising MACs.
func New(macs, ssids []string) *Lists {
	l := &Lists{
		macs:  make(map[string]struct{}, len(macs)),
		ssids: make(map[string]struct{}, len(ssids)),
	}
	for _, m := range macs {
		l.macs[NormalizeMAC(m)] = struct{}{}
	}
	for _, s := range ssids {
		l.ssids[s] = struct{}{}
	}
	return l
}

// NormalizeMAC replaces '-' and '.' separators with ':' and uppercases the
// result. It is idempotent and case-invariant.
func NormalizeMAC(mac string) string {
	r := strings.NewReplacer("-", ":", ".", ":")
	return strings.ToUpper(r.Replace(mac))
}

// ShouldIgnoreMAC reports whether mac (in any separator/case form) is on
// the ignore list.
func (l *Lists) ShouldIgnoreMAC(mac string) bool {
	if l == nil {
		return false
	}
	_, ignored := l.macs[NormalizeMAC(mac)]
	return ignored
}

// ShouldIgnoreSSID reports whether ssid is on the ignore list. Matching is
// exact and case-sensitive; an empty SSID is never ignored by this check
// (callers treat empty SSID as a wildcard probe admitted regardless).
func (l *Lists) ShouldIgnoreSSID(ssid string) bool {
	if l == nil || ssid == "" {
		return false
	}
	_, ignored := l.ssids[ssid]
	return ignored
}

// Admit reports whether a probe with the given MAC and SSID passes the
// filter: the MAC must not be ignored, and the SSID must be empty or not
// ignored.
func (l *Lists) Admit(mac, ssid string) bool {
	if l.ShouldIgnoreMAC(mac) {
		return false
	}
	if ssid != "" && l.ShouldIgnoreSSID(ssid) {
		return false
	}
	return true
}
