package hopping

import (
	"strconv"
	"strings"
)

// TwoPointFourGHzChannels returns the standard 2.4GHz channel set.
func TwoPointFourGHzChannels() []int {
	return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}
}

// FiveGHzChannels returns the common non-DFS/DFS 5GHz channel set.
func FiveGHzChannels() []int {
	return []int{
		36, 40, 44, 48, 52, 56, 60, 64, 100, 104, 108, 112, 116, 120, 124, 128,
		132, 136, 140, 144, 149, 153, 157, 161, 165,
	}
}

// AllChannels concatenates the 2.4GHz and 5GHz sets.
func AllChannels() []int {
	return append(TwoPointFourGHzChannels(), FiveGHzChannels()...)
}

// ParseChannels resolves a channel-list configuration string into a
// channel slice. Recognised aliases: "2ghz"/"2.4ghz", "5ghz", "all";
// anything else is parsed as a comma-separated list of channel numbers,
// silently skipping entries that don't parse.
func ParseChannels(config string) []int {
	switch strings.ToLower(config) {
	case "all":
		return AllChannels()
	case "2ghz", "2.4ghz":
		return TwoPointFourGHzChannels()
	case "5ghz":
		return FiveGHzChannels()
	}

	var channels []int
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			channels = append(channels, n)
		}
	}
	return channels
}
