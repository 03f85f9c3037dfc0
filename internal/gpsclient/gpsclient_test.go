package gpsclient

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseGpsdLine_ValidTPV(t *testing.T) {
	line := []byte(`{"class":"TPV","lat":33.4484,"lon":-112.0740,"alt":350.0}`)
	fix, ok := parseGpsdLine(line)
	require.True(t, ok, "expected valid fix")
	require.Equal(t, 33.4484, fix.Lat)
	require.Equal(t, -112.0740, fix.Lon)
}

func TestParseGpsdLine_RejectsZeroZero(t *testing.T) {
	line := []byte(`{"class":"TPV","lat":0,"lon":0}`)
	_, ok := parseGpsdLine(line)
	require.False(t, ok, "expected (0,0) to be rejected")
}

func TestParseGpsdLine_RejectsOutOfRange(t *testing.T) {
	line := []byte(`{"class":"TPV","lat":200,"lon":10}`)
	_, ok := parseGpsdLine(line)
	require.False(t, ok, "expected out-of-range latitude to be rejected")
}

func TestParseGpsdLine_IgnoresNonTPV(t *testing.T) {
	line := []byte(`{"class":"SKY","satellites":[]}`)
	_, ok := parseGpsdLine(line)
	require.False(t, ok, "expected non-TPV message to be ignored")
}

func TestParseGpsdLine_MalformedJSON(t *testing.T) {
	_, ok := parseGpsdLine([]byte(`not json`))
	require.False(t, ok, "expected malformed JSON to be rejected")
}
