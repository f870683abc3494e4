package ewf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLine_Percent(t *testing.T) {
	u := ParseLine("Status: at 42%.")
	require.True(t, u.HasPercent)
	require.InDelta(t, 42.0, u.Percent, 0.001)
}

func TestParseLine_SpeedUnitNormalization(t *testing.T) {
	cases := []struct {
		unit string
		mult float64
	}{
		{"KiB", 1.0 / 1024},
		{"MiB", 1},
		{"GiB", 1024},
		{"TiB", 1024 * 1024},
	}
	for _, c := range cases {
		line := "completion in 3 minute(s) and 10 second(s) with 12.5 " + c.unit + "/s."
		u := ParseLine(line)
		require.True(t, u.HasSpeed, c.unit)
		require.InDelta(t, 12.5*c.mult, u.SpeedMiBs, 1e-9, c.unit)
	}
}

func TestParseLine_DigestCapture(t *testing.T) {
	md5Hex := "d41d8cd98f00b204e9800998ecf8427e"
	u := ParseLine("MD5 hash calculated over data:   " + md5Hex)
	require.Equal(t, md5Hex, u.MD5)

	sha1Hex := "da39a3ee5e6b4b0d3255bfef95601890afd80709"
	u = ParseLine("SHA1 hash calculated over data:\t" + sha1Hex)
	require.Equal(t, sha1Hex, u.SHA1)
}

func TestParseLine_UnknownLineIsEmptyUpdate(t *testing.T) {
	u := ParseLine("acquire started at: Mon Jan  1 00:00:00 2024")
	require.False(t, u.HasPercent)
	require.False(t, u.HasSpeed)
	require.Empty(t, u.MD5)
}
