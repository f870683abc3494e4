package raw

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParser_Percent(t *testing.T) {
	p := NewParser(0)
	u := p.ParseLine("25% done, 128 blocks written", time.Unix(0, 0))
	require.True(t, u.HasPercent)
	require.InDelta(t, 25.0, u.Percent, 0.001)
}

func TestParser_SpeedFromBlockCounterDelta(t *testing.T) {
	p := NewParser(0)
	base := time.Unix(1000, 0)

	u1 := p.ParseLine("10 blocks (100Mb) written", base)
	require.False(t, u1.HasSpeed, "first sample has no prior baseline")

	u2 := p.ParseLine("20 blocks (150Mb) written", base.Add(5*time.Second))
	require.True(t, u2.HasSpeed)
	require.InDelta(t, 10.0, u2.SpeedMiBs, 1e-9) // (150-100)MiB / 5s = 10 MiB/s
}

func TestParser_DigestCapture(t *testing.T) {
	p := NewParser(0)
	md5Hex := "d41d8cd98f00b204e9800998ecf8427e"
	u := p.ParseLine("MD5: "+md5Hex, time.Now())
	require.Equal(t, md5Hex, u.MD5)

	sha256Hex := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"[:64]
	u = p.ParseLine("SHA256: "+sha256Hex, time.Now())
	require.Equal(t, sha256Hex, u.SHA256)
}
