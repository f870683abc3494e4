package report

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func sampleContext() Context {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)
	return Context{
		Identity: SystemIdentity{SoftwareHash: "deadbeef", BuildDate: "2026-01-01", HardwareID: "hw-001"},
		Case:     CaseInfo{Case: "case-1", Evidence: "ev-1", Investigator: "J. Doe", Notes: "n/a"},
		Engine: EngineParams{
			Method: "ewfacquire", HashTypes: []string{"sha1", "sha256"},
			SegmentSize: "1.4GiB", Compression: "deflate:fast",
		},
		Timing:     Timing{Start: start, End: end, Duration: end.Sub(start)},
		Quantities: Quantities{LBACount: 1000, SectorSize: 512, RequestedOffset: 0, RequestedByteWindow: 0, EffectiveByteWindow: 512000},
		Drives: []DriveRow{
			{Role: RoleSource, Serial: "SRC1", Model: "DiskModel", Filesystem: "ntfs", Cipher: ""},
			{Role: RoleDestination, Serial: "DST1", Model: "DestModel", Filesystem: "ext4", Cipher: ""},
		},
		Partitions: []SourcePartition{{Index: 1, Filesystem: "ntfs", StartMB: 1, EndMB: 500, SizeMB: 499}},
		Digests:    map[string]string{"sha1": "abc123"},
	}
}

func TestRenderLaTeX_IsDeterministicAndContainsCaseFields(t *testing.T) {
	first, err := RenderLaTeX(sampleContext())
	require.NoError(t, err)
	second, err := RenderLaTeX(sampleContext())
	require.NoError(t, err)

	if diff := cmp.Diff(string(first), string(second)); diff != "" {
		t.Fatalf("rendering the same context twice must be byte-identical (-first +second):\n%s", diff)
	}

	for _, want := range []string{"case-1", "ev-1", "J. Doe", "sha1", "abc123", "\\documentclass{article}"} {
		if !strings.Contains(string(first), want) {
			t.Errorf("rendered report missing expected content %q", want)
		}
	}
}
