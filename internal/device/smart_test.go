package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleSmartctlOutput = `smartctl 7.3 2022-02-28 r5338 [x86_64-linux-6.1.0] (local build)
Copyright (C) 2002-22, Bruce Allen, Christian Franke, www.smartmontools.org

=== START OF READ SMART DATA SECTION ===
SMART overall-health self-assessment test result: PASSED

ID# ATTRIBUTE_NAME          FLAG     VALUE WORST THRESH TYPE      UPDATED  WHEN_FAILED RAW_VALUE
  5 Reallocated_Sector_Ct   0x0033   100   100   010    Pre-fail  Always       -       0
  9 Power_On_Hours          0x0032   095   095   000    Old_age   Always       -       12345
197 Current_Pending_Sector  0x0012   100   100   000    Old_age   Always       -       2
`

func TestParseSMART_HealthyWithAttributes(t *testing.T) {
	facts := parseSMART(sampleSmartctlOutput)
	assert.True(t, facts.Supported)
	assert.True(t, facts.Healthy)
	assert.Equal(t, uint64(0), facts.ReallocatedSectorCount)
	assert.Equal(t, uint64(12345), facts.PowerOnHours)
	assert.Equal(t, uint64(2), facts.CurrentPendingSector)
}

func TestParseSMART_FailingDrive(t *testing.T) {
	output := "SMART overall-health self-assessment test result: FAILED\n"
	facts := parseSMART(output)
	assert.True(t, facts.Supported)
	assert.False(t, facts.Healthy)
}

func TestParseSMART_UnsupportedDevice(t *testing.T) {
	facts := parseSMART("SMART support is: Unavailable - device lacks SMART capability.\n")
	assert.False(t, facts.Supported)
}
