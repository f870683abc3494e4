package device

import (
	"bufio"
	"context"
	"regexp"
	"strconv"
	"strings"
)

// SMARTFacts is the result of the smartctl health probe: the overall
// pass/fail verdict plus the handful of attributes forensic acquisition
// cares about (reallocated/pending sectors and power-on hours), not the
// full vendor attribute table.
type SMARTFacts struct {
	Supported bool
	Healthy   bool

	ReallocatedSectorCount uint64
	CurrentPendingSector   uint64
	PowerOnHours           uint64
}

var (
	smartStatusRe    = regexp.MustCompile(`(?i)SMART overall-health self-assessment test result:\s*(\w+)`)
	smartAttributeRe = regexp.MustCompile(`^\s*(\d+)\s+(\S+)\s+.*\s(\d+)\s*$`)
)

// The attr* constants are the smartctl -A attribute id column values that
// feed the facts fields, per the SMART attribute IDs hdparm's own probes leave
// unread (5 = Reallocated_Sector_Ct, 9 = Power_On_Hours, 197 =
// Current_Pending_Sector).
const (
	attrReallocatedSectorCount = 5
	attrPowerOnHours           = 9
	attrCurrentPendingSector   = 197
)

// ProbeSMART runs `smartctl --all` against devNode and extracts the
// overall-health verdict and a small set of wear-indicator attributes. A
// tool that fails to execute or produces unparsable output leaves Supported
// false, consistent with the inventory's "leave the field unknown" policy —
// SMART is absent on some virtualized/USB-bridge devices regardless of
// disk health.
func ProbeSMART(ctx context.Context, escalationTool, devNode string) SMARTFacts {
	output, err := runProbe(ctx, escalationTool, "smartctl", "--all", devNode)
	if err != nil {
		log.Debug("device: SMART probe failed", "devnode", devNode, "error", err)
		return SMARTFacts{}
	}
	return parseSMART(output)
}

func parseSMART(output string) SMARTFacts {
	var facts SMARTFacts

	if m := smartStatusRe.FindStringSubmatch(output); m != nil {
		facts.Supported = true
		facts.Healthy = strings.EqualFold(m[1], "PASSED")
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		m := smartAttributeRe.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		raw, err := strconv.ParseUint(m[3], 10, 64)
		if err != nil {
			continue
		}
		facts.Supported = true
		switch id {
		case attrReallocatedSectorCount:
			facts.ReallocatedSectorCount = raw
		case attrPowerOnHours:
			facts.PowerOnHours = raw
		case attrCurrentPendingSector:
			facts.CurrentPendingSector = raw
		}
	}

	return facts
}
