package device

import (
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// SecurityFacts is the result of the ATA-security/SED probe.
type SecurityFacts struct {
	ATASecurityEnabled bool
	ATASecurityLocked  bool
	SEDEncrypted       bool
}

// HPAResult is the result of the HPA probe. Reported is false when the
// native-max-sectors field is absent, unparsable, or reports one of the
// known "no HPA" sentinels (0, 1, or a bad/missing sense data message).
type HPAResult struct {
	Reported     bool
	NativeMaxLBA uint64
}

// DCOResult is the result of the DCO probe, with the same not-reported
// sentinel handling as HPAResult.
type DCOResult struct {
	Reported    bool
	RealMaxLBA  uint64
}

var (
	securityEnabledRe = regexp.MustCompile(`(?i)security\s+enabled`)
	securityLockedRe  = regexp.MustCompile(`(?i)\blocked\b`)
	encryptTokenRe    = regexp.MustCompile(`(?i)encrypt\w*`)
	nativeMaxRe       = regexp.MustCompile(`(?i)native\s+max\s+sectors\s*:?\s*(\d+)`)
	dcoRealMaxRe      = regexp.MustCompile(`(?i)real\s+max\s+sectors\s*:?\s*(\d+)`)
	badSenseDataRe    = regexp.MustCompile(`(?i)(bad|missing)\s+sense\s+data`)
)

// ProbeSecurity runs the ATA identify probe and derives security/SED facts.
// A tool that fails to execute leaves every fact at its unknown/false
// default rather than failing the whole device-facts call.
func ProbeSecurity(ctx context.Context, escalationTool, devNode string) SecurityFacts {
	output, err := runProbe(ctx, escalationTool, "hdparm", "-I", devNode)
	if err != nil {
		log.Debug("device: ATA identify probe failed", "devnode", devNode, "error", err)
		return SecurityFacts{}
	}

	return SecurityFacts{
		ATASecurityEnabled: securityEnabledRe.MatchString(output),
		ATASecurityLocked:  securityLockedRe.MatchString(output),
		SEDEncrypted:       encryptTokenRe.MatchString(output),
	}
}

// ProbeHPA runs the native-max-sectors probe.
func ProbeHPA(ctx context.Context, escalationTool, devNode string) HPAResult {
	output, err := runProbe(ctx, escalationTool, "hdparm", "-N", devNode)
	if err != nil {
		log.Debug("device: HPA probe failed", "devnode", devNode, "error", err)
		return HPAResult{}
	}
	if badSenseDataRe.MatchString(output) {
		return HPAResult{}
	}

	m := nativeMaxRe.FindStringSubmatch(output)
	if m == nil {
		return HPAResult{}
	}
	maxLBA, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil || maxLBA == 0 || maxLBA == 1 {
		return HPAResult{}
	}
	return HPAResult{Reported: true, NativeMaxLBA: maxLBA}
}

// ProbeDCO runs the DCO-identify real-max-sectors probe.
func ProbeDCO(ctx context.Context, escalationTool, devNode string) DCOResult {
	output, err := runProbe(ctx, escalationTool, "hdparm", "--dco-identify", devNode)
	if err != nil {
		log.Debug("device: DCO probe failed", "devnode", devNode, "error", err)
		return DCOResult{}
	}
	if badSenseDataRe.MatchString(output) {
		return DCOResult{}
	}

	m := dcoRealMaxRe.FindStringSubmatch(output)
	if m == nil {
		return DCOResult{}
	}
	maxLBA, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil || maxLBA == 0 || maxLBA == 1 {
		return DCOResult{}
	}
	return DCOResult{Reported: true, RealMaxLBA: maxLBA}
}

func runProbe(ctx context.Context, escalationTool string, name string, args ...string) (string, error) {
	var cmd *exec.Cmd
	if escalationTool != "" {
		cmd = exec.CommandContext(ctx, escalationTool, append([]string{name}, args...)...)
	} else {
		cmd = exec.CommandContext(ctx, name, args...)
	}
	output, err := cmd.CombinedOutput()
	return strings.ToValidUTF8(string(output), ""), err
}
