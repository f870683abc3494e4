package raw

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)% done`)
	blocksRe  = regexp.MustCompile(`(\d+) blocks \(([\d.]+)\s*[Mm]b\) written`)
	md5Re     = regexp.MustCompile(`(?i)MD5:\s*([0-9A-Fa-f]{32})`)
	sha1Re    = regexp.MustCompile(`(?i)SHA1:\s*([0-9A-Fa-f]{40})`)
	sha256Re  = regexp.MustCompile(`(?i)SHA256:\s*([0-9A-Fa-f]{64})`)
	sha384Re  = regexp.MustCompile(`(?i)SHA384:\s*([0-9A-Fa-f]{96})`)
	sha512Re  = regexp.MustCompile(`(?i)SHA512:\s*([0-9A-Fa-f]{128})`)
)

// Update mirrors ewf.Update for the dcfldd dialect, plus the two extra
// digest slots spec.md §3 reserves for RAW jobs.
type Update struct {
	HasPercent bool
	Percent    float64

	HasSpeed  bool
	SpeedMiBs float64
	ETAText   string

	MD5, SHA1, SHA256, SHA384, SHA512 string
}

// Parser holds the rolling state dcfldd's block-counter lines need to
// derive a speed (dcfldd's own "N% done" line carries no throughput —
// speed and ETA come from differencing consecutive block-counter samples
// against a wall-clock timestamp, per spec.md §4.4).
type Parser struct {
	TotalBytes int64 // source capacity, for ETA; 0 disables ETA computation

	haveSample  bool
	lastMiB     float64
	lastSampleAt time.Time
}

// NewParser constructs a Parser for one job's lifetime. totalBytes is the
// source device's capacity, used to compute remaining-MiB for ETA.
func NewParser(totalBytes int64) *Parser {
	return &Parser{TotalBytes: totalBytes}
}

// ParseLine extracts progress/speed/digest information from one dcfldd
// output line, using now as the wall-clock sample time for speed
// derivation (passed explicitly so tests don't depend on real time).
func (p *Parser) ParseLine(line string, now time.Time) Update {
	var u Update

	if m := percentRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			u.HasPercent = true
			u.Percent = v
		}
	}

	if m := blocksRe.FindStringSubmatch(line); m != nil {
		if mib, err := strconv.ParseFloat(m[2], 64); err == nil {
			u = p.deriveSpeed(u, mib, now)
		}
	}

	if m := md5Re.FindStringSubmatch(line); m != nil {
		u.MD5 = strings.ToLower(m[1])
	}
	if m := sha1Re.FindStringSubmatch(line); m != nil {
		u.SHA1 = strings.ToLower(m[1])
	}
	if m := sha256Re.FindStringSubmatch(line); m != nil {
		u.SHA256 = strings.ToLower(m[1])
	}
	if m := sha384Re.FindStringSubmatch(line); m != nil {
		u.SHA384 = strings.ToLower(m[1])
	}
	if m := sha512Re.FindStringSubmatch(line); m != nil {
		u.SHA512 = strings.ToLower(m[1])
	}

	return u
}

func (p *Parser) deriveSpeed(u Update, currentMiB float64, now time.Time) Update {
	defer func() {
		p.lastMiB = currentMiB
		p.lastSampleAt = now
		p.haveSample = true
	}()

	if !p.haveSample {
		return u
	}
	elapsed := now.Sub(p.lastSampleAt).Seconds()
	if elapsed <= 0 {
		return u
	}
	deltaMiB := currentMiB - p.lastMiB
	if deltaMiB < 0 {
		return u
	}
	speed := deltaMiB / elapsed
	u.HasSpeed = true
	u.SpeedMiBs = speed

	if p.TotalBytes > 0 && speed > 0 {
		totalMiB := float64(p.TotalBytes) / (1024 * 1024)
		remainingMiB := totalMiB - currentMiB
		if remainingMiB < 0 {
			remainingMiB = 0
		}
		etaSeconds := remainingMiB / speed
		u.ETAText = formatETA(etaSeconds)
	}
	return u
}

func formatETA(seconds float64) string {
	d := time.Duration(seconds) * time.Second
	return d.String()
}
