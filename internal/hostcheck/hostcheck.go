// Package hostcheck implements the Host-Integrity Proxy (C8): it runs the
// host's file-integrity scanner with JSON output requested, tolerating
// non-JSON preamble/postamble on stdout by extracting the first balanced
// {...} region, and returns a structured summary.
package hostcheck

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cyber-rangers/cratec/internal/engine"
	"github.com/cyber-rangers/cratec/internal/obslog"
)

var log = obslog.Component("hostcheck")

// Result is the structured summary spec.md §4.8 names.
type Result struct {
	AnythingChanged bool            `json:"anything_changed"`
	Added           []string        `json:"added"`
	Removed         []string        `json:"removed"`
	Changed         []string        `json:"changed"`
	StatusMessage   string          `json:"status_message"`
	RawJSON         json.RawMessage `json:"raw_json"`
}

// Scanner runs the host-integrity scan and returns its structured result.
type Scanner interface {
	Scan(ctx context.Context) (Result, error)
}

// SubprocessScanner is the primary path: spawn the scanner binary directly
// on the host with JSON output requested.
type SubprocessScanner struct {
	Binary         string
	EscalationTool string
}

// Scan implements Scanner by running the configured binary and extracting
// the first balanced JSON object from its combined output.
func (s SubprocessScanner) Scan(ctx context.Context) (Result, error) {
	argv := []string{s.Binary, "--report-format=json", "--report-url=stdout"}
	output, exitCode, err := engine.RunToCompletion(ctx, s.EscalationTool, argv)
	if err != nil {
		return Result{}, fmt.Errorf("hostcheck: spawn scanner: %w", err)
	}
	log.Info("host-integrity scan completed", "exit_code", exitCode)
	return parseResult(output)
}

// ContainerBackend is the narrow slice of a container runtime the
// containerized scan path needs, adapted from the teacher's
// ghostpool.PoolBackend.ExecInContainer.
type ContainerBackend interface {
	ExecInContainer(ctx context.Context, containerID string, cmd []string) ([]byte, error)
}

// ContainerizedScanner is the secondary path, used when the scanner is
// packaged as an OCI image rather than a bare host binary
// (HostCheckConfig.Containerized).
type ContainerizedScanner struct {
	Backend     ContainerBackend
	ContainerID string
	Command     []string
}

// Scan implements Scanner by executing Command inside the running
// container identified by ContainerID.
func (s ContainerizedScanner) Scan(ctx context.Context) (Result, error) {
	output, err := s.Backend.ExecInContainer(ctx, s.ContainerID, s.Command)
	if err != nil {
		return Result{}, fmt.Errorf("hostcheck: containerized scan: %w", err)
	}
	return parseResult(output)
}

// parseResult extracts the first balanced {...} region from buf and
// unmarshals it, tolerating scanner chatter before and after the JSON body
// per spec.md §4.8.
func parseResult(buf []byte) (Result, error) {
	body, err := extractBalancedJSON(buf)
	if err != nil {
		return Result{}, fmt.Errorf("hostcheck: %w", err)
	}

	var r Result
	if err := json.Unmarshal(body, &r); err != nil {
		return Result{}, fmt.Errorf("hostcheck: parse scanner json: %w", err)
	}
	r.RawJSON = json.RawMessage(body)
	return r, nil
}

// extractBalancedJSON scans buf for the first top-level '{' and returns the
// bytes up to and including its matching closing brace, ignoring braces
// that occur inside quoted strings.
func extractBalancedJSON(buf []byte) ([]byte, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, b := range buf {
		if start == -1 {
			if b == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return buf[start : i+1], nil
			}
		}
	}
	return nil, fmt.Errorf("no balanced JSON object found in scanner output")
}
