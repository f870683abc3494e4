// Package ewf implements the EWF-dialect engine driver: argument assembly
// for ewfacquire and the line parser for its streaming textual output.
// Ported from original_source/ewfacquire/mod.rs's push-pair argument
// builder, generalized to a []string builder with a parallel print-form,
// matching the Rust original's args_exec / args_print split.
package ewf

import (
	"fmt"
	"path/filepath"

	"github.com/cyber-rangers/cratec/internal/catalog"
)

// AskToken is the configuration sentinel meaning "the GUI must supply this
// value at run time" (spec.md §3, Deferred parameter).
const AskToken = "ask"

// RunParams carries the operator-facing values due at run time: either
// literal config values or GUI-supplied substitutes for fields the saved
// configuration marked "ask".
type RunParams struct {
	Investigator string
	CaseName     string
	Evidence     string
	Description  string
	Notes        string
	Offset       string
	BytesToRead  string
}

// Targets resolves where ewfacquire should write, derived from the staged
// evidence directories (internal/orchestrator creates these before Build is
// called).
type Targets struct {
	PrimaryMount   string
	SecondaryMount string // empty if no second destination
}

// resolve returns the configured literal unless it is the "ask" sentinel,
// in which case the run-time override is used.
func resolve(configured, override string) string {
	if configured == AskToken {
		return override
	}
	return configured
}

// Build assembles the ewfacquire argument vector from a saved Configuration
// plus run-time parameters and resolved targets. It returns two slices:
// argvExec (passed to exec.Command as distinct tokens, so no value is ever
// shell-joined) and argvPrint (a human-readable, space-joined rendering
// kept only for diagnostics/logs).
func Build(cfg catalog.EWFConfig, params RunParams, sourceDevNode string, targets Targets) (argvExec []string, argvPrint string, primaryOut, copyLog string) {
	primaryOut = filepath.Join(targets.PrimaryMount, params.CaseName, params.Evidence, params.Evidence)
	copyLog = filepath.Join(targets.PrimaryMount, params.CaseName, params.Evidence, "copy.log")

	add := func(flag, value string) {
		if value == "" {
			return
		}
		argvExec = append(argvExec, flag, value)
	}

	argvExec = append(argvExec, "ewfacquire")
	add("-A", cfg.Codepage)
	add("-b", resolve(cfg.SectorsPerRead, ""))
	add("-B", resolve(cfg.BytesToRead, params.BytesToRead))
	if cfg.CompressionMethod != "" {
		add("-c", fmt.Sprintf("%s:%s", cfg.CompressionMethod, cfg.CompressionLevel))
	}
	add("-C", params.CaseName)
	add("-D", params.Description)
	add("-e", params.Investigator)
	add("-E", params.Evidence)
	if len(cfg.HashTypes) > 0 {
		add("-d", joinComma(cfg.HashTypes))
	}
	add("-f", cfg.EWFFormat)
	add("-g", cfg.GranularitySect)
	add("-l", copyLog)
	add("-m", "fixed")
	add("-M", "physical")
	add("-N", resolve(cfg.Notes, params.Notes))
	add("-o", resolve(cfg.Offset, params.Offset))
	add("-p", cfg.ProcessBufferSize)
	add("-P", cfg.BytesPerSector)
	add("-r", cfg.ReadRetryCount)
	if cfg.SwapBytePairs {
		argvExec = append(argvExec, "-s")
	}
	add("-S", cfg.SegmentSize)
	add("-t", primaryOut)
	if targets.SecondaryMount != "" {
		secondaryOut := filepath.Join(targets.SecondaryMount, params.CaseName, params.Evidence, params.Evidence)
		add("-2", secondaryOut)
	}
	argvExec = append(argvExec, "-u") // unattended
	argvExec = append(argvExec, "-v") // verbose, so progress lines are emitted
	if cfg.ZeroOnReadError {
		argvExec = append(argvExec, "-w")
	}
	if cfg.UseChunkData {
		argvExec = append(argvExec, "-x")
	}
	argvExec = append(argvExec, sourceDevNode)

	argvPrint = printForm(argvExec)
	return argvExec, argvPrint, primaryOut, copyLog
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

func printForm(argv []string) string {
	out := ""
	for i, a := range argv {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
