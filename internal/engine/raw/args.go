// Package raw implements the RAW-dialect engine driver (dcfldd): argument
// assembly and the line parser for its key=value output grammar. Ported
// from original_source/dcfldd/mod.rs's push-pair argument builder, the same
// pattern ewf.Build follows.
package raw

import (
	"path/filepath"

	"github.com/cyber-rangers/cratec/internal/catalog"
)

// RunParams mirrors ewf.RunParams for the dcfldd dialect.
type RunParams struct {
	Investigator string
	CaseName     string
	Evidence     string
	Description  string
	Notes        string
	Offset       string
	BytesToRead  string // dcfldd "limit="
}

// Targets resolves staged output destinations.
type Targets struct {
	PrimaryMount   string
	SecondaryMount string // empty if no second destination
}

// Build assembles the dcfldd argument vector. blockSize is the already
// resolved block size, chosen one layer up in the orchestrator: the config
// literal, or "4096" when the config says "auto" (or is empty) and the
// source capacity is readable. The source device's own block size is not
// queried.
func Build(cfg catalog.RawConfig, params RunParams, sourceDevNode, blockSize string, targets Targets) (argvExec []string, argvPrint string, primaryOut, hashLog, errLog string) {
	evidenceDir := filepath.Join(targets.PrimaryMount, params.CaseName, params.Evidence)
	primaryOut = filepath.Join(evidenceDir, params.Evidence+".img")
	hashLog = filepath.Join(evidenceDir, "hash.log")
	errLog = filepath.Join(evidenceDir, "error.log")

	argvExec = append(argvExec, "dcfldd")
	argvExec = append(argvExec, "if="+sourceDevNode)
	argvExec = append(argvExec, "of="+primaryOut)
	if targets.SecondaryMount != "" {
		secondaryOut := filepath.Join(targets.SecondaryMount, params.CaseName, params.Evidence, params.Evidence+".img")
		argvExec = append(argvExec, "of2="+secondaryOut)
	}
	if blockSize != "" {
		argvExec = append(argvExec, "bs="+blockSize)
	}
	if params.Offset != "" && params.Offset != "0" {
		argvExec = append(argvExec, "skip="+params.Offset)
	}
	if params.BytesToRead != "" && params.BytesToRead != "0" {
		argvExec = append(argvExec, "limit="+params.BytesToRead)
	}
	if len(cfg.HashTypes) > 0 {
		argvExec = append(argvExec, "hash="+joinPlus(cfg.HashTypes))
		argvExec = append(argvExec, "hashlog="+hashLog)
	}
	if cfg.Hashwindow != "" {
		argvExec = append(argvExec, "hashwindow="+cfg.Hashwindow)
	}
	if cfg.Split != "" && cfg.Split != "whole" {
		argvExec = append(argvExec, "split="+cfg.Split)
	}
	argvExec = append(argvExec, "diffwr=on", "status=on")
	if cfg.StatusInterval != "" {
		argvExec = append(argvExec, "statusinterval="+cfg.StatusInterval)
	}
	argvExec = append(argvExec, "errlog="+errLog)

	argvPrint = printForm(argvExec)
	return argvExec, argvPrint, primaryOut, hashLog, errLog
}

func joinPlus(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "+"
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
