package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/cyber-rangers/cratec/internal/cratecerr"
	"github.com/cyber-rangers/cratec/internal/obslog"
)

var log = obslog.Component("engine")

// Supervisor is the real Runner: it spawns a single child process per call,
// inheriting privilege via the platform's escalation tool (e.g. sudo) when
// one is configured, and pumps stdout/stderr concurrently without ever
// buffering a full output into memory.
type Supervisor struct {
	// EscalationTool, if non-empty, is prepended to argv (e.g. "sudo").
	EscalationTool string
}

// Run implements Runner.
func (s *Supervisor) Run(ctx context.Context, argv []string, onEvent func(Event)) error {
	if len(argv) == 0 {
		return fmt.Errorf("engine: empty argument vector")
	}

	name := argv[0]
	args := argv[1:]
	if s.EscalationTool != "" {
		name = s.EscalationTool
		args = append([]string{argv[0]}, argv[1:]...)
	}

	cmd := exec.CommandContext(ctx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %v", cratecerr.ErrEngineLaunchFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: stderr pipe: %v", cratecerr.ErrEngineLaunchFailed, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", cratecerr.ErrEngineLaunchFailed, err)
	}
	log.Info("engine spawned", "argv0", argv[0], "pid", cmd.Process.Pid)

	var wg sync.WaitGroup
	wg.Add(2)
	go pumpLines(&wg, stdout, EventStdoutLine, onEvent)
	go pumpLines(&wg, stderr, EventStderrLine, onEvent)
	wg.Wait()

	waitErr := cmd.Wait()
	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			onEvent(Event{Kind: EventTerminated, Err: waitErr})
			return waitErr
		}
	}
	onEvent(Event{Kind: EventTerminated, ExitCode: exitCode})
	if exitCode != 0 {
		return &cratecerr.EngineNonZero{ExitCode: exitCode}
	}
	return nil
}

func pumpLines(wg *sync.WaitGroup, r io.Reader, kind EventKind, onEvent func(Event)) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		onEvent(Event{Kind: kind, Line: scanner.Text()})
	}
}

// RunToCompletion runs argv without streaming, returning the full
// combined-output buffer once the process has exited. It is the
// non-streaming sibling used by the report builder to shell out to the TeX
// compiler and by the host-integrity proxy, which both want one complete
// buffer rather than a line pump.
func RunToCompletion(ctx context.Context, escalationTool string, argv []string) (output []byte, exitCode int, err error) {
	if len(argv) == 0 {
		return nil, -1, fmt.Errorf("engine: empty argument vector")
	}
	name := argv[0]
	args := argv[1:]
	if escalationTool != "" {
		name = escalationTool
		args = append([]string{argv[0]}, argv[1:]...)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return output, exitErr.ExitCode(), nil
		}
		return output, -1, fmt.Errorf("%w: %v", cratecerr.ErrEngineLaunchFailed, runErr)
	}
	return output, 0, nil
}
