package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyber-rangers/cratec/internal/catalog"
	"github.com/cyber-rangers/cratec/internal/cratecerr"
	"github.com/cyber-rangers/cratec/internal/engine"
)

// fakeRunner replays a canned sequence of Events without spawning anything,
// per SPEC_FULL.md §8's guidance to avoid compiling a real ewfacquire/dcfldd
// test helper.
type fakeRunner struct {
	lines    []string
	exitCode int
	launchErr error
}

func (f *fakeRunner) Run(ctx context.Context, argv []string, onEvent func(engine.Event)) error {
	if f.launchErr != nil {
		return f.launchErr
	}
	for _, l := range f.lines {
		onEvent(engine.Event{Kind: engine.EventStdoutLine, Line: l})
	}
	onEvent(engine.Event{Kind: engine.EventTerminated, ExitCode: f.exitCode})
	if f.exitCode != 0 {
		return &cratecerr.EngineNonZero{ExitCode: f.exitCode}
	}
	return nil
}

type fixedMounts struct {
	mounts map[string]string
	err    error
}

func (f fixedMounts) ResolveMountpoint(ctx context.Context, stablePath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	mp, ok := f.mounts[stablePath]
	if !ok {
		return "", cratecerr.ErrNoMountpoint
	}
	return mp, nil
}

type fixedDevices struct {
	devNodes  map[string]string
	capacity  int64
}

func (f fixedDevices) DevNode(ctx context.Context, stablePath string) (string, error) {
	return f.devNodes[stablePath], nil
}

func (f fixedDevices) CapacityBytes(ctx context.Context, stablePath string) (int64, error) {
	return f.capacity, nil
}

type recordingBus struct {
	fullSent  int
	outputs   []string
	doneStatus string
}

func (b *recordingBus) SendProcessFullEWF(jobID, processID int64, sourceDisk string, destDisks []string, cfg catalog.EWFConfig) {
	b.fullSent++
}
func (b *recordingBus) SendProcessFullRaw(jobID, processID int64, sourceDisk string, destDisks []string, cfg catalog.RawConfig) {
	b.fullSent++
}
func (b *recordingBus) SendProcessOutput(jobID int64, line string) { b.outputs = append(b.outputs, line) }
func (b *recordingBus) SendProcessProgress(jobID int64, percent *float64, etaText *string, speed *float64) {
}
func (b *recordingBus) SendProcessDone(jobID int64, status string) { b.doneStatus = status }

func newTestOrchestrator(t *testing.T, runner engine.Runner, bus *recordingBus, mounts fixedMounts, devices fixedDevices) (*Orchestrator, *catalog.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := catalog.Open(ctx, t.TempDir(), 4, 2, 2000, 10, 3)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return &Orchestrator{
		Store:   st,
		Mounts:  mounts,
		Devices: devices,
		Runner:  runner,
		Bus:     bus,
	}, st
}

func TestRunEWF_HappyPath(t *testing.T) {
	ctx := context.Background()
	bus := &recordingBus{}
	mounts := fixedMounts{mounts: map[string]string{"usb-0:1.2": t.TempDir()}}
	devices := fixedDevices{devNodes: map[string]string{"usb-0:1.1": "/dev/sdb"}, capacity: 1 << 30}
	runner := &fakeRunner{lines: []string{"Status: at 50.0%", "MD5 hash calculated over data: " + "abcdef0123456789abcdef0123456789"}}

	o, st := newTestOrchestrator(t, runner, bus, mounts, devices)

	cfgID, err := st.SaveEWFConfig(ctx, catalog.EWFConfig{Name: "default", EWFFormat: "encase6", HashTypes: []string{"md5"}})
	require.NoError(t, err)
	_, err = st.UpsertInterface(ctx, catalog.Interface{StablePath: "usb-0:1.1", Side: catalog.SideInput, Label: "Source"})
	require.NoError(t, err)
	_, err = st.UpsertInterface(ctx, catalog.Interface{StablePath: "usb-0:1.2", Side: catalog.SideOutput, Label: "Dest"})
	require.NoError(t, err)

	outcome, err := o.RunEWF(ctx, Request{
		ConfigID: cfgID, Investigator: "J. Doe", CaseName: "case-1", Evidence: "ev-1",
		SourceInterfacePath: "usb-0:1.1", DestInterfacePath: "usb-0:1.2",
	})
	require.NoError(t, err)
	assert.Equal(t, catalog.JobDone, outcome.Status)
	assert.Equal(t, "abcdef0123456789abcdef0123456789", outcome.Digests.MD5)
	assert.Equal(t, 1, bus.fullSent)
	assert.Equal(t, "done", bus.doneStatus)
	assert.NotEmpty(t, bus.outputs)
}

func TestRunRaw_TwoDestinations(t *testing.T) {
	ctx := context.Background()
	bus := &recordingBus{}
	mounts := fixedMounts{mounts: map[string]string{
		"usb-0:1.2": t.TempDir(),
		"usb-0:1.3": t.TempDir(),
	}}
	devices := fixedDevices{devNodes: map[string]string{"usb-0:1.1": "/dev/sdb"}, capacity: 1 << 20}
	runner := &fakeRunner{lines: []string{"10% done"}}

	o, st := newTestOrchestrator(t, runner, bus, mounts, devices)

	cfgID, err := st.SaveRawConfig(ctx, catalog.RawConfig{Name: "default-dd", BlockSize: "4096"})
	require.NoError(t, err)
	_, err = st.UpsertInterface(ctx, catalog.Interface{StablePath: "usb-0:1.1", Side: catalog.SideInput, Label: "Source"})
	require.NoError(t, err)
	_, err = st.UpsertInterface(ctx, catalog.Interface{StablePath: "usb-0:1.2", Side: catalog.SideOutput, Label: "Dest1"})
	require.NoError(t, err)
	_, err = st.UpsertInterface(ctx, catalog.Interface{StablePath: "usb-0:1.3", Side: catalog.SideOutput, Label: "Dest2"})
	require.NoError(t, err)

	dest2 := "usb-0:1.3"
	outcome, err := o.RunRaw(ctx, Request{
		ConfigID: cfgID, CaseName: "case-2", Evidence: "ev-2",
		SourceInterfacePath: "usb-0:1.1", DestInterfacePath: "usb-0:1.2", Dest2InterfacePath: &dest2,
	})
	require.NoError(t, err)
	assert.Equal(t, catalog.JobDone, outcome.Status)
}

func TestRunEWF_MissingMountpointAbortsBeforeSpawn(t *testing.T) {
	ctx := context.Background()
	bus := &recordingBus{}
	mounts := fixedMounts{mounts: map[string]string{}}
	devices := fixedDevices{devNodes: map[string]string{"usb-0:1.1": "/dev/sdb"}}
	runner := &fakeRunner{}

	o, st := newTestOrchestrator(t, runner, bus, mounts, devices)
	cfgID, err := st.SaveEWFConfig(ctx, catalog.EWFConfig{Name: "default"})
	require.NoError(t, err)

	_, err = o.RunEWF(ctx, Request{
		ConfigID: cfgID, CaseName: "case-3", Evidence: "ev-3",
		SourceInterfacePath: "usb-0:1.1", DestInterfacePath: "usb-0:1.2",
	})
	require.ErrorIs(t, err, cratecerr.ErrNoMountpoint)
	assert.Equal(t, 0, bus.fullSent, "no ProcessFull frame before a mountpoint is resolved")
}

func TestRunEWF_EngineNonZeroExitMarksJobError(t *testing.T) {
	ctx := context.Background()
	bus := &recordingBus{}
	mounts := fixedMounts{mounts: map[string]string{"usb-0:1.2": t.TempDir()}}
	devices := fixedDevices{devNodes: map[string]string{"usb-0:1.1": "/dev/sdb"}}
	runner := &fakeRunner{lines: []string{"ewfacquire: unable to read sector"}, exitCode: 1}

	o, st := newTestOrchestrator(t, runner, bus, mounts, devices)
	cfgID, err := st.SaveEWFConfig(ctx, catalog.EWFConfig{Name: "default"})
	require.NoError(t, err)
	_, err = st.UpsertInterface(ctx, catalog.Interface{StablePath: "usb-0:1.1", Side: catalog.SideInput, Label: "Source"})
	require.NoError(t, err)
	_, err = st.UpsertInterface(ctx, catalog.Interface{StablePath: "usb-0:1.2", Side: catalog.SideOutput, Label: "Dest"})
	require.NoError(t, err)

	outcome, err := o.RunEWF(ctx, Request{
		ConfigID: cfgID, CaseName: "case-4", Evidence: "ev-4",
		SourceInterfacePath: "usb-0:1.1", DestInterfacePath: "usb-0:1.2",
	})
	require.NoError(t, err)
	assert.Equal(t, catalog.JobError, outcome.Status)
	assert.Equal(t, "error", bus.doneStatus)
}
