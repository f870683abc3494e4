package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyber-rangers/cratec/internal/cratecerr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	st, err := Open(ctx, t.TempDir(), 4, 2, 2000, 10, 3)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpen_CreatesSchema(t *testing.T) {
	st := openTestStore(t)

	lease, err := st.Lease(context.Background())
	require.NoError(t, err)
	defer lease.Release()

	var version int
	err = lease.conn.QueryRowContext(context.Background(), "SELECT version FROM schema_meta").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, version)
}

func TestUpsertInterface_IsIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id1, err := st.UpsertInterface(ctx, Interface{StablePath: "usb-0:1.2", Side: SideInput, Label: "Source Disk"})
	require.NoError(t, err)

	id2, err := st.UpsertInterface(ctx, Interface{StablePath: "usb-0:1.2", Side: SideInput, Label: "Source Disk Renamed"})
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "re-registering the same stable path must not create a second row")

	iface, err := st.GetInterfaceByStablePath(ctx, "usb-0:1.2")
	require.NoError(t, err)
	assert.Equal(t, "Source Disk Renamed", iface.Label)
}

func TestEWFConfigLifecycle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.SaveEWFConfig(ctx, EWFConfig{
		Name:              "default-encase6",
		Codepage:          "ascii",
		SectorsPerRead:    "64",
		CompressionMethod: "deflate",
		CompressionLevel:  "fast",
		HashTypes:         []string{"sha1", "sha256"},
		EWFFormat:         "encase6",
		SegmentSize:       "1.4GiB",
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	ewfConfigs, rawConfigs, err := st.ListActiveConfigs(ctx)
	require.NoError(t, err)
	assert.Len(t, ewfConfigs, 1)
	assert.Empty(t, rawConfigs)
	assert.Equal(t, []string{"sha1", "sha256"}, ewfConfigs[0].HashTypes)

	require.NoError(t, st.DeactivateConfig(ctx, "ewf", id))

	ewfConfigs, _, err = st.ListActiveConfigs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ewfConfigs, "deactivated config must not appear in active list")
}

func TestJobLifecycle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	cfgID, err := st.SaveRawConfig(ctx, RawConfig{Name: "default-dd", BlockSize: "4096", HashTypes: []string{"md5"}})
	require.NoError(t, err)

	srcID, err := st.UpsertInterface(ctx, Interface{StablePath: "usb-0:1.1", Side: SideInput, Label: "Source"})
	require.NoError(t, err)
	dstID, err := st.UpsertInterface(ctx, Interface{StablePath: "usb-0:1.2", Side: SideOutput, Label: "Dest"})
	require.NoError(t, err)

	jobID, processID, err := st.InsertJob(ctx, "raw", JobRequest{
		ConfigID:          cfgID,
		Investigator:      "J. Doe",
		CaseName:          "case-001",
		Evidence:          "evidence-001",
		SourceInterfaceID: srcID,
		DestInterfaceID:   dstID,
	})
	require.NoError(t, err)
	assert.NotZero(t, jobID)
	assert.NotZero(t, processID)

	require.NoError(t, st.AppendLogLine(ctx, processID, 1, "dd: starting"))
	require.NoError(t, st.AppendLogLine(ctx, processID, 2, "dd: 10% complete"))
	// Re-appending the same line number must be a harmless no-op.
	require.NoError(t, st.AppendLogLine(ctx, processID, 2, "dd: 10% complete (retry)"))

	lines, err := st.GetProcessLogLines(ctx, processID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "dd: 10% complete", lines[1].LineContent)

	require.NoError(t, st.FinalizeJob(ctx, "raw", jobID, processID, JobDone, Digests{MD5: "deadbeef"}))

	history, err := st.GetHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, JobDone, history[0].Status)
	assert.Equal(t, "deadbeef", history[0].Digests.MD5)
	assert.NotNil(t, history[0].End)
}

func TestInsertJob_RejectsReusedInterface(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	cfgID, err := st.SaveRawConfig(ctx, RawConfig{Name: "default-dd"})
	require.NoError(t, err)
	srcID, err := st.UpsertInterface(ctx, Interface{StablePath: "usb-0:1.1", Side: SideInput, Label: "Source"})
	require.NoError(t, err)

	_, _, err = st.InsertJob(ctx, "raw", JobRequest{
		ConfigID: cfgID, CaseName: "c", Evidence: "e",
		SourceInterfaceID: srcID, DestInterfaceID: srcID,
	})
	require.ErrorIs(t, err, cratecerr.ErrInvalidTopology)

	dstID, err := st.UpsertInterface(ctx, Interface{StablePath: "usb-0:1.2", Side: SideOutput, Label: "Dest"})
	require.NoError(t, err)
	dest2 := srcID
	_, _, err = st.InsertJob(ctx, "raw", JobRequest{
		ConfigID: cfgID, CaseName: "c", Evidence: "e",
		SourceInterfaceID: srcID, DestInterfaceID: dstID, Dest2InterfaceID: &dest2,
	})
	require.ErrorIs(t, err, cratecerr.ErrInvalidTopology)
}

func TestRetireConfig_PreservesReferencedConfig(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	cfgID, err := st.SaveRawConfig(ctx, RawConfig{Name: "referenced"})
	require.NoError(t, err)
	srcID, err := st.UpsertInterface(ctx, Interface{StablePath: "usb-0:1.1", Side: SideInput, Label: "Source"})
	require.NoError(t, err)
	dstID, err := st.UpsertInterface(ctx, Interface{StablePath: "usb-0:1.2", Side: SideOutput, Label: "Dest"})
	require.NoError(t, err)

	_, _, err = st.InsertJob(ctx, "raw", JobRequest{
		ConfigID: cfgID, CaseName: "c", Evidence: "e", SourceInterfaceID: srcID, DestInterfaceID: dstID,
	})
	require.NoError(t, err)

	require.NoError(t, st.RetireConfig(ctx, "raw", cfgID))

	got, err := st.GetRawConfig(ctx, cfgID)
	require.Error(t, err, "retired config must not satisfy the active=true lookup")
	assert.Nil(t, got)

	_, rawConfigs, err := st.ListActiveConfigs(ctx)
	require.NoError(t, err)
	assert.Empty(t, rawConfigs, "retired config must be absent from the active listing")

	unreferencedID, err := st.SaveRawConfig(ctx, RawConfig{Name: "unreferenced"})
	require.NoError(t, err)
	require.NoError(t, st.RetireConfig(ctx, "raw", unreferencedID))
	_, err = st.GetRawConfig(ctx, unreferencedID)
	require.Error(t, err, "an unreferenced config is hard-deleted, not merely deactivated")
}

func TestFinalizeJob_SecondCallIsNoOp(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	cfgID, err := st.SaveRawConfig(ctx, RawConfig{Name: "default-dd"})
	require.NoError(t, err)
	srcID, err := st.UpsertInterface(ctx, Interface{StablePath: "usb-0:1.1", Side: SideInput, Label: "Source"})
	require.NoError(t, err)
	dstID, err := st.UpsertInterface(ctx, Interface{StablePath: "usb-0:1.2", Side: SideOutput, Label: "Dest"})
	require.NoError(t, err)

	jobID, processID, err := st.InsertJob(ctx, "raw", JobRequest{
		ConfigID: cfgID, CaseName: "c", Evidence: "e", SourceInterfaceID: srcID, DestInterfaceID: dstID,
	})
	require.NoError(t, err)

	require.NoError(t, st.FinalizeJob(ctx, "raw", jobID, processID, JobDone, Digests{MD5: "first-digest"}))
	job, err := st.GetJob(ctx, "raw", jobID)
	require.NoError(t, err)
	assert.Equal(t, JobDone, job.Status)
	assert.Equal(t, "first-digest", job.Digests.MD5)
	firstEnd := job.End

	// A second finalize (e.g. a retried terminate callback) must not
	// overwrite the already-terminal status or digests.
	require.NoError(t, st.FinalizeJob(ctx, "raw", jobID, processID, JobError, Digests{MD5: "second-digest"}))
	job, err = st.GetJob(ctx, "raw", jobID)
	require.NoError(t, err)
	assert.Equal(t, JobDone, job.Status, "second finalize must not change a terminal job's status")
	assert.Equal(t, "first-digest", job.Digests.MD5, "second finalize must not change a terminal job's digests")
	assert.Equal(t, firstEnd, job.End)
}

func TestSystemLog(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.AppendSystemLog(ctx, "warn", "device eject detected"))
	require.NoError(t, st.AppendSystemLog(ctx, "info", "acquisition started"))

	entries, err := st.GetSystemLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "acquisition started", entries[0].Message, "newest entry must come first")
}
