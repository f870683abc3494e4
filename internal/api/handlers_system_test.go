package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyber-rangers/cratec/internal/catalog"
	"github.com/cyber-rangers/cratec/internal/hostcheck"
	"github.com/cyber-rangers/cratec/internal/lockscreen"
)

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := catalog.Open(context.Background(), t.TempDir(), 4, 2, 2000, 10, 3)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &Server{
		Store: store,
		Gate:  &lockscreen.Gate{},
	}
}

func TestHandleHealthz_ReportsUnverifiedIntegrityWhenHandleNil(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.handleHealthz(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not verified")
}

func TestHandleLockUnlockSystem(t *testing.T) {
	srv := newTestServer(t)

	lockReq := httptest.NewRequest(http.MethodPost, "/lock_system", jsonBody(`{"pin":"4321"}`))
	lockRec := httptest.NewRecorder()
	srv.handleLockSystem(lockRec, lockReq)
	require.Equal(t, http.StatusOK, lockRec.Code)
	assert.True(t, srv.Gate.Locked())

	badReq := httptest.NewRequest(http.MethodPost, "/unlock_system", jsonBody(`{"pin":"0000"}`))
	badRec := httptest.NewRecorder()
	srv.handleUnlockSystem(badRec, badReq)
	assert.Equal(t, http.StatusForbidden, badRec.Code)
	assert.True(t, srv.Gate.Locked())

	goodReq := httptest.NewRequest(http.MethodPost, "/unlock_system", jsonBody(`{"pin":"4321"}`))
	goodRec := httptest.NewRecorder()
	srv.handleUnlockSystem(goodRec, goodReq)
	require.Equal(t, http.StatusOK, goodRec.Code)
	assert.False(t, srv.Gate.Locked())
}

func TestHandleShutdownSystem_RejectedWhileLocked(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.Gate.Lock("1234"))

	req := httptest.NewRequest(http.MethodPost, "/shutdown_system", nil)
	rec := httptest.NewRecorder()
	srv.handleShutdownSystem(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type fakeScanner struct {
	result hostcheck.Result
	err    error
}

func (f fakeScanner) Scan(ctx context.Context) (hostcheck.Result, error) {
	return f.result, f.err
}

func TestHandleRunAideCheck_ReturnsScannerResult(t *testing.T) {
	srv := newTestServer(t)
	srv.HostCheck = fakeScanner{result: hostcheck.Result{StatusMessage: "clean"}}

	req := httptest.NewRequest(http.MethodPost, "/run_aide_check_json", nil)
	rec := httptest.NewRecorder()
	srv.handleRunAideCheck(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "clean")
}

func TestHandleRunAideCheck_UnconfiguredScanner(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/run_aide_check_json", nil)
	rec := httptest.NewRecorder()
	srv.handleRunAideCheck(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleGetSystemLogs(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.Store.AppendSystemLog(context.Background(), "info", "boot complete"))

	req := httptest.NewRequest(http.MethodGet, "/get_system_logs", nil)
	rec := httptest.NewRecorder()
	srv.handleGetSystemLogs(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "boot complete")
}
