package integritygate

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyber-rangers/cratec/internal/cratecerr"
)

func writeSignedConfig(t *testing.T, dir string, payload map[string]any, priv ed25519.PrivateKey) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), raw, 0o600))
	sig := ed25519.Sign(priv, raw)
	require.NoError(t, os.WriteFile(filepath.Join(dir, signatureFileName), sig, 0o600))
}

func TestVerify_AcceptsCorrectlySignedConfig(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	dir := t.TempDir()
	writeSignedConfig(t, dir, map[string]any{"allowed_engines": []string{"ewfacquire", "dcfldd"}}, priv)

	h, err := Verify(dir, hex.EncodeToString(pub))
	require.NoError(t, err)

	v, ok := h.Get("allowed_engines")
	require.True(t, ok)
	assert.NotNil(t, v)
}

func TestVerify_RejectsTamperedConfig(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	dir := t.TempDir()
	writeSignedConfig(t, dir, map[string]any{"ok": true}, priv)

	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(`{"ok":false,"tampered":true}`), 0o600))

	_, err = Verify(dir, hex.EncodeToString(pub))
	require.ErrorIs(t, err, cratecerr.ErrIntegrityVerificationFailed)
}

func TestVerify_RejectsWrongPublicKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	dir := t.TempDir()
	writeSignedConfig(t, dir, map[string]any{"ok": true}, priv)

	_, err = Verify(dir, hex.EncodeToString(otherPub))
	require.ErrorIs(t, err, cratecerr.ErrIntegrityVerificationFailed)
}

func TestVerify_RejectsMissingFiles(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	_, err = Verify(t.TempDir(), hex.EncodeToString(pub))
	require.ErrorIs(t, err, cratecerr.ErrIntegrityVerificationFailed)
}
