// Package integritygate implements the startup Integrity Gate (C7): it
// reads a JSON configuration blob and its detached Ed25519 signature from
// a known directory, verifies the signature against a pre-embedded public
// key, and exposes the parsed configuration as a read-only,
// process-lifetime handle. A verification failure is a fatal boot error —
// the process must refuse to serve acquisitions.
//
// Grounded on the teacher's internal/federation/crypto_provider.go
// Ed25519Provider.Verify, generalized from a live two-party handshake to a
// one-shot detached-signature file check.
package integritygate

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyber-rangers/cratec/internal/cratecerr"
)

const (
	configFileName     = "integrity.json"
	signatureFileName  = "integrity.sig"
)

// Handle is the verified, immutable configuration blob held for the
// lifetime of the process. Nothing in this package exposes a mutator.
type Handle struct {
	raw  json.RawMessage
	data map[string]any
}

// Get returns the value stored under key, and whether it was present.
// Callers that need a typed view should unmarshal Raw() themselves;
// spec.md treats the blob as opaque JSON with no fixed schema.
func (h *Handle) Get(key string) (any, bool) {
	v, ok := h.data[key]
	return v, ok
}

// Raw returns the verified configuration bytes, unparsed.
func (h *Handle) Raw() json.RawMessage {
	return h.raw
}

// Verify reads configDir/integrity.json and configDir/integrity.sig,
// verifies the detached signature against publicKeyHex, and returns the
// parsed, read-only Handle. Any failure — missing files, bad hex, wrong
// key size, signature mismatch, invalid JSON — is wrapped in
// cratecerr.ErrIntegrityVerificationFailed, which callers at startup
// should treat as fatal.
func Verify(configDir, publicKeyHex string) (*Handle, error) {
	pubKeyBytes, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: decode public key: %v", cratecerr.ErrIntegrityVerificationFailed, err)
	}
	if len(pubKeyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d",
			cratecerr.ErrIntegrityVerificationFailed, ed25519.PublicKeySize, len(pubKeyBytes))
	}

	configPath := filepath.Join(configDir, configFileName)
	sigPath := filepath.Join(configDir, signatureFileName)

	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read config: %v", cratecerr.ErrIntegrityVerificationFailed, err)
	}
	sig, err := os.ReadFile(sigPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read signature: %v", cratecerr.ErrIntegrityVerificationFailed, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: signature must be %d bytes, got %d",
			cratecerr.ErrIntegrityVerificationFailed, ed25519.SignatureSize, len(sig))
	}

	if !ed25519.Verify(ed25519.PublicKey(pubKeyBytes), raw, sig) {
		return nil, fmt.Errorf("%w: signature does not match %s", cratecerr.ErrIntegrityVerificationFailed, configFileName)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", cratecerr.ErrIntegrityVerificationFailed, err)
	}

	return &Handle{raw: raw, data: data}, nil
}
