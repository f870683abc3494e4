// Package lockscreen implements the operator PIN lock gate named in
// spec.md §6 (lock_system/unlock_system): a mutex-guarded in-memory state
// machine, grounded on the teacher's internal/security/token_broker.go
// mutex-guarded issuer state (simplified here from a token ledger down to a
// single locked/PIN pair, since the gate has no expiry or rotation
// concerns).
package lockscreen

import (
	"regexp"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/cyber-rangers/cratec/internal/cratecerr"
)

var pinShape = regexp.MustCompile(`^[0-9]{4,6}$`)

// Gate holds the process-wide lock state. The zero value is unlocked. The
// PIN is kept only as a bcrypt hash — an operator's lock code never sits in
// process memory in comparable plaintext form for longer than the call
// that sets it.
type Gate struct {
	mu       sync.Mutex
	locked   bool
	pinHash  []byte
}

// Lock engages the gate with pin, which must be 4-6 digits. Locking an
// already-locked gate is a no-op that returns nil: the new PIN is ignored
// and the existing one still unlocks the gate.
func (g *Gate) Lock(pin string) error {
	if !pinShape.MatchString(pin) {
		return cratecerr.ErrInvalidPIN
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.locked {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	g.locked = true
	g.pinHash = hash
	return nil
}

// Unlock clears the gate if pin matches. A mismatched PIN leaves the gate
// locked and returns ErrPINMismatch.
func (g *Gate) Unlock(pin string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.locked {
		return nil
	}
	if bcrypt.CompareHashAndPassword(g.pinHash, []byte(pin)) != nil {
		return cratecerr.ErrPINMismatch
	}
	g.locked = false
	g.pinHash = nil
	return nil
}

// Locked reports the current gate state.
func (g *Gate) Locked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.locked
}
