package attest

import (
	"crypto/sha256"
	"errors"

	"github.com/deskiziarecords/OpenGate/pkg/gate"
)

// ErrPatchHashMismatch is returned when a certificate does not name the patch
// it is presented with.
var ErrPatchHashMismatch = errors.New("attest: patch hash mismatch")

// PatchHash returns the SHA-256 of a patch, as written into PatchHash.
func PatchHash(patch []byte) [32]byte {
	return sha256.Sum256(patch)
}

// VerifyPatchHash checks that c.PatchHash is the SHA-256 of patch.
func VerifyPatchHash(c *gate.Certificate, patch []byte) error {
	if c == nil || c.PatchHash != PatchHash(patch) {
		return ErrPatchHashMismatch
	}
	return nil
}
