package cryptox

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/almers2006/tresor/internal/common"
)

// signatureSeed keys the BLAKE3 accumulator so file digests are domain
// separated from any other BLAKE3 use. Wire-relevant: both sides of a
// transfer must use the same seed.
var signatureSeed = [32]byte{
	0x74, 0x72, 0x65, 0x73, 0x6F, 0x72, 0x2E, 0x66,
	0x69, 0x6C, 0x65, 0x2E, 0x73, 0x69, 0x67, 0x2E,
	0x76, 0x31, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

type signatureState int

const (
	signatureEmpty signatureState = iota
	signatureAccumulating
	signatureFinalized
)

// FileSignature incrementally folds ordered plaintext chunks into a keyed
// BLAKE3 digest and finally binds the digest to a file handle with an
// Ed25519 signature. It proves both that the content is unaltered and that
// it cannot be replayed under a different handle.
//
// Chunks must be appended in strictly increasing, contiguous order starting
// at 0. Upload reads are sequential by construction and downloads fetch
// chunks in order, so both sides satisfy this naturally.
type FileSignature struct {
	state signatureState
	next  int32
	h     *blake3.Hasher
}

// NewFileSignature returns an empty accumulator.
func NewFileSignature() *FileSignature {
	h, err := blake3.NewKeyed(signatureSeed[:])
	if err != nil {
		// The seed is a fixed 32-byte constant; NewKeyed only rejects
		// wrong-sized keys.
		panic(err)
	}
	return &FileSignature{h: h}
}

// Append folds chunkID ‖ plaintext into the running digest. Fails with
// ErrInvalidState after Finalize or when chunks arrive out of order.
func (s *FileSignature) Append(chunkID int32, plaintext []byte) error {
	if s.state == signatureFinalized {
		return fmt.Errorf("%w: append after finalize", common.ErrInvalidState)
	}
	if chunkID != s.next {
		return fmt.Errorf("%w: chunk %d appended, expected %d", common.ErrInvalidState, chunkID, s.next)
	}
	s.state = signatureAccumulating

	var id [4]byte
	binary.BigEndian.PutUint32(id[:], uint32(chunkID))
	_, _ = s.h.Write(id[:])
	_, _ = s.h.Write(plaintext)
	s.next++
	return nil
}

// binding returns digest ‖ handle, the value the signature covers.
func (s *FileSignature) binding(handle string) []byte {
	digest := s.h.Sum(nil)
	return append(digest, handle...)
}

// Finalize signs the accumulated digest bound to handle and transitions to
// the finalized state. Further appends fail.
func (s *FileSignature) Finalize(priv ed25519.PrivateKey, handle string) ([]byte, error) {
	if s.state == signatureFinalized {
		return nil, fmt.Errorf("%w: already finalized", common.ErrInvalidState)
	}
	s.state = signatureFinalized
	return ed25519.Sign(priv, s.binding(handle)), nil
}

// Verify recomputes the binding value from the accumulated digest and
// checks the Ed25519 signature against it. A mismatch returns false rather
// than an error so callers can distinguish corrupt content from a system
// failure.
func (s *FileSignature) Verify(pub ed25519.PublicKey, signature []byte, handle string) bool {
	if len(signature) != common.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, s.binding(handle), signature)
}
