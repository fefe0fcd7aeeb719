// Package cryptox implements the client-side encryption primitives: the
// encrypted buffer and chunk codecs, metadata obfuscation, key wrapping and
// the incremental file signature.
//
// All symmetric encryption is XChaCha20-Poly1305. An encrypted buffer is
// laid out as nonce(24) ‖ ciphertext ‖ tag(16); an encrypted chunk carries
// the chunk id inside the authenticated payload as a 4-byte big-endian
// signed integer so a chunk cannot be replayed at a different position.
package cryptox

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/almers2006/tresor/internal/common"
)

// EncryptBuffer encrypts plaintext under key with a fresh random 24-byte
// nonce and returns nonce ‖ ciphertext ‖ tag.
func EncryptBuffer(plaintext, key []byte) ([]byte, error) {
	if len(key) != common.KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", common.ErrInvalidKeyLength, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, common.NonceSize, common.NonceSize+len(plaintext)+common.TagSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptBuffer splits the leading nonce from buf and decrypts the rest.
// Returns ErrAuthenticationFailed when the tag does not verify: wrong key,
// corrupted data or a truncated buffer.
func DecryptBuffer(buf, key []byte) ([]byte, error) {
	if len(key) != common.KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", common.ErrInvalidKeyLength, len(key))
	}
	if len(buf) < common.NonceSize+common.TagSize {
		return nil, fmt.Errorf("%w: buffer truncated", common.ErrAuthenticationFailed)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, buf[:common.NonceSize], buf[common.NonceSize:], nil)
	if err != nil {
		return nil, common.ErrAuthenticationFailed
	}
	return plaintext, nil
}

// EncryptFileChunk prefixes plaintext with the big-endian signed chunk id
// and encrypts the result. Binding the position into the authenticated
// payload prevents chunk reordering and substitution.
func EncryptFileChunk(chunkID int32, plaintext, key []byte) ([]byte, error) {
	payload := make([]byte, common.ChunkIDSize+len(plaintext))
	binary.BigEndian.PutUint32(payload, uint32(chunkID))
	copy(payload[common.ChunkIDSize:], plaintext)
	return EncryptBuffer(payload, key)
}

// DecryptFileChunk decrypts an encrypted chunk and returns the embedded
// chunk id alongside the plaintext. The caller must compare the id against
// the expected position and fail with ErrChunkIDMismatch otherwise; see
// DecryptFileChunkAt.
func DecryptFileChunk(buf, key []byte) (int32, []byte, error) {
	payload, err := DecryptBuffer(buf, key)
	if err != nil {
		return 0, nil, err
	}
	if len(payload) < common.ChunkIDSize {
		return 0, nil, fmt.Errorf("%w: payload shorter than chunk id", common.ErrAuthenticationFailed)
	}
	id := int32(binary.BigEndian.Uint32(payload))
	return id, payload[common.ChunkIDSize:], nil
}

// DecryptFileChunkAt decrypts an encrypted chunk and verifies it sits at
// the expected position.
func DecryptFileChunkAt(expectedID int32, buf, key []byte) ([]byte, error) {
	id, plaintext, err := DecryptFileChunk(buf, key)
	if err != nil {
		return nil, err
	}
	if id != expectedID {
		return nil, fmt.Errorf("%w: expected %d, got %d", common.ErrChunkIDMismatch, expectedID, id)
	}
	return plaintext, nil
}
