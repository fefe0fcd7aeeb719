package cryptox

import (
	"golang.org/x/crypto/argon2"

	"github.com/almers2006/tresor/internal/common"
)

// Argon2id parameters for master key derivation.
const (
	argonIterations  = 3
	argonMemoryKiB   = 12 * 1024
	argonParallelism = 1
)

// DeriveMasterKey derives the user's 32-byte master key from a password and
// salt using Argon2id.
func DeriveMasterKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonIterations, argonMemoryKiB, argonParallelism, common.KeySize)
}

// NewFileKey generates a fresh random per-file symmetric key.
func NewFileKey() []byte {
	return common.GenerateRandByteArray(common.KeySize)
}

// WrapKey encrypts a per-file key under the master key for storage. The
// wrapped form is nonce ‖ ciphertext ‖ tag, 72 bytes total.
func WrapKey(fileKey, masterKey []byte) ([]byte, error) {
	return EncryptBuffer(fileKey, masterKey)
}

// UnwrapKey decrypts a wrapped per-file key.
func UnwrapKey(wrapped, masterKey []byte) ([]byte, error) {
	return DecryptBuffer(wrapped, masterKey)
}
