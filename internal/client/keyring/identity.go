package keyring

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/crypto/curve25519"

	"github.com/almers2006/tresor/internal/common"
	"github.com/almers2006/tresor/internal/cryptox"
)

// identityFile is the on-disk form of a local identity. Private keys are
// wrapped under the password-derived master key; only the salt and public
// halves are stored in the clear.
type identityFile struct {
	Salt              []byte `json:"salt"`
	EncryptedSignSeed []byte `json:"encryptedSignSeed"`
	SignPublicKey     []byte `json:"signPublicKey"`
	EncryptedBoxKey   []byte `json:"encryptedBoxKey"`
	BoxPublicKey      []byte `json:"boxPublicKey"`
}

const saltSize = 16

// CreateIdentity derives a master key from password, generates fresh key
// pairs and writes the wrapped identity to path.
func CreateIdentity(path string, password []byte) (*Keyring, error) {
	salt := common.GenerateRandByteArray(saltSize)
	masterKey := cryptox.DeriveMasterKey(password, salt)

	kr, err := Generate(masterKey)
	if err != nil {
		return nil, err
	}

	encSeed, err := cryptox.EncryptBuffer(kr.signPriv.Seed(), masterKey)
	if err != nil {
		return nil, err
	}
	encBox, err := cryptox.EncryptBuffer(kr.boxPriv, masterKey)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(&identityFile{
		Salt:              salt,
		EncryptedSignSeed: encSeed,
		SignPublicKey:     kr.signPub,
		EncryptedBoxKey:   encBox,
		BoxPublicKey:      kr.boxPub,
	})
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return nil, fmt.Errorf("write identity: %w", err)
	}
	return kr, nil
}

// LoadIdentity reads a wrapped identity from path and unlocks it with
// password. A wrong password surfaces as ErrAuthenticationFailed from the
// key unwrap.
func LoadIdentity(path string, password []byte) (*Keyring, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read identity: %w", err)
	}

	var f identityFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse identity: %w", err)
	}

	masterKey := cryptox.DeriveMasterKey(password, f.Salt)

	signSeed, err := cryptox.DecryptBuffer(f.EncryptedSignSeed, masterKey)
	if err != nil {
		return nil, fmt.Errorf("unlock signing key: %w", err)
	}
	boxPriv, err := cryptox.DecryptBuffer(f.EncryptedBoxKey, masterKey)
	if err != nil {
		return nil, fmt.Errorf("unlock encryption key: %w", err)
	}

	kr, err := New(masterKey, signSeed, boxPriv)
	if err != nil {
		return nil, err
	}

	// Stored public halves must match the unwrapped private keys.
	if !kr.signPub.Equal(ed25519.PublicKey(f.SignPublicKey)) {
		return nil, fmt.Errorf("identity: signing key does not match stored public key")
	}
	if len(f.BoxPublicKey) != curve25519.PointSize || string(kr.boxPub) != string(f.BoxPublicKey) {
		return nil, fmt.Errorf("identity: encryption key does not match stored public key")
	}
	return kr, nil
}
