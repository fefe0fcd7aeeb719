// Package keyring holds the key material a client needs for transfers: the
// master key, the Ed25519 signing pair and the X25519 encryption pair. Key
// bootstrap (password entry, account claim) happens elsewhere; this package
// only consumes the derived material and persists it locally in wrapped form.
package keyring

import (
	"crypto/ed25519"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"github.com/almers2006/tresor/internal/common"
	"github.com/almers2006/tresor/internal/cryptox"
)

// Keyring is the client's in-memory key material.
type Keyring struct {
	masterKey []byte
	signPriv  ed25519.PrivateKey
	signPub   ed25519.PublicKey
	boxPriv   []byte
	boxPub    []byte
}

// New assembles a Keyring from already-derived material. signSeed is the
// 32-byte Ed25519 seed; boxPriv is the 32-byte X25519 private scalar.
func New(masterKey, signSeed, boxPriv []byte) (*Keyring, error) {
	if len(masterKey) != common.KeySize {
		return nil, fmt.Errorf("master key: %w", common.ErrInvalidKeyLength)
	}
	if len(signSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing seed: %w", common.ErrInvalidKeyLength)
	}
	if len(boxPriv) != curve25519.ScalarSize {
		return nil, fmt.Errorf("encryption key: %w", common.ErrInvalidKeyLength)
	}

	priv := ed25519.NewKeyFromSeed(signSeed)
	boxPub, err := curve25519.X25519(boxPriv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("x25519: %w", err)
	}

	return &Keyring{
		masterKey: masterKey,
		signPriv:  priv,
		signPub:   priv.Public().(ed25519.PublicKey),
		boxPriv:   boxPriv,
		boxPub:    boxPub,
	}, nil
}

// Generate creates a fresh signing and encryption pair under the given
// master key. Used when no local identity exists yet.
func Generate(masterKey []byte) (*Keyring, error) {
	return New(masterKey,
		common.GenerateRandByteArray(ed25519.SeedSize),
		common.GenerateRandByteArray(curve25519.ScalarSize))
}

// MasterKey returns the user's master key.
func (k *Keyring) MasterKey() []byte { return k.masterKey }

// SigningKey returns the Ed25519 private key used to sign file digests.
func (k *Keyring) SigningKey() ed25519.PrivateKey { return k.signPriv }

// VerifyKey returns the Ed25519 public key.
func (k *Keyring) VerifyKey() ed25519.PublicKey { return k.signPub }

// EncryptionPublicKey returns the X25519 public key.
func (k *Keyring) EncryptionPublicKey() []byte { return k.boxPub }

// WrapFileKey encrypts a per-file key under the master key.
func (k *Keyring) WrapFileKey(fileKey []byte) ([]byte, error) {
	return cryptox.WrapKey(fileKey, k.masterKey)
}

// UnwrapFileKey decrypts a wrapped per-file key.
func (k *Keyring) UnwrapFileKey(wrapped []byte) ([]byte, error) {
	return cryptox.UnwrapKey(wrapped, k.masterKey)
}

// Wipe zeroes all private key material. The Keyring must not be used
// afterwards.
func (k *Keyring) Wipe() {
	common.WipeByteArray(k.masterKey)
	common.WipeByteArray(k.signPriv)
	common.WipeByteArray(k.boxPriv)
}
