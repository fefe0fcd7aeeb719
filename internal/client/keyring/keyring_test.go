package keyring

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almers2006/tresor/internal/common"
	"github.com/almers2006/tresor/internal/cryptox"
)

func TestKeyring_WrapUnwrapFileKey(t *testing.T) {
	kr, err := Generate(common.GenerateRandByteArray(common.KeySize))
	require.NoError(t, err)

	fileKey := cryptox.NewFileKey()

	wrapped, err := kr.WrapFileKey(fileKey)
	require.NoError(t, err)
	assert.Len(t, wrapped, common.EncryptedFileKeySize)
	assert.NotEqual(t, fileKey, wrapped)

	got, err := kr.UnwrapFileKey(wrapped)
	require.NoError(t, err)
	assert.Equal(t, fileKey, got)
}

func TestKeyring_RejectsBadKeyLengths(t *testing.T) {
	_, err := New(make([]byte, 16), make([]byte, 32), make([]byte, 32))
	assert.ErrorIs(t, err, common.ErrInvalidKeyLength)

	_, err = New(make([]byte, 32), make([]byte, 31), make([]byte, 32))
	assert.ErrorIs(t, err, common.ErrInvalidKeyLength)
}

func TestIdentity_CreateAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	password := []byte("correct horse battery staple")

	created, err := CreateIdentity(path, password)
	require.NoError(t, err)

	loaded, err := LoadIdentity(path, password)
	require.NoError(t, err)

	assert.Equal(t, created.MasterKey(), loaded.MasterKey())
	assert.Equal(t, created.SigningKey(), loaded.SigningKey())
	assert.Equal(t, created.EncryptionPublicKey(), loaded.EncryptionPublicKey())
}

func TestIdentity_WrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")

	_, err := CreateIdentity(path, []byte("right"))
	require.NoError(t, err)

	_, err = LoadIdentity(path, []byte("wrong"))
	assert.ErrorIs(t, err, common.ErrAuthenticationFailed)
}
