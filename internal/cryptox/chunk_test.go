package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almers2006/tresor/internal/common"
)

func testKey() []byte {
	key := make([]byte, common.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestEncryptBuffer_RoundTrip(t *testing.T) {
	key := testKey()

	for _, size := range []int{0, 1, 31, 1024, common.ChunkDataSize} {
		plaintext := common.GenerateRandByteArray(size)

		buf, err := EncryptBuffer(plaintext, key)
		require.NoError(t, err)
		assert.Len(t, buf, size+common.EncryptedBufferExtraSize)

		got, err := DecryptBuffer(buf, key)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncryptBuffer_FreshNonce(t *testing.T) {
	key := testKey()
	plaintext := []byte("same input")

	a, err := EncryptBuffer(plaintext, key)
	require.NoError(t, err)
	b, err := EncryptBuffer(plaintext, key)
	require.NoError(t, err)

	assert.NotEqual(t, a[:common.NonceSize], b[:common.NonceSize])
	assert.NotEqual(t, a, b)
}

func TestEncryptBuffer_InvalidKeyLength(t *testing.T) {
	_, err := EncryptBuffer([]byte("data"), make([]byte, 16))
	assert.ErrorIs(t, err, common.ErrInvalidKeyLength)

	_, err = DecryptBuffer(make([]byte, 64), make([]byte, 33))
	assert.ErrorIs(t, err, common.ErrInvalidKeyLength)
}

func TestDecryptBuffer_WrongKey(t *testing.T) {
	buf, err := EncryptBuffer([]byte("secret"), testKey())
	require.NoError(t, err)

	other := testKey()
	other[0] ^= 0xFF

	_, err = DecryptBuffer(buf, other)
	assert.ErrorIs(t, err, common.ErrAuthenticationFailed)
}

func TestDecryptBuffer_Truncated(t *testing.T) {
	_, err := DecryptBuffer(make([]byte, common.NonceSize), testKey())
	assert.ErrorIs(t, err, common.ErrAuthenticationFailed)
}

func TestDecryptBuffer_TamperDetection(t *testing.T) {
	key := testKey()
	buf, err := EncryptBuffer([]byte("tamper target payload"), key)
	require.NoError(t, err)

	// Flip a single bit in every position past the nonce: ciphertext and
	// tag alike must fail authentication.
	for i := common.NonceSize; i < len(buf); i++ {
		corrupted := make([]byte, len(buf))
		copy(corrupted, buf)
		corrupted[i] ^= 0x01

		_, err := DecryptBuffer(corrupted, key)
		assert.ErrorIs(t, err, common.ErrAuthenticationFailed, "bit flip at offset %d", i)
	}
}

func TestFileChunk_RoundTrip(t *testing.T) {
	key := testKey()
	plaintext := common.GenerateRandByteArray(1000)

	buf, err := EncryptFileChunk(7, plaintext, key)
	require.NoError(t, err)
	assert.Len(t, buf, len(plaintext)+common.EncryptedChunkExtraSize)

	id, got, err := DecryptFileChunk(buf, key)
	require.NoError(t, err)
	assert.Equal(t, int32(7), id)
	assert.Equal(t, plaintext, got)
}

func TestFileChunk_PositionBinding(t *testing.T) {
	key := testKey()

	buf, err := EncryptFileChunk(5, []byte("chunk five"), key)
	require.NoError(t, err)

	// AEAD authentication succeeds but the embedded position does not
	// match the expected one.
	_, err = DecryptFileChunkAt(6, buf, key)
	assert.ErrorIs(t, err, common.ErrChunkIDMismatch)

	got, err := DecryptFileChunkAt(5, buf, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("chunk five"), got)
}

func TestEncryptedFileSize_Deterministic(t *testing.T) {
	tests := []struct {
		name   string
		size   int64
		chunks int64
	}{
		{"empty", 0, 0},
		{"one byte", 1, 1},
		{"exact chunk", common.ChunkDataSize, 1},
		{"chunk plus one", common.ChunkDataSize + 1, 2},
		{"five mebibytes", 5 * 1024 * 1024, 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.chunks, common.ChunkCount(tc.size))

			want := int64(common.EncryptedFileHeaderSize) + tc.chunks*common.EncryptedChunkExtraSize + tc.size
			assert.Equal(t, want, common.EncryptedFileSize(tc.size))
		})
	}
}
