package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almers2006/tresor/internal/common"
)

func TestFileMetadata_RoundTrip(t *testing.T) {
	key := testKey()

	md := &FileMetadata{FileName: "report final (2).pdf", DateAdded: 1756400000, IsFolder: false}

	buf, err := EncryptFileMetadata(md, key)
	require.NoError(t, err)

	got, err := DecryptFileMetadata(buf, key)
	require.NoError(t, err)
	assert.Equal(t, md, got)
}

func TestFileMetadata_FixedCiphertextLength(t *testing.T) {
	key := testKey()

	short, err := EncryptFileMetadata(&FileMetadata{FileName: "a"}, key)
	require.NoError(t, err)
	long, err := EncryptFileMetadata(&FileMetadata{FileName: strings.Repeat("name", 40)}, key)
	require.NoError(t, err)

	// Name length must not leak through ciphertext size.
	assert.Equal(t, len(short), len(long))
	assert.Equal(t, common.MetadataObfuscationLength+common.EncryptedBufferExtraSize, len(short))
}

func TestFileMetadata_TooLarge(t *testing.T) {
	md := &FileMetadata{FileName: strings.Repeat("x", common.MetadataObfuscationLength)}

	_, err := EncryptFileMetadata(md, testKey())
	assert.ErrorIs(t, err, common.ErrMetadataTooLarge)
}

func TestFileMetadata_NameWithTrailingSpaces(t *testing.T) {
	key := testKey()

	// JSON encoding keeps the trailing spaces inside the quoted string, so
	// padding removal cannot eat them.
	md := &FileMetadata{FileName: "oddly named   ", DateAdded: 42}

	buf, err := EncryptFileMetadata(md, key)
	require.NoError(t, err)

	got, err := DecryptFileMetadata(buf, key)
	require.NoError(t, err)
	assert.Equal(t, "oddly named   ", got.FileName)
}
