package cryptox

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/almers2006/tresor/internal/common"
)

// FileMetadata is the client-visible description of a file or folder. It is
// only ever stored and transmitted in encrypted form.
type FileMetadata struct {
	FileName  string `json:"fileName"`
	DateAdded int64  `json:"dateAdded"` // UTC seconds
	IsFolder  bool   `json:"isFolder"`
}

// EncryptFileMetadata serializes md to compact JSON, right-pads it with
// spaces to the fixed obfuscation length and encrypts it, so all metadata
// ciphertexts are the same size and do not leak name length. Fails with
// ErrMetadataTooLarge when the JSON exceeds the obfuscation length.
func EncryptFileMetadata(md *FileMetadata, key []byte) ([]byte, error) {
	raw, err := json.Marshal(md)
	if err != nil {
		return nil, err
	}
	if len(raw) > common.MetadataObfuscationLength {
		return nil, fmt.Errorf("%w: %d bytes over the %d padded length",
			common.ErrMetadataTooLarge, len(raw), common.MetadataObfuscationLength)
	}

	padded := make([]byte, common.MetadataObfuscationLength)
	copy(padded, raw)
	for i := len(raw); i < len(padded); i++ {
		padded[i] = common.MetadataPadCharacter
	}

	return EncryptBuffer(padded, key)
}

// DecryptFileMetadata decrypts an encrypted metadata blob, trims the
// padding and parses the JSON.
func DecryptFileMetadata(buf, key []byte) (*FileMetadata, error) {
	padded, err := DecryptBuffer(buf, key)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimRight(string(padded), string(common.MetadataPadCharacter))

	md := &FileMetadata{}
	if err := json.Unmarshal([]byte(trimmed), md); err != nil {
		return nil, fmt.Errorf("metadata parse: %w", err)
	}
	return md, nil
}
