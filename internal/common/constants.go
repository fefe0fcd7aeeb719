package common

import "time"

// Wire format sizes. An encrypted chunk is
// nonce ‖ ciphertext(chunkID ‖ plaintext) ‖ tag, and an encrypted file is
// a four-byte magic followed by the chunks back to back.
const (
	// ChunkDataSize is the plaintext payload capacity of one chunk.
	ChunkDataSize = 2 * 1024 * 1024

	NonceSize   = 24 // XChaCha20-Poly1305
	TagSize     = 16
	ChunkIDSize = 4

	KeySize       = 32
	SignatureSize = 64 // Ed25519

	// EncryptedBufferExtraSize is the overhead EncryptBuffer adds to any
	// plaintext: the nonce in front and the tag behind.
	EncryptedBufferExtraSize = NonceSize + TagSize

	// EncryptedChunkExtraSize additionally counts the chunk id sealed
	// inside the ciphertext.
	EncryptedChunkExtraSize = EncryptedBufferExtraSize + ChunkIDSize

	// EncryptedChunkSize is the on-disk size of a full chunk.
	EncryptedChunkSize = ChunkDataSize + EncryptedChunkExtraSize

	EncryptedFileHeaderSize = 4

	HandleLength = 16

	// MetadataObfuscationLength hides the real name length: metadata
	// JSON is padded with spaces to this size before encryption.
	MetadataObfuscationLength = 512
	MetadataPadCharacter      = ' '

	// EncryptedMetadataMaxSize caps what the server accepts for one
	// metadata blob.
	EncryptedMetadataMaxSize = 1024

	// EncryptedFileKeySize is a wrapped 32-byte file key: the key plus
	// EncryptBuffer overhead.
	EncryptedFileKeySize = KeySize + EncryptedBufferExtraSize

	FileExtension = ".tef"

	MaxFileSize = 1 << 40
)

// EncryptedFileMagic starts every stored file (".TEF").
var EncryptedFileMagic = []byte{0x2E, 0x54, 0x45, 0x46}

// RootHandle is the implicit top-level folder every account has.
const RootHandle = "0000000000000000"

// Upload tuning. The concurrency ceiling is recomputed every
// UploadTuneInterval as measured throughput divided by
// UploadThroughputIncrement, clamped to [1, MaxConcurrentUploadChunks].
const (
	MaxConcurrentUploadChunks = 4
	UploadTuneInterval        = 250 * time.Millisecond
	UploadThroughputIncrement = 1024 * 1024
)

// DownloadSessionExpiry is how long the server keeps an idle read session
// open; every served chunk resets the clock.
const DownloadSessionExpiry = 10 * time.Second

// ChunkCount returns how many chunks a plaintext of the given size splits
// into. An empty file has no chunks, only the header.
func ChunkCount(plaintextSize int64) int64 {
	return (plaintextSize + ChunkDataSize - 1) / ChunkDataSize
}

// EncryptedFileSize returns the exact stored size for a plaintext of the
// given size: header plus per-chunk overhead plus the plaintext itself.
func EncryptedFileSize(plaintextSize int64) int64 {
	return EncryptedFileHeaderSize + ChunkCount(plaintextSize)*EncryptedChunkExtraSize + plaintextSize
}

// PlaintextChunkSize returns the payload size of chunk chunkID within a
// plaintext of the given total size.
func PlaintextChunkSize(plaintextSize int64, chunkID int32) int64 {
	remaining := plaintextSize - int64(chunkID)*ChunkDataSize
	if remaining < 0 {
		return 0
	}
	if remaining > ChunkDataSize {
		return ChunkDataSize
	}
	return remaining
}
