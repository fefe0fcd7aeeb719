// Package models defines server-side data models persisted in the database.
package models

// File is one directory row: a file or folder as the server sees it. Names
// and dates live inside EncryptedMetadata, opaque to the server.
type File struct {
	// Handle is the public identifier, also the storage file name.
	Handle string
	// UserID is the owner.
	UserID string
	// ParentHandle places the row in the directory tree.
	ParentHandle string

	// Size is the plaintext size in bytes. Zero for folders.
	Size int64

	// EncryptedMetadata holds the name and attributes, client-encrypted.
	EncryptedMetadata []byte
	// EncryptedFileCryptKey is the wrapped per-file key. Nil for folders.
	EncryptedFileCryptKey []byte
	// Signature is the client's signature over the file content. Nil for
	// folders.
	Signature []byte
}

// IsFolder reports whether the row is a folder. Folders carry no file key
// and no physical file.
func (f *File) IsFolder() bool {
	return f.EncryptedFileCryptKey == nil
}
