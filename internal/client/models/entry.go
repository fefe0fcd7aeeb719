// Package models defines the decrypted, typed views the client works with.
package models

// FilesystemEntry is the decrypted view of a stored file or folder that the
// transfer layer hands back to callers after a successful upload, download
// or listing.
type FilesystemEntry struct {
	Handle        string
	ParentHandle  string
	Name          string
	Size          int64
	EncryptedSize int64
	FileKey       []byte // nil for folders
	IsFolder      bool
	Signature     []byte // nil for folders
	DateAdded     int64  // UTC seconds
}
