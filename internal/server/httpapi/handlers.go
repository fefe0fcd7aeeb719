// Package httpapi exposes the storage and directory services over REST.
// All payload content is client-encrypted; the handlers only validate
// shapes, ownership and quotas.
package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/almers2006/tresor/internal/common"
	"github.com/almers2006/tresor/internal/logging"
	"github.com/almers2006/tresor/internal/server/directory"
	"github.com/almers2006/tresor/internal/server/models"
	"github.com/almers2006/tresor/internal/server/storage"
)

// multipartMemoryLimit bounds one chunk upload request in memory: the chunk
// itself plus form framing.
const multipartMemoryLimit = common.EncryptedChunkSize + 64*1024

// Handler wires the HTTP surface to the stores.
type Handler struct {
	uploads   *storage.ActiveUploadStore
	sessions  *storage.ChunkSessionStore
	directory directory.Repository
	logger    logging.Logger

	// quotaBytes caps each user's summed plaintext sizes. Zero means
	// unlimited.
	quotaBytes int64
}

func NewHandler(uploads *storage.ActiveUploadStore, sessions *storage.ChunkSessionStore,
	dir directory.Repository, quotaBytes int64, logger logging.Logger) *Handler {
	return &Handler{
		uploads:    uploads,
		sessions:   sessions,
		directory:  dir,
		logger:     logger.With("module", "httpapi"),
		quotaBytes: quotaBytes,
	}
}

// NewRouter builds the authenticated API router.
func NewRouter(h *Handler, secretKey []byte) chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticator(secretKey))

		r.Post("/uploads", h.startUpload)
		r.Post("/uploads/chunks", h.uploadChunk)
		r.Put("/uploads/{handle}/finalise", h.finalizeUpload)

		r.Get("/filesystem/{handle}/chunks/{chunkId}", h.downloadChunk)
		r.Post("/filesystem/folders", h.createFolder)
		r.Get("/filesystem/items", h.listItems)
		r.Put("/filesystem/metadata", h.putMetadata)
		r.Get("/filesystem/usage", h.getUsage)
	})

	return r
}

// writeError translates the shared error taxonomy into status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, common.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, common.ErrRangeNotSatisfiable):
		status = http.StatusRequestedRangeNotSatisfiable
	case errors.Is(err, common.ErrNotFound),
		errors.Is(err, common.ErrOwnershipMismatch),
		errors.Is(err, common.ErrMissingFileData),
		errors.Is(err, common.ErrFolderHasNoPhysicalFile):
		// Ownership mismatches are indistinguishable from missing
		// handles on the wire.
		status = http.StatusNotFound
	case errors.Is(err, common.ErrQuotaExceeded), errors.Is(err, common.ErrMetadataTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, common.ErrInvalidState), errors.Is(err, common.ErrUploadIncomplete):
		status = http.StatusBadRequest
	default:
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		status = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type startUploadRequest struct {
	FileSize int64 `json:"fileSize"`
}

type startUploadResponse struct {
	Handle string `json:"handle"`
}

func (h *Handler) startUpload(w http.ResponseWriter, r *http.Request) {
	var req startUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if req.FileSize < 0 || req.FileSize > common.MaxFileSize {
		http.Error(w, "invalid file size", http.StatusBadRequest)
		return
	}

	userID := UserID(r.Context())

	if h.quotaBytes > 0 {
		used, err := h.directory.StorageUsed(r.Context(), userID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if used+req.FileSize > h.quotaBytes {
			h.writeError(w, r, common.ErrQuotaExceeded)
			return
		}
	}

	handle, err := h.uploads.Start(r.Context(), userID, req.FileSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, startUploadResponse{Handle: handle})
}

func (h *Handler) uploadChunk(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		http.Error(w, "bad multipart body", http.StatusBadRequest)
		return
	}

	handle := r.FormValue("handle")
	if !common.ValidHandle(handle) {
		http.Error(w, "invalid handle", http.StatusBadRequest)
		return
	}
	chunkID, err := strconv.ParseInt(r.FormValue("chunkId"), 10, 32)
	if err != nil {
		http.Error(w, "invalid chunk id", http.StatusBadRequest)
		return
	}
	data := r.FormValue("data")
	if data == "" {
		http.Error(w, "missing chunk data", http.StatusBadRequest)
		return
	}

	err = h.uploads.PutChunk(r.Context(), UserID(r.Context()), handle, int32(chunkID), []byte(data))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type finalizeUploadRequest struct {
	ParentHandle          string `json:"parentHandle"`
	EncryptedMetadata     string `json:"encryptedMetadata"`
	EncryptedFileCryptKey string `json:"encryptedFileCryptKey"`
	Signature             string `json:"signature"`
}

// decodeBounded decodes a base64 field and enforces an exact or maximum
// length, depending on exact.
func decodeBounded(field, value string, limit int, exact bool) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", field)
	}
	if exact && len(raw) != limit {
		return nil, fmt.Errorf("%s must be %d bytes", field, limit)
	}
	if !exact && len(raw) > limit {
		return nil, fmt.Errorf("%s too large: %w", field, common.ErrMetadataTooLarge)
	}
	return raw, nil
}

// checkParent verifies the target folder exists and is a folder.
func (h *Handler) checkParent(r *http.Request, userID, parentHandle string) error {
	if parentHandle == common.RootHandle {
		return nil
	}
	parent, err := h.directory.GetByHandle(r.Context(), userID, parentHandle)
	if err != nil {
		return err
	}
	if !parent.IsFolder() {
		return fmt.Errorf("parent is a file: %w", common.ErrNotFound)
	}
	return nil
}

func (h *Handler) finalizeUpload(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	if !common.ValidHandle(handle) {
		http.Error(w, "invalid handle", http.StatusBadRequest)
		return
	}

	var req finalizeUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if !common.ValidHandle(req.ParentHandle) {
		http.Error(w, "invalid parent handle", http.StatusBadRequest)
		return
	}

	metadata, err := decodeBounded("metadata", req.EncryptedMetadata, common.EncryptedMetadataMaxSize, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	fileKey, err := decodeBounded("file key", req.EncryptedFileCryptKey, common.EncryptedFileKeySize, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	signature, err := decodeBounded("signature", req.Signature, common.SignatureSize, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	userID := UserID(r.Context())

	if err := h.checkParent(r, userID, req.ParentHandle); err != nil {
		h.writeError(w, r, err)
		return
	}

	size, err := h.uploads.Finalize(r.Context(), userID, handle)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	err = h.directory.Create(r.Context(), &models.File{
		Handle:                handle,
		UserID:                userID,
		ParentHandle:          req.ParentHandle,
		Size:                  size,
		EncryptedMetadata:     metadata,
		EncryptedFileCryptKey: fileKey,
		Signature:             signature,
	})
	if err != nil {
		// The physical file is already published; without its directory
		// row it is unreachable and needs operator cleanup.
		h.logger.Error(r.Context(), "orphaned file: directory insert failed",
			"handle", handle, "error", err)
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) downloadChunk(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	if !common.ValidHandle(handle) {
		http.Error(w, "invalid handle", http.StatusBadRequest)
		return
	}
	chunkID, err := strconv.ParseInt(chi.URLParam(r, "chunkId"), 10, 32)
	if err != nil {
		http.Error(w, "invalid chunk id", http.StatusBadRequest)
		return
	}

	userID := UserID(r.Context())

	// Ownership is checked against the directory on every request, not
	// once per session.
	file, err := h.directory.GetByHandle(r.Context(), userID, handle)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if file.IsFolder() {
		h.writeError(w, r, common.ErrFolderHasNoPhysicalFile)
		return
	}

	data, err := h.sessions.ReadChunk(r.Context(), userID, handle, int32(chunkID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Chunk content is immutable once finalized, so clients may cache it.
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

type createFolderRequest struct {
	ParentHandle      string `json:"parentHandle"`
	EncryptedMetadata string `json:"encryptedMetadata"`
}

type createFolderResponse struct {
	Handle string `json:"handle"`
}

func (h *Handler) createFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if !common.ValidHandle(req.ParentHandle) {
		http.Error(w, "invalid parent handle", http.StatusBadRequest)
		return
	}
	metadata, err := decodeBounded("metadata", req.EncryptedMetadata, common.EncryptedMetadataMaxSize, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(metadata) == 0 {
		http.Error(w, "missing metadata", http.StatusBadRequest)
		return
	}

	userID := UserID(r.Context())

	if err := h.checkParent(r, userID, req.ParentHandle); err != nil {
		h.writeError(w, r, err)
		return
	}

	handle, err := common.NewHandle()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	err = h.directory.Create(r.Context(), &models.File{
		Handle:            handle,
		UserID:            userID,
		ParentHandle:      req.ParentHandle,
		EncryptedMetadata: metadata,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, createFolderResponse{Handle: handle})
}

type listItemsResponse struct {
	Data []remoteItemJSON `json:"data"`
}

type remoteItemJSON struct {
	Handle                string `json:"handle"`
	Size                  int64  `json:"size"`
	EncryptedFileCryptKey string `json:"encryptedFileCryptKey"`
	EncryptedMetadata     string `json:"encryptedMetadata"`
	Signature             string `json:"signature"`
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	parentHandle := r.URL.Query().Get("parentHandle")
	if parentHandle == "" {
		parentHandle = common.RootHandle
	}
	if !common.ValidHandle(parentHandle) {
		http.Error(w, "invalid parent handle", http.StatusBadRequest)
		return
	}

	files, err := h.directory.ListByParent(r.Context(), UserID(r.Context()), parentHandle)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := listItemsResponse{Data: make([]remoteItemJSON, 0, len(files))}
	for _, f := range files {
		item := remoteItemJSON{
			Handle:            f.Handle,
			Size:              f.Size,
			EncryptedMetadata: base64.StdEncoding.EncodeToString(f.EncryptedMetadata),
		}
		if !f.IsFolder() {
			item.EncryptedFileCryptKey = base64.StdEncoding.EncodeToString(f.EncryptedFileCryptKey)
			item.Signature = base64.StdEncoding.EncodeToString(f.Signature)
		}
		resp.Data = append(resp.Data, item)
	}
	writeJSON(w, resp)
}

type putMetadataRequest struct {
	Handle            string `json:"handle"`
	EncryptedMetadata string `json:"encryptedMetadata"`
}

func (h *Handler) putMetadata(w http.ResponseWriter, r *http.Request) {
	var req []putMetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	userID := UserID(r.Context())

	for _, u := range req {
		if !common.ValidHandle(u.Handle) {
			http.Error(w, "invalid handle", http.StatusBadRequest)
			return
		}
		metadata, err := decodeBounded("metadata", u.EncryptedMetadata, common.EncryptedMetadataMaxSize, false)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if err := h.directory.UpdateMetadata(r.Context(), userID, u.Handle, metadata); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

type usageResponse struct {
	BytesUsed int64 `json:"bytesUsed"`
}

func (h *Handler) getUsage(w http.ResponseWriter, r *http.Request) {
	used, err := h.directory.StorageUsed(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, usageResponse{BytesUsed: used})
}
