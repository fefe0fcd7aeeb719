package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/almers2006/tresor/internal/common"
)

// HTTPClient talks to the server's REST API. Request-level timeouts are the
// caller's concern (via ctx); the underlying http.Client has none.
type HTTPClient struct {
	baseURL     string
	accessToken string
	hc          *http.Client
}

// NewHTTPClient builds a client for the API at baseURL authenticating with
// the given bearer token.
func NewHTTPClient(baseURL, accessToken string) *HTTPClient {
	return &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		hc:          &http.Client{},
	}
}

func (c *HTTPClient) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	return req, nil
}

// mapStatus converts an unexpected response into the shared error taxonomy
// and drains the body for the message.
func mapStatus(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return common.ErrRateLimited
	case http.StatusRequestedRangeNotSatisfiable:
		return common.ErrRangeNotSatisfiable
	case http.StatusRequestEntityTooLarge:
		return common.ErrQuotaExceeded
	case http.StatusNotFound:
		return common.ErrNotFound
	case http.StatusUnauthorized:
		return common.ErrUnauthorized
	default:
		return fmt.Errorf("server: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mapStatus(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type startUploadRequest struct {
	FileSize int64 `json:"fileSize"`
}

type startUploadResponse struct {
	Handle string `json:"handle"`
}

func (c *HTTPClient) StartUpload(ctx context.Context, fileSize int64) (string, error) {
	var resp startUploadResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/uploads", &startUploadRequest{FileSize: fileSize}, &resp); err != nil {
		return "", err
	}
	return resp.Handle, nil
}

func (c *HTTPClient) UploadChunk(ctx context.Context, handle string, chunkID int32, data []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("handle", handle); err != nil {
		return err
	}
	if err := mw.WriteField("chunkId", strconv.FormatInt(int64(chunkID), 10)); err != nil {
		return err
	}
	fw, err := mw.CreateFormField("data")
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/uploads/chunks", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mapStatus(resp)
	}
	return nil
}

type finalizeUploadRequest struct {
	ParentHandle          string `json:"parentHandle"`
	EncryptedMetadata     string `json:"encryptedMetadata"`
	EncryptedFileCryptKey string `json:"encryptedFileCryptKey"`
	Signature             string `json:"signature"`
}

func (c *HTTPClient) FinalizeUpload(ctx context.Context, handle, parentHandle string, encryptedMetadata, encryptedFileCryptKey, signature []byte) error {
	req := &finalizeUploadRequest{
		ParentHandle:          parentHandle,
		EncryptedMetadata:     base64.StdEncoding.EncodeToString(encryptedMetadata),
		EncryptedFileCryptKey: base64.StdEncoding.EncodeToString(encryptedFileCryptKey),
		Signature:             base64.StdEncoding.EncodeToString(signature),
	}
	return c.doJSON(ctx, http.MethodPut, "/api/uploads/"+url.PathEscape(handle)+"/finalise", req, nil)
}

func (c *HTTPClient) DownloadChunk(ctx context.Context, handle string, chunkID int32) ([]byte, error) {
	path := fmt.Sprintf("/api/filesystem/%s/chunks/%d", url.PathEscape(handle), chunkID)

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, mapStatus(resp)
	}
	return io.ReadAll(resp.Body)
}

type createFolderRequest struct {
	ParentHandle      string `json:"parentHandle"`
	EncryptedMetadata string `json:"encryptedMetadata"`
}

type createFolderResponse struct {
	Handle string `json:"handle"`
}

func (c *HTTPClient) CreateFolder(ctx context.Context, parentHandle string, encryptedMetadata []byte) (string, error) {
	req := &createFolderRequest{
		ParentHandle:      parentHandle,
		EncryptedMetadata: base64.StdEncoding.EncodeToString(encryptedMetadata),
	}
	var resp createFolderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/filesystem/folders", req, &resp); err != nil {
		return "", err
	}
	return resp.Handle, nil
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

func (c *HTTPClient) ListItems(ctx context.Context, parentHandle string) ([]RemoteItem, error) {
	var resp listItemsResponse
	path := "/api/filesystem/items?parentHandle=" + url.QueryEscape(parentHandle)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	items := make([]RemoteItem, 0, len(resp.Data))
	for _, it := range resp.Data {
		item := RemoteItem{Handle: it.Handle, Size: it.Size}
		var err error
		if item.EncryptedMetadata, err = base64.StdEncoding.DecodeString(it.EncryptedMetadata); err != nil {
			return nil, fmt.Errorf("item %s: %w", it.Handle, err)
		}
		// Key and signature are empty for folders.
		if it.EncryptedFileCryptKey != "" {
			if item.EncryptedFileCryptKey, err = base64.StdEncoding.DecodeString(it.EncryptedFileCryptKey); err != nil {
				return nil, fmt.Errorf("item %s: %w", it.Handle, err)
			}
		}
		if it.Signature != "" {
			if item.Signature, err = base64.StdEncoding.DecodeString(it.Signature); err != nil {
				return nil, fmt.Errorf("item %s: %w", it.Handle, err)
			}
		}
		items = append(items, item)
	}
	return items, nil
}

type putMetadataRequest struct {
	Handle            string `json:"handle"`
	EncryptedMetadata string `json:"encryptedMetadata"`
}

func (c *HTTPClient) PutMetadata(ctx context.Context, updates []MetadataUpdate) error {
	req := make([]putMetadataRequest, 0, len(updates))
	for _, u := range updates {
		req = append(req, putMetadataRequest{
			Handle:            u.Handle,
			EncryptedMetadata: base64.StdEncoding.EncodeToString(u.EncryptedMetadata),
		})
	}
	return c.doJSON(ctx, http.MethodPut, "/api/filesystem/metadata", req, nil)
}

type usageResponse struct {
	BytesUsed int64 `json:"bytesUsed"`
}

func (c *HTTPClient) GetUsage(ctx context.Context) (int64, error) {
	var resp usageResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/filesystem/usage", nil, &resp); err != nil {
		return 0, err
	}
	return resp.BytesUsed, nil
}

var _ Client = (*HTTPClient)(nil)
