package backend

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// UploadFile sends a file to the generic upload endpoint, typed by purpose.
func (c *Client) UploadFile(ctx context.Context, uploadType FileUploadType, filename string, file io.Reader) (*UploadedFile, error) {
	q := url.Values{}
	q.Set("type", string(uploadType))

	var uploaded UploadedFile
	if _, err := c.doMultipart(ctx, http.MethodPost, "/file", q, "file", filename, file, &uploaded); err != nil {
		return nil, err
	}
	return &uploaded, nil
}

// DeleteFile removes a previously uploaded file by its URL.
func (c *Client) DeleteFile(ctx context.Context, fileURL string) (*Result, error) {
	q := url.Values{}
	q.Set("fileUrl", fileURL)
	return c.do(ctx, http.MethodDelete, "/file", q, nil, nil)
}
