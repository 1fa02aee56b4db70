package backend

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// Download is a binary payload fetched from the backend together with the
// filename recovered from its Content-Disposition header.
type Download struct {
	Filename    string
	ContentType string
	Body        []byte
}

// QuantityList downloads a project's quantity-list spreadsheet. fallbackName
// is used when no usable filename can be recovered from the response.
func (c *Client) QuantityList(ctx context.Context, projectID int64, fallbackName string) (*Download, error) {
	path := fmt.Sprintf("/project/%d/quantity", projectID)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read download body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.apiError(resp.StatusCode, body)
	}

	return &Download{
		Filename:    FilenameFromDisposition(resp.Header.Get("Content-Disposition"), fallbackName),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// FilenameFromDisposition recovers the suggested filename from a
// Content-Disposition header value. Preference order: RFC 5987 filename*
// (handled by mime.ParseMediaType), then plain filename with percent-decoding.
// Korean backends occasionally emit legacy EUC-KR bytes, so a non-UTF-8 name
// gets one decode attempt before giving up. Returns fallback when nothing
// usable is present.
func FilenameFromDisposition(header, fallback string) string {
	if header == "" {
		return fallback
	}

	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return fallback
	}

	name := params["filename"]
	if name == "" {
		return fallback
	}

	// PathUnescape, not QueryUnescape: a literal '+' in the filename must
	// survive the percent-decoding.
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}

	if !utf8.ValidString(name) {
		if decoded, _, err := transform.String(korean.EUCKR.NewDecoder(), name); err == nil && utf8.ValidString(decoded) {
			name = decoded
		} else {
			return fallback
		}
	}

	return name
}
