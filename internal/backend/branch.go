package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// LatestBranchBom fetches the most recent BOM registered for a branch code
// within a version.
func (c *Client) LatestBranchBom(ctx context.Context, branchCode string, versionInfoID int64) (*BranchBomInfo, error) {
	q := url.Values{}
	q.Set("branchCode", branchCode)
	q.Set("versionInfoId", strconv.FormatInt(versionInfoID, 10))

	var info BranchBomInfo
	if _, err := c.do(ctx, http.MethodGet, "/branch/bom/latest", q, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// BranchBom fetches the BOM lines of a known branch type.
func (c *Client) BranchBom(ctx context.Context, branchTypeID int64) ([]BomLine, error) {
	var lines []BomLine
	path := fmt.Sprintf("/branch/bom/%d", branchTypeID)
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// UploadBranchBom uploads a new BOM spreadsheet for a branch code. An already
// uploaded product image URL may be attached. Returns the server-assigned
// branch type id.
func (c *Client) UploadBranchBom(ctx context.Context, branchCode string, versionInfoID int64, imageURL, filename string, file io.Reader) (*UploadBomResult, error) {
	q := url.Values{}
	q.Set("branchCode", branchCode)
	q.Set("versionInfoId", strconv.FormatInt(versionInfoID, 10))
	if imageURL != "" {
		q.Set("imageUrl", imageURL)
	}

	var result UploadBomResult
	if _, err := c.doMultipart(ctx, http.MethodPost, "/branch/bom/upload", q, "file", filename, file, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BranchCapacities fetches the per-branch production status of a project.
func (c *Client) BranchCapacities(ctx context.Context, projectID int64) ([]BranchCapacity, error) {
	var capacities []BranchCapacity
	path := fmt.Sprintf("/project/%d/branch/capacity", projectID)
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &capacities); err != nil {
		return nil, err
	}
	return capacities, nil
}

// NormalStraightTypes lists the registrable normal straight-rail types.
func (c *Client) NormalStraightTypes(ctx context.Context) ([]StraightType, error) {
	var types []StraightType
	if _, err := c.do(ctx, http.MethodGet, "/straight/type/normal", nil, nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

// LoopStraightTypes lists the registrable loop straight-rail types.
func (c *Client) LoopStraightTypes(ctx context.Context) ([]StraightType, error) {
	var types []StraightType
	if _, err := c.do(ctx, http.MethodGet, "/straight/type/loop", nil, nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}
