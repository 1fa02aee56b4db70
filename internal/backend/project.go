package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Versions lists the selectable rail system versions.
func (c *Client) Versions(ctx context.Context) ([]VersionInfo, error) {
	var versions []VersionInfo
	if _, err := c.do(ctx, http.MethodGet, "/version", nil, nil, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// Projects runs the paginated project search. Blank parameters are omitted
// from the query string, mirroring the console's search form.
func (c *Client) Projects(ctx context.Context, params ProjectListParams) (*Page[ProjectSummary], error) {
	q := url.Values{}
	if params.Keyword != "" {
		q.Set("keyword", params.Keyword)
	}
	if params.Page != nil {
		q.Set("page", strconv.Itoa(*params.Page))
	}
	if params.Size != nil {
		q.Set("size", strconv.Itoa(*params.Size))
	}
	if params.VersionID != 0 {
		q.Set("versionId", strconv.FormatInt(params.VersionID, 10))
	}
	if params.StartDate != "" {
		q.Set("startDate", params.StartDate)
	}
	if params.EndDate != "" {
		q.Set("endDate", params.EndDate)
	}
	if params.Sort != "" {
		q.Set("sort", params.Sort)
	}

	var page Page[ProjectSummary]
	if _, err := c.do(ctx, http.MethodGet, "/project", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ProjectSortOptions lists the server-defined sort keys for project search.
func (c *Client) ProjectSortOptions(ctx context.Context) ([]SortOption, error) {
	var options []SortOption
	if _, err := c.do(ctx, http.MethodGet, "/project/search/sort", nil, nil, &options); err != nil {
		return nil, err
	}
	return options, nil
}

// CreateProject registers a new project.
func (c *Client) CreateProject(ctx context.Context, req NewProjectRequest) (*Result, error) {
	return c.do(ctx, http.MethodPost, "/project/new", nil, req, nil)
}

// Project fetches one project's detail.
func (c *Client) Project(ctx context.Context, projectID int64) (*ProjectDetail, error) {
	var detail ProjectDetail
	path := fmt.Sprintf("/project/%d", projectID)
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// StraightRails lists a project's straight rails.
func (c *Client) StraightRails(ctx context.Context, projectID int64) ([]StraightRail, error) {
	var rails []StraightRail
	path := fmt.Sprintf("/project/%d/straight", projectID)
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &rails); err != nil {
		return nil, err
	}
	return rails, nil
}

// BranchRails lists a project's branch rails.
func (c *Client) BranchRails(ctx context.Context, projectID int64) ([]BranchRail, error) {
	var rails []BranchRail
	path := fmt.Sprintf("/project/%d/branch", projectID)
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &rails); err != nil {
		return nil, err
	}
	return rails, nil
}

// RegisterBranches registers branch rails for a project by type and quantity.
func (c *Client) RegisterBranches(ctx context.Context, projectID int64, items []BranchRegisterItem) (*Result, error) {
	path := fmt.Sprintf("/project/%d/branch/register", projectID)
	return c.do(ctx, http.MethodPost, path, nil, items, nil)
}

// UpdateBranchRail changes a branch rail's total quantity.
func (c *Client) UpdateBranchRail(ctx context.Context, projectBranchID int64, req UpdateRailRequest) (*Result, error) {
	path := fmt.Sprintf("/project/branch/%d", projectBranchID)
	return c.do(ctx, http.MethodPatch, path, nil, req, nil)
}

// DeleteBranchRail removes a branch rail from its project.
func (c *Client) DeleteBranchRail(ctx context.Context, projectBranchID int64) (*Result, error) {
	path := fmt.Sprintf("/project/branch/%d", projectBranchID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// UpdateStraightRail changes a straight rail's total quantity.
func (c *Client) UpdateStraightRail(ctx context.Context, straightRailID int64, req UpdateRailRequest) (*Result, error) {
	path := fmt.Sprintf("/project/straight/%d", straightRailID)
	return c.do(ctx, http.MethodPatch, path, nil, req, nil)
}

// DeleteStraightRail removes a straight rail from its project.
func (c *Client) DeleteStraightRail(ctx context.Context, straightRailID int64) (*Result, error) {
	path := fmt.Sprintf("/project/straight/%d", straightRailID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}
