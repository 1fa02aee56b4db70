package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// MaterialSummary fetches the inbound/used totals for a project.
func (c *Client) MaterialSummary(ctx context.Context, projectID int64) (*MaterialSummary, error) {
	var summary MaterialSummary
	path := fmt.Sprintf("/material/%d", projectID)
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// MaterialHistory lists a project's inbound history, optionally filtered.
func (c *Client) MaterialHistory(ctx context.Context, projectID int64, keyword string) ([]MaterialHistory, error) {
	q := url.Values{}
	if keyword != "" {
		q.Set("keyword", keyword)
	}

	var history []MaterialHistory
	path := fmt.Sprintf("/material/history/%d", projectID)
	if _, err := c.do(ctx, http.MethodGet, path, q, nil, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// MaterialHistoryDetail lists the inbound lines of one date.
func (c *Client) MaterialHistoryDetail(ctx context.Context, projectID int64, keyword, date string) ([]MaterialHistoryDetail, error) {
	q := url.Values{}
	if keyword != "" {
		q.Set("keyword", keyword)
	}
	q.Set("date", date)

	var details []MaterialHistoryDetail
	path := fmt.Sprintf("/material/history/detail/%d", projectID)
	if _, err := c.do(ctx, http.MethodGet, path, q, nil, &details); err != nil {
		return nil, err
	}
	return details, nil
}

// SearchMaterials finds materials by keyword for inbound entry.
func (c *Client) SearchMaterials(ctx context.Context, projectID int64, keyword string) ([]MaterialSearchResult, error) {
	q := url.Values{}
	q.Set("keyword", keyword)

	var results []MaterialSearchResult
	path := fmt.Sprintf("/material/inbound/%d", projectID)
	if _, err := c.do(ctx, http.MethodGet, path, q, nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// CreateMaterialInbound registers inbound material rows for a project.
func (c *Client) CreateMaterialInbound(ctx context.Context, projectID int64, items []MaterialInboundItem) (*Result, error) {
	path := fmt.Sprintf("/material/inbound/%d", projectID)
	return c.do(ctx, http.MethodPost, path, nil, items, nil)
}
