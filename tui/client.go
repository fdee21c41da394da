// Package tui is a terminal kanban client for the board API.
package tui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/kaitranntt/jobhunt-sub002/domain"
)

// Client talks to the board API service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates an API client for the given base URL and bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type applicationsPage struct {
	Applications  []domain.Application `json:"applications"`
	NextPageToken string               `json:"nextPageToken"`
}

// FetchApplications retrieves the full application collection, following
// pagination until the server reports no further pages.
func (c *Client) FetchApplications(ctx context.Context) ([]domain.Application, error) {
	var all []domain.Application
	pageToken := ""
	for {
		endpoint := c.baseURL + "/api/applications"
		if pageToken != "" {
			endpoint += "?pageToken=" + url.QueryEscape(pageToken)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch applications: %s: %s", resp.Status, strings.TrimSpace(string(body)))
		}
		var page applicationsPage
		if err := sonic.Unmarshal(body, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Applications...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

// UpdateStatus moves an application to the given status. It satisfies
// kanban.UpdateStatusFunc.
func (c *Client) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	payload, err := sonic.Marshal(map[string]string{"target": string(status)})
	if err != nil {
		return err
	}
	endpoint := c.baseURL + "/api/applications/" + url.PathEscape(id) + "/move"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("move application: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
