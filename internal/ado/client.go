// Package ado is a thin Azure DevOps build API client: just enough to fetch
// a build's timeline and open a readable byte stream for a job log. It does
// no retry or backoff; transient remote failures surface to the caller.
package ado

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rxreyn3/azure-devops-mcp-sub001/internal/timeline"
)

const apiVersion = "7.1"

// Config holds Azure DevOps connection settings.
type Config struct {
	OrgURL  string // e.g. https://dev.azure.com/myorg
	Project string // project name or id
	PAT     string // personal access token
}

// Client calls the Azure DevOps build API.
type Client struct {
	HTTPClient *http.Client
	Config     Config
}

// NewClient returns a client with the given config. The HTTP client defaults
// to http.DefaultClient.
func NewClient(cfg Config) *Client {
	cfg.OrgURL = strings.TrimSuffix(cfg.OrgURL, "/")
	return &Client{Config: cfg, HTTPClient: http.DefaultClient}
}

// Wire shapes for the timeline response.
type wireTimeline struct {
	Records []wireRecord `json:"records"`
}

type wireRecord struct {
	ID         string      `json:"id"`
	ParentID   string      `json:"parentId"`
	Type       string      `json:"type"`
	Name       string      `json:"name"`
	State      string      `json:"state"`
	Result     string      `json:"result"`
	Log        *wireLogRef `json:"log"`
	StartTime  *time.Time  `json:"startTime"`
	FinishTime *time.Time  `json:"finishTime"`
}

type wireLogRef struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

// GetTimeline fetches the execution report for a build and returns its
// records as a flat list.
func (c *Client) GetTimeline(ctx context.Context, buildID int) ([]timeline.Record, error) {
	u := fmt.Sprintf("%s/%s/_apis/build/builds/%d/timeline?api-version=%s",
		c.Config.OrgURL, c.Config.Project, buildID, apiVersion)
	resp, err := c.get(ctx, u, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var wire wireTimeline
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}

	records := make([]timeline.Record, 0, len(wire.Records))
	for _, w := range wire.Records {
		rec := timeline.Record{
			ID:         w.ID,
			ParentID:   w.ParentID,
			Type:       timeline.RecordType(w.Type),
			Name:       w.Name,
			State:      timeline.State(w.State),
			Result:     w.Result,
			StartTime:  w.StartTime,
			FinishTime: w.FinishTime,
		}
		if w.Log != nil {
			rec.Log = &timeline.LogRef{ID: w.Log.ID, URL: w.Log.URL}
		}
		records = append(records, rec)
	}
	return records, nil
}

// OpenLog opens the byte stream for one build log. The caller owns the
// returned ReadCloser; the reported length is -1 when the server does not
// announce one.
func (c *Client) OpenLog(ctx context.Context, buildID, logID int) (io.ReadCloser, int64, error) {
	u := fmt.Sprintf("%s/%s/_apis/build/builds/%d/logs/%d?api-version=%s",
		c.Config.OrgURL, c.Config.Project, buildID, logID, apiVersion)
	resp, err := c.get(ctx, u, "text/plain")
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

// get issues an authenticated GET and fails on any non-200 status, reading a
// snippet of the body into the error for diagnosis.
func (c *Client) get(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if c.Config.PAT != "" {
		// PAT auth is basic auth with an empty user name.
		req.SetBasicAuth("", c.Config.PAT)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %s: %s", url, resp.Status, strings.TrimSpace(string(snippet)))
	}
	return resp, nil
}
