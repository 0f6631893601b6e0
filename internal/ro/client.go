// Package ro implements the HTTP client used to talk to the Resource
// Orchestrator. Its shape — functional options, a single doRequest
// choke point, and a WaitFor*Ready deadline-bound poll loop — follows
// the o2dms client in this codebase's o2-client module.
package ro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/lcmerrors"
)

// NS status values RO reports for a scenario instance, matching the
// strings ROclient.check_ns_status recognizes.
const (
	NsStatusScheduled = "SCHEDULED"
	NsStatusBuild     = "BUILD"
	NsStatusActive    = "ACTIVE"
	NsStatusError     = "ERROR"
)

// Client is the RO HTTP client.
type Client struct {
	baseURL    string
	tenant     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the client's http.Client, e.g. to point at
// a test server's transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTenant sets the RO tenant path segment.
func WithTenant(tenant string) Option {
	return func(c *Client) { c.tenant = tenant }
}

// NewClient builds a Client against baseURL (e.g.
// "http://ro:9090/openmano").
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Item is a generic RO resource envelope: {"uuid": "...", ...}.
type Item map[string]interface{}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	u := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ro: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("ro: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ro: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &lcmerrors.ROClientError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("ro: decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) resourcePath(resourceType string, rest ...string) string {
	p := fmt.Sprintf("/%s/%s", c.tenant, resourceType)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// Create registers a new resource (vim, vnfd, nsd, ns, sdn) with RO,
// returning the created item (with its "uuid" populated).
func (c *Client) Create(ctx context.Context, resourceType string, descriptor map[string]interface{}, extra map[string]interface{}) (Item, error) {
	body := map[string]interface{}{resourceType: descriptor}
	for k, v := range extra {
		body[k] = v
	}
	var result Item
	if err := c.doRequest(ctx, http.MethodPost, c.resourcePath(resourceType), body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Edit updates an existing resource in place.
func (c *Client) Edit(ctx context.Context, resourceType, id string, descriptor map[string]interface{}) (Item, error) {
	var result Item
	if err := c.doRequest(ctx, http.MethodPut, c.resourcePath(resourceType, id), map[string]interface{}{resourceType: descriptor}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a resource. A 404 is surfaced as *lcmerrors.ROClientError
// so callers can treat "already gone" as success.
func (c *Client) Delete(ctx context.Context, resourceType, id string) error {
	return c.doRequest(ctx, http.MethodDelete, c.resourcePath(resourceType, id), nil, nil)
}

// Show fetches a resource's current state.
func (c *Client) Show(ctx context.Context, resourceType, id string) (Item, error) {
	var result Item
	if err := c.doRequest(ctx, http.MethodGet, c.resourcePath(resourceType, id), nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetList searches a resource type by a simple equality filter (e.g.
// {"osm_id": "..."}).
func (c *Client) GetList(ctx context.Context, resourceType string, filter map[string]string) ([]Item, error) {
	q := url.Values{}
	for k, v := range filter {
		q.Set(k, v)
	}
	path := c.resourcePath(resourceType)
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	var result []Item
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// AttachDatacenter binds a VIM account's credentials into RO's
// tenant-level datacenter association.
func (c *Client) AttachDatacenter(ctx context.Context, roVimID string, descriptor map[string]interface{}) error {
	path := fmt.Sprintf("/%s/datacenters/%s/attach", c.tenant, roVimID)
	return c.doRequest(ctx, http.MethodPost, path, map[string]interface{}{"datacenter": descriptor}, nil)
}

// DetachDatacenter undoes AttachDatacenter. A 404 means it was
// already detached.
func (c *Client) DetachDatacenter(ctx context.Context, roVimID string) error {
	path := fmt.Sprintf("/%s/datacenters/%s/detach", c.tenant, roVimID)
	return c.doRequest(ctx, http.MethodPost, path, nil, nil)
}

// NsStatus reports a scenario instance's coarse status plus any
// detail string, mirroring ROclient.check_ns_status's (status, detail)
// return.
type NsStatus struct {
	Status string
	Detail string
}

// CheckNsStatus classifies an RO "show ns" response into the
// SCHEDULED/BUILD/ACTIVE/ERROR vocabulary.
func CheckNsStatus(item Item) NsStatus {
	status, _ := item["status"].(string)
	detail, _ := item["status_detail"].(string)
	switch status {
	case NsStatusActive, NsStatusBuild, NsStatusError, NsStatusScheduled:
		return NsStatus{Status: status, Detail: detail}
	default:
		return NsStatus{Status: NsStatusBuild, Detail: detail}
	}
}

// GetNsVnfInfo fetches per-VNF network info (IPs, VDU vim-ids) for an
// ACTIVE scenario instance. RO answers 409 while the scenario is still
// settling; callers should treat that as "not ready yet" and retry.
func (c *Client) GetNsVnfInfo(ctx context.Context, nsID string) (map[string]interface{}, error) {
	var result map[string]interface{}
	if err := c.doRequest(ctx, http.MethodGet, c.resourcePath("ns", nsID, "vnf-info"), nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// WaitForNsActive polls Show until the scenario reaches ACTIVE,
// reports ERROR, or timeout elapses — the direct analogue of
// o2dms.Client.WaitForDeploymentReady, and of the original's 2-hour
// ns_instantiate poll loop.
func (c *Client) WaitForNsActive(ctx context.Context, nsID string, timeout time.Duration, pollInterval time.Duration, onPoll func(NsStatus)) (NsStatus, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		item, err := c.Show(ctx, "ns", nsID)
		if err != nil {
			return NsStatus{}, err
		}
		status := CheckNsStatus(item)
		if onPoll != nil {
			onPoll(status)
		}
		switch status.Status {
		case NsStatusActive:
			return status, nil
		case NsStatusError:
			return status, fmt.Errorf("ro: ns %s reported ERROR: %s", nsID, status.Detail)
		}

		select {
		case <-ctx.Done():
			return NsStatus{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return NsStatus{}, fmt.Errorf("ro: timeout waiting for ns %s to become ready", nsID)
}
