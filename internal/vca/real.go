package vca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// RealClient is the production VCA client: charm operations go over a
// small JSON-RPC-ish HTTP API, and hook-status pushes arrive over a
// long-lived websocket subscription, unlike the original's bespoke
// N2VC RPC transport.
type RealClient struct {
	baseURL  string
	wsURL    string
	httpc    *http.Client
	dialer   *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	updates chan StatusUpdate
}

// NewRealClient builds a RealClient talking to a VCA host/port pair.
func NewRealClient(host string, port int) *RealClient {
	return &RealClient{
		baseURL: fmt.Sprintf("https://%s:%d", host, port),
		wsURL:   fmt.Sprintf("wss://%s:%d/status", host, port),
		httpc:   &http.Client{},
		dialer:  websocket.DefaultDialer,
		updates: make(chan StatusUpdate, 256),
	}
}

func (c *RealClient) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return fmt.Errorf("vca: parse status url: %w", err)
	}
	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("vca: connect status stream: %w", err)
	}
	c.conn = conn
	go c.readLoop(conn)
	return nil
}

func (c *RealClient) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var update StatusUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			continue
		}
		c.updates <- update
	}
}

func (c *RealClient) FormatApplicationName(nsName, vnfIndex, vnfdName string) string {
	return fmt.Sprintf("%s-%s-%s", nsName, vnfIndex, vnfdName)
}

func (c *RealClient) DeployCharm(ctx context.Context, modelName, applicationName, charmPath string, params map[string]interface{}) error {
	return c.post(ctx, "/deploy", map[string]interface{}{
		"model": modelName, "application": applicationName, "charm": charmPath, "params": params,
	})
}

func (c *RealClient) RemoveCharm(ctx context.Context, modelName, applicationName string) error {
	return c.post(ctx, "/remove", map[string]interface{}{
		"model": modelName, "application": applicationName,
	})
}

func (c *RealClient) ExecutePrimitive(ctx context.Context, modelName, applicationName, primitive string, params map[string]interface{}) (map[string]interface{}, error) {
	var result map[string]interface{}
	err := c.postResult(ctx, "/execute", map[string]interface{}{
		"model": modelName, "application": applicationName, "primitive": primitive, "params": params,
	}, &result)
	return result, err
}

func (c *RealClient) Updates() <-chan StatusUpdate { return c.updates }

func (c *RealClient) post(ctx context.Context, path string, body map[string]interface{}) error {
	return c.postResult(ctx, path, body, nil)
}

func (c *RealClient) postResult(ctx context.Context, path string, body map[string]interface{}, result interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("vca: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("vca: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("vca: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vca: %s returned status %d", path, resp.StatusCode)
	}
	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}
