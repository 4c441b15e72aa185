package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DaemonClient talks to the collector daemon's operations HTTP API
type DaemonClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDaemonClient creates a client for one daemon address
func NewDaemonClient(baseURL string) *DaemonClient {
	return &DaemonClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *DaemonClient) do(method, path string, out any) error {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	if out != nil {
		return json.Unmarshal(body, out)
	}
	return nil
}

// Health fetches the daemon health report
func (c *DaemonClient) Health() (map[string]any, error) {
	var out map[string]any
	if err := c.do(http.MethodGet, "/health", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// QueueStatus fetches the queue census
func (c *DaemonClient) QueueStatus() (map[string]any, error) {
	var out map[string]any
	if err := c.do(http.MethodGet, "/queue/status", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SystemInfo fetches runtime information
func (c *DaemonClient) SystemInfo() (map[string]any, error) {
	var out map[string]any
	if err := c.do(http.MethodGet, "/system/info", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Collect triggers a manual collection for a shop
func (c *DaemonClient) Collect(shopRef string) (map[string]any, error) {
	var out map[string]any
	if err := c.do(http.MethodPost, "/order/collect/"+shopRef, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Authorize exchanges an authorization code for shop tokens
func (c *DaemonClient) Authorize(shopRef, code string) (map[string]any, error) {
	var out map[string]any
	if err := c.do(http.MethodPost, "/shop/"+shopRef+"/authorize?code="+url.QueryEscape(code), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrder fetches one persisted order
func (c *DaemonClient) GetOrder(ref string) (map[string]any, error) {
	var out map[string]any
	if err := c.do(http.MethodGet, "/order/"+ref, &out); err != nil {
		return nil, err
	}
	return out, nil
}
