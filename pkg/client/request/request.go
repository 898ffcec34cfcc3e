// Package request is a thin HTTP client wrapper used by every CLI
// subcommand to talk to the daemon.
package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client posts/gets JSON against a daemon base URL.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New builds a Client against baseURL with a sane default timeout.
func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

// PostJSON posts body as JSON to path and decodes the JSON response into
// out (if non-nil).
func (c *Client) PostJSON(path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	resp, err := c.HTTP.Post(c.BaseURL+path, "application/json", &buf)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// GetJSON issues a GET against path and decodes the JSON response into
// out (if non-nil).
func (c *Client) GetJSON(path string, out interface{}) error {
	resp, err := c.HTTP.Get(c.BaseURL + path)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
