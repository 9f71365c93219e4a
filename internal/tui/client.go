package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fentz26/pomo/internal/controlplane"
	"github.com/fentz26/pomo/internal/engine"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Backend is what the TUI needs from the daemon.
type Backend interface {
	State() (engine.Snapshot, error)
	Apply(intent string) (engine.Snapshot, error)
	Acknowledge() error
	Dismiss() error
	UpdateSettings(p controlplane.SettingsPatch) (engine.Snapshot, error)
	Stats(days int) (*controlplane.Stats, error)
}

// Client wraps HTTP calls to the pomo API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

type stateEnvelope struct {
	State engine.Snapshot `json:"state"`
}

// State fetches the current timer snapshot.
func (c *Client) State() (engine.Snapshot, error) {
	body, err := c.do(http.MethodGet, "/api/state", nil)
	if err != nil {
		return engine.Snapshot{}, err
	}
	return decodeState(body)
}

// Apply sends start, pause, reset or skip.
func (c *Client) Apply(intent string) (engine.Snapshot, error) {
	body, err := c.do(http.MethodPost, "/api/"+intent, nil)
	if err != nil {
		return engine.Snapshot{}, err
	}
	return decodeState(body)
}

// Acknowledge confirms the pending notice.
func (c *Client) Acknowledge() error {
	_, err := c.do(http.MethodPost, "/api/notice/ack", nil)
	return err
}

// Dismiss rejects the pending notice.
func (c *Client) Dismiss() error {
	_, err := c.do(http.MethodPost, "/api/notice/dismiss", nil)
	return err
}

// UpdateSettings applies a partial settings change.
func (c *Client) UpdateSettings(p controlplane.SettingsPatch) (engine.Snapshot, error) {
	body, err := c.do(http.MethodPut, "/api/settings", p)
	if err != nil {
		return engine.Snapshot{}, err
	}
	return decodeState(body)
}

// Stats fetches heat-map data for the last days.
func (c *Client) Stats(days int) (*controlplane.Stats, error) {
	body, err := c.do(http.MethodGet, fmt.Sprintf("/api/stats?days=%d", days), nil)
	if err != nil {
		return nil, err
	}
	var stats controlplane.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// CheckHealth checks if the daemon is healthy
func (c *Client) CheckHealth() (bool, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var health controlplane.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, err
	}

	return health.OK, nil
}

func (c *Client) do(method, path string, data interface{}) ([]byte, error) {
	var reader io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error controlplane.APIError `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("API error: %s", apiErr.Error.Message)
		}
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	return body, nil
}

func decodeState(body []byte) (engine.Snapshot, error) {
	var env stateEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return engine.Snapshot{}, err
	}
	return env.State, nil
}
