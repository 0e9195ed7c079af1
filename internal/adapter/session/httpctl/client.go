package httpctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/samber/lo"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/session"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
)

// Client talks to a running player through its token file.
type Client struct {
	tokenFile string
	http      *http.Client
}

// NewClient creates a client for the endpoint published in tokenFile.
func NewClient(tokenFile string, timeout time.Duration) *Client {
	return &Client{
		tokenFile: tokenFile,
		http:      &http.Client{Timeout: timeout},
	}
}

func (c *Client) endpoint() (Endpoint, error) {
	data, err := os.ReadFile(c.tokenFile)
	if err != nil {
		return Endpoint{}, errors.Join(domain.ErrBridgeUnavailable, err)
	}
	var e Endpoint
	if err := json.Unmarshal(data, &e); err != nil || e.Addr == "" || e.Token == "" {
		return Endpoint{}, errors.Join(domain.ErrBridgeUnavailable, fmt.Errorf("malformed token file %s", c.tokenFile))
	}
	return e, nil
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	e, err := c.endpoint()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://"+e.Addr+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+e.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Join(domain.ErrBridgeUnavailable, err)
	}
	return resp, nil
}

// Send triggers a control action on the running player.
func (c *Client) Send(ctx context.Context, action string) error {
	if !lo.Contains(session.Actions, action) {
		return fmt.Errorf("unknown action %q", action)
	}

	resp, err := c.do(ctx, http.MethodPost, "/control/"+action)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("control %s: unexpected status %d", action, resp.StatusCode)
	}
	return nil
}

// State fetches the player state.
func (c *Client) State(ctx context.Context) (StateView, error) {
	resp, err := c.do(ctx, http.MethodGet, "/state")
	if err != nil {
		return StateView{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StateView{}, fmt.Errorf("state: unexpected status %d", resp.StatusCode)
	}

	var view StateView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return StateView{}, fmt.Errorf("state: %w", err)
	}
	return view, nil
}
