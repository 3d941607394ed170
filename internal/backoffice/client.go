package backoffice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/partnergate/partnergate/internal/config"
)

// ErrRejected is returned when the back office accepted the request but
// answered with ok=false.
var ErrRejected = errors.New("backoffice: request rejected")

// response is the uniform envelope every back office endpoint returns.
type response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// Client talks to the partner back office RPC API. Every call carries
// the tenant's integration token, so one client serves all tenants.
type Client struct {
	log        *slog.Logger
	httpClient *http.Client
	baseURL    string
}

func NewClient(cfg config.BackOfficeConfig) *Client {
	return &Client{
		log:        slog.With(slog.String("service", "backoffice")),
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// call posts payload to an RPC endpoint such as "Partner/Get" and
// decodes the result envelope into out. A nil out discards the result.
func (c *Client) call(ctx context.Context, token, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("call %s: unexpected status %d", endpoint, resp.StatusCode)
	}

	var env response
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	if !env.OK {
		return fmt.Errorf("%w: %s: %s", ErrRejected, endpoint, env.Description)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", endpoint, err)
	}
	return nil
}
