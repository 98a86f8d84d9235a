// File: internal/device/client.go
//
// Package device talks to the on-device automation agent over its HTTP
// JSON-RPC surface. It implements the DeviceDriver and ScreenCapturer
// collaborator interfaces; everything above this package sees normalized
// snapshots and never raw agent traffic.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/entropydec/gsrb/internal/config"
)

// Client drives one automation agent instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	nextID     atomic.Int64
}

// NewClient builds a driver for the agent at baseURL.
func NewClient(baseURL string, cfg config.DeviceConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger.Named("device").With(zap.String("agent", baseURL)),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// call performs one JSON-RPC round trip against the agent.
func (c *Client) call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	payload := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jsonrpc/0", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("agent rpc %s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent rpc %s: status %d: %s", method, resp.StatusCode, respBody)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("agent rpc %s: decode response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("agent rpc %s: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}

	c.logger.Debug("agent rpc complete",
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)))
	return rpcResp.Result, nil
}

// DumpHierarchy returns the raw XML UI hierarchy of the current screen.
func (c *Client) DumpHierarchy(ctx context.Context) (string, error) {
	result, err := c.call(ctx, "dumpWindowHierarchy", false)
	if err != nil {
		return "", err
	}
	var xml string
	if err := json.Unmarshal(result, &xml); err != nil {
		return "", fmt.Errorf("hierarchy dump is not a string: %w", err)
	}
	return xml, nil
}

// Tap clicks the given screen coordinate.
func (c *Client) Tap(ctx context.Context, x, y int) error {
	_, err := c.call(ctx, "click", x, y)
	return err
}

// LongTap presses and holds the given coordinate.
func (c *Client) LongTap(ctx context.Context, x, y int) error {
	_, err := c.call(ctx, "longClick", x, y)
	return err
}

// InputText focuses the element at the coordinate and types into it.
func (c *Client) InputText(ctx context.Context, x, y int, text string) error {
	if err := c.Tap(ctx, x, y); err != nil {
		return err
	}
	_, err := c.call(ctx, "setText", text)
	return err
}

// Swipe drags from one coordinate to another.
func (c *Client) Swipe(ctx context.Context, fx, fy, tx, ty int) error {
	_, err := c.call(ctx, "swipe", fx, fy, tx, ty, 20)
	return err
}

// Back presses the hardware back key.
func (c *Client) Back(ctx context.Context) error {
	_, err := c.call(ctx, "pressKey", "back")
	return err
}

// Screenshot grabs the current screen as PNG.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/screenshot/0", nil)
	if err != nil {
		return nil, fmt.Errorf("create screenshot request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent screenshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent screenshot: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
