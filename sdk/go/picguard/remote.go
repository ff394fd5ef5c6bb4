package picguard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemoteClient talks to a running picguard bridge over HTTP.
// Fail-closed: if the bridge cannot be reached, Check returns a blocked
// result rather than an allow.
type RemoteClient struct {
	baseURL string
	httpc   *http.Client
}

// NewRemote creates a client for the bridge at baseURL
// (e.g. "http://127.0.0.1:8787").
func NewRemote(baseURL string) *RemoteClient {
	return &RemoteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 5 * time.Second},
	}
}

type verifyRequest struct {
	ToolName string         `json:"tool_name"`
	ToolArgs map[string]any `json:"tool_args"`
}

type verifyResponse struct {
	Allowed bool `json:"allowed"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

// Check sends a tool invocation to the bridge for verification.
func (c *RemoteClient) Check(ctx context.Context, toolName string, toolArgs map[string]any) Result {
	body, err := json.Marshal(verifyRequest{ToolName: toolName, ToolArgs: toolArgs})
	if err != nil {
		return unreachable(fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return unreachable(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return unreachable(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return unreachable(err)
	}

	var vr verifyResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return unreachable(fmt.Errorf("invalid bridge response: %w", err))
	}

	if vr.Allowed {
		return Result{Allowed: true}
	}
	out := Result{Code: "PIC_INTERNAL_ERROR", Message: "blocked without error body"}
	if vr.Error != nil {
		out = Result{Code: vr.Error.Code, Message: vr.Error.Message, Details: vr.Error.Details}
	}
	return out
}

// Wrap returns a ToolFunc gated by the remote bridge.
func (c *RemoteClient) Wrap(toolName string, fn ToolFunc) ToolFunc {
	return func(ctx context.Context, args map[string]any) (any, error) {
		result := c.Check(ctx, toolName, args)
		if !result.Allowed {
			return nil, &BlockedError{
				Tool:    toolName,
				Code:    result.Code,
				Message: result.Message,
				Details: result.Details,
			}
		}
		return fn(ctx, args)
	}
}

func unreachable(err error) Result {
	return Result{
		Code:    "PIC_INTERNAL_ERROR",
		Message: fmt.Sprintf("bridge unreachable: %v", err),
	}
}
