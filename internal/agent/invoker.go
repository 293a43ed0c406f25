package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/HendryAvila/aidev/internal/protocol"
)

// Invoker executes one tool call. The workflow never talks to the
// store directly; every mutation goes through the tool surface, so
// the same loop works in-process and against a remote server.
type Invoker interface {
	Call(ctx context.Context, tool string, args map[string]any) (protocol.Result, error)
}

// LocalInvoker dispatches in-process.
type LocalInvoker struct {
	dispatcher *protocol.Dispatcher
}

func NewLocalInvoker(d *protocol.Dispatcher) *LocalInvoker {
	return &LocalInvoker{dispatcher: d}
}

func (l *LocalInvoker) Call(_ context.Context, tool string, args map[string]any) (protocol.Result, error) {
	return l.dispatcher.Execute(tool, args), nil
}

// HTTPInvoker calls a remote tool server's execute endpoint.
type HTTPInvoker struct {
	baseURL string
	client  *http.Client
}

func NewHTTPInvoker(baseURL string, timeout time.Duration) *HTTPInvoker {
	return &HTTPInvoker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (h *HTTPInvoker) Call(ctx context.Context, tool string, args map[string]any) (protocol.Result, error) {
	body, err := json.Marshal(map[string]any{
		"tool":      tool,
		"arguments": args,
	})
	if err != nil {
		return protocol.Result{}, fmt.Errorf("encoding tool request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.baseURL+"/mcp/execute", bytes.NewReader(body))
	if err != nil {
		return protocol.Result{}, fmt.Errorf("building tool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return protocol.Result{}, fmt.Errorf("calling tool server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return protocol.Result{}, fmt.Errorf("tool server returned status %d", resp.StatusCode)
	}

	var result protocol.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return protocol.Result{}, fmt.Errorf("decoding tool response: %w", err)
	}
	return result, nil
}

// dataField extracts one field from a Result payload. Local results
// carry typed structs and remote ones decoded maps, so the lookup
// goes through a JSON round trip.
func dataField(data any, key string) (any, bool) {
	if m, ok := data.(map[string]any); ok {
		v, ok := m[key]
		return v, ok
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

func dataString(data any, key string) string {
	v, _ := dataField(data, key)
	s, _ := v.(string)
	return s
}
