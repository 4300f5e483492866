// Package apiclient is a thin client for the cip-api HTTP surface.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joelkehle/cip-designer/internal/catalog"
	"github.com/joelkehle/cip-designer/internal/cip"
	"github.com/joelkehle/cip-designer/internal/store"
)

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
	}
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+" "+v)
	}
	return fmt.Sprintf("api %d %s: %s (%s)", e.Status, e.Code, e.Message, strings.Join(parts, "; "))
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			// Enhanced designs wait on the model.
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, http.Header, error) {
	var body io.Reader
	if payload != nil {
		blob, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, err
		}
		body = bytes.NewReader(blob)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	blob, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, resp.Header, decodeError(method, path, resp.StatusCode, blob)
	}
	return blob, resp.Header, nil
}

func decodeError(method, path string, status int, blob []byte) error {
	var env struct {
		Error struct {
			Code    string            `json:"code"`
			Message string            `json:"message"`
			Fields  map[string]string `json:"fields"`
		} `json:"error"`
	}
	if err := json.Unmarshal(blob, &env); err != nil || env.Error.Code == "" {
		return &APIError{Status: status, Code: "http", Message: fmt.Sprintf("%s %s: %s", method, path, strings.TrimSpace(string(blob)))}
	}
	return &APIError{Status: status, Code: env.Error.Code, Message: env.Error.Message, Fields: env.Error.Fields}
}

func (c *Client) getJSON(ctx context.Context, method, path string, payload, out any) error {
	blob, _, err := c.do(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(blob, out)
}

func (c *Client) Health(ctx context.Context) error {
	return c.getJSON(ctx, http.MethodGet, "/health", nil, nil)
}

// CreateDesign posts a raw design payload; omitted fields take server defaults.
func (c *Client) CreateDesign(ctx context.Context, payload map[string]any, useLLM bool) (cip.DesignResult, error) {
	path := "/api/design/cip"
	if useLLM {
		path += "?useLLM=true"
	}
	var out cip.DesignResult
	err := c.getJSON(ctx, http.MethodPost, path, payload, &out)
	return out, err
}

func (c *Client) ListDesigns(ctx context.Context, limit int) ([]store.DesignRun, error) {
	path := "/api/design"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []store.DesignRun
	err := c.getJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) GetDesign(ctx context.Context, id string) (store.DesignRun, error) {
	var out store.DesignRun
	err := c.getJSON(ctx, http.MethodGet, "/api/design/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) DeleteDesign(ctx context.Context, id string) error {
	return c.getJSON(ctx, http.MethodDelete, "/api/design/"+url.PathEscape(id), nil, nil)
}

func (c *Client) DeleteAllDesigns(ctx context.Context) (int, error) {
	var out struct {
		DeletedCount int `json:"deletedCount"`
	}
	err := c.getJSON(ctx, http.MethodDelete, "/api/design", nil, &out)
	return out.DeletedCount, err
}

// Export returns the rendered document and the server-suggested filename.
func (c *Client) Export(ctx context.Context, id, format string) ([]byte, string, error) {
	path := "/api/design/" + url.PathEscape(id) + "/export"
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}
	blob, header, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}
	return blob, filenameFrom(header.Get("Content-Disposition")), nil
}

func filenameFrom(disposition string) string {
	_, rest, ok := strings.Cut(disposition, "filename=")
	if !ok {
		return ""
	}
	return strings.Trim(rest, `"`)
}

func (c *Client) Catalog(ctx context.Context) ([]catalog.Entry, error) {
	var out struct {
		Entries []catalog.Entry `json:"entries"`
	}
	err := c.getJSON(ctx, http.MethodGet, "/api/catalog", nil, &out)
	return out.Entries, err
}

func (c *Client) Validate(ctx context.Context, params map[string]any, systemType string) ([]string, error) {
	var out struct {
		Warnings []string `json:"warnings"`
	}
	err := c.getJSON(ctx, http.MethodPost, "/api/ai/validate", map[string]any{
		"parameters": params,
		"systemType": systemType,
	}, &out)
	return out.Warnings, err
}
