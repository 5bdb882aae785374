// Package postgrest talks to a PostgREST endpoint such as the one Supabase
// exposes under /rest/v1.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tasky/internal/store"
)

const restPath = "/rest/v1/"

// Client implements store.Client over the PostgREST HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New builds a client for baseURL (the project URL, without /rest/v1).
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

var _ store.Client = (*Client)(nil)

func (c *Client) Select(ctx context.Context, rel store.Relation, dest any, q store.Query) error {
	params := filterParams(q.Filters)
	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	} else {
		params.Set("select", "*")
	}
	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts = append(parts, o.Column+"."+dir)
		}
		params.Set("order", strings.Join(parts, ","))
	}
	return c.do(ctx, "select", rel, http.MethodGet, params, nil, "", dest)
}

func (c *Client) Insert(ctx context.Context, rel store.Relation, rows any) error {
	body, err := json.Marshal(rows)
	if err != nil {
		return &store.Error{Op: "insert", Relation: rel, Message: err.Error(), Err: err}
	}
	return c.do(ctx, "insert", rel, http.MethodPost, nil, body, "return=representation", rows)
}

func (c *Client) Update(ctx context.Context, rel store.Relation, patch store.Patch, filters ...store.Filter) error {
	if len(filters) == 0 {
		return &store.Error{Op: "update", Relation: rel, Message: "update without filter refused"}
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return &store.Error{Op: "update", Relation: rel, Message: err.Error(), Err: err}
	}
	return c.do(ctx, "update", rel, http.MethodPatch, filterParams(filters), body, "return=minimal", nil)
}

func (c *Client) Delete(ctx context.Context, rel store.Relation, dest any, filters ...store.Filter) error {
	if len(filters) == 0 {
		return &store.Error{Op: "delete", Relation: rel, Message: "delete without filter refused"}
	}
	return c.do(ctx, "delete", rel, http.MethodDelete, filterParams(filters), nil, "return=representation", dest)
}

func (c *Client) do(ctx context.Context, op string, rel store.Relation, method string, params url.Values, body []byte, prefer string, dest any) error {
	endpoint := c.baseURL + restPath + string(rel)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &store.Error{Op: op, Relation: rel, Message: err.Error(), Err: err}
	}
	setAuthHeaders(req, c.apiKey)
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &store.Error{Op: op, Relation: rel, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &store.Error{Op: op, Relation: rel, Message: fmt.Sprintf("read response: %v", err), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(op, rel, resp.StatusCode, payload)
	}
	if dest == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return &store.Error{Op: op, Relation: rel, Message: fmt.Sprintf("decode response: %v", err), Err: err}
	}
	return nil
}

// apiError is the body PostgREST sends with a failed request.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func decodeError(op string, rel store.Relation, status int, payload []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(payload, &apiErr); err != nil || apiErr.Message == "" {
		msg := strings.TrimSpace(string(payload))
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &store.Error{Op: op, Relation: rel, Code: fmt.Sprint(status), Message: msg}
	}
	code := apiErr.Code
	if code == "" {
		code = fmt.Sprint(status)
	}
	return &store.Error{Op: op, Relation: rel, Code: code, Message: apiErr.Message}
}

func setAuthHeaders(req *http.Request, apiKey string) {
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func filterParams(filters []store.Filter) url.Values {
	params := url.Values{}
	for _, f := range filters {
		params.Add(f.Column, filterValue(f))
	}
	return params
}

func filterValue(f store.Filter) string {
	if f.Op == store.OpIn {
		values, _ := f.Value.([]any)
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = fmt.Sprint(v)
		}
		return "in.(" + strings.Join(parts, ",") + ")"
	}
	return "eq." + fmt.Sprint(f.Value)
}
