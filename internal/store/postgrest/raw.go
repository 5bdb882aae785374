package postgrest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tasky/internal/store"
)

// RawDeleter removes one row by id with a bare HTTP DELETE. It shares
// nothing with Client: own credentials, own transport.
type RawDeleter struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewRawDeleter(baseURL, apiKey string, timeout time.Duration) *RawDeleter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RawDeleter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (d *RawDeleter) Name() string { return "fallback" }

// DeleteByID succeeds on any 2xx answer.
func (d *RawDeleter) DeleteByID(ctx context.Context, rel store.Relation, id uint) error {
	endpoint := fmt.Sprintf("%s%s%s?id=eq.%d", d.baseURL, restPath, rel, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return &store.Error{Op: "raw delete", Relation: rel, Message: err.Error(), Err: err}
	}
	setAuthHeaders(req, d.apiKey)
	req.Header.Set("Prefer", "return=representation")

	resp, err := d.http.Do(req)
	if err != nil {
		return &store.Error{Op: "raw delete", Relation: rel, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(resp.Body)
		return decodeError("raw delete", rel, resp.StatusCode, payload)
	}
	return nil
}
