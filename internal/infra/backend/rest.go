package backend

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
)

// RESTHandle implements Handle against a PostgREST-style HTTPS backend.
// Each table maps to {endpoint}/{table}; filters become eq. query
// parameters and upserts use the merge-duplicates resolution header.
type RESTHandle struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// RESTFactory produces RESTHandles for the pool.
type RESTFactory struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// New builds a configured REST handle. Construction never performs I/O;
// a missing endpoint surfaces as per-call failures instead.
func (f *RESTFactory) New() (Handle, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &RESTHandle{
		endpoint: strings.TrimRight(f.Endpoint, "/"),
		apiKey:   f.APIKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Select returns rows matching filter, ordered by orderBy when set.
func (h *RESTHandle) Select(ctx context.Context, table string, filter Filter, orderBy string) ([]Row, error) {
	q := url.Values{}
	for col, val := range filter {
		q.Set(col, fmt.Sprintf("eq.%v", val))
	}
	if orderBy != "" {
		q.Set("order", restOrder(orderBy))
	}

	body, err := h.do(ctx, http.MethodGet, table, q, nil, "")
	if err != nil {
		return nil, err
	}

	var rows []Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return rows, nil
}

// Upsert inserts row, updating in place on a conflictKey collision.
func (h *RESTHandle) Upsert(ctx context.Context, table string, row Row, conflictKey string) error {
	q := url.Values{}
	q.Set("on_conflict", conflictKey)

	_, err := h.do(ctx, http.MethodPost, table, q, []Row{row},
		"resolution=merge-duplicates,return=minimal")
	return err
}

// Insert bulk-inserts rows. A no-op for an empty slice.
func (h *RESTHandle) Insert(ctx context.Context, table string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := h.do(ctx, http.MethodPost, table, nil, rows, "return=minimal")
	return err
}

// Delete removes all rows matching filter.
func (h *RESTHandle) Delete(ctx context.Context, table string, filter Filter) error {
	q := url.Values{}
	for col, val := range filter {
		q.Set(col, fmt.Sprintf("eq.%v", val))
	}
	_, err := h.do(ctx, http.MethodDelete, table, q, nil, "")
	return err
}

// Ping probes the backend root. Any response below 500 counts as
// reachable; the probe asserts connectivity, not authorization.
func (h *RESTHandle) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.endpoint+"/", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	h.setHeaders(req, "")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend probe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &StatusError{Code: resp.StatusCode, Body: "probe failed"}
	}
	return nil
}

// Close releases idle connections.
func (h *RESTHandle) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

func (h *RESTHandle) do(ctx context.Context, method, table string, q url.Values, payload any, prefer string) ([]byte, error) {
	if h.endpoint == "" {
		return nil, fmt.Errorf("backend endpoint not configured")
	}

	u := h.endpoint + "/" + table
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	h.setHeaders(req, prefer)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return body, nil
}

func (h *RESTHandle) setHeaders(req *http.Request, prefer string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if h.apiKey != "" {
		req.Header.Set("apikey", h.apiKey)
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
}

// restOrder converts "position asc" into PostgREST's "position.asc".
func restOrder(orderBy string) string {
	return strings.Join(strings.Fields(orderBy), ".")
}
