package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// transient gateway statuses retried on GETs. The local gateway returns
// these while a backend service is being recreated.
func isTransient(status int) bool {
	return status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout
}

// ClientConfig configures the platform gateway client.
// Credentials come from the environment; the engine never logs in itself.
type ClientConfig struct {
	BaseURL        string
	Token          string
	UserID         string
	OrganizationID string
	InternalAPIKey string
	Timeout        time.Duration // per-call bound, applied on top of any caller deadline
	GetRetries     int           // transient-status retries for GETs
	Logger         *slog.Logger
}

// Client is a read-only HTTP adapter over the platform gateway.
// It holds no mutable state beyond the connection handle and is safe for
// concurrent use by the category checkers.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
	timeout    time.Duration
	getRetries int
	logger     *slog.Logger
}

// NewClient builds a gateway client from config.
func NewClient(cfg ClientConfig) *Client {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		headers.Set("Authorization", "Bearer "+cfg.Token)
	}
	if cfg.UserID != "" {
		headers.Set("X-User-Id", cfg.UserID)
	}
	if cfg.OrganizationID != "" {
		headers.Set("X-Organization-Id", cfg.OrganizationID)
	}
	if cfg.InternalAPIKey != "" {
		headers.Set("X-Internal-Api-Key", cfg.InternalAPIKey)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.GetRetries
	if retries <= 0 {
		retries = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
		headers:    headers,
		timeout:    timeout,
		getRetries: retries,
		logger:     logger,
	}
}

// apiEnvelope is the gateway's standard response wrapper. Some internal
// routes return the payload bare; callers fall back to the raw body when
// the data field is absent.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// get performs a GET with header propagation, per-call timeout, and capped
// retries for transient gateway failures. The returned error is either
// ErrNotFound (when allowNotFound) or *Unavailable.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, allowNotFound bool) ([]byte, error) {
	// The per-call bound applies even under an outer run deadline; the
	// effective deadline is whichever is sooner. A single hung source must
	// fail this call, not eat the run budget.
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.getRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, &Unavailable{Op: op, Err: err}
		}
		req.Header = c.headers.Clone()

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &Unavailable{Op: op, Err: err}
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case isTransient(resp.StatusCode) && attempt < c.getRetries:
			lastErr = &Unavailable{Op: op, Status: resp.StatusCode}
			c.logger.Debug("transient gateway status, retrying",
				"op", op, "status", resp.StatusCode, "attempt", attempt)
			select {
			case <-ctx.Done():
				return nil, &Unavailable{Op: op, Err: ctx.Err()}
			case <-time.After(backoff(attempt)):
			}
			continue
		case resp.StatusCode == http.StatusNotFound && allowNotFound:
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, &Unavailable{Op: op, Status: resp.StatusCode}
		case readErr != nil:
			return nil, &Unavailable{Op: op, Err: readErr}
		}
		return body, nil
	}
	if lastErr == nil {
		lastErr = &Unavailable{Op: op}
	}
	return nil, lastErr
}

// post performs a single POST (no transient retries; the gateway treats
// repeated POSTs as new requests).
func (c *Client) post(ctx context.Context, op, path string, payload any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Unavailable{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return nil, &Unavailable{Op: op, Err: err}
	}
	req.Header = c.headers.Clone()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Unavailable{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Unavailable{Op: op, Status: resp.StatusCode}
	}
	if readErr != nil {
		return nil, &Unavailable{Op: op, Err: readErr}
	}
	return data, nil
}

func backoff(attempt int) time.Duration {
	d := time.Duration(attempt) * 500 * time.Millisecond
	if d > 4*time.Second {
		d = 4 * time.Second
	}
	return d
}

// unwrap decodes the standard response envelope, falling back to the raw
// body for internal routes that return the payload bare.
func unwrap(op string, body []byte, out any) error {
	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
		body = env.Data
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Unavailable{Op: op, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}

// Session fetches the session under test. A missing session is ErrNotFound.
func (c *Client) Session(ctx context.Context, sessionID string) (Session, error) {
	const op = "get session"
	body, err := c.get(ctx, op, "/consultations/sessions/"+url.PathEscape(sessionID), nil, true)
	if err != nil {
		return Session{}, err
	}
	var raw struct {
		MatterID any `json:"matter_id"`
		UserID   any `json:"user_id"`
	}
	if err := unwrap(op, body, &raw); err != nil {
		return Session{}, err
	}
	return Session{
		MatterID: asString(raw.MatterID),
		UserID:   asString(raw.UserID),
	}, nil
}

// ListCaseFacts queries the memory-service internal facts route for a
// user/case scope. A 404 here means the scope/path combination is
// unprovisioned and is reported as Unavailable, never as zero facts.
func (c *Client) ListCaseFacts(ctx context.Context, userID, caseID string, limit int) ([]Fact, error) {
	const op = "list case facts"
	q := url.Values{}
	q.Set("scope", "case")
	q.Set("case_id", caseID)
	q.Set("limit", strconv.Itoa(limit))

	path := "/internal/memory-service/memory/users/" + url.PathEscape(userID) + "/facts"
	body, err := c.get(ctx, op, path, q, false)
	if err != nil {
		return nil, err
	}
	var facts []Fact
	if err := unwrap(op, body, &facts); err != nil {
		return nil, err
	}
	return facts, nil
}

// ListTraces returns execution-trace items for a matter, most recent first.
func (c *Client) ListTraces(ctx context.Context, matterID string, limit int) ([]TraceItem, error) {
	const op = "list traces"
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, op, "/matters/"+url.PathEscape(matterID)+"/traces", q, false)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Traces []TraceItem `json:"traces"`
	}
	if err := unwrap(op, body, &payload); err != nil {
		return nil, err
	}
	return payload.Traces, nil
}

// PhaseTimeline returns the workflow phase checkpoints for a matter.
func (c *Client) PhaseTimeline(ctx context.Context, matterID string) ([]Checkpoint, error) {
	const op = "get phase timeline"
	body, err := c.get(ctx, op, "/matters/"+url.PathEscape(matterID)+"/phase-timeline", nil, false)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Phases []struct {
			ID      string   `json:"id"`
			PhaseID string   `json:"phase_id"`
			Status  string   `json:"status"`
			Outputs []string `json:"outputs"`
		} `json:"phases"`
	}
	if err := unwrap(op, body, &payload); err != nil {
		return nil, err
	}
	out := make([]Checkpoint, 0, len(payload.Phases))
	for _, p := range payload.Phases {
		// matters-service emits "id"; the trace proxy emits "phase_id".
		id := p.ID
		if id == "" {
			id = p.PhaseID
		}
		out = append(out, Checkpoint{Phase: id, Status: p.Status, Outputs: p.Outputs})
	}
	return out, nil
}

// ListDeliverables returns the generated document artifacts for a matter.
func (c *Client) ListDeliverables(ctx context.Context, matterID string) ([]Deliverable, error) {
	const op = "list deliverables"
	body, err := c.get(ctx, op, "/matters/"+url.PathEscape(matterID)+"/deliverables", nil, false)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Deliverables []struct {
			OutputKey    string `json:"output_key"`
			OutputKeyAlt string `json:"outputKey"`
			FileID       string `json:"file_id"`
			FileIDAlt    string `json:"fileId"`
			Status       string `json:"status"`
		} `json:"deliverables"`
	}
	if err := unwrap(op, body, &payload); err != nil {
		return nil, err
	}
	out := make([]Deliverable, 0, len(payload.Deliverables))
	for _, d := range payload.Deliverables {
		key := d.OutputKey
		if key == "" {
			key = d.OutputKeyAlt
		}
		fid := d.FileID
		if fid == "" {
			fid = d.FileIDAlt
		}
		out = append(out, Deliverable{OutputKey: key, FileID: fid, Status: d.Status})
	}
	return out, nil
}

// DownloadFile fetches a deliverable's raw bytes. A missing file is
// ErrNotFound.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	const op = "download file"
	return c.get(ctx, op, "/files/"+url.PathEscape(fileID)+"/download", nil, true)
}

// SearchKnowledge issues a knowledge search and returns the hits.
func (c *Client) SearchKnowledge(ctx context.Context, query string, topK int) ([]KnowledgeResult, error) {
	const op = "search knowledge"
	payload := map[string]any{"query": query, "top_k": topK}
	body, err := c.post(ctx, op, "/knowledge/search", payload)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Results []KnowledgeResult `json:"results"`
	}
	if err := unwrap(op, body, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatInt(int64(s), 10)
	case json.Number:
		return s.String()
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", s))
	}
}
