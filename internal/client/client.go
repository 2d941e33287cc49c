// Package client submits statements to a db2json query endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/google/uuid"

	"github.com/leapstack-labs/leapquery/internal/result"
)

// DefaultPath is the endpoint path used when the configured URL has none.
const DefaultPath = "/db2json"

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// RequestIDHeader carries the per-request id.
const RequestIDHeader = "X-Request-ID"

// ErrNoStatement is returned when Submit is given a blank statement.
var ErrNoStatement = errors.New("no statement selected")

// Mode selects how the statement is sent.
type Mode string

// Submission modes.
const (
	ModeGet            Mode = "get"
	ModePostURLEncoded Mode = "post-urlencoded"
	ModePostForm       Mode = "post-form"
)

// Modes lists the supported modes.
var Modes = []Mode{ModeGet, ModePostURLEncoded, ModePostForm}

// ParseMode parses a mode name. The names used by the browser front end
// (GET, POST_URLENC, POST_FORM) are accepted too.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "get":
		return ModeGet, nil
	case "post-urlencoded", "post_urlenc", "urlencoded":
		return ModePostURLEncoded, nil
	case "post-form", "post_form", "form", "multipart":
		return ModePostForm, nil
	default:
		return "", fmt.Errorf("unknown submit mode %q (want get, post-urlencoded or post-form)", s)
	}
}

// Config configures a Client.
type Config struct {
	Endpoint   string
	Mode       Mode
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client submits statements to an endpoint.
type Client struct {
	endpoint *url.URL
	mode     Mode
	http     *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a client for cfg.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("endpoint is required")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", cfg.Endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be http or https", cfg.Endpoint)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = DefaultPath
	}

	mode := cfg.Mode
	if mode == "" {
		mode = ModeGet
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{endpoint: u, mode: mode, http: hc, logger: logger, now: time.Now}, nil
}

// Endpoint returns the resolved endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// Mode returns the submission mode.
func (c *Client) Mode() Mode {
	return c.mode
}

// Submit sends stmt and decodes the response. Endpoint failures are
// returned as *SQLError, *HTMLError or *ResponseError.
func (c *Client) Submit(ctx context.Context, stmt string) (*result.Set, error) {
	if strings.TrimSpace(stmt) == "" {
		return nil, ErrNoStatement
	}

	req, err := c.newRequest(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	id := uuid.New().String()
	req.Header.Set(RequestIDHeader, id)
	req.Header.Set("Accept", "application/json")

	start := c.now()
	c.logger.Debug("submitting statement",
		slog.String("request_id", id),
		slog.String("mode", string(c.mode)),
		slog.Int("length", len(stmt)))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.logger.Debug("response received",
		slog.String("request_id", id),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Duration("elapsed", c.now().Sub(start)))

	return parseResponse(resp.StatusCode, body)
}

func (c *Client) newRequest(ctx context.Context, stmt string) (*http.Request, error) {
	target := *c.endpoint
	switch c.mode {
	case ModePostURLEncoded:
		form := url.Values{"q": {stmt}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
		return req, nil

	case ModePostForm:
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		if err := mw.WriteField("q", stmt); err != nil {
			return nil, err
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil

	default:
		q := target.Query()
		q.Set("q", stmt)
		q.Set("v", strconv.FormatInt(c.now().UnixMilli(), 10))
		target.RawQuery = q.Encode()
		return http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	}
}

// parseResponse turns a response body into a result set or a typed error.
func parseResponse(status int, body []byte) (*result.Set, error) {
	text := strings.TrimSpace(string(body))

	if len(text) >= len("<!DOCTYPE") && strings.EqualFold(text[:len("<!DOCTYPE")], "<!DOCTYPE") {
		md, err := htmltomarkdown.ConvertString(text)
		if err != nil {
			md = text
		}
		return nil, &HTMLError{StatusCode: status, HTML: text, Text: strings.TrimSpace(md)}
	}

	if len(text) >= 2 && strings.HasPrefix(text, "%") && strings.HasSuffix(text, "%") {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var envelope any
	if err := dec.Decode(&envelope); err != nil {
		return nil, &ResponseError{StatusCode: status, Body: string(body), Err: err}
	}

	if m, ok := envelope.(map[string]any); ok {
		if raw, ok := m["error"]; ok && raw != nil {
			sqlErr, err := decodeSQLError(raw)
			if err != nil {
				return nil, &ResponseError{StatusCode: status, Body: string(body), Err: err}
			}
			return nil, sqlErr
		}
	}

	if status >= http.StatusBadRequest {
		return nil, &ResponseError{StatusCode: status, Body: string(body)}
	}
	return result.Decode([]byte(text))
}
