// Package transport is the single point of outbound HTTP to the calculation
// and scrape engine.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dynergy/tariff-compare/config"
	"github.com/dynergy/tariff-compare/models"
)

// Class groups requests that share a timeout budget.
type Class string

const (
	ClassBasic       Class = "basic"
	ClassCSV         Class = "csv"
	ClassBacktest    Class = "backtest"
	ClassRisk        Class = "risk"
	ClassScrape      Class = "scrape"
	ClassMultiScrape Class = "multi_scrape"
	ClassReference   Class = "reference"
)

// Scrape reports whether the class hits live provider sites.
func (c Class) Scrape() bool {
	return c == ClassScrape || c == ClassMultiScrape
}

// Request is one call to the engine.
type Request struct {
	Method      string
	Path        string
	Class       Class
	Timeout     time.Duration // overrides the class budget when positive
	Body        []byte
	ContentType string
}

// Response is a fully read 2xx answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client wraps net/http with the session credential and the timeout table.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	session        *Session
	defaultTimeout time.Duration
	timeouts       map[Class]time.Duration
	userAgent      string
}

// New builds a client from cfg. session may be nil for anonymous use.
func New(cfg *config.Config, session *Session) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	if cfg.Timeouts.Scrape <= 0 || cfg.Timeouts.MultiScrape <= 0 {
		return nil, fmt.Errorf("scrape-class requests need an explicit timeout budget")
	}
	if session == nil {
		session = NewSession("")
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   cfg.Timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		session:        session,
		defaultTimeout: cfg.Timeout,
		timeouts: map[Class]time.Duration{
			ClassBasic:       cfg.Timeouts.Basic,
			ClassCSV:         cfg.Timeouts.CSV,
			ClassBacktest:    cfg.Timeouts.Backtest,
			ClassRisk:        cfg.Timeouts.Risk,
			ClassScrape:      cfg.Timeouts.Scrape,
			ClassMultiScrape: cfg.Timeouts.MultiScrape,
			ClassReference:   cfg.Timeouts.Reference,
		},
		userAgent: cfg.UserAgent,
	}, nil
}

// WithTransport swaps the round tripper, mainly for tests.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

// Session exposes the shared credential holder.
func (c *Client) Session() *Session {
	return c.session
}

// Budget resolves the timeout for a request class. Only calculation-class
// requests fall back to the short default.
func (c *Client) Budget(class Class, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if d := c.timeouts[class]; d > 0 {
		return d
	}
	if class.Scrape() {
		return 0
	}
	return c.defaultTimeout
}

// Send issues req. Non-2xx answers come back as ErrUpstreamRejected; a 401
// additionally clears the credential the request carried.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	budget := c.Budget(req.Class, req.Timeout)
	if budget <= 0 {
		return nil, Parsef("no timeout budget for %s request", req.Class)
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, Parsef("build request: %v", err)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if id := RequestID(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}
	token := c.session.Token()
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		classified := classify(err)
		slog.Debug("engine request failed",
			slog.String("method", method),
			slog.String("url", target),
			slog.String("class", string(req.Class)),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", classified),
		)
		return nil, classified
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}

	slog.Debug("engine request completed",
		slog.String("method", method),
		slog.String("url", target),
		slog.String("class", string(req.Class)),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode == http.StatusUnauthorized && c.session.ClearIf(token) {
		slog.Warn("engine rejected credential, session cleared", slog.String("url", target))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, Rejected(resp.StatusCode, payload)
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: payload}, nil
}

// PostJSON sends payload as a JSON body.
func (c *Client) PostJSON(ctx context.Context, class Class, path string, payload any, timeout time.Duration) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, Parsef("encode request: %v", err)
	}
	return c.Send(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Class:       class,
		Timeout:     timeout,
		Body:        body,
		ContentType: "application/json",
	})
}

// PostMultipart sends form fields plus an uploaded file under the "file" part.
func (c *Client) PostMultipart(ctx context.Context, class Class, path string, fields map[string]string, upload models.Upload) (*Response, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", upload.Filename)
	if err != nil {
		return nil, Parsef("create file part: %v", err)
	}
	if _, err := part.Write(upload.Content); err != nil {
		return nil, Parsef("write file part: %v", err)
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, Parsef("write field %s: %v", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, Parsef("close multipart body: %v", err)
	}

	return c.Send(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Class:       class,
		Body:        buf.Bytes(),
		ContentType: writer.FormDataContentType(),
	})
}

// DecodeJSON unmarshals a response body, reporting failures as ErrParse.
func DecodeJSON(resp *Response, v any) error {
	if resp == nil || len(resp.Body) == 0 {
		return Parsef("empty response body")
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return ErrParse{Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func detailFrom(body []byte, status int) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Detail) > 0 {
		var text string
		if err := json.Unmarshal(envelope.Detail, &text); err == nil {
			return text
		}
		return string(envelope.Detail)
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		if len(text) > 200 {
			text = text[:200]
		}
		return text
	}
	return http.StatusText(status)
}

type requestIDKey struct{}

// WithRequestID tags outbound calls made with ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id set by WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
