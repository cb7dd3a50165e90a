package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"finitefield.org/bloomcare-web/internal/observability"
	"finitefield.org/bloomcare-web/internal/requestctx"
)

const (
	defaultTimeout    = 8 * time.Second
	idempotencyHeader = "Idempotency-Key"
	maxResponseBytes  = 1 << 20
)

var tracer = otel.Tracer("finitefield.org/bloomcare-web/internal/backend")

// Client issues calls against the storefront backend REST API. It holds no per-user state;
// calls that need the backend session go through a Session.
type Client struct {
	baseURL string
	http    *http.Client
	newKey  func() string
}

// Option customises the client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client. Its Jar is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithIdempotencyKeys overrides the generator used for Idempotency-Key headers.
func WithIdempotencyKeys(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newKey = fn
		}
	}
}

// NewClient constructs an API client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		newKey:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a base URL was provided.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// StoredCookie is the persisted form of a backend cookie kept in the device state.
type StoredCookie struct {
	Name  string `json:"n"`
	Value string `json:"v"`
}

// Session carries one device's backend cookies across calls.
type Session struct {
	client *Client
	http   *http.Client
	jar    *cookiejar.Jar
	base   *url.URL
}

// Session restores a device's backend cookies. The result is not safe for concurrent use by
// more than one request.
func (c *Client) Session(saved []StoredCookie) *Session {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	s := &Session{client: c, jar: jar}
	base, err := url.Parse(c.baseURL)
	if err == nil && base.Host != "" {
		s.base = base
		cookies := make([]*http.Cookie, 0, len(saved))
		for _, sc := range saved {
			if sc.Name == "" {
				continue
			}
			cookies = append(cookies, &http.Cookie{Name: sc.Name, Value: sc.Value, Path: "/"})
		}
		jar.SetCookies(base, cookies)
	}
	hc := *c.http
	hc.Jar = jar
	s.http = &hc
	return s
}

// Cookies exports the cookies the backend set for this device.
func (s *Session) Cookies() []StoredCookie {
	if s == nil || s.base == nil {
		return nil
	}
	cookies := s.jar.Cookies(s.base)
	out := make([]StoredCookie, 0, len(cookies))
	for _, ck := range cookies {
		out = append(out, StoredCookie{Name: ck.Name, Value: ck.Value})
	}
	return out
}

type request struct {
	op          string
	method      string
	path        []string
	query       url.Values
	body        io.Reader
	contentType string
	idempotent  bool
}

func jsonBody(v any) (io.Reader, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(payload), nil
}

// envelope is the {ok, msg} wrapper most backend responses carry.
type envelope struct {
	OK  *bool  `json:"ok"`
	Msg string `json:"msg"`
}

// do sends the request and returns the raw body of a successful response. A body whose
// "ok" field is false is turned into an APIError even on a 2xx status.
func (c *Client) do(ctx context.Context, hc *http.Client, req request) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	endpoint, err := url.JoinPath(c.baseURL, req.path...)
	if err != nil {
		return nil, err
	}
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	ctx, span := tracer.Start(ctx, "backend."+req.op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", req.method),
		attribute.String("url.path", "/"+strings.Join(req.path, "/")),
	)

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, req.body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if req.idempotent {
		httpReq.Header.Set(idempotencyHeader, c.newKey())
	}
	observability.InjectHeaders(httpReq)

	logger := requestctx.Logger(ctx).With(zap.String("backend_op", req.op))
	start := time.Now()
	resp, err := hc.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		logger.Warn("backend unreachable", zap.Error(err))
		return nil, fmt.Errorf("backend: %s: %w (%w)", req.op, ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		return nil, fmt.Errorf("backend: %s: %w (%w)", req.op, ErrConnection, err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	logger.Debug("backend call", zap.Int("status", resp.StatusCode), zap.Duration("latency", time.Since(start)))

	var env envelope
	_ = json.Unmarshal(body, &env)
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: env.Msg}
		if apiErr.Message == "" && env.OK == nil {
			apiErr.Message = drainError(body)
		}
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		logger.Info("backend rejected request", zap.Int("status", resp.StatusCode), zap.String("msg", apiErr.Message))
		return nil, apiErr
	}
	if env.OK != nil && !*env.OK {
		span.SetStatus(codes.Error, "ok=false")
		return body, &APIError{Status: resp.StatusCode, Message: env.Msg}
	}
	span.SetStatus(codes.Ok, "")
	return body, nil
}

func drainError(body []byte) string {
	if len(body) > 256 {
		body = body[:256]
	}
	msg := strings.TrimSpace(string(body))
	if strings.HasPrefix(msg, "<") {
		// HTML error pages (413, 500) carry nothing worth showing.
		return ""
	}
	return msg
}

func decodeInto(op string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("backend: %s: decode: %w", op, err)
	}
	return nil
}

// ErrInvalidID is returned for identifiers that cannot be used as a path segment.
var ErrInvalidID = errors.New("backend: invalid identifier")

func checkID(id string) error {
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, "/?#") {
		return ErrInvalidID
	}
	return nil
}
