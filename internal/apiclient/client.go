// Package apiclient is the REST client for the dBay backend services.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Service string

const (
	ServiceListing Service = "listing"
	ServiceAuction Service = "auction"
	ServiceWallet  Service = "wallet"
	ServiceUser    Service = "user"
	ServiceOrder   Service = "order"
	ServiceSearch  Service = "search"
)

var Services = []Service{ServiceListing, ServiceAuction, ServiceWallet, ServiceUser, ServiceOrder, ServiceSearch}

const maxErrorBody = 64 << 10

// Config describes where each backend lives.
type Config struct {
	// BaseURLs maps every service to its base URL, e.g. http://host/api/v1.
	BaseURLs map[Service]string
	Timeout  time.Duration
	// UploadTimeout bounds a whole presigned media PUT. Zero leaves uploads
	// bounded only by the request context, since large videos can take far
	// longer than an API call.
	UploadTimeout time.Duration
	// UserIDHeader enables X-User-ID attribution for dev header auth.
	UserIDHeader bool
}

// Client calls the backend on behalf of at most one visitor. The zero
// session client is safe to share; WithSession returns a bound copy.
type Client struct {
	http         *http.Client
	upload       *http.Client
	baseURLs     map[Service]string
	userIDHeader bool
	logger       *logger.Logger
	metrics      *metrics.MetricsManager
	tracer       trace.Tracer

	token  string
	userID domain.ID
}

func New(cfg Config, log *logger.Logger, m *metrics.MetricsManager) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	baseURLs := make(map[Service]string, len(cfg.BaseURLs))
	for svc, base := range cfg.BaseURLs {
		baseURLs[svc] = strings.TrimRight(base, "/")
	}
	return &Client{
		http:         &http.Client{Timeout: timeout},
		upload:       &http.Client{Timeout: cfg.UploadTimeout},
		baseURLs:     baseURLs,
		userIDHeader: cfg.UserIDHeader,
		logger:       log.Named("apiclient"),
		metrics:      m,
		tracer:       otel.Tracer("dbay-web/apiclient"),
	}
}

// WithSession returns a client that authenticates as the session's user.
// A nil or empty session yields an anonymous client.
func (c *Client) WithSession(s *domain.Session) *Client {
	cp := *c
	cp.token, cp.userID = "", ""
	if s != nil {
		cp.token = s.Token
		cp.userID = s.UserID
	}
	return &cp
}

// WithToken returns a client that sends only the bearer token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token, cp.userID = token, ""
	return &cp
}

// UsesUserIDHeader reports whether dev header auth is enabled.
func (c *Client) UsesUserIDHeader() bool { return c.userIDHeader }

func (c *Client) endpoint(svc Service, path string, query url.Values) string {
	u := c.baseURLs[svc] + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do performs one JSON request. out may be nil.
func (c *Client) do(ctx context.Context, svc Service, op, method, path string, query url.Values, body, out any) (err error) {
	started := time.Now()
	ctx, span := c.tracer.Start(ctx, string(svc)+"."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		c.metrics.ObserveBackendCall(string(svc), op, started, err)
	}()

	var reader io.Reader
	if body != nil {
		payload, mErr := json.Marshal(body)
		if mErr != nil {
			return &Error{Service: svc, Op: op, Message: "failed to encode request", Err: mErr}
		}
		reader = bytes.NewReader(payload)
	}

	target := c.endpoint(svc, path, query)
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &Error{Service: svc, Op: op, Message: "failed to build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userIDHeader && c.userID != "" {
		req.Header.Set("X-User-ID", c.userID.String())
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", target),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("service", string(svc)), zap.String("op", op), zap.Error(err))
		return &Error{Service: svc, Op: op, Message: "service unavailable", Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &Error{Service: svc, Op: op, Status: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
		c.logger.Debug("backend returned error status",
			zap.String("service", string(svc)), zap.String("op", op),
			zap.Int("status", resp.StatusCode), zap.String("message", apiErr.Message))
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return &Error{Service: svc, Op: op, Status: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}

func (c *Client) get(ctx context.Context, svc Service, op, path string, query url.Values, out any) error {
	return c.do(ctx, svc, op, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, svc Service, op, path string, body, out any) error {
	return c.do(ctx, svc, op, http.MethodPost, path, nil, body, out)
}

// listEnvelope accepts either a bare JSON array or a paginated
// {"results": [...]} object.
type listEnvelope[T any] struct {
	Items []T
}

func (l *listEnvelope[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &l.Items)
	}
	var page struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return err
	}
	l.Items = page.Results
	return nil
}

func escape(id domain.ID) string {
	return url.PathEscape(id.String())
}

func pathf(format string, ids ...domain.ID) string {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = escape(id)
	}
	return fmt.Sprintf(format, args...)
}

func sortedStrings(in []string) []string {
	sort.Strings(in)
	return in
}
