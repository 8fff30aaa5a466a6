// Package backend is the HTTP client for the storefront backend: the account
// cart and order endpoints.
package backend

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/pandam-storefront/internal/domain/cart"
	"github.com/xenking/pandam-storefront/internal/domain/order"
	"github.com/xenking/pandam-storefront/internal/domain/session"
)

// maxErrorBody caps how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

var (
	_ cart.Remote     = (*Client)(nil)
	_ order.Submitter = (*Client)(nil)
	_ order.Fetcher   = (*Client)(nil)
	_ order.Lister    = (*Client)(nil)
)

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient     *http.Client
	timeout        time.Duration
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	lg             *zap.Logger
}

// WithHTTPClient replaces the underlying client. Its transport is used as-is.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithTracerProvider sets the tracer provider for outgoing requests.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider for outgoing requests.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(o *options) { o.lg = lg }
}

// Client calls the backend on behalf of one session. Every request carries a
// bearer token freshly obtained from the token source.
type Client struct {
	base   *url.URL
	tokens session.TokenSource
	http   *http.Client
	lg     *zap.Logger
}

// NewClient returns a Client for the backend at baseURL, e.g.
// "http://localhost:5000".
func NewClient(baseURL string, tokens session.TokenSource, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}

	o := options{
		timeout:        10 * time.Second,
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		lg:             zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{
			Timeout: o.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(o.tracerProvider),
				otelhttp.WithMeterProvider(o.meterProvider),
			),
		}
	}
	return &Client{base: base, tokens: tokens, http: hc, lg: o.lg}, nil
}

// request is one backend call. encode, when set, writes the JSON body.
type request struct {
	method string
	path   string
	query  url.Values
	encode func(e *jx.Encoder)
}

// do performs r and passes the response body to decode on 2xx. Other statuses
// become *order.RemoteError with the body's "error" or "message" text.
func (c *Client) do(ctx context.Context, r request, decode func(d *jx.Decoder) error) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return errors.Wrap(err, "token")
	}

	u := *c.base
	u.Path = c.base.Path + r.path
	u.RawQuery = r.query.Encode()

	var body io.Reader
	if r.encode != nil {
		e := jx.GetEncoder()
		defer jx.PutEncoder(e)
		r.encode(e)
		body = bytes.NewReader(e.Bytes())
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", r.method, r.path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		rerr := &order.RemoteError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
		c.lg.Debug("Backend error",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", rerr.Message),
		)
		return rerr
	}
	if decode == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return decode(jx.DecodeStr("null"))
	}
	if err := decode(jx.DecodeBytes(data)); err != nil {
		return errors.Wrapf(err, "decode %s %s", r.method, r.path)
	}
	return nil
}

// errorMessage extracts {"error": ...} or {"message": ...} from an error
// body, falling back to the raw text.
func errorMessage(data []byte) string {
	var errText, message string
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Object {
		_ = d.Obj(func(d *jx.Decoder, key string) error {
			if d.Next() != jx.String {
				return d.Skip()
			}
			switch key {
			case "error":
				errText, _ = d.Str()
				return nil
			case "message":
				message, _ = d.Str()
				return nil
			}
			return d.Skip()
		})
	}
	switch {
	case errText != "":
		return errText
	case message != "":
		return message
	}
	return strings.TrimSpace(string(data))
}
