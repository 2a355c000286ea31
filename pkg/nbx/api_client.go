package nbx

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
)

// APIEndpoint is the production NBX REST host.
const APIEndpoint = "https://api.nbx.com"

// Doer is the subset of *fasthttp.Client used by Client.
type Doer interface {
	Do(req *fasthttp.Request, resp *fasthttp.Response) error
	DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error
}

// Client talks to the NBX REST API on behalf of one account.
// Calls are synchronous; the caller threads the bearer token through.
type Client struct {
	http    Doer
	baseURL string
	cred    Credential
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host, e.g. a local fake exchange.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient replaces the default *fasthttp.Client.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		c.http = d
	}
}

// WithLogger sets the logger used for request records. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a client for cred against APIEndpoint unless overridden.
func NewClient(cred Credential, opts ...Option) *Client {
	c := &Client{
		http:    &fasthttp.Client{},
		baseURL: APIEndpoint,
		cred:    cred,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Credential returns the credential the client signs with.
func (c *Client) Credential() Credential {
	return c.cred
}

type response struct {
	status int
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// doRequest sends one request and copies the response out of the pooled buffers.
// A non-2xx status is not an error at this level.
// ctx is checked before sending and its deadline bounds the exchange; a
// cancellation that arrives while the request is in flight is not observed.
func (c *Client) doRequest(
	ctx context.Context,
	op, method, path string,
	setHeaders func(h *fasthttp.RequestHeader),
	body []byte,
) (*response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}
	if setHeaders != nil {
		setHeaders(&req.Header)
	}

	start := time.Now()
	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.Do(req, resp)
	}
	if err != nil {
		c.log.Error(op, "method", method, "path", path, "err", err)
		return nil, &TransportError{Op: op, Err: err}
	}

	out := &response{
		status: resp.StatusCode(),
		body:   append([]byte(nil), resp.Body()...),
	}
	c.log.Debug(op, "method", method, "path", path, "status", out.status, "elapsed", time.Since(start))

	return out, nil
}

// authorizedGet performs a bearer-authenticated GET and returns the parsed JSON body.
func (c *Client) authorizedGet(ctx context.Context, op string, token BearerToken, path string) (gjson.Result, error) {
	resp, err := c.doRequest(ctx, op, fasthttp.MethodGet, path, func(h *fasthttp.RequestHeader) {
		h.Set(fasthttp.HeaderAuthorization, token.header())
	}, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	if !resp.ok() {
		c.log.Error(op, "status", resp.status, "body", string(resp.body))
		return gjson.Result{}, &StatusError{StatusCode: resp.status, Body: string(resp.body)}
	}
	return parseJSON(resp.body)
}

func parseJSON(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, &DecodeError{Input: "response body"}
	}
	return gjson.ParseBytes(body), nil
}

// accountPath joins escaped segments under /accounts/{id}. The result is
// both the request path and the path that is signed.
func accountPath(accountID string, parts ...string) string {
	builder := builderPool.Get().(*strings.Builder)
	builder.Reset()
	defer builderPool.Put(builder)

	builder.WriteString("/accounts/")
	builder.WriteString(url.PathEscape(accountID))
	for _, p := range parts {
		builder.WriteByte('/')
		builder.WriteString(url.PathEscape(p))
	}
	return builder.String()
}
