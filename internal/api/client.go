package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"neembleeat/internal/monitoring"
)

const (
	apiPrefix = "/api/v1"

	// DefaultLoginRoute is where the user is sent after a 401
	DefaultLoginRoute = "/auth/login"

	maxBodyBytes = 10 << 20
)

// TokenSource supplies the bearer credential. An empty token means the
// request goes out unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// SignOuter ends the local auth session after a 401
type SignOuter interface {
	SignOut(ctx context.Context) error
}

// Navigator moves the user to another route
type Navigator interface {
	Navigate(route string)
}

// Client issues authenticated calls against the backend REST API and
// unwraps its response envelope. Configure it before first use; the
// setters are not safe to call concurrently with requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	signOut    SignOuter
	navigator  Navigator
	loginRoute string
	log        logrus.FieldLogger
	metrics    *monitoring.Metrics
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the fixed per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithTokenSource attaches bearer credentials to every request
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithSignOut sets what runs when a request is answered with 401
func WithSignOut(s SignOuter) Option {
	return func(c *Client) { c.signOut = s }
}

// WithNavigator sets where the login redirect is sent
func WithNavigator(n Navigator) Option {
	return func(c *Client) { c.navigator = n }
}

// WithLoginRoute overrides DefaultLoginRoute
func WithLoginRoute(route string) Option {
	return func(c *Client) { c.loginRoute = route }
}

// WithLogger sets the client logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics records call counts and latency
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a client for the API rooted at baseURL. The default HTTP
// client has a 10 second timeout and a cookie jar for the auth refresh
// cookie.
func New(baseURL string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Second * 10,
			Jar:     jar,
		},
		loginRoute: DefaultLoginRoute,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTokenSource sets the credential source after construction, for
// sources that themselves need the client.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// SetSignOut sets the 401 sign-out hook after construction
func (c *Client) SetSignOut(s SignOuter) {
	c.signOut = s
}

// BaseURL returns the API root without the version prefix
func (c *Client) BaseURL() string {
	return c.baseURL
}

type requestOptions struct {
	headers        map[string]string
	withoutToken   bool
	ignore401Hooks bool
}

// RequestOption adjusts a single call
type RequestOption func(*requestOptions)

// WithHeader adds a header to one call
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

// withoutToken skips the bearer header. Used by the refresh call, which
// authenticates with the cookie.
func withoutToken() RequestOption {
	return func(o *requestOptions) { o.withoutToken = true }
}

// ignore401Hooks turns a 401 into a plain *Error. Used by the auth
// endpoints so a failed login or refresh cannot recurse into sign-out.
func ignore401Hooks() RequestOption {
	return func(o *requestOptions) { o.ignore401Hooks = true }
}

// Do performs method on path (relative to /api/v1) and decodes the
// envelope data into out, which may be nil.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any, opts ...RequestOption) (*Envelope, error) {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	req, err := c.newRequest(ctx, method, path, query, body, &ro)
	if err != nil {
		return nil, err
	}

	resource := resourceOf(path)
	log := c.log.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"request_id": req.Header.Get("X-Request-ID"),
	})

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(method, resource, 0, time.Since(start))
		log.WithError(err).Warn("api request failed")
		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(method, resource, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized && !ro.ignore401Hooks {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		c.handleUnauthorized(ctx, log)
		return nil, ErrUnauthorized
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("api: reading %s %s: %w", method, path, err)
	}

	env, err := decodeEnvelope(resp.StatusCode, raw)
	if err != nil {
		log.WithField("status", resp.StatusCode).WithError(err).Debug("api call unsuccessful")
		return env, err
	}
	if err := env.decodeData(out); err != nil {
		return env, err
	}
	return env, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any, ro *requestOptions) (*http.Request, error) {
	u := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: encoding %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("api: building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	for k, v := range ro.headers {
		req.Header.Set(k, v)
	}

	if c.tokens != nil && !ro.withoutToken {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			c.log.WithError(err).Debug("no bearer token available")
		} else if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func (c *Client) handleUnauthorized(ctx context.Context, log logrus.FieldLogger) {
	c.metrics.ForcedSignOut()
	log.Warn("unauthorized response, signing out")

	if c.signOut != nil {
		if err := c.signOut.SignOut(ctx); err != nil {
			log.WithError(err).Warn("sign-out after 401 failed")
		}
	}
	if c.navigator != nil {
		c.navigator.Navigate(c.loginRoute)
	}
}

// resourceOf returns the first path segment, used as a metrics label
func resourceOf(path string) string {
	p := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "root"
	}
	return p
}
