package network

import (
	"context"
	"io"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	fhttpcookiejar "github.com/bogdanfinn/fhttp/cookiejar"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"github.com/cockroachdb/errors"
)

var ErrRequestFailed = errors.New("request failed")

// credentialParams are query parameters whose values never reach an error
// message.
var credentialParams = []string{"access-key", "access_key", "api-key", "api_key", "apikey", "key", "token"}

const (
	DefaultTimeout      = 20 * time.Second
	DefaultMaxBodyBytes = 8 << 20
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 Edg/119.0.0.0",
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Getter is the outbound HTTP surface connectors depend on.
type Getter interface {
	Get(ctx context.Context, target string, headers map[string]string) (*Response, error)
}

type Options struct {
	Timeout      time.Duration
	Rotator      *Rotator
	UserAgents   []string
	MaxBodyBytes int64
}

type Client struct {
	http       tls_client.HttpClient
	rotator    *Rotator
	userAgents []string
	timeout    time.Duration
	maxBody    int64

	mu   sync.Mutex
	rand *rand.Rand
}

func NewClient(opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	agents := opts.UserAgents
	if len(agents) == 0 {
		agents = userAgents
	}

	jar, _ := fhttpcookiejar.New(nil)
	client, err := tls_client.NewHttpClient(
		tls_client.NewNoopLogger(),
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithTimeoutSeconds(int(opts.Timeout/time.Second)+1),
		tls_client.WithCookieJar(jar),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create http client")
	}

	return &Client{
		http:       client,
		rotator:    opts.Rotator,
		userAgents: append([]string{}, agents...),
		timeout:    opts.Timeout,
		maxBody:    opts.MaxBodyBytes,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Get issues a GET bounded by the client timeout and returns the body read
// up to the size limit. Non-2xx statuses are returned, not treated as errors.
func (c *Client) Get(ctx context.Context, target string, headers map[string]string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	safe := RedactURL(target)
	req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrapf(urlCause(err), "build request %s", safe)
	}
	applyHeaders(req, headers)

	resp, err := c.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(urlCause(err), "get %s", safe), ErrRequestFailed)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(urlCause(err), "read %s", safe), ErrRequestFailed)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// RedactURL replaces the values of credential query parameters. Input that
// does not parse is dropped entirely.
func RedactURL(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return "<unparseable url>"
	}
	if u.User != nil {
		u.User = url.User("redacted")
	}
	q := u.Query()
	changed := false
	for key := range q {
		for _, param := range credentialParams {
			if strings.EqualFold(key, param) {
				q.Set(key, "redacted")
				changed = true
			}
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// urlCause strips the *url.Error layer, whose message repeats the full
// request URL.
func urlCause(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		return uerr.Err
	}
	return err
}

func (c *Client) Do(req *fhttp.Request) (*fhttp.Response, error) {
	proxy, _ := c.rotateProxy()
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.randomUA())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if proxy != nil {
		c.rotator.Report(proxy, resp.StatusCode)
	}
	return resp, nil
}

func (c *Client) rotateProxy() (*url.URL, error) {
	if c.rotator == nil {
		return nil, nil
	}
	proxy, err := c.rotator.Next()
	if err != nil {
		return nil, err
	}

	if proxy != nil {
		_ = c.http.SetProxy(proxy.String())
	}
	return proxy, nil
}

func (c *Client) randomUA() string {
	if len(c.userAgents) == 0 {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userAgents[c.rand.Intn(len(c.userAgents))]
}

func applyHeaders(req *fhttp.Request, headers map[string]string) {
	if _, ok := headers["accept"]; !ok {
		req.Header.Set("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7")
	}
	if _, ok := headers["accept-language"]; !ok {
		req.Header.Set("accept-language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
}
