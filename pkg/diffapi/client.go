// Package diffapi is the client for the snapshot diff API.
// All viewer requests to the backend go through Client.
package diffapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/monadic/snapdiff/pkg/selection"
)

const (
	// DefaultBaseURL is where the diff viewer server listens by default.
	DefaultBaseURL = "http://localhost:8082"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 30 * time.Second

	// APIPrefix is the path prefix of every endpoint.
	APIPrefix = "/api/"

	// artifactsSuffix is appended to a resource path to get its bundle.
	artifactsSuffix = "artifacts"

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 4 << 10
)

// Client talks to the diff API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// WithCookies seeds the cookie jar with name=value pairs scoped to the base
// URL. They are sent with every request, like browser credentials.
func WithCookies(pairs []string) Option {
	return func(c *Client) error {
		if len(pairs) == 0 {
			return nil
		}
		cookies := make([]*http.Cookie, 0, len(pairs))
		for _, p := range pairs {
			name, value, ok := strings.Cut(p, "=")
			name = strings.TrimSpace(name)
			if !ok || name == "" {
				return fmt.Errorf("invalid cookie %q: want name=value", p)
			}
			cookies = append(cookies, &http.Cookie{Name: name, Value: strings.TrimSpace(value)})
		}
		if c.httpClient.Jar == nil {
			jar, err := cookiejar.New(nil)
			if err != nil {
				return fmt.Errorf("create cookie jar: %w", err)
			}
			c.httpClient.Jar = jar
		}
		c.httpClient.Jar.SetCookies(c.baseURL, cookies)
		return nil
	}
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse api url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	c := &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ListNamespaces lists namespace names.
func (c *Client) ListNamespaces(ctx context.Context) ([]string, error) {
	return c.listNames(ctx, c.endpoint())
}

// ListResources lists resource names for the selection's namespace, group,
// version and kind.
func (c *Client) ListResources(ctx context.Context, key selection.ListKey) ([]string, error) {
	return c.listNames(ctx, c.endpoint(key.Namespace, key.Group, key.Version, key.Kind))
}

// GetArtifacts fetches the artifact bundle of the selected resource.
func (c *Client) GetArtifacts(ctx context.Context, sel selection.Selection) (*Bundle, error) {
	if sel.Resource == "" {
		return nil, fmt.Errorf("get artifacts: resource is required")
	}
	endpoint := c.endpoint(sel.Namespace, sel.Group, sel.Version, sel.Kind, sel.Resource, artifactsSuffix)

	var b Bundle
	if err := c.getJSON(ctx, endpoint, &b); err != nil {
		return nil, fmt.Errorf("get artifacts %s: %w", sel, err)
	}
	return &b, nil
}

func (c *Client) listNames(ctx context.Context, endpoint string) ([]string, error) {
	var list metav1.PartialObjectMetadataList
	if err := c.getJSON(ctx, endpoint, &list); err != nil {
		return nil, fmt.Errorf("list %s: %w", endpoint, err)
	}
	names := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		names = append(names, item.Name)
	}
	return names, nil
}

// endpoint joins escaped path segments under the API prefix. The namespace
// listing is the bare prefix with its trailing slash.
func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(c.baseURL.String(), "/") + APIPrefix + strings.Join(escaped, "/")
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	text := http.StatusText(e.Code)
	if e.Body == "" || e.Body == text {
		return fmt.Sprintf("server returned %d %s", e.Code, text)
	}
	return fmt.Sprintf("server returned %d %s: %s", e.Code, text, e.Body)
}
