package testutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type RequestOptions struct {
	Method   string
	Path     string
	Body     any
	FormData url.Values
	Headers  map[string]string
}

type Response struct {
	*http.Response
	Body []byte
}

func (r *Response) JSON(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body, v), "body: %s", r.Body)
}

func (r *Response) String() string {
	return string(r.Body)
}

func (r *Response) AssertStatus(t *testing.T, expected int) {
	t.Helper()
	require.Equal(t, expected, r.StatusCode, "unexpected status code. Response: %s", r.Body)
}

func (r *Response) AssertRedirect(t *testing.T, expectedLocation string) {
	t.Helper()
	require.True(t, r.StatusCode >= 300 && r.StatusCode < 400, "expected redirect, got %d", r.StatusCode)
	require.Equal(t, expectedLocation, r.Header.Get("Location"))
}

// HTTPClient talks to a handler over a loopback test server. It keeps cookies
// and never follows redirects, so tests can assert on each hop.
type HTTPClient struct {
	t       *testing.T
	client  *http.Client
	baseURL string
}

func NewHTTPClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return newClient(t, srv.URL)
}

func newClient(t *testing.T, baseURL string) *HTTPClient {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &HTTPClient{
		t: t,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: baseURL,
	}
}

// Fresh returns a client for the same server with an empty cookie jar.
func (c *HTTPClient) Fresh() *HTTPClient {
	return newClient(c.t, c.baseURL)
}

func (c *HTTPClient) Cookie(name string) *http.Cookie {
	u, err := url.Parse(c.baseURL)
	require.NoError(c.t, err)
	for _, cookie := range c.client.Jar.Cookies(u) {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

// SetCookie stores cookie in the jar as if the server had issued it.
func (c *HTTPClient) SetCookie(cookie *http.Cookie) {
	u, err := url.Parse(c.baseURL)
	require.NoError(c.t, err)
	c.client.Jar.SetCookies(u, []*http.Cookie{cookie})
}

func (c *HTTPClient) Get(path string) *Response {
	return c.Do(&RequestOptions{Method: http.MethodGet, Path: path})
}

func (c *HTTPClient) PostJSON(path string, body any) *Response {
	return c.Do(&RequestOptions{Method: http.MethodPost, Path: path, Body: body})
}

func (c *HTTPClient) PostForm(path string, data url.Values) *Response {
	return c.Do(&RequestOptions{Method: http.MethodPost, Path: path, FormData: data})
}

func (c *HTTPClient) Delete(path string) *Response {
	return c.Do(&RequestOptions{Method: http.MethodDelete, Path: path})
}

func (c *HTTPClient) Do(opts *RequestOptions) *Response {
	c.t.Helper()

	resp, err := c.do(opts)
	require.NoError(c.t, err)
	return resp
}

func (c *HTTPClient) do(opts *RequestOptions) (*Response, error) {
	var body io.Reader
	contentType := ""

	switch {
	case opts.FormData != nil:
		body = strings.NewReader(opts.FormData.Encode())
		contentType = "application/x-www-form-urlencoded"
	case opts.Body != nil:
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequest(opts.Method, c.baseURL+opts.Path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{Response: resp, Body: data}, nil
}
