package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func request(target string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestResolveBaseURLPlain(t *testing.T) {
	req := request("http://example.org/simple/", nil)
	base := resolveBaseURL(req)
	assert.Equal(t, "http", base.Scheme)
	assert.Equal(t, "example.org", base.Host)
	assert.Equal(t, "", base.Prefix)
	assert.Equal(t, "http://example.org", base.Root())
	assert.Equal(t, "/simple/", base.Path("/simple/"))
}

func TestResolveBaseURLForwardedHost(t *testing.T) {
	req := request("http://internal/", map[string]string{
		"X-Forwarded-Host": "forward.ed",
	})
	base := resolveBaseURL(req)
	assert.Equal(t, "forward.ed", base.Host)
	assert.Equal(t, "", base.Prefix)
}

func TestResolveBaseURLForwardedHostWithPath(t *testing.T) {
	// Trailing slash and no trailing slash normalize identically.
	for _, fwd := range []string{"forward.ed/priv/", "forward.ed/priv"} {
		req := request("http://internal/", map[string]string{
			"X-Forwarded-Host": fwd,
		})
		base := resolveBaseURL(req)
		assert.Equal(t, "forward.ed", base.Host, fwd)
		assert.Equal(t, "/priv", base.Prefix, fwd)
		assert.Equal(t, "http://forward.ed/priv", base.Root())
		assert.Equal(t, "/priv/packages/", base.Path("/packages/"))
	}
}

func TestResolveBaseURLForwardedProto(t *testing.T) {
	req := request("http://example.org/", map[string]string{
		"X-Forwarded-Proto": "https",
	})
	base := resolveBaseURL(req)
	assert.Equal(t, "https", base.Scheme)
}

func TestResolveBaseURLEncodesInjection(t *testing.T) {
	req := request("http://example.org/", map[string]string{
		"X-Forwarded-Proto": "/\nSet-Cookie:malicious=1;",
		"X-Forwarded-Host":  "evil\r\n.example/pre\nfix/",
	})
	base := resolveBaseURL(req)
	for _, part := range []string{base.Scheme, base.Host, base.Prefix, base.Root()} {
		assert.NotContains(t, part, "\n")
		assert.NotContains(t, part, "\r")
	}
	assert.Contains(t, base.Host, "%0D%0A")
}

func TestEncodeUnsafe(t *testing.T) {
	assert.Equal(t, "plain-value_1.0", encodeUnsafe("plain-value_1.0"))
	assert.Equal(t, "a%0Ab", encodeUnsafe("a\nb"))
	assert.Equal(t, "a%0Db", encodeUnsafe("a\rb"))
	assert.Equal(t, "a%20b", encodeUnsafe("a b"))
	assert.Equal(t, "%3Cscript%3E", encodeUnsafe("<script>"))
	assert.Equal(t, "/path/ok?q=1", encodeUnsafe("/path/ok?q=1"))
}

func TestForwardedHostWelcome(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doGet(srv, "/", map[string]string{"X-Forwarded-Host": "forward.ed/priv/"})
	body := w.Body.String()
	assert.Contains(t, body, "easy_install --index-url http://forward.ed/priv/simple/ PACKAGE")
	assert.Contains(t, body, `<a href="/priv/packages/">here</a>`)
}

func TestForwardedHostWelcomeNoTrailingSlash(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doGet(srv, "/", map[string]string{"X-Forwarded-Host": "forward.ed/priv"})
	body := w.Body.String()
	assert.Contains(t, body, "easy_install --index-url http://forward.ed/priv/simple/ PACKAGE")
	assert.Contains(t, body, `<a href="/priv/packages/">here</a>`)
}

func TestForwardedHostSimpleProjectLinks(t *testing.T) {
	srv, root := newTestServer(t)
	addFile(t, srv, root, "foobar-1.0.zip", "123")

	w := doGet(srv, "/simple/foobar/", map[string]string{"X-Forwarded-Host": "forwarded.ed/priv/"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `href="/priv/packages/foobar-1.0.zip#`)
}

func TestForwardedHostPackagesLinks(t *testing.T) {
	srv, root := newTestServer(t)
	addFile(t, srv, root, "foobar-1.0.zip", "123")

	w := doGet(srv, "/packages/", map[string]string{"X-Forwarded-Host": "forwarded/priv/"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `/priv/packages/foobar-1.0.zip#`)
}

func TestRedirectsHonorForwardedPrefix(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doGet(srv, "/packages", map[string]string{"X-Forwarded-Host": "forward.ed/priv/"})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/priv/packages/", w.Header().Get("Location"))

	w = doGet(srv, "/simple/FooBar/", map[string]string{"X-Forwarded-Host": "forward.ed/priv/"})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/priv/simple/foobar/", w.Header().Get("Location"))
}

func TestRedirectEncodesNewlines(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doGet(srv, "/simple/foobar", map[string]string{
		"X-Forwarded-Host":  "evil/pre\nfix",
		"X-Forwarded-Proto": "/\nSet-Cookie:malicious=1;",
	})
	location := w.Header().Get("Location")
	assert.NotContains(t, location, "\n")
	assert.NotContains(t, location, "\r")
}
