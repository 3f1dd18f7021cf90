package server

import (
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// defaultWelcome is the landing page used when no welcome_file is
// configured. The {{NAME}} tokens are substituted per request.
const defaultWelcome = `<html>
<head>
  <title>Welcome to pypiserver!</title>
</head>
<body>
  <h1>Welcome to pypiserver!</h1>
  <p>This is a PyPI compatible package index serving {{NUMPKGS}} packages.</p>

  <p>To use this server with pip, run the following command:</p>
  <pre>
    pip install --index-url {{URL}}simple/ PACKAGE [PACKAGE2...]
  </pre>

  <p>To use this server with easy_install, run the following command:</p>
  <pre>
    easy_install --index-url {{URL}}simple/ PACKAGE
  </pre>

  <p>The complete list of all packages can be found <a href="{{PACKAGES}}">here</a>
  or via the <a href="{{SIMPLE}}">simple</a> index.</p>

  <p>This interface is implemented by
  <a href="https://pypi.org/project/pypiserver/">pypiserver</a>
  version {{VERSION}}.</p>
</body>
</html>
`

// expandWelcome substitutes the recognized variables into the welcome
// template. Unknown {{...}} tokens pass through unchanged.
func expandWelcome(tmpl string, vars map[string]string) string {
	out := tmpl
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{{"+name+"}}", value)
	}
	return out
}

// welcomePage renders the landing page.
func (s *Server) welcomePage(c *gin.Context) {
	count, err := s.catalog.Count(c.Request.Context())
	if err != nil {
		s.serverError(c, err)
		return
	}
	if s.metrics != nil {
		s.metrics.SetPackageCount(count)
	}

	base := resolveBaseURL(c.Request)
	requestURL := base.Scheme + "://" + base.Host + base.Prefix + c.Request.URL.RequestURI()

	vars := map[string]string{
		"URL":      html.EscapeString(encodeUnsafe(requestURL)),
		"VERSION":  Version,
		"NUMPKGS":  strconv.Itoa(count),
		"PACKAGES": html.EscapeString(base.Path("/packages/")),
		"SIMPLE":   html.EscapeString(base.Path("/simple/")),
	}

	body := expandWelcome(s.welcome, vars)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(body))
}
