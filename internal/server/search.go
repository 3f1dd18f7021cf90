package server

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/harryzcy/pypiserver/internal/pkgname"
)

// searchHit is one entry of the XML-RPC search result.
type searchHit struct {
	Name    string
	Version string
	Summary string
}

// search implements the legacy XML-RPC search endpoint. Only the
// "search" method is accepted; the first string parameter is the query.
func (s *Server) search(c *gin.Context) {
	method, query, err := parseSearchEnvelope(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid RPC request")
		return
	}
	if method != "search" {
		c.String(http.StatusBadRequest, "Unsupported RPC method: %s", escapeUserInput(method))
		return
	}

	projects, err := s.catalog.Projects(c.Request.Context())
	if err != nil {
		s.serverError(c, err)
		return
	}

	needle := pkgname.Normalize(query)
	var hits []searchHit
	for _, p := range projects {
		for _, version := range p.Versions {
			if !strings.Contains(p.CanonicalName, needle) && !strings.Contains(version, needle) {
				continue
			}
			name := p.CanonicalName
			for i := range p.Artifacts {
				if p.Artifacts[i].Version == version {
					name = p.Artifacts[i].Project
					break
				}
			}
			hits = append(hits, searchHit{Name: name, Version: version, Summary: version})
		}
	}

	c.Data(http.StatusOK, "text/xml; charset=utf-8", renderSearchResponse(hits))
}

// parseSearchEnvelope extracts the method name and first string
// parameter. The accepted envelope is looser than strict XML-RPC
// because legacy clients post bare <methodName>/<string> elements.
func parseSearchEnvelope(body io.Reader) (method, query string, err error) {
	decoder := xml.NewDecoder(body)
	var current string
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", "", err
		}
		switch t := token.(type) {
		case xml.StartElement:
			current = t.Name.Local
		case xml.EndElement:
			current = ""
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			switch current {
			case "methodName":
				if method == "" {
					method = text
				}
			case "string":
				if query == "" {
					query = text
				}
			}
		}
	}
	if method == "" {
		return "", "", fmt.Errorf("missing methodName element")
	}
	return method, query, nil
}

// renderSearchResponse builds a methodResponse whose single parameter is
// an array of result structs. _pypi_ordering reflects emission order.
func renderSearchResponse(hits []searchHit) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<methodResponse><params><param><value><array><data>")
	for i, hit := range hits {
		b.WriteString("<value><struct>")
		writeMember(&b, "name", hit.Name)
		writeMember(&b, "version", hit.Version)
		writeMember(&b, "summary", hit.Summary)
		fmt.Fprintf(&b, "<member><name>_pypi_ordering</name><value><int>%d</int></value></member>", i)
		b.WriteString("</struct></value>")
	}
	b.WriteString("</data></array></value></param></params></methodResponse>")
	return []byte(b.String())
}

func writeMember(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, "<member><name>%s</name><value><string>%s</string></value></member>",
		name, xmlEscape(value))
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
