package server

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/harryzcy/pypiserver/internal/pkgfile"
	"github.com/harryzcy/pypiserver/internal/pkgname"
	"github.com/harryzcy/pypiserver/internal/storage"
)

// simpleIndex renders the top-level project listing: one anchor per
// distinct canonical name, ascending.
func (s *Server) simpleIndex(c *gin.Context) {
	projects, err := s.catalog.Projects(c.Request.Context())
	if err != nil {
		s.serverError(c, err)
		return
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n  <title>Simple Index</title>\n</head>\n<body>\n<h1>Simple Index</h1>\n")
	for _, p := range projects {
		name := html.EscapeString(p.CanonicalName)
		fmt.Fprintf(&b, "<a href=\"%s/\">%s</a><br>\n", url.PathEscape(p.CanonicalName), name)
	}
	b.WriteString("</body>\n</html>\n")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(b.String()))
}

// simpleProjectRedirect sends /simple/{project} to the canonical
// trailing-slash form.
func (s *Server) simpleProjectRedirect(c *gin.Context) {
	canonical := pkgname.Normalize(c.Param("project"))
	base := resolveBaseURL(c.Request)
	c.Redirect(http.StatusFound, base.Path("/simple/"+url.PathEscape(canonical)+"/"))
}

// simpleProject renders the artifact listing for one project, sorted by
// filename. Non-canonical spellings redirect; unknown projects redirect
// to the fallback index unless that is disabled.
func (s *Server) simpleProject(c *gin.Context) {
	name := c.Param("project")
	canonical := pkgname.Normalize(name)
	base := resolveBaseURL(c.Request)

	if name != canonical {
		c.Redirect(http.StatusFound, base.Path("/simple/"+url.PathEscape(canonical)+"/"))
		return
	}

	project, err := s.catalog.Project(c.Request.Context(), canonical)
	if err != nil {
		s.serverError(c, err)
		return
	}
	if project == nil {
		if s.config.Fallback.Disable {
			c.Status(http.StatusNotFound)
			return
		}
		if s.metrics != nil {
			s.metrics.RecordFallbackRedirect()
		}
		upstream := strings.TrimSuffix(s.config.Fallback.URL, "/")
		c.Redirect(http.StatusFound, encodeUnsafe(upstream+"/"+url.PathEscape(canonical)+"/"))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html>\n<head>\n  <title>Links for %s</title>\n</head>\n<body>\n<h1>Links for %s</h1>\n",
		html.EscapeString(canonical), html.EscapeString(canonical))
	if err := s.writeArtifactLinks(c, &b, base, project.Artifacts); err != nil {
		s.serverError(c, err)
		return
	}
	b.WriteString("</body>\n</html>\n")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(b.String()))
}

// simplePackages renders the flat artifact listing across all projects.
func (s *Server) simplePackages(c *gin.Context) {
	artifacts, err := s.catalog.Artifacts(c.Request.Context())
	if err != nil {
		s.serverError(c, err)
		return
	}

	base := resolveBaseURL(c.Request)
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n  <title>Index of packages</title>\n</head>\n<body>\n<h1>Index of packages</h1>\n")
	if err := s.writeArtifactLinks(c, &b, base, artifacts); err != nil {
		s.serverError(c, err)
		return
	}
	b.WriteString("</body>\n</html>\n")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(b.String()))
}

// writeArtifactLinks emits one anchor per artifact with the digest
// fragment integrity marker.
func (s *Server) writeArtifactLinks(c *gin.Context, b *strings.Builder, base baseURL, artifacts []storage.Artifact) error {
	for i := range artifacts {
		a := &artifacts[i]
		digest, err := s.backend.Digest(c.Request.Context(), a)
		if err != nil {
			return err
		}
		href := base.Path("/packages/" + url.PathEscape(a.Filename) + "#" + s.backend.DigestAlgo() + "=" + digest)
		fmt.Fprintf(b, "<a href=\"%s\">%s</a><br>\n", encodeUnsafe(href), html.EscapeString(a.Filename))
	}
	return nil
}

// packages handles everything under /packages/: the flat listing for the
// bare path and artifact downloads for a filename.
func (s *Server) packages(c *gin.Context) {
	filename := strings.TrimPrefix(c.Param("filepath"), "/")
	if filename == "" {
		if !s.checkAuth(c, "list") {
			return
		}
		s.simplePackages(c)
		return
	}
	if !s.checkAuth(c, "download") {
		return
	}
	s.serveArtifact(c, filename)
}

// serveArtifact streams one file from whichever root holds it. Invisible
// names and unknown files give a plain 404.
func (s *Server) serveArtifact(c *gin.Context, filename string) {
	if !storage.Visible(filename) {
		c.Status(http.StatusNotFound)
		return
	}

	for _, root := range s.backend.Roots() {
		file, info, err := s.backend.Open(c.Request.Context(), root, filename)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			s.serverError(c, err)
			return
		}
		defer file.Close()

		if s.config.CacheControl > 0 {
			c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", s.config.CacheControl))
		}
		if s.metrics != nil {
			s.metrics.RecordDownload(downloadKind(filename))
		}
		http.ServeContent(c.Writer, c.Request, filename, info.ModTime(), file)
		return
	}
	c.Status(http.StatusNotFound)
}

func downloadKind(filename string) string {
	if parsed, err := pkgfile.Parse(filename); err == nil {
		return string(parsed.Kind)
	}
	return "file"
}
