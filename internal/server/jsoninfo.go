package server

import (
	"net/http"
	"net/url"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/harryzcy/pypiserver/internal/pkgname"
)

var jsonInfoPath = regexp.MustCompile(`^/([^/]+)/json$`)

// jsonInfoFallback matches GET /{project}/json from the engine's NoRoute
// hook and 404s everything else.
func (s *Server) jsonInfoFallback(c *gin.Context) {
	if c.Request.Method == http.MethodGet {
		if m := jsonInfoPath.FindStringSubmatch(c.Request.URL.Path); m != nil {
			name, err := url.PathUnescape(m[1])
			if err != nil {
				name = m[1]
			}
			s.jsonInfo(c, name)
			return
		}
	}
	c.Status(http.StatusNotFound)
}

// jsonInfo renders per-project release metadata. info carries the newest
// version by natural packaging-version ordering; releases keys every
// observed version with one entry per artifact.
func (s *Server) jsonInfo(c *gin.Context, name string) {
	canonical := pkgname.Normalize(name)
	base := resolveBaseURL(c.Request)

	if name != canonical {
		c.Redirect(http.StatusFound, base.Path("/"+url.PathEscape(canonical)+"/json"))
		return
	}

	project, err := s.catalog.Project(c.Request.Context(), canonical)
	if err != nil {
		s.serverError(c, err)
		return
	}
	if project == nil {
		c.Status(http.StatusNotFound)
		return
	}

	newest := project.Versions[0]
	for _, v := range project.Versions[1:] {
		if pkgname.CompareVersions(v, newest) > 0 {
			newest = v
		}
	}

	releases := make(map[string][]gin.H, len(project.Versions))
	for i := range project.Artifacts {
		a := &project.Artifacts[i]
		digest, err := s.backend.Digest(c.Request.Context(), a)
		if err != nil {
			s.serverError(c, err)
			return
		}
		releases[a.Version] = append(releases[a.Version], gin.H{
			"filename": a.Filename,
			"url":      base.Root() + "/packages/" + url.PathEscape(a.Filename),
			"digests":  gin.H{s.backend.DigestAlgo(): digest},
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"info":     gin.H{"version": newest},
		"releases": releases,
	})
}
