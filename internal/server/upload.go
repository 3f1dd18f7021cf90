package server

import (
	"errors"
	"html"
	"log"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harryzcy/pypiserver/internal/messaging"
	"github.com/harryzcy/pypiserver/internal/pkgfile"
	"github.com/harryzcy/pypiserver/internal/storage"
)

// update dispatches POST / on the :action form field.
func (s *Server) update(c *gin.Context) {
	action, ok := c.GetPostForm(":action")
	if !ok {
		c.String(http.StatusBadRequest, "Missing ':action' field!")
		return
	}

	switch action {
	case "file_upload":
		s.fileUpload(c)
	case "remove_pkg":
		s.removePkg(c)
	default:
		c.String(http.StatusBadRequest, "Unsupported ':action' field: %s", escapeUserInput(action))
	}
}

// fileUpload stores a multipart content part, and an optional detached
// signature, into the first configured root.
func (s *Server) fileUpload(c *gin.Context) {
	content, err := c.FormFile("content")
	if err != nil {
		c.String(http.StatusBadRequest, "Missing 'content' file-field!")
		return
	}

	if !s.storePart(c, content) {
		return
	}
	if signature, err := c.FormFile("gpg_signature"); err == nil {
		if !s.storePart(c, signature) {
			return
		}
	}
	c.String(http.StatusOK, "")
}

// storePart validates and persists one uploaded file part. It writes the
// error response and returns false on failure.
func (s *Server) storePart(c *gin.Context, part *multipart.FileHeader) bool {
	rawName := part.Filename
	filename := path.Base(strings.ReplaceAll(rawName, "\\", "/"))

	parsed, err := pkgfile.Parse(filename)
	if err != nil {
		c.String(http.StatusBadRequest, "Bad filename: %s", escapeUserInput(rawName))
		return false
	}

	body, err := part.Open()
	if err != nil {
		s.serverError(c, err)
		return false
	}
	defer body.Close()

	root := s.backend.Roots()[0]
	if err := s.backend.Create(c.Request.Context(), root, filename, body); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			c.String(http.StatusConflict, "Package '%s' already exists!", escapeUserInput(filename))
			return false
		}
		s.serverError(c, err)
		return false
	}

	if s.metrics != nil {
		s.metrics.RecordUpload(string(parsed.Kind))
	}
	if err := s.publisher.Publish(messaging.Event{
		Type:      messaging.EventUpload,
		Name:      parsed.Project,
		Version:   parsed.Version,
		Filename:  filename,
		Root:      root,
		Timestamp: time.Now(),
	}); err != nil {
		// Events are best effort; the upload itself succeeded.
		log.Printf("warning: failed to publish upload event: %v", err)
	}
	return true
}

// removePkg deletes every artifact matching the canonical name and exact
// version, across all roots.
func (s *Server) removePkg(c *gin.Context) {
	name := c.PostForm("name")
	version := c.PostForm("version")
	if name == "" || version == "" {
		c.String(http.StatusBadRequest, "Missing 'name'/'version' fields: name=%s, version=%s",
			escapeUserInput(name), escapeUserInput(version))
		return
	}

	matches, err := s.catalog.FindRelease(c.Request.Context(), name, version)
	if err != nil {
		s.serverError(c, err)
		return
	}
	if len(matches) == 0 {
		c.String(http.StatusNotFound, "%s (%s) not found", escapeUserInput(name), escapeUserInput(version))
		return
	}

	for _, a := range matches {
		if err := s.backend.Remove(c.Request.Context(), a.Root, a.Filename); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.serverError(c, err)
			return
		}
		if s.metrics != nil {
			s.metrics.RecordRemoval(string(a.Kind))
		}
		if err := s.publisher.Publish(messaging.Event{
			Type:      messaging.EventRemove,
			Name:      a.Project,
			Version:   a.Version,
			Filename:  a.Filename,
			Root:      a.Root,
			Timestamp: time.Now(),
		}); err != nil {
			log.Printf("warning: failed to publish removal event: %v", err)
		}
	}
	c.String(http.StatusOK, "")
}

// escapeUserInput renders untrusted input safe for an HTML error body:
// control bytes are percent-encoded so no raw CR/LF survives, then HTML
// metacharacters are entity-escaped.
func escapeUserInput(value string) string {
	return html.EscapeString(encodeUnsafe(value))
}
