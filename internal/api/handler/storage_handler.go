package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
)

// ObjectSource reads stored files by bucket and path.
type ObjectSource interface {
	OpenObject(ctx context.Context, bucket, path string) (*domain.Object, error)
}

type StorageHandler struct {
	objects ObjectSource
}

func NewStorageHandler(objects ObjectSource) *StorageHandler {
	return &StorageHandler{objects: objects}
}

// PublicObject serves a stored file at its public URL.
//
// @Summary      Download public object
// @Tags         storage
// @Produce      octet-stream
// @Param        bucket  path  string  true  "Bucket name"
// @Param        path    path  string  true  "Object path"
// @Success      200
// @Failure      404  {object}  map[string]string
// @Router       /storage/v1/object/public/{bucket}/{path} [get]
func (h *StorageHandler) PublicObject(c echo.Context) error {
	bucket := c.Param("bucket")
	path, err := url.PathUnescape(c.Param("*"))
	if err != nil || !validObjectPath(path) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": domain.ErrObjectNotFound.Error()})
	}

	obj, err := h.objects.OpenObject(c.Request().Context(), bucket, path)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return err
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set("Cache-Control", "public, max-age=3600")
	return c.Blob(http.StatusOK, contentType, obj.Data)
}

func validObjectPath(p string) bool {
	if p == "" {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}
