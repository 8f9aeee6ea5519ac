// Package httperr maps the core's typed errors onto HTTP status codes
// and the JSON {"detail": "..."} error body shared by every route
// package.
package httperr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	storereg "github.com/engram-memory/engram/internal/registry/store"
)

// Write maps err onto the response's user-visible status/detail pair
// and aborts the gin context. duplicateStatus lets the caller choose
// between the memory-store outcome (200, not used here since duplicate
// there is never an error) and the link-create outcome (409) for
// storereg.DuplicateError; pass http.StatusConflict unless the caller
// has a different convention for this route.
func Write(c *gin.Context, err error, duplicateStatus int) {
	status, detail := classify(err, duplicateStatus)
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func classify(err error, duplicateStatus int) (int, string) {
	var notFound storereg.NotFoundError
	if errors.As(err, &notFound) {
		return http.StatusNotFound, err.Error()
	}
	var dup storereg.DuplicateError
	if errors.As(err, &dup) {
		return duplicateStatus, err.Error()
	}
	var quota storereg.QuotaExceededError
	if errors.As(err, &quota) {
		return http.StatusForbidden, err.Error()
	}
	var feature storereg.FeatureNotEnabledError
	if errors.As(err, &feature) {
		return http.StatusForbidden, err.Error()
	}
	var invalid storereg.ValidationError
	if errors.As(err, &invalid) {
		return http.StatusBadRequest, err.Error()
	}
	var storage storereg.StorageError
	if errors.As(err, &storage) {
		return http.StatusInternalServerError, "storage fault"
	}
	return http.StatusInternalServerError, "internal error"
}

// BadRequest aborts with a 400 and the given detail, for adapter-level
// validation (bad JSON, out-of-range query params) that never reaches
// the core.
func BadRequest(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": detail})
}
