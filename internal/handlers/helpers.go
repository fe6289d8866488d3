package handlers

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/apperrors"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// writeError translates an error into its HTTP shape. Every response carries
// the stable machine-checkable category.
func writeError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		log.Printf("request failed %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{
		"error":    apperrors.MessageOf(err),
		"category": apperrors.CategoryOf(err),
	})
}

// bindError shapes a request-body binding failure like every other error.
// Validator internals stay out of the response body.
func bindError(c *gin.Context, err error) {
	writeError(c, apperrors.Wrap(apperrors.InvalidRequest, "invalid payload", err))
}

// pagination reads bounded limit/offset query params.
func pagination(c *gin.Context) (limit, offset int) {
	limit = defaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

// storeScope bounds store work for one request so a hung backend surfaces as
// a deterministic unavailable error instead of a stuck caller.
func storeScope(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

// projectFields reduces an entity to the requested field set. An empty field
// list returns the entity untouched.
func projectFields(v any, fields []string) any {
	if len(fields) == 0 {
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var full map[string]any
	if err := json.Unmarshal(raw, &full); err != nil {
		return v
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if val, ok := full[f]; ok {
			out[f] = val
		}
	}
	return out
}

// fieldsParam parses the optional comma-separated fields projection.
func fieldsParam(c *gin.Context) []string {
	raw := c.Query("fields")
	if raw == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
