package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hospital-admin-api/internal/models"
	appErrors "github.com/noah-isme/hospital-admin-api/pkg/errors"
	"github.com/noah-isme/hospital-admin-api/pkg/response"
)

// AccessChecker decides whether a user holds a capability on the documents registered at a path.
type AccessChecker interface {
	Can(ctx context.Context, userID, path string, action models.Capability) (bool, error)
}

// AccessOption tunes RequireDocument.
type AccessOption func(*accessRule)

type accessRule struct {
	selfParam string
}

// AllowSelf lets the request through when the named route parameter equals the caller's id.
func AllowSelf(param string) AccessOption {
	return func(r *accessRule) { r.selfParam = param }
}

// RequireDocument guards a route with the permission engine: the caller must hold action on a
// document registered at path. Superadmins always pass.
func RequireDocument(checker AccessChecker, path string, action models.Capability, opts ...AccessOption) gin.HandlerFunc {
	rule := accessRule{}
	for _, opt := range opts {
		opt(&rule)
	}

	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if rule.selfParam != "" {
			if target := c.Param(rule.selfParam); target != "" && target == claims.UserID {
				c.Next()
				return
			}
		}

		allowed, err := checker.Can(c.Request.Context(), claims.UserID, path, action)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if !allowed {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "missing "+string(action)+" permission on "+path))
			c.Abort()
			return
		}
		c.Next()
	}
}
