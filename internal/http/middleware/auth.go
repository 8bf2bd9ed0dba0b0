// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller of a request. Two schemes exist:
//
//   - Authorize runs the bearer-token Authorizer and stores the decoded
//     caller; used by the REST façades.
//   - RequireElevated checks "id" and "apiKey" query parameters against a
//     role set; used by the Telegram webhook and the bot management routes.
//
// Both abort with 401 and the standard error envelope on any failure and
// never reveal which check failed.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jotacemarin/botnorrea-v2/internal/auth"
	"github.com/jotacemarin/botnorrea-v2/internal/domain"
)

const (
	callerKey   = "caller"
	callerIDKey = "callerID"
)

// PolicyAuthorizer evaluates a bearer token into a policy and decodes the
// caller from an allowing one.
type PolicyAuthorizer interface {
	Authorize(ctx context.Context, token, methodArn string) auth.Policy
	Identity(p auth.Policy) (*domain.User, error)
}

// MethodArn names the resource a request targets: "<METHOD> <route>". The
// registered route is preferred so path ids do not leak into policies.
func MethodArn(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return c.Request.Method + " " + route
}

// Authorize admits requests whose Authorization header yields an Allow policy.
func Authorize(a PolicyAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := a.Authorize(c.Request.Context(), c.GetHeader("Authorization"), MethodArn(c))
		effect := auth.EffectDeny
		if p.Allowed() {
			effect = auth.EffectAllow
		}
		authDecisions.WithLabelValues("bearer", effect).Inc()

		u, err := a.Identity(p)
		if err != nil {
			unauthorized(c)
			return
		}
		setCaller(c, u)
		c.Next()
	}
}

// RequireElevated admits requests whose id/apiKey query parameters belong
// to a user holding one of roles.
func RequireElevated(users auth.UserFinder, roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := auth.Elevated(c.Request.Context(), users, c.Query("id"), c.Query("apiKey"), roles...)
		if err != nil {
			authDecisions.WithLabelValues("query", auth.EffectDeny).Inc()
			unauthorized(c)
			return
		}
		authDecisions.WithLabelValues("query", auth.EffectAllow).Inc()
		setCaller(c, u)
		c.Next()
	}
}

// CallerFrom returns the caller stored by Authorize or RequireElevated.
func CallerFrom(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok && u != nil
}

func setCaller(c *gin.Context, u *domain.User) {
	c.Set(callerKey, u)
	c.Set(callerIDKey, u.ExternalID)

	// Enrich the request logger so later lines carry the caller.
	l := LoggerFrom(c).With().Str("caller_id", u.ExternalID).Str("caller_role", string(u.Role)).Logger()
	c.Set(loggerKey, &l)
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
}

func unauthorized(c *gin.Context) {
	zerolog.Ctx(c.Request.Context()).Debug().Str("resource", MethodArn(c)).Msg("caller rejected")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"error":      auth.ErrUnauthorized.Error(),
	})
}
