package http

import (
	nethttp "net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/society/internal/auth"
	"github.com/dkeye/society/internal/domain"
	"github.com/dkeye/society/internal/guard"
	"github.com/dkeye/society/internal/service"
)

const (
	sessionKey      = "session"
	cookieTokenKey  = "token"
	queryTokenParam = "token"
)

// Authenticate resolves the caller from a bearer header, a token query
// parameter (websocket clients cannot set headers) or the cookie session.
// It never rejects: unresolved callers get an anonymous session.
func Authenticate(authSvc *service.Auth) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query(queryTokenParam)
		}
		if token == "" {
			if v, ok := sessions.Default(c).Get(cookieTokenKey).(string); ok {
				token = v
			}
		}

		s := auth.Anonymous()
		if token != "" {
			u, err := authSvc.Authenticate(c.Request.Context(), token)
			if err != nil {
				log.Debug().Err(err).Str("module", "adapters.http").Msg("token rejected")
			} else {
				s = auth.NewSession(u)
			}
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) auth.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(auth.Session); ok {
			return s
		}
	}
	return auth.Anonymous()
}

// RequireAccess renders nothing for anonymous callers (401, empty body) and
// the access-denied notice for callers lacking the capability.
func RequireAccess(required domain.Access) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch guard.Decide(required, sessionFrom(c)) {
		case guard.RenderNothing:
			c.AbortWithStatus(nethttp.StatusUnauthorized)
		case guard.Denied:
			c.AbortWithStatusJSON(nethttp.StatusForbidden, gin.H{"error": guard.AccessDeniedNotice})
		case guard.Allow:
			c.Next()
		}
	}
}

func CORS(origins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		for _, o := range origins {
			if o == "*" || o == origin {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Credentials", "true")
				break
			}
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == nethttp.MethodOptions {
			c.AbortWithStatus(nethttp.StatusNoContent)
			return
		}
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		log.Info().Str("module", "adapters.http").
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("request")
	}
}

// Recovery turns a panic into the fallback body clients show with a retry action.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error().Str("module", "adapters.http").Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("recovered")
		c.AbortWithStatusJSON(nethttp.StatusInternalServerError, gin.H{
			"error": "Ocorreu um erro inesperado.",
			"retry": true,
		})
	})
}
