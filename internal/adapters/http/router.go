// Package http exposes the REST API and the realtime websocket endpoint.
package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/society/internal/adapters/signal"
	"github.com/dkeye/society/internal/config"
	"github.com/dkeye/society/internal/domain"
)

const cookieName = "SocietySession"

func SetupRouter(ctx context.Context, cfg *config.Config, svc Services) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(Logger())
	}
	r.Use(Recovery())
	r.Use(CORS(cfg.CORSOrigins))

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.TokenTTL.Seconds()),
		HttpOnly: true,
	})
	r.Use(sessions.Sessions(cookieName, store))
	r.Use(Authenticate(svc.Auth))

	h := &handlers{
		ctx: ctx,
		svc: svc,
		ws: signal.NewSignalWSController(svc.Orch, signal.Options{
			ReadLimit:  cfg.ReadLimit,
			PingPeriod: cfg.PingPeriod,
			SendBuffer: cfg.SendBuffer,
			Origins:    cfg.CORSOrigins,
		}),
	}

	signedIn := RequireAccess(domain.AccessNone)

	api := r.Group("/api")
	api.POST("/auth/login", h.login)
	api.POST("/auth/logout", signedIn, h.logout)
	api.GET("/me", signedIn, h.me)

	api.GET("/notifications", signedIn, h.listNotifications)
	api.POST("/notifications/read-all", signedIn, h.markAllRead)
	api.POST("/notifications/:id/read", signedIn, h.markRead)
	api.POST("/notifications", RequireAccess(domain.AccessAdmin), h.sendNotification)

	api.GET("/announcements", signedIn, h.listAnnouncements)
	api.POST("/announcements", signedIn, h.postAnnouncement)

	api.GET("/users", RequireAccess(domain.AccessAdmin), h.listUsers)
	api.POST("/users", RequireAccess(domain.AccessAdmin), h.createUser)
	api.PATCH("/users/:id/function", RequireAccess(domain.AccessAdmin), h.setFunction)

	api.GET("/members", RequireAccess(domain.AccessTreasurer), h.members)
	api.GET("/cellar/rooms", RequireAccess(domain.AccessCellarman), h.cellarRooms)

	r.GET("/ws", signedIn, h.serveWS)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
