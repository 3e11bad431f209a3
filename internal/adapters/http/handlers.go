package http

import (
	"context"
	nethttp "net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/society/internal/adapters/signal"
	"github.com/dkeye/society/internal/app"
	"github.com/dkeye/society/internal/domain"
	"github.com/dkeye/society/internal/service"
)

// Services bundles what the handlers call into.
type Services struct {
	Auth          *service.Auth
	Users         *service.Users
	Notifications *service.Notifications
	Announcements *service.Announcements
	Orch          *app.Orchestrator
}

type handlers struct {
	ctx context.Context
	svc Services
	ws  *signal.SignalWSController
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		badRequest(c, "missing email or password")
		return
	}
	token, user, err := h.svc.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	sess := sessions.Default(c)
	sess.Set(cookieTokenKey, token)
	if err := sess.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("cookie session save")
	}
	c.JSON(nethttp.StatusOK, gin.H{"token": token, "user": user})
}

func (h *handlers) logout(c *gin.Context) {
	closed, err := h.svc.Auth.Logout(sessionFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	sess := sessions.Default(c)
	sess.Clear()
	if err := sess.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("cookie session clear")
	}
	c.JSON(nethttp.StatusOK, gin.H{"closed": closed})
}

func (h *handlers) me(c *gin.Context) {
	p, err := h.svc.Users.Me(sessionFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, p)
}

func (h *handlers) listNotifications(c *gin.Context) {
	filter, ok := domain.ParseNotificationFilter(c.Query("filter"))
	if !ok {
		badRequest(c, "unknown filter")
		return
	}
	page, err := h.svc.Notifications.List(c.Request.Context(), sessionFrom(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, page)
}

func (h *handlers) markRead(c *gin.Context) {
	id := domain.NotificationID(c.Param("id"))
	if err := h.svc.Notifications.MarkRead(c.Request.Context(), sessionFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(nethttp.StatusNoContent)
}

func (h *handlers) markAllRead(c *gin.Context) {
	n, err := h.svc.Notifications.MarkAllRead(c.Request.Context(), sessionFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"updated": n})
}

func (h *handlers) sendNotification(c *gin.Context) {
	var req service.SendInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	n, err := h.svc.Notifications.Send(c.Request.Context(), sessionFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, n)
}

func (h *handlers) listAnnouncements(c *gin.Context) {
	list, err := h.svc.Announcements.List(c.Request.Context(), sessionFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"announcements": list})
}

func (h *handlers) postAnnouncement(c *gin.Context) {
	var req service.PostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	a, err := h.svc.Announcements.Post(c.Request.Context(), sessionFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, a)
}

func (h *handlers) listUsers(c *gin.Context) {
	users, err := h.svc.Users.List(c.Request.Context(), sessionFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"users": users})
}

func (h *handlers) createUser(c *gin.Context) {
	var req service.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	u, err := h.svc.Users.Create(c.Request.Context(), sessionFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, u)
}

func (h *handlers) setFunction(c *gin.Context) {
	var req struct {
		Function string `json:"function"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	u, err := h.svc.Users.SetFunction(c.Request.Context(), sessionFrom(c), domain.UserID(c.Param("id")), req.Function)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, u)
}

func (h *handlers) members(c *gin.Context) {
	dir, err := h.svc.Users.Directory(c.Request.Context(), sessionFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"members": dir})
}

func (h *handlers) cellarRooms(c *gin.Context) {
	c.JSON(nethttp.StatusOK, gin.H{"rooms": h.svc.Orch.Rooms.List()})
}

func (h *handlers) serveWS(c *gin.Context) {
	s := sessionFrom(c)
	log.Info().Str("module", "adapters.http").Str("user", string(s.User().ID)).Msg("ws signal endpoint hit")
	h.ws.HandleSignal(h.ctx, c, s.User())
}
