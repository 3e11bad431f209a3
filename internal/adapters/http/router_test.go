package http

import (
	"bytes"
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/society/internal/app"
	"github.com/dkeye/society/internal/auth"
	"github.com/dkeye/society/internal/broker"
	"github.com/dkeye/society/internal/config"
	"github.com/dkeye/society/internal/domain"
	"github.com/dkeye/society/internal/guard"
	"github.com/dkeye/society/internal/protocol"
	"github.com/dkeye/society/internal/service"
	"github.com/dkeye/society/internal/storage"
)

const password = "segredo123"

type testServer struct {
	router *gin.Engine
	db     *storage.DB
	orch   *app.Orchestrator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	db, err := storage.Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	orch := app.NewOrchestrator(broker.NewLocal(), app.NewRoomRateLimiter(10, time.Minute))
	require.NoError(t, orch.Run(ctx))

	cfg := &config.Config{
		Mode:       "test",
		Secret:     "test-secret",
		TokenTTL:   time.Hour,
		PingPeriod: time.Second,
		SendBuffer: 8,
	}
	notes := service.NewNotifications(db.Notifications(), db.Users(), orch)
	svc := Services{
		Auth:          service.NewAuth(db.Users(), auth.NewTokens(cfg.Secret, cfg.TokenTTL), orch),
		Users:         service.NewUsers(db.Users()),
		Notifications: notes,
		Announcements: service.NewAnnouncements(db.Announcements(), db.Users(), notes),
		Orch:          orch,
	}
	return &testServer{router: SetupRouter(ctx, cfg, svc), db: db, orch: orch}
}

func (s *testServer) seed(t *testing.T, email string, fn domain.Function) *domain.User {
	t.Helper()
	u, err := domain.NewUser("soc-1", "Sócio", email, domain.RoleRegular, fn)
	require.NoError(t, err)
	u.PasswordHash, err = auth.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, s.db.Users().Create(context.Background(), u))
	return u
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	w := s.do(t, nethttp.MethodPost, "/api/auth/login", "", loginRequest{Email: email, Password: password})
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestUnauthenticatedRendersNothing(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/me", "/api/members", "/api/cellar/rooms", "/api/notifications"} {
		w := s.do(t, nethttp.MethodGet, path, "", nil)
		assert.Equal(t, nethttp.StatusUnauthorized, w.Code, path)
		assert.Empty(t, w.Body.String(), path)
		assert.Empty(t, w.Header().Get("Location"), path)
	}

	w := s.do(t, nethttp.MethodGet, "/api/me", "garbage", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, w.Code)
}

func TestCellarmanSeesCellarButNotMembers(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "adega@example.org", domain.FunctionCellarman)
	token := s.login(t, "adega@example.org")

	w := s.do(t, nethttp.MethodGet, "/api/members", token, nil)
	assert.Equal(t, nethttp.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), guard.AccessDeniedNotice)

	w = s.do(t, nethttp.MethodGet, "/api/cellar/rooms", token, nil)
	assert.Equal(t, nethttp.StatusOK, w.Code)
	assert.JSONEq(t, `{"rooms":[]}`, w.Body.String())
}

func TestAdministratorSeesEverything(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "admin@example.org", domain.FunctionAdministrator)
	token := s.login(t, "admin@example.org")

	for _, path := range []string{"/api/members", "/api/cellar/rooms", "/api/users", "/api/me"} {
		w := s.do(t, nethttp.MethodGet, path, token, nil)
		assert.Equal(t, nethttp.StatusOK, w.Code, path)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "rui@example.org", domain.FunctionNone)

	w := s.do(t, nethttp.MethodPost, "/api/auth/login", "", loginRequest{Email: "rui@example.org", Password: "errada"})
	assert.Equal(t, nethttp.StatusUnauthorized, w.Code)

	w = s.do(t, nethttp.MethodPost, "/api/auth/login", "", gin.H{})
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)
}

func TestNotificationFlow(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "admin@example.org", domain.FunctionAdministrator)
	member := s.seed(t, "rui@example.org", domain.FunctionNone)
	adminToken := s.login(t, "admin@example.org")
	token := s.login(t, "rui@example.org")

	w := s.do(t, nethttp.MethodPost, "/api/notifications", token, service.SendInput{UserID: member.ID, Title: "x", Message: "y"})
	assert.Equal(t, nethttp.StatusForbidden, w.Code)

	w = s.do(t, nethttp.MethodPost, "/api/notifications", adminToken, service.SendInput{UserID: member.ID, Title: "Jantar", Message: "Sexta", Type: "success"})
	require.Equal(t, nethttp.StatusCreated, w.Code, w.Body.String())
	var created domain.Notification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = s.do(t, nethttp.MethodGet, "/api/notifications?filter=unread", token, nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	var page service.NotificationPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.Unread)

	w = s.do(t, nethttp.MethodGet, "/api/notifications?filter=bogus", token, nil)
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)

	w = s.do(t, nethttp.MethodPost, "/api/notifications/"+string(created.ID)+"/read", adminToken, nil)
	assert.Equal(t, nethttp.StatusNotFound, w.Code)
	w = s.do(t, nethttp.MethodPost, "/api/notifications/"+string(created.ID)+"/read", token, nil)
	assert.Equal(t, nethttp.StatusNoContent, w.Code)

	w = s.do(t, nethttp.MethodGet, "/api/notifications?filter=read", token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].Read)
}

func TestSetFunctionAppliesOnNextRequest(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "admin@example.org", domain.FunctionAdministrator)
	member := s.seed(t, "rui@example.org", domain.FunctionNone)
	adminToken := s.login(t, "admin@example.org")
	token := s.login(t, "rui@example.org")

	w := s.do(t, nethttp.MethodGet, "/api/members", token, nil)
	assert.Equal(t, nethttp.StatusForbidden, w.Code)

	w = s.do(t, nethttp.MethodPatch, "/api/users/"+string(member.ID)+"/function", adminToken, gin.H{"function": "tesoureiro"})
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())

	w = s.do(t, nethttp.MethodGet, "/api/members", token, nil)
	assert.Equal(t, nethttp.StatusOK, w.Code)

	w = s.do(t, nethttp.MethodPatch, "/api/users/"+string(member.ID)+"/function", adminToken, gin.H{"function": "rei"})
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)
}

func TestAnnouncementPostingNeedsCapability(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "rui@example.org", domain.FunctionNone)
	s.seed(t, "adega@example.org", domain.FunctionCellarman)

	w := s.do(t, nethttp.MethodPost, "/api/announcements", s.login(t, "rui@example.org"), service.PostInput{Title: "t", Body: "b"})
	assert.Equal(t, nethttp.StatusForbidden, w.Code)

	token := s.login(t, "adega@example.org")
	w = s.do(t, nethttp.MethodPost, "/api/announcements", token, service.PostInput{Title: "Vinho novo", Body: "Chegou o tinto."})
	assert.Equal(t, nethttp.StatusCreated, w.Code)

	w = s.do(t, nethttp.MethodGet, "/api/announcements", token, nil)
	assert.Equal(t, nethttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Vinho novo")
}

func TestRecoveryRendersFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(nethttp.MethodGet, "/boom", nil))
	assert.Equal(t, nethttp.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"retry":true`)
}

func readFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestWebsocketDeliversNotificationsAndChat(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "admin@example.org", domain.FunctionAdministrator)
	member := s.seed(t, "rui@example.org", domain.FunctionNone)
	adminToken := s.login(t, "admin@example.org")
	token := s.login(t, "rui@example.org")

	srv := httptest.NewServer(s.router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token="

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"nope", nil)
	require.Error(t, err)
	require.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(protocol.NewJoin("someone-else")))
	var errFrame protocol.Error
	readFrame(t, conn, &errFrame)
	assert.Equal(t, protocol.ErrForbiddenRoom, errFrame.Error)

	require.NoError(t, conn.WriteJSON(protocol.NewJoin(member.ID)))
	var joined protocol.Room
	readFrame(t, conn, &joined)
	assert.Equal(t, protocol.TypeJoined, joined.Type)

	w := s.do(t, nethttp.MethodPost, "/api/notifications", adminToken, service.SendInput{UserID: member.ID, Title: "Ao vivo", Message: "Olá"})
	require.Equal(t, nethttp.StatusCreated, w.Code)

	var pushed protocol.Notification
	readFrame(t, conn, &pushed)
	assert.Equal(t, protocol.TypeNotification, pushed.Type)
	assert.Equal(t, "Ao vivo", pushed.Notification.Title)

	admin, _, err := websocket.DefaultDialer.Dial(wsURL+adminToken, nil)
	require.NoError(t, err)
	defer admin.Close()

	require.NoError(t, conn.WriteJSON(protocol.NewRoom(protocol.TypeJoinChat, "adega")))
	readFrame(t, conn, &joined)
	require.NoError(t, admin.WriteJSON(protocol.NewRoom(protocol.TypeJoinChat, "adega")))
	readFrame(t, admin, &joined)
	assert.Equal(t, "adega", joined.Room)

	require.NoError(t, admin.WriteJSON(protocol.Chat{Type: protocol.TypeChat, Room: "adega", Text: "saúde"}))
	var msg protocol.ChatMessage
	readFrame(t, conn, &msg)
	assert.Equal(t, "saúde", msg.Text)

	w = s.do(t, nethttp.MethodGet, "/api/cellar/rooms", adminToken, nil)
	assert.JSONEq(t, `{"rooms":[{"id":"adega","memberCount":2}]}`, w.Body.String())

	w = s.do(t, nethttp.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.JSONEq(t, `{"closed":1}`, w.Body.String())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestWebsocketWhoAmIListsRooms(t *testing.T) {
	s := newTestServer(t)
	member := s.seed(t, "rui@example.org", domain.FunctionNone)
	token := s.login(t, "rui@example.org")

	srv := httptest.NewServer(s.router)
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(protocol.Envelope{Type: protocol.TypeWhoAmI}))
	var who protocol.WhoAmI
	readFrame(t, conn, &who)
	assert.Equal(t, protocol.TypeWhoAmI, who.Type)
	assert.Equal(t, member.ID, who.User.ID)
	assert.Equal(t, member.Name, who.User.Name)
	assert.Empty(t, who.Rooms)

	var joined protocol.Room
	require.NoError(t, conn.WriteJSON(protocol.NewJoin(member.ID)))
	readFrame(t, conn, &joined)
	require.NoError(t, conn.WriteJSON(protocol.NewRoom(protocol.TypeJoinChat, "adega")))
	readFrame(t, conn, &joined)

	require.NoError(t, conn.WriteJSON(protocol.Envelope{Type: protocol.TypeWhoAmI}))
	readFrame(t, conn, &who)
	assert.Equal(t, []domain.RoomName{"chat:adega", domain.PersonalRoom(member.ID)}, who.Rooms)
}
