package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/drink-journal/internal/auth"
	"github.com/sakif/drink-journal/internal/handler"
	"github.com/sakif/drink-journal/internal/model"
	"github.com/sakif/drink-journal/internal/repository/sqlite"
	"github.com/sakif/drink-journal/internal/service"
	"github.com/sakif/drink-journal/internal/validation"
)

// testUserHeader carries the caller's user ID in tests, standing in for
// token verification.
const testUserHeader = "X-Test-User"

type testAPI struct {
	t      *testing.T
	router *chi.Mux
	users  *service.UserService
}

// newTestAPI mounts the handlers over an in-memory database. Requests carry
// the caller in testUserHeader; without it userID answers 401.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v := validation.New()
	notifier := service.NewNotifier(db, logger)
	userService := service.NewUserService(db, v, logger)
	chatService := service.NewChatService(db, v, logger)
	statsService := service.NewStatsService(db, chatService, logger)
	followService := service.NewFollowService(db, notifier, logger)

	users := handler.NewUserHandler(userService, logger)
	drinks := handler.NewDrinkHandler(service.NewDrinkService(db, v, logger), statsService, logger)
	community := handler.NewCommunityHandler(service.NewCommunityService(db, notifier, v, logger), followService, logger)
	notifications := handler.NewNotificationHandler(service.NewNotificationService(db, logger), logger)
	chat := handler.NewChatHandler(chatService, logger)
	circles := handler.NewCircleHandler(service.NewCircleService(db, notifier, v, logger), logger)
	health := handler.NewHealthHandler(db, logger)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if id := req.Header.Get(testUserHeader); id != "" {
				req = req.WithContext(auth.WithUserID(req.Context(), id))
			}
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/api/health", health.HandleHealth)
	r.Get("/api/me", users.HandleGetMe)
	r.Put("/api/me", users.HandleUpdateMe)
	r.Get("/api/dashboard", drinks.HandleDashboard)
	r.Get("/api/drinks", drinks.HandleList)
	r.Post("/api/drinks", drinks.HandleCreate)
	r.Get("/api/drinks/stats", drinks.HandleStats)
	r.Get("/api/drinks/export", drinks.HandleExport)
	r.Get("/api/drinks/recommendations", drinks.HandleRecommendations)
	r.Get("/api/drinks/{id}", drinks.HandleGet)
	r.Put("/api/drinks/{id}", drinks.HandleUpdate)
	r.Delete("/api/drinks/{id}", drinks.HandleDelete)
	r.Get("/api/community/feed", community.HandleFeed)
	r.Get("/api/community/drinks", community.HandlePublicDrinks)
	r.Get("/api/community/search", users.HandleSearch)
	r.Get("/api/community/users/{id}", users.HandleGetProfile)
	r.Get("/api/community/users/{id}/followers", community.HandleFollowers)
	r.Get("/api/community/follow/{id}", community.HandleFollowStatus)
	r.Post("/api/community/follow/{id}", community.HandleFollow)
	r.Delete("/api/community/follow/{id}", community.HandleUnfollow)
	r.Get("/api/community/follow-requests", community.HandleFollowRequests)
	r.Post("/api/community/follow-requests/{id}/accept", community.HandleAcceptRequest)
	r.Post("/api/community/follow-requests/{id}/decline", community.HandleDeclineRequest)
	r.Post("/api/community/drinks/{id}/cheer", community.HandleCheer)
	r.Get("/api/community/drinks/{id}/comments", community.HandleListComments)
	r.Post("/api/community/drinks/{id}/comments", community.HandleAddComment)
	r.Delete("/api/community/comments/{id}", community.HandleDeleteComment)
	r.Get("/api/notifications", notifications.HandleList)
	r.Get("/api/notifications/unread-count", notifications.HandleUnreadCount)
	r.Post("/api/notifications/read-all", notifications.HandleMarkAllRead)
	r.Get("/api/chat/conversations", chat.HandleListConversations)
	r.Post("/api/chat/conversations", chat.HandleStartConversation)
	r.Get("/api/chat/conversations/{id}/messages", chat.HandleListMessages)
	r.Post("/api/chat/conversations/{id}/messages", chat.HandleSendMessage)
	r.Post("/api/chat/conversations/{id}/read", chat.HandleMarkRead)
	r.Get("/api/chat/unread-count", chat.HandleUnreadCount)
	r.Get("/api/circles", circles.HandleListMine)
	r.Post("/api/circles", circles.HandleCreate)
	r.Get("/api/circles/invites", circles.HandleListInvites)
	r.Post("/api/circles/invites/{id}/accept", circles.HandleAcceptInvite)
	r.Get("/api/circles/{id}", circles.HandleGet)
	r.Post("/api/circles/{id}/invites", circles.HandleInvite)
	r.Post("/api/circles/{id}/join", circles.HandleJoin)
	r.Get("/api/circles/{id}/posts", circles.HandleListPosts)
	r.Post("/api/circles/{id}/posts", circles.HandleCreatePost)

	return &testAPI{t: t, router: r, users: userService}
}

// user creates a user row the way the auth middleware would.
func (a *testAPI) user(name string) string {
	a.t.Helper()
	u, err := a.users.EnsureUser(context.Background(), "auth-"+name, name+"@example.com", name, "")
	require.NoError(a.t, err)
	return u.ID
}

// do sends a request as userID ("" for anonymous). body may be nil, a
// string of raw JSON, or a value to encode.
func (a *testAPI) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(a.t, err)
		r = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(testUserHeader, userID)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

// befriend makes a and b mutual followers through the API.
func (a *testAPI) befriend(x, y string) {
	a.t.Helper()
	for _, pair := range [][2]string{{x, y}, {y, x}} {
		rr := a.do(http.MethodPost, "/api/community/follow/"+pair[1], pair[0], nil)
		require.Equal(a.t, http.StatusCreated, rr.Code, rr.Body.String())
		rr = a.do(http.MethodPost, "/api/community/follow-requests/"+pair[0]+"/accept", pair[1], nil)
		require.Equal(a.t, http.StatusNoContent, rr.Code, rr.Body.String())
	}
}

func (a *testAPI) createDrink(userID string, in map[string]any) model.Drink {
	a.t.Helper()
	if _, ok := in["type"]; !ok {
		in["type"] = "wine"
	}
	rr := a.do(http.MethodPost, "/api/drinks", userID, in)
	require.Equal(a.t, http.StatusCreated, rr.Code, rr.Body.String())
	var d model.Drink
	decode(a.t, rr, &d)
	return d
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(dst), "body: %s", rr.Body.String())
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var e handler.ErrorResponse
	decode(t, rr, &e)
	return e
}
