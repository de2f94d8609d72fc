package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/model"
	"github.com/sakif/drink-journal/internal/repository/sqlite"
	"github.com/sakif/drink-journal/internal/validation"
)

// testEnv wires every service over one in-memory database, the same way
// the server does.
type testEnv struct {
	db            *sqlite.DB
	users         *UserService
	drinks        *DrinkService
	follows       *FollowService
	community     *CommunityService
	notifications *NotificationService
	chat          *ChatService
	stats         *StatsService
	circles       *CircleService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v := validation.New()
	notifier := NewNotifier(db, logger)
	chat := NewChatService(db, v, logger)

	return &testEnv{
		db:            db,
		users:         NewUserService(db, v, logger),
		drinks:        NewDrinkService(db, v, logger),
		follows:       NewFollowService(db, notifier, logger),
		community:     NewCommunityService(db, notifier, v, logger),
		notifications: NewNotificationService(db, logger),
		chat:          chat,
		stats:         NewStatsService(db, chat, logger),
		circles:       NewCircleService(db, notifier, v, logger),
	}
}

func (e *testEnv) user(t *testing.T, name string) *model.User {
	t.Helper()
	u, err := e.users.EnsureUser(context.Background(), "auth-"+name, name+"@example.com", name, "")
	if err != nil {
		t.Fatalf("EnsureUser(%s) error = %v", name, err)
	}
	return u
}

func (e *testEnv) drink(t *testing.T, userID string, in DrinkInput) *model.Drink {
	t.Helper()
	if in.Name == "" {
		in.Name = "House Red"
	}
	if in.Type == "" {
		in.Type = model.DrinkWine
	}
	d, err := e.drinks.Create(context.Background(), userID, in)
	if err != nil {
		t.Fatalf("Create drink error = %v", err)
	}
	return d
}

// befriend makes a and b follow each other with accepted edges.
func (e *testEnv) befriend(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		if _, err := e.follows.SendFollowRequest(ctx, pair[0], pair[1]); err != nil {
			t.Fatalf("SendFollowRequest error = %v", err)
		}
		if ok, err := e.follows.AcceptFollowRequest(ctx, pair[1], pair[0]); err != nil || !ok {
			t.Fatalf("AcceptFollowRequest = %v, %v", ok, err)
		}
	}
}

func (e *testEnv) notificationTypes(t *testing.T, userID string) []model.NotificationType {
	t.Helper()
	list, err := e.notifications.List(context.Background(), userID, false, 0)
	if err != nil {
		t.Fatalf("List notifications error = %v", err)
	}
	types := make([]model.NotificationType, 0, len(list))
	for _, n := range list {
		types = append(types, n.Type)
	}
	return types
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

func ptr[T any](v T) *T { return &v }

func TestClampLimit(t *testing.T) {
	tests := []struct {
		limit, want int
	}{
		{0, 50},
		{-3, 50},
		{10, 10},
		{500, 200},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.limit, 50, 200); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.limit, got, tt.want)
		}
	}
}

func TestIsAppError(t *testing.T) {
	if !isAppError(apperror.NotFound("drink", "x")) {
		t.Error("NotFound should be an app error")
	}
	if isAppError(errors.New("disk full")) {
		t.Error("plain error should not be an app error")
	}
}
