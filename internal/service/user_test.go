package service

import (
	"context"
	"testing"

	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/model"
)

func TestEnsureUser_CreatesOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	first, err := e.users.EnsureUser(ctx, "uid-1", "ada@example.com", "Ada", "https://img/ada.png")
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	second, err := e.users.EnsureUser(ctx, "uid-1", "other@example.com", "Someone Else", "")
	if err != nil {
		t.Fatalf("EnsureUser() second call error = %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("IDs differ: %s vs %s", first.ID, second.ID)
	}
	if second.DisplayName != "Ada" || second.Email != "ada@example.com" {
		t.Errorf("claims overwrote profile: %+v", second)
	}
	if second.Theme != model.ThemeSystem {
		t.Errorf("Theme = %q, want %q", second.Theme, model.ThemeSystem)
	}
}

func TestEnsureUser_FillsEmptyFieldsFromClaims(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	u, err := e.users.EnsureUser(ctx, "uid-2", "", "", "")
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	if u.DisplayName != "" {
		t.Fatalf("DisplayName = %q, want empty", u.DisplayName)
	}

	u, err = e.users.EnsureUser(ctx, "uid-2", "grace@example.com", "", "https://img/g.png")
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	if u.Email != "grace@example.com" || u.DisplayName != "grace" || u.AvatarURL != "https://img/g.png" {
		t.Errorf("fields not filled from claims: %+v", u)
	}

	stored, _ := e.users.GetMe(ctx, u.ID)
	if stored.DisplayName != "grace" {
		t.Errorf("refresh not persisted: %+v", stored)
	}
}

func TestEnsureUser_RequiresSubject(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.users.EnsureUser(context.Background(), " ", "", "", "")
	wantErr(t, err, apperror.ErrUnauthorized)
}

func TestUpdateProfile(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u := e.user(t, "ada")

	got, err := e.users.UpdateProfile(ctx, u.ID, ProfileUpdate{
		Username: ptr("  Ada_L "),
		Bio:      ptr(" likes rioja "),
		Theme:    ptr("dark"),
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if got.Username == nil || *got.Username != "ada_l" {
		t.Errorf("Username = %v, want ada_l", got.Username)
	}
	if got.Bio != "likes rioja" || got.Theme != "dark" || got.DisplayName != "ada" {
		t.Errorf("UpdateProfile() = %+v", got)
	}

	// An empty username clears it.
	got, err = e.users.UpdateProfile(ctx, u.ID, ProfileUpdate{Username: ptr("")})
	if err != nil {
		t.Fatalf("UpdateProfile() clear error = %v", err)
	}
	if got.Username != nil {
		t.Errorf("Username = %q, want nil", *got.Username)
	}
}

func TestUpdateProfile_Invalid(t *testing.T) {
	e := newTestEnv(t)
	u := e.user(t, "ada")

	tests := []struct {
		name string
		upd  ProfileUpdate
	}{
		{"bad theme", ProfileUpdate{Theme: ptr("neon")}},
		{"short username", ProfileUpdate{Username: ptr("ab")}},
		{"username with dash", ProfileUpdate{Username: ptr("ada-l")}},
		{"blank display name", ProfileUpdate{DisplayName: ptr("   ")}},
		{"bad avatar url", ProfileUpdate{AvatarURL: ptr("not a url")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.users.UpdateProfile(context.Background(), u.ID, tt.upd)
			wantErr(t, err, apperror.ErrValidation)
		})
	}
}

func TestUpdateProfile_UsernameTaken(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ada := e.user(t, "ada")
	bob := e.user(t, "bob")

	if _, err := e.users.UpdateProfile(ctx, ada.ID, ProfileUpdate{Username: ptr("taster")}); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	_, err := e.users.UpdateProfile(ctx, bob.ID, ProfileUpdate{Username: ptr("Taster")})
	wantErr(t, err, apperror.ErrConflict)
}

func TestGetProfile(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ada := e.user(t, "ada")
	bob := e.user(t, "bob")

	e.drink(t, ada.ID, DrinkInput{Name: "Public"})
	e.drink(t, ada.ID, DrinkInput{Name: "Secret", IsPrivate: true})
	if _, err := e.follows.SendFollowRequest(ctx, bob.ID, ada.ID); err != nil {
		t.Fatalf("SendFollowRequest() error = %v", err)
	}

	p, err := e.users.GetProfile(ctx, bob.ID, ada.ID)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if p.IsSelf || p.DrinkCount != 1 || p.FollowStatus != model.FollowPending || p.FollowsYou != model.FollowNone {
		t.Errorf("GetProfile() as bob = %+v", p)
	}
	if p.FollowerCount != 0 {
		t.Errorf("FollowerCount = %d, pending edges must not count", p.FollowerCount)
	}

	self, err := e.users.GetProfile(ctx, ada.ID, ada.ID)
	if err != nil {
		t.Fatalf("GetProfile() self error = %v", err)
	}
	if !self.IsSelf || self.DrinkCount != 2 {
		t.Errorf("GetProfile() self = %+v", self)
	}

	_, err = e.users.GetProfile(ctx, ada.ID, "missing")
	wantErr(t, err, apperror.ErrNotFound)
}

func TestSearchUsers(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ada := e.user(t, "ada")
	e.user(t, "adam")
	e.user(t, "bob")

	got, err := e.users.SearchUsers(ctx, ada.ID, "ad")
	if err != nil {
		t.Fatalf("SearchUsers() error = %v", err)
	}
	if len(got) != 1 || got[0].DisplayName != "adam" {
		t.Errorf("SearchUsers() = %+v, want only adam", got)
	}

	empty, err := e.users.SearchUsers(ctx, ada.ID, "  ")
	if err != nil || len(empty) != 0 {
		t.Errorf("SearchUsers(blank) = %v, %v", empty, err)
	}
}
