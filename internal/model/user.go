// Package model defines the data structures used throughout the application.
package model

import "time"

// Theme values a user can store. The client applies them; the server only
// persists the choice.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// User represents a registered account.
//
// Identity is owned by the external identity provider: AuthID is the
// provider's subject claim and is UNIQUE in the database. We still mint our
// own xid for ID so foreign keys never depend on a third party's format.
//
// Username is optional until the user picks one, so it is a pointer.
// A nil Username is stored as NULL, which keeps the UNIQUE index from
// colliding on empty strings.
type User struct {
	ID          string    `json:"id"`
	AuthID      string    `json:"-"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Username    *string   `json:"username"`
	Bio         string    `json:"bio"`
	Location    string    `json:"location"`
	AvatarURL   string    `json:"avatarUrl"`
	Theme       string    `json:"theme"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UserSummary is the slice of a user embedded in feeds, comments and
// notifications.
type UserSummary struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	Username    *string `json:"username"`
	AvatarURL   string  `json:"avatarUrl"`
}

// Summary projects a User down to its public summary.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Username:    u.Username,
		AvatarURL:   u.AvatarURL,
	}
}

// Profile is what one user sees when looking at another.
type Profile struct {
	User           UserSummary  `json:"user"`
	Bio            string       `json:"bio"`
	Location       string       `json:"location"`
	FollowerCount  int          `json:"followerCount"`
	FollowingCount int          `json:"followingCount"`
	DrinkCount     int          `json:"drinkCount"`
	FollowStatus   FollowStatus `json:"followStatus"`
	FollowsYou     FollowStatus `json:"followsYou"`
	IsSelf         bool         `json:"isSelf"`
}
