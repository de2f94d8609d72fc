package model

import "time"

// CircleRole is a member's permission level inside a circle.
type CircleRole string

const (
	RoleAdmin  CircleRole = "admin"
	RoleMember CircleRole = "member"
)

// InviteStatus tracks a circle invitation.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
)

// Circle is a named group of users sharing posts.
type Circle struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPrivate   bool      `json:"isPrivate"`
	OwnerID     string    `json:"ownerId"`
	MemberCount int       `json:"memberCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CircleMember is a membership row joined with the member's summary.
type CircleMember struct {
	CircleID string      `json:"circleId"`
	User     UserSummary `json:"user"`
	Role     CircleRole  `json:"role"`
	JoinedAt time.Time   `json:"joinedAt"`
}

// CircleInvite is an invitation from an admin to another user.
type CircleInvite struct {
	ID        string       `json:"id"`
	CircleID  string       `json:"circleId"`
	Circle    *Circle      `json:"circle,omitempty"`
	InviterID string       `json:"inviterId"`
	InviteeID string       `json:"inviteeId"`
	Status    InviteStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
}

// CirclePost is a message posted to a circle, optionally referencing a drink.
type CirclePost struct {
	ID        string      `json:"id"`
	CircleID  string      `json:"circleId"`
	UserID    string      `json:"userId"`
	User      UserSummary `json:"user"`
	Content   string      `json:"content"`
	DrinkID   *string     `json:"drinkId"`
	Drink     *Drink      `json:"drink,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}
