package model

import "time"

// FollowStatus is the state of a directed follow edge.
//
// The edge moves NONE -> PENDING -> ACCEPTED. A pending edge can drop back
// to NONE (declined or cancelled) and so can an accepted one (unfollow or
// remove follower). There is no terminal state.
type FollowStatus string

const (
	FollowNone     FollowStatus = "none"
	FollowPending  FollowStatus = "pending"
	FollowAccepted FollowStatus = "accepted"
)

// Follow is one directed edge in the social graph.
type Follow struct {
	FollowerID  string       `json:"followerId"`
	FollowingID string       `json:"followingId"`
	Status      FollowStatus `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// FollowRequestOutcome tells the caller what SendFollowRequest did.
type FollowRequestOutcome string

const (
	FollowRequested        FollowRequestOutcome = "requested"
	FollowAlreadyPending   FollowRequestOutcome = "already_pending"
	FollowAlreadyFollowing FollowRequestOutcome = "already_following"
)

// FollowEntry is a user in a follower/following/request list.
type FollowEntry struct {
	User   UserSummary  `json:"user"`
	Status FollowStatus `json:"status"`
	Since  time.Time    `json:"since"`
}

// CheerResult is the state of a drink's cheers after a toggle.
type CheerResult struct {
	Cheered bool `json:"cheered"`
	Count   int  `json:"count"`
}

// Comment is an append-only remark on a drink.
type Comment struct {
	ID        string      `json:"id"`
	DrinkID   string      `json:"drinkId"`
	UserID    string      `json:"userId"`
	Content   string      `json:"content"`
	User      UserSummary `json:"user"`
	CreatedAt time.Time   `json:"createdAt"`
}

// NotificationType names the event that produced a notification.
type NotificationType string

const (
	NotifyFollowRequest  NotificationType = "follow_request"
	NotifyFollowAccepted NotificationType = "follow_accepted"
	NotifyCheer          NotificationType = "cheer"
	NotifyComment        NotificationType = "comment"
	NotifyCircleInvite   NotificationType = "circle_invite"
)

// Notification is one row per event, addressed to UserID.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	ActorID   string           `json:"actorId"`
	Actor     UserSummary      `json:"actor"`
	DrinkID   *string          `json:"drinkId"`
	CircleID  *string          `json:"circleId"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}
