// Package repository declares the storage interfaces the service layer
// depends on. The sqlite subpackage implements all of them on one *DB.
package repository

import (
	"context"
	"time"

	"github.com/sakif/drink-journal/internal/model"
)

type UserRepository interface {
	// GetOrCreateByAuthID returns the user for an identity provider subject,
	// inserting a row from the given template on first sight.
	GetOrCreateByAuthID(ctx context.Context, template *model.User) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	SearchUsers(ctx context.Context, query, excludeID string, limit int) ([]model.UserSummary, error)
}

type DrinkRepository interface {
	CreateDrink(ctx context.Context, drink *model.Drink) error
	GetDrink(ctx context.Context, id string) (*model.Drink, error)
	ListDrinks(ctx context.Context, filter model.DrinkFilter) ([]model.Drink, error)
	UpdateDrink(ctx context.Context, drink *model.Drink) error
	DeleteDrink(ctx context.Context, id string) error
	CountDrinks(ctx context.Context, userID string, publicOnly bool) (int, error)
	// ListPublicDrinksMatching feeds the recommendation passes.
	// Either types or makers may be empty; a drink matches on type OR maker.
	ListPublicDrinksMatching(ctx context.Context, types []model.DrinkType, makers []string, excludeIDs []string, limit int) ([]model.Drink, error)
	// ListPublicFeed returns public drinks newest first. A nil authorIDs
	// means every author.
	ListPublicFeed(ctx context.Context, authorIDs []string, limit int) ([]model.Drink, error)
}

type FollowRepository interface {
	GetFollow(ctx context.Context, followerID, followingID string) (*model.Follow, error)
	CreateFollow(ctx context.Context, followerID, followingID string, status model.FollowStatus) error
	// AcceptFollow flips a pending edge to accepted.
	// It reports false when no pending edge follower->following exists.
	AcceptFollow(ctx context.Context, followerID, followingID string) (bool, error)
	// DeletePendingFollow removes an edge only while it is pending.
	DeletePendingFollow(ctx context.Context, followerID, followingID string) (bool, error)
	DeleteFollow(ctx context.Context, followerID, followingID string) (bool, error)
	ListFollowers(ctx context.Context, userID string, status model.FollowStatus) ([]model.FollowEntry, error)
	ListFollowing(ctx context.Context, userID string, status model.FollowStatus) ([]model.FollowEntry, error)
	CountFollows(ctx context.Context, userID string) (followers, following int, err error)
}

type CheerRepository interface {
	// ToggleCheer inserts or deletes the (drink, user) pair and reports the
	// resulting state.
	ToggleCheer(ctx context.Context, drinkID, userID string) (model.CheerResult, error)
	CountCheers(ctx context.Context, drinkID string) (int, error)
	HasCheered(ctx context.Context, drinkID, userID string) (bool, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	ListComments(ctx context.Context, drinkID string) ([]model.Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
	DeleteNotification(ctx context.Context, userID, id string) error
}

type ChatRepository interface {
	// GetOrCreateConversation is idempotent per unordered user pair.
	GetOrCreateConversation(ctx context.Context, userA, userB string) (*model.Conversation, bool, error)
	GetParticipant(ctx context.Context, conversationID, userID string) (*model.Participant, error)
	ConversationExists(ctx context.Context, id string) (bool, error)
	ListConversationsForUser(ctx context.Context, userID string) ([]model.Conversation, error)
	OtherParticipant(ctx context.Context, conversationID, userID string) (*model.UserSummary, error)
	CreateMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, conversationID string, after *time.Time, limit int) ([]model.Message, error)
	LastMessage(ctx context.Context, conversationID string) (*model.Message, error)
	CountUnread(ctx context.Context, conversationID, userID string, since time.Time) (int, error)
	MarkRead(ctx context.Context, conversationID, userID string, at time.Time) error
}

type CircleRepository interface {
	CreateCircle(ctx context.Context, circle *model.Circle) error
	GetCircle(ctx context.Context, id string) (*model.Circle, error)
	DeleteCircle(ctx context.Context, id string) error
	ListCirclesForUser(ctx context.Context, userID string) ([]model.Circle, error)
	ListPublicCircles(ctx context.Context, limit int) ([]model.Circle, error)

	AddMember(ctx context.Context, circleID, userID string, role model.CircleRole) error
	GetMemberRole(ctx context.Context, circleID, userID string) (model.CircleRole, error)
	RemoveMember(ctx context.Context, circleID, userID string) (bool, error)
	ListMembers(ctx context.Context, circleID string) ([]model.CircleMember, error)

	CreateInvite(ctx context.Context, invite *model.CircleInvite) error
	GetInvite(ctx context.Context, id string) (*model.CircleInvite, error)
	FindPendingInvite(ctx context.Context, circleID, inviteeID string) (*model.CircleInvite, error)
	// SetInviteStatus moves a pending invite to status; false if it was not pending.
	SetInviteStatus(ctx context.Context, id string, status model.InviteStatus) (bool, error)
	// AcceptInvite marks a pending invite accepted and adds the invitee as a
	// member in one transaction; false if the invite was not pending.
	AcceptInvite(ctx context.Context, invite *model.CircleInvite) (bool, error)
	ListPendingInvites(ctx context.Context, inviteeID string) ([]model.CircleInvite, error)

	CreatePost(ctx context.Context, post *model.CirclePost) error
	ListPosts(ctx context.Context, circleID string, limit int) ([]model.CirclePost, error)
}

// Store is everything the services need. *sqlite.DB satisfies it.
type Store interface {
	UserRepository
	DrinkRepository
	FollowRepository
	CheerRepository
	CommentRepository
	NotificationRepository
	ChatRepository
	CircleRepository
}
