package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/model"
	"github.com/sakif/drink-journal/internal/repository"
	"github.com/sakif/drink-journal/internal/validation"
)

// CircleInput is the body of a new circle.
type CircleInput struct {
	Name        string `json:"name" validate:"required,max=80"`
	Description string `json:"description" validate:"max=500"`
	IsPrivate   bool   `json:"isPrivate"`
}

// PostInput is the body of a circle post. DrinkID is optional.
type PostInput struct {
	Content string  `json:"content" validate:"required,max=1000"`
	DrinkID *string `json:"drinkId"`
}

// CircleService manages circles, their members, invites and posts.
//
// A private circle is invisible to non-members: every lookup by a
// non-member answers not found. Admin actions return forbidden to plain
// members.
type CircleService struct {
	store    repository.Store
	notifier *Notifier
	validate *validation.Validator
	logger   *slog.Logger
}

func NewCircleService(store repository.Store, notifier *Notifier, v *validation.Validator, logger *slog.Logger) *CircleService {
	return &CircleService{store: store, notifier: notifier, validate: v, logger: logger}
}

// CreateCircle creates a circle with userID as its owner and first admin.
func (s *CircleService) CreateCircle(ctx context.Context, userID string, in CircleInput) (*model.Circle, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}

	c := &model.Circle{
		Name:        in.Name,
		Description: in.Description,
		IsPrivate:   in.IsPrivate,
		OwnerID:     userID,
		MemberCount: 1,
	}
	if err := s.store.CreateCircle(ctx, c); err != nil {
		logStoreError(s.logger, "failed to create circle", err, slog.String("user_id", userID))
		return nil, fmt.Errorf("creating circle: %w", err)
	}

	s.logger.Info("circle created", slog.String("id", c.ID), slog.String("owner_id", userID))
	return c, nil
}

func (s *CircleService) ListMyCircles(ctx context.Context, userID string) ([]model.Circle, error) {
	return s.store.ListCirclesForUser(ctx, userID)
}

func (s *CircleService) ListPublicCircles(ctx context.Context) ([]model.Circle, error) {
	return s.store.ListPublicCircles(ctx, CircleListLimit)
}

// GetCircle returns a circle the viewer may see.
func (s *CircleService) GetCircle(ctx context.Context, viewerID, id string) (*model.Circle, error) {
	c, _, err := s.lookup(ctx, viewerID, id)
	return c, err
}

// DeleteCircle removes the circle with its members, invites and posts.
func (s *CircleService) DeleteCircle(ctx context.Context, userID, id string) error {
	if _, err := s.requireAdmin(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteCircle(ctx, id); err != nil {
		logStoreError(s.logger, "failed to delete circle", err, slog.String("id", id))
		return err
	}
	s.logger.Info("circle deleted", slog.String("id", id), slog.String("by", userID))
	return nil
}

// InviteToCircle invites inviteeID on behalf of an admin.
func (s *CircleService) InviteToCircle(ctx context.Context, adminID, circleID, inviteeID string) (*model.CircleInvite, error) {
	inviteeID = strings.TrimSpace(inviteeID)
	if inviteeID == "" {
		return nil, apperror.ValidationFailed("userId", "is required")
	}
	if _, err := s.requireAdmin(ctx, adminID, circleID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetUserByID(ctx, inviteeID); err != nil {
		return nil, err
	}

	role, err := s.role(ctx, circleID, inviteeID)
	if err != nil {
		return nil, err
	}
	if role != "" {
		return nil, apperror.Conflict("circle member", "user is already a member")
	}

	_, err = s.store.FindPendingInvite(ctx, circleID, inviteeID)
	if err == nil {
		return nil, apperror.Conflict("circle invite", "user already has a pending invite")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		logStoreError(s.logger, "failed to look up invite", err)
		return nil, fmt.Errorf("inviting to circle: %w", err)
	}

	inv := &model.CircleInvite{CircleID: circleID, InviterID: adminID, InviteeID: inviteeID}
	if err := s.store.CreateInvite(ctx, inv); err != nil {
		logStoreError(s.logger, "failed to create invite", err, slog.String("circle_id", circleID))
		return nil, fmt.Errorf("inviting to circle: %w", err)
	}

	s.notifier.Notify(ctx, Event{UserID: inviteeID, Type: model.NotifyCircleInvite, ActorID: adminID, CircleID: circleID})
	s.logger.Info("circle invite sent", slog.String("circle_id", circleID), slog.String("invitee_id", inviteeID))
	return inv, nil
}

func (s *CircleService) ListMyInvites(ctx context.Context, userID string) ([]model.CircleInvite, error) {
	return s.store.ListPendingInvites(ctx, userID)
}

// RespondToInvite accepts or declines one of userID's pending invites.
// Accepting makes the invitee a member.
func (s *CircleService) RespondToInvite(ctx context.Context, userID, inviteID string, accept bool) (*model.CircleInvite, error) {
	inv, err := s.store.GetInvite(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if inv.InviteeID != userID {
		return nil, apperror.Forbidden("this invite is not addressed to you")
	}

	status := model.InviteDeclined
	var ok bool
	if accept {
		status = model.InviteAccepted
		ok, err = s.store.AcceptInvite(ctx, inv)
	} else {
		ok, err = s.store.SetInviteStatus(ctx, inviteID, status)
	}
	if err != nil {
		logStoreError(s.logger, "failed to update invite", err, slog.String("id", inviteID))
		return nil, fmt.Errorf("responding to invite: %w", err)
	}
	if !ok {
		return nil, apperror.Conflict("circle invite", "invite was already answered")
	}
	inv.Status = status

	s.logger.Info("circle invite answered",
		slog.String("id", inviteID),
		slog.String("status", string(status)),
	)
	return inv, nil
}

// JoinCircle adds userID to a public circle. Private circles are joined
// through an invite.
func (s *CircleService) JoinCircle(ctx context.Context, userID, circleID string) error {
	c, role, err := s.lookup(ctx, userID, circleID)
	if err != nil {
		return err
	}
	if role != "" {
		return apperror.Conflict("circle member", "already a member")
	}
	if c.IsPrivate {
		return apperror.Forbidden("private circles require an invite")
	}
	if err := s.store.AddMember(ctx, circleID, userID, model.RoleMember); err != nil {
		logStoreError(s.logger, "failed to join circle", err, slog.String("circle_id", circleID))
		return err
	}
	s.logger.Info("circle joined", slog.String("circle_id", circleID), slog.String("user_id", userID))
	return nil
}

// LeaveCircle removes userID's own membership. The owner cannot leave; they
// delete the circle instead.
func (s *CircleService) LeaveCircle(ctx context.Context, userID, circleID string) error {
	c, role, err := s.lookup(ctx, userID, circleID)
	if err != nil {
		return err
	}
	if role == "" {
		return apperror.NotFound("circle member", userID)
	}
	if c.OwnerID == userID {
		return apperror.Forbidden("the owner cannot leave a circle, delete it instead")
	}
	if _, err := s.store.RemoveMember(ctx, circleID, userID); err != nil {
		logStoreError(s.logger, "failed to leave circle", err, slog.String("circle_id", circleID))
		return fmt.Errorf("leaving circle: %w", err)
	}
	return nil
}

// RemoveMember lets an admin remove anyone but the owner.
func (s *CircleService) RemoveMember(ctx context.Context, adminID, circleID, memberID string) error {
	c, err := s.requireAdmin(ctx, adminID, circleID)
	if err != nil {
		return err
	}
	if memberID == c.OwnerID {
		return apperror.Forbidden("the owner cannot be removed")
	}
	ok, err := s.store.RemoveMember(ctx, circleID, memberID)
	if err != nil {
		logStoreError(s.logger, "failed to remove member", err, slog.String("circle_id", circleID))
		return fmt.Errorf("removing member: %w", err)
	}
	if !ok {
		return apperror.NotFound("circle member", memberID)
	}
	s.logger.Info("circle member removed",
		slog.String("circle_id", circleID),
		slog.String("user_id", memberID),
		slog.String("by", adminID),
	)
	return nil
}

func (s *CircleService) ListMembers(ctx context.Context, viewerID, circleID string) ([]model.CircleMember, error) {
	if _, _, err := s.lookup(ctx, viewerID, circleID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, circleID)
}

// CreatePost posts to a circle userID belongs to. A referenced drink must be
// one the poster can see.
func (s *CircleService) CreatePost(ctx context.Context, userID, circleID string, in PostInput) (*model.CirclePost, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.DrinkID != nil {
		id := strings.TrimSpace(*in.DrinkID)
		in.DrinkID = &id
		if id == "" {
			in.DrinkID = nil
		}
	}
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}

	_, role, err := s.lookup(ctx, userID, circleID)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return nil, apperror.Forbidden("only members can post in this circle")
	}

	var drink *model.Drink
	if in.DrinkID != nil {
		if drink, err = visibleDrink(ctx, s.store, userID, *in.DrinkID); err != nil {
			return nil, err
		}
	}
	author, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := &model.CirclePost{
		CircleID: circleID,
		UserID:   userID,
		User:     author.Summary(),
		Content:  in.Content,
		DrinkID:  in.DrinkID,
		Drink:    drink,
	}
	if err := s.store.CreatePost(ctx, p); err != nil {
		logStoreError(s.logger, "failed to create post", err, slog.String("circle_id", circleID))
		return nil, fmt.Errorf("creating post: %w", err)
	}
	return p, nil
}

// ListPosts returns posts newest first for members, or for anyone when the
// circle is public. Referenced drinks the viewer cannot see are left off.
func (s *CircleService) ListPosts(ctx context.Context, viewerID, circleID string) ([]model.CirclePost, error) {
	if _, _, err := s.lookup(ctx, viewerID, circleID); err != nil {
		return nil, err
	}
	posts, err := s.store.ListPosts(ctx, circleID, DefaultDrinkLimit)
	if err != nil {
		logStoreError(s.logger, "failed to list posts", err, slog.String("circle_id", circleID))
		return nil, fmt.Errorf("listing posts: %w", err)
	}

	for i := range posts {
		if posts[i].DrinkID == nil {
			continue
		}
		d, err := visibleDrink(ctx, s.store, viewerID, *posts[i].DrinkID)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				continue
			}
			logStoreError(s.logger, "failed to load post drink", err)
			return nil, fmt.Errorf("listing posts: %w", err)
		}
		posts[i].Drink = d
	}
	return posts, nil
}

// lookup loads a circle with the viewer's role, which is "" for
// non-members. Private circles are not found for non-members.
func (s *CircleService) lookup(ctx context.Context, viewerID, circleID string) (*model.Circle, model.CircleRole, error) {
	c, err := s.store.GetCircle(ctx, circleID)
	if err != nil {
		logStoreError(s.logger, "failed to get circle", err, slog.String("id", circleID))
		return nil, "", err
	}
	role, err := s.role(ctx, circleID, viewerID)
	if err != nil {
		return nil, "", err
	}
	if c.IsPrivate && role == "" {
		return nil, "", apperror.NotFound("circle", circleID)
	}
	return c, role, nil
}

func (s *CircleService) requireAdmin(ctx context.Context, userID, circleID string) (*model.Circle, error) {
	c, role, err := s.lookup(ctx, userID, circleID)
	if err != nil {
		return nil, err
	}
	if role != model.RoleAdmin {
		return nil, apperror.Forbidden("only circle admins can do that")
	}
	return c, nil
}

func (s *CircleService) role(ctx context.Context, circleID, userID string) (model.CircleRole, error) {
	role, err := s.store.GetMemberRole(ctx, circleID, userID)
	if err == nil {
		return role, nil
	}
	if errors.Is(err, apperror.ErrNotFound) {
		return "", nil
	}
	logStoreError(s.logger, "failed to get member role", err, slog.String("circle_id", circleID))
	return "", fmt.Errorf("getting member role: %w", err)
}
