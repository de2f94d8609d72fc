package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/model"
	"github.com/sakif/drink-journal/internal/repository"
)

// FollowService manages the follow graph.
//
// An edge follower->following is either pending or accepted. A request
// creates a pending edge; only the followed user can accept or decline it.
// Unfollow and remove-follower delete the edge whatever its state, and a
// new request may be sent afterwards.
type FollowService struct {
	store    repository.Store
	notifier *Notifier
	logger   *slog.Logger
}

func NewFollowService(store repository.Store, notifier *Notifier, logger *slog.Logger) *FollowService {
	return &FollowService{store: store, notifier: notifier, logger: logger}
}

// SendFollowRequest asks targetID to accept followerID. An existing edge is
// reported as it stands and nothing is written.
func (s *FollowService) SendFollowRequest(ctx context.Context, followerID, targetID string) (model.FollowRequestOutcome, error) {
	if followerID == targetID {
		return "", apperror.ValidationFailed("id", "you cannot follow yourself")
	}
	if _, err := s.store.GetUserByID(ctx, targetID); err != nil {
		return "", err
	}

	outcome, err := s.existingOutcome(ctx, followerID, targetID)
	if err != nil || outcome != "" {
		return outcome, err
	}

	err = s.store.CreateFollow(ctx, followerID, targetID, model.FollowPending)
	if errors.Is(err, apperror.ErrConflict) {
		// A concurrent request won the insert. Report what it left behind.
		return s.existingOutcome(ctx, followerID, targetID)
	}
	if err != nil {
		logStoreError(s.logger, "failed to create follow request", err,
			slog.String("follower_id", followerID), slog.String("following_id", targetID))
		return "", fmt.Errorf("sending follow request: %w", err)
	}

	s.notifier.Notify(ctx, Event{UserID: targetID, Type: model.NotifyFollowRequest, ActorID: followerID})
	s.logger.Info("follow requested",
		slog.String("follower_id", followerID), slog.String("following_id", targetID))
	return model.FollowRequested, nil
}

// existingOutcome maps a present edge to its outcome, or "" if none exists.
func (s *FollowService) existingOutcome(ctx context.Context, followerID, targetID string) (model.FollowRequestOutcome, error) {
	status, err := followStatus(ctx, s.store, followerID, targetID)
	if err != nil {
		logStoreError(s.logger, "failed to get follow", err)
		return "", err
	}
	switch status {
	case model.FollowAccepted:
		return model.FollowAlreadyFollowing, nil
	case model.FollowPending:
		return model.FollowAlreadyPending, nil
	}
	return "", nil
}

// AcceptFollowRequest accepts requesterID's pending request to follow me.
// It reports false when there is no such pending request.
func (s *FollowService) AcceptFollowRequest(ctx context.Context, me, requesterID string) (bool, error) {
	ok, err := s.store.AcceptFollow(ctx, requesterID, me)
	if err != nil {
		logStoreError(s.logger, "failed to accept follow", err)
		return false, fmt.Errorf("accepting follow request: %w", err)
	}
	if !ok {
		return false, nil
	}

	s.notifier.Notify(ctx, Event{UserID: requesterID, Type: model.NotifyFollowAccepted, ActorID: me})
	s.logger.Info("follow accepted", slog.String("follower_id", requesterID), slog.String("following_id", me))
	return true, nil
}

// DeclineFollowRequest drops requesterID's pending request. An accepted
// edge is left alone and false is returned.
func (s *FollowService) DeclineFollowRequest(ctx context.Context, me, requesterID string) (bool, error) {
	ok, err := s.store.DeletePendingFollow(ctx, requesterID, me)
	if err != nil {
		logStoreError(s.logger, "failed to decline follow", err)
		return false, fmt.Errorf("declining follow request: %w", err)
	}
	return ok, nil
}

// Unfollow deletes me->targetID, which also cancels a pending request.
func (s *FollowService) Unfollow(ctx context.Context, me, targetID string) (bool, error) {
	ok, err := s.store.DeleteFollow(ctx, me, targetID)
	if err != nil {
		logStoreError(s.logger, "failed to unfollow", err)
		return false, fmt.Errorf("unfollowing: %w", err)
	}
	return ok, nil
}

// RemoveFollower deletes followerID->me.
func (s *FollowService) RemoveFollower(ctx context.Context, me, followerID string) (bool, error) {
	ok, err := s.store.DeleteFollow(ctx, followerID, me)
	if err != nil {
		logStoreError(s.logger, "failed to remove follower", err)
		return false, fmt.Errorf("removing follower: %w", err)
	}
	return ok, nil
}

// GetFollowStatus is the state of the edge from -> to.
func (s *FollowService) GetFollowStatus(ctx context.Context, from, to string) (model.FollowStatus, error) {
	return followStatus(ctx, s.store, from, to)
}

// ListFollowers returns accepted followers of userID.
func (s *FollowService) ListFollowers(ctx context.Context, userID string) ([]model.FollowEntry, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListFollowers(ctx, userID, model.FollowAccepted)
}

// ListFollowing returns the users userID follows, accepted edges only.
func (s *FollowService) ListFollowing(ctx context.Context, userID string) ([]model.FollowEntry, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListFollowing(ctx, userID, model.FollowAccepted)
}

// ListIncomingRequests returns pending requests addressed to me.
func (s *FollowService) ListIncomingRequests(ctx context.Context, me string) ([]model.FollowEntry, error) {
	return s.store.ListFollowers(ctx, me, model.FollowPending)
}

// isMutual reports whether a and b follow each other with accepted edges.
func isMutual(ctx context.Context, repo repository.FollowRepository, a, b string) (bool, error) {
	ab, err := followStatus(ctx, repo, a, b)
	if err != nil || ab != model.FollowAccepted {
		return false, err
	}
	ba, err := followStatus(ctx, repo, b, a)
	if err != nil {
		return false, err
	}
	return ba == model.FollowAccepted, nil
}
