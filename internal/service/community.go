package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/model"
	"github.com/sakif/drink-journal/internal/repository"
	"github.com/sakif/drink-journal/internal/validation"
)

// Feed scopes.
const (
	ScopeAll       = "all"
	ScopeFollowing = "following"
)

// CommentInput is the body of a new comment.
type CommentInput struct {
	Content string `json:"content" validate:"required,max=500"`
}

// CommunityService is everything public: the feed, public drink browsing,
// cheers and comments.
type CommunityService struct {
	store    repository.Store
	notifier *Notifier
	validate *validation.Validator
	logger   *slog.Logger
}

func NewCommunityService(store repository.Store, notifier *Notifier, v *validation.Validator, logger *slog.Logger) *CommunityService {
	return &CommunityService{store: store, notifier: notifier, validate: v, logger: logger}
}

// GetCommunityFeed returns the newest public drinks, at most FeedLimit.
// ScopeFollowing keeps only authors viewerID follows with an accepted edge.
//
// Each item costs a handful of follow-up queries (author, cheers, comments).
// The page is small and capped, so they are not batched.
func (s *CommunityService) GetCommunityFeed(ctx context.Context, viewerID, scope string) ([]model.FeedItem, error) {
	var authors []string
	switch scope {
	case "", ScopeAll:
	case ScopeFollowing:
		following, err := s.store.ListFollowing(ctx, viewerID, model.FollowAccepted)
		if err != nil {
			logStoreError(s.logger, "failed to list following", err, slog.String("user_id", viewerID))
			return nil, fmt.Errorf("loading feed: %w", err)
		}
		authors = make([]string, 0, len(following))
		for _, f := range following {
			authors = append(authors, f.User.ID)
		}
	default:
		return nil, apperror.ValidationFailed("scope", "must be one of: all following")
	}

	drinks, err := s.store.ListPublicFeed(ctx, authors, FeedLimit)
	if err != nil {
		logStoreError(s.logger, "failed to load feed", err)
		return nil, fmt.Errorf("loading feed: %w", err)
	}

	items := make([]model.FeedItem, 0, len(drinks))
	owners := make(map[string]model.UserSummary)
	for _, d := range drinks {
		item, err := s.decorate(ctx, viewerID, d, owners)
		if err != nil {
			logStoreError(s.logger, "failed to decorate feed item", err, slog.String("drink_id", d.ID))
			return nil, fmt.Errorf("loading feed: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *CommunityService) decorate(ctx context.Context, viewerID string, d model.Drink, owners map[string]model.UserSummary) (model.FeedItem, error) {
	item := model.FeedItem{Drink: d}

	owner, ok := owners[d.UserID]
	if !ok {
		u, err := s.store.GetUserByID(ctx, d.UserID)
		if err != nil {
			return item, err
		}
		owner = u.Summary()
		owners[d.UserID] = owner
	}
	item.User = owner

	var err error
	if item.CheerCount, err = s.store.CountCheers(ctx, d.ID); err != nil {
		return item, err
	}
	if item.HasCheered, err = s.store.HasCheered(ctx, d.ID, viewerID); err != nil {
		return item, err
	}
	if item.Comments, err = s.store.ListComments(ctx, d.ID); err != nil {
		return item, err
	}
	return item, nil
}

// GetPublicDrinks applies f across every user's public drinks.
func (s *CommunityService) GetPublicDrinks(ctx context.Context, f model.DrinkFilter) ([]model.Drink, error) {
	if err := checkFilter(&f); err != nil {
		return nil, err
	}
	public := false
	f.IsPrivate = &public

	drinks, err := s.store.ListDrinks(ctx, f)
	if err != nil {
		logStoreError(s.logger, "failed to list public drinks", err)
		return nil, fmt.Errorf("listing public drinks: %w", err)
	}
	return drinks, nil
}

// GetUserPublicDrinks is GetPublicDrinks narrowed to one author.
func (s *CommunityService) GetUserPublicDrinks(ctx context.Context, userID string, f model.DrinkFilter) ([]model.Drink, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	f.UserID = userID
	return s.GetPublicDrinks(ctx, f)
}

// ToggleCheer cheers drinkID for userID, or takes the cheer back if it was
// already there. Only a new cheer notifies the owner.
func (s *CommunityService) ToggleCheer(ctx context.Context, userID, drinkID string) (model.CheerResult, error) {
	d, err := visibleDrink(ctx, s.store, userID, drinkID)
	if err != nil {
		logStoreError(s.logger, "failed to get drink", err, slog.String("drink_id", drinkID))
		return model.CheerResult{}, err
	}

	res, err := s.store.ToggleCheer(ctx, drinkID, userID)
	if err != nil {
		logStoreError(s.logger, "failed to toggle cheer", err, slog.String("drink_id", drinkID))
		return model.CheerResult{}, fmt.Errorf("toggling cheer: %w", err)
	}

	if res.Cheered {
		s.notifier.Notify(ctx, Event{UserID: d.UserID, Type: model.NotifyCheer, ActorID: userID, DrinkID: d.ID})
	}
	return res, nil
}

// AddComment posts a comment on a drink visible to userID and notifies the
// drink's owner.
func (s *CommunityService) AddComment(ctx context.Context, userID, drinkID string, in CommentInput) (*model.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}

	d, err := visibleDrink(ctx, s.store, userID, drinkID)
	if err != nil {
		logStoreError(s.logger, "failed to get drink", err, slog.String("drink_id", drinkID))
		return nil, err
	}
	author, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	c := &model.Comment{DrinkID: drinkID, UserID: userID, Content: in.Content, User: author.Summary()}
	if err := s.store.CreateComment(ctx, c); err != nil {
		logStoreError(s.logger, "failed to create comment", err, slog.String("drink_id", drinkID))
		return nil, fmt.Errorf("adding comment: %w", err)
	}

	s.notifier.Notify(ctx, Event{UserID: d.UserID, Type: model.NotifyComment, ActorID: userID, DrinkID: d.ID})
	s.logger.Info("comment added", slog.String("id", c.ID), slog.String("drink_id", drinkID))
	return c, nil
}

// ListComments returns a visible drink's comments oldest first.
func (s *CommunityService) ListComments(ctx context.Context, viewerID, drinkID string) ([]model.Comment, error) {
	if _, err := visibleDrink(ctx, s.store, viewerID, drinkID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, drinkID)
}

// DeleteComment lets the comment's author or the drink's owner remove it.
func (s *CommunityService) DeleteComment(ctx context.Context, userID, commentID string) error {
	c, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if c.UserID != userID {
		d, err := s.store.GetDrink(ctx, c.DrinkID)
		if err != nil {
			return err
		}
		if d.UserID != userID {
			return apperror.Forbidden("only the author or the drink's owner can delete this comment")
		}
	}

	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		logStoreError(s.logger, "failed to delete comment", err, slog.String("id", commentID))
		return err
	}
	s.logger.Info("comment deleted", slog.String("id", commentID), slog.String("by", userID))
	return nil
}
