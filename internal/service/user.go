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

// ProfileUpdate carries the editable profile fields. A nil field is left
// unchanged. An empty Username or AvatarURL clears it.
type ProfileUpdate struct {
	DisplayName *string `json:"displayName" validate:"omitempty,min=1,max=60"`
	Username    *string `json:"username" validate:"omitempty,username"`
	Bio         *string `json:"bio" validate:"omitempty,max=500"`
	Location    *string `json:"location" validate:"omitempty,max=120"`
	AvatarURL   *string `json:"avatarUrl" validate:"omitempty,url,max=2048"`
	Theme       *string `json:"theme" validate:"omitempty,oneof=light dark system"`
}

// UserService manages accounts and profiles.
type UserService struct {
	store    repository.Store
	validate *validation.Validator
	logger   *slog.Logger
}

func NewUserService(store repository.Store, v *validation.Validator, logger *slog.Logger) *UserService {
	return &UserService{store: store, validate: v, logger: logger}
}

// EnsureUser returns the account for an identity provider subject, creating
// it on first sight. Email, display name and avatar are copied from the
// token claims only while the stored value is empty, so profile edits are
// never overwritten by a later sign-in.
func (s *UserService) EnsureUser(ctx context.Context, authID, email, name, picture string) (*model.User, error) {
	authID = strings.TrimSpace(authID)
	if authID == "" {
		return nil, apperror.Unauthorized("token has no subject")
	}

	displayName := strings.TrimSpace(name)
	if displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}

	user, err := s.store.GetOrCreateByAuthID(ctx, &model.User{
		AuthID:      authID,
		Email:       email,
		DisplayName: displayName,
		AvatarURL:   picture,
	})
	if err != nil {
		logStoreError(s.logger, "failed to ensure user", err, slog.String("auth_id", authID))
		return nil, fmt.Errorf("ensuring user: %w", err)
	}

	changed := false
	fill := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			changed = true
		}
	}
	fill(&user.Email, email)
	fill(&user.DisplayName, displayName)
	fill(&user.AvatarURL, picture)

	if changed {
		if err := s.store.UpdateUser(ctx, user); err != nil {
			logStoreError(s.logger, "failed to refresh user from claims", err, slog.String("user_id", user.ID))
			return nil, fmt.Errorf("refreshing user: %w", err)
		}
	}
	return user, nil
}

// GetMe returns the caller's full account.
func (s *UserService) GetMe(ctx context.Context, userID string) (*model.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

// UpdateProfile applies the non-nil fields of upd. A username already held
// by someone else is a conflict.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*model.User, error) {
	trim(upd.DisplayName)
	trim(upd.Bio)
	trim(upd.Location)
	trim(upd.AvatarURL)
	if upd.Username != nil {
		u := strings.ToLower(strings.TrimSpace(*upd.Username))
		upd.Username = &u
	}

	// Empty username and avatar mean "clear". Take them out of the struct
	// before validating, since the validator checks pointers to empty strings.
	clearUsername := upd.Username != nil && *upd.Username == ""
	clearAvatar := upd.AvatarURL != nil && *upd.AvatarURL == ""
	if clearUsername {
		upd.Username = nil
	}
	if clearAvatar {
		upd.AvatarURL = nil
	}

	if err := s.validate.Validate(upd); err != nil {
		return nil, err
	}
	if upd.DisplayName != nil && *upd.DisplayName == "" {
		return nil, apperror.ValidationFailed("displayName", "must not be blank")
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if upd.DisplayName != nil {
		user.DisplayName = *upd.DisplayName
	}
	switch {
	case clearUsername:
		user.Username = nil
	case upd.Username != nil:
		user.Username = upd.Username
	}
	if upd.Bio != nil {
		user.Bio = *upd.Bio
	}
	if upd.Location != nil {
		user.Location = *upd.Location
	}
	switch {
	case clearAvatar:
		user.AvatarURL = ""
	case upd.AvatarURL != nil:
		user.AvatarURL = *upd.AvatarURL
	}
	if upd.Theme != nil {
		user.Theme = *upd.Theme
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		logStoreError(s.logger, "failed to update profile", err, slog.String("user_id", userID))
		return nil, err
	}

	s.logger.Info("profile updated", slog.String("user_id", userID))
	return user, nil
}

// GetProfile is userID's public profile as seen by viewerID. Other viewers
// only count public drinks.
func (s *UserService) GetProfile(ctx context.Context, viewerID, userID string) (*model.Profile, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	isSelf := viewerID == userID
	followers, following, err := s.store.CountFollows(ctx, userID)
	if err != nil {
		logStoreError(s.logger, "failed to count follows", err, slog.String("user_id", userID))
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	drinks, err := s.store.CountDrinks(ctx, userID, !isSelf)
	if err != nil {
		logStoreError(s.logger, "failed to count drinks", err, slog.String("user_id", userID))
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	p := &model.Profile{
		User:           user.Summary(),
		Bio:            user.Bio,
		Location:       user.Location,
		FollowerCount:  followers,
		FollowingCount: following,
		DrinkCount:     drinks,
		FollowStatus:   model.FollowNone,
		FollowsYou:     model.FollowNone,
		IsSelf:         isSelf,
	}
	if isSelf {
		return p, nil
	}

	if p.FollowStatus, err = followStatus(ctx, s.store, viewerID, userID); err != nil {
		return nil, err
	}
	if p.FollowsYou, err = followStatus(ctx, s.store, userID, viewerID); err != nil {
		return nil, err
	}
	return p, nil
}

// SearchUsers matches q against usernames and display names, excluding the
// caller. A blank query returns nothing.
func (s *UserService) SearchUsers(ctx context.Context, viewerID, q string) ([]model.UserSummary, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []model.UserSummary{}, nil
	}
	if len(q) > 100 {
		return nil, apperror.ValidationFailed("q", "must not exceed 100 characters")
	}
	users, err := s.store.SearchUsers(ctx, q, viewerID, MaxSearchResults)
	if err != nil {
		logStoreError(s.logger, "failed to search users", err)
		return nil, fmt.Errorf("searching users: %w", err)
	}
	return users, nil
}

// followStatus looks up the directed edge from -> to.
func followStatus(ctx context.Context, repo repository.FollowRepository, from, to string) (model.FollowStatus, error) {
	f, err := repo.GetFollow(ctx, from, to)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return model.FollowNone, nil
		}
		return "", fmt.Errorf("getting follow status: %w", err)
	}
	return f.Status, nil
}

func trim(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
