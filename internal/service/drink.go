package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/model"
	"github.com/sakif/drink-journal/internal/repository"
	"github.com/sakif/drink-journal/internal/validation"
)

// DrinkInput is the writable part of a drink, used for both create and
// full update.
type DrinkInput struct {
	Name      string          `json:"name" validate:"required,max=120"`
	Maker     string          `json:"maker" validate:"max=120"`
	Type      model.DrinkType `json:"type" validate:"required,oneof=wine beer spirit cocktail"`
	Subtype   string          `json:"subtype" validate:"max=60"`
	Rating    float64         `json:"rating" validate:"gte=0,lte=5"`
	Nose      []string        `json:"nose" validate:"max=20,dive,max=60"`
	Palate    []string        `json:"palate" validate:"max=20,dive,max=60"`
	Finish    []string        `json:"finish" validate:"max=20,dive,max=60"`
	Notes     string          `json:"notes" validate:"max=2000"`
	Price     *float64        `json:"price" validate:"omitempty,gte=0"`
	Currency  string          `json:"currency" validate:"omitempty,iso4217"`
	Location  string          `json:"location" validate:"max=120"`
	Pairings  []string        `json:"pairings" validate:"max=20,dive,max=60"`
	Occasion  string          `json:"occasion" validate:"max=60"`
	Mood      string          `json:"mood" validate:"max=60"`
	ABV       *float64        `json:"abv" validate:"omitempty,gte=0,lte=100"`
	ImageURL  string          `json:"imageUrl" validate:"omitempty,url,max=2048"`
	IsPrivate bool            `json:"isPrivate"`
}

func (in *DrinkInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Maker = strings.TrimSpace(in.Maker)
	in.Type = model.DrinkType(strings.ToLower(strings.TrimSpace(string(in.Type))))
	in.Subtype = strings.TrimSpace(in.Subtype)
	in.Notes = strings.TrimSpace(in.Notes)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.Location = strings.TrimSpace(in.Location)
	in.Occasion = strings.TrimSpace(in.Occasion)
	in.Mood = strings.TrimSpace(in.Mood)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.Nose = cleanList(in.Nose)
	in.Palate = cleanList(in.Palate)
	in.Finish = cleanList(in.Finish)
	in.Pairings = cleanList(in.Pairings)
}

// apply copies the input onto d. Rating is stored with one decimal.
func (in *DrinkInput) apply(d *model.Drink) {
	d.Name = in.Name
	d.Maker = in.Maker
	d.Type = in.Type
	d.Subtype = in.Subtype
	d.Rating = roundRating(in.Rating)
	d.Nose = in.Nose
	d.Palate = in.Palate
	d.Finish = in.Finish
	d.Notes = in.Notes
	d.Price = in.Price
	d.Currency = in.Currency
	d.Location = in.Location
	d.Pairings = in.Pairings
	d.Occasion = in.Occasion
	d.Mood = in.Mood
	d.ABV = in.ABV
	d.ImageURL = in.ImageURL
	d.IsPrivate = in.IsPrivate
}

// cleanList trims descriptors and drops blanks and exact repeats.
func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

func roundRating(r float64) float64 {
	return math.Round(r*10) / 10
}

// DrinkService owns the CRUD rules for a user's journal.
type DrinkService struct {
	store    repository.Store
	validate *validation.Validator
	logger   *slog.Logger
}

func NewDrinkService(store repository.Store, v *validation.Validator, logger *slog.Logger) *DrinkService {
	return &DrinkService{store: store, validate: v, logger: logger}
}

// Create records a new drink for userID.
func (s *DrinkService) Create(ctx context.Context, userID string, in DrinkInput) (*model.Drink, error) {
	in.normalize()
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}

	d := &model.Drink{UserID: userID}
	in.apply(d)

	if err := s.store.CreateDrink(ctx, d); err != nil {
		logStoreError(s.logger, "failed to create drink", err, slog.String("user_id", userID))
		return nil, fmt.Errorf("creating drink: %w", err)
	}

	s.logger.Info("drink created",
		slog.String("id", d.ID),
		slog.String("user_id", userID),
		slog.String("type", string(d.Type)),
	)
	return d, nil
}

// Get returns a drink the viewer may see. Someone else's private drink is
// reported as not found so its existence does not leak.
func (s *DrinkService) Get(ctx context.Context, viewerID, id string) (*model.Drink, error) {
	return visibleDrink(ctx, s.store, viewerID, id)
}

// List returns ownerID's drinks matching f. The owner sees private drinks
// unless f.IsPrivate says otherwise.
func (s *DrinkService) List(ctx context.Context, ownerID string, f model.DrinkFilter) ([]model.Drink, error) {
	if err := checkFilter(&f); err != nil {
		return nil, err
	}
	f.UserID = ownerID

	drinks, err := s.store.ListDrinks(ctx, f)
	if err != nil {
		logStoreError(s.logger, "failed to list drinks", err, slog.String("user_id", ownerID))
		return nil, fmt.Errorf("listing drinks: %w", err)
	}
	return drinks, nil
}

// Export returns every drink of ownerID that matches f. Unlike List it
// ignores the page size.
func (s *DrinkService) Export(ctx context.Context, ownerID string, f model.DrinkFilter) ([]model.Drink, error) {
	if err := checkFilter(&f); err != nil {
		return nil, err
	}
	f.UserID = ownerID
	f.Limit = 0

	drinks, err := s.store.ListDrinks(ctx, f)
	if err != nil {
		logStoreError(s.logger, "failed to export drinks", err, slog.String("user_id", ownerID))
		return nil, fmt.Errorf("exporting drinks: %w", err)
	}
	return drinks, nil
}

// Update replaces the writable fields of a drink owned by userID.
func (s *DrinkService) Update(ctx context.Context, userID, id string, in DrinkInput) (*model.Drink, error) {
	in.normalize()
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}

	d, err := s.ownedDrink(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	in.apply(d)

	if err := s.store.UpdateDrink(ctx, d); err != nil {
		logStoreError(s.logger, "failed to update drink", err, slog.String("id", id))
		return nil, fmt.Errorf("updating drink: %w", err)
	}

	s.logger.Info("drink updated", slog.String("id", id), slog.String("user_id", userID))
	return d, nil
}

// Delete removes a drink owned by userID. Anyone else gets ErrForbidden and
// the row is left alone.
func (s *DrinkService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.ownedDrink(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteDrink(ctx, id); err != nil {
		logStoreError(s.logger, "failed to delete drink", err, slog.String("id", id))
		return fmt.Errorf("deleting drink: %w", err)
	}

	s.logger.Info("drink deleted", slog.String("id", id), slog.String("user_id", userID))
	return nil
}

func (s *DrinkService) ownedDrink(ctx context.Context, userID, id string) (*model.Drink, error) {
	d, err := s.store.GetDrink(ctx, id)
	if err != nil {
		logStoreError(s.logger, "failed to get drink", err, slog.String("id", id))
		return nil, err
	}
	if d.UserID != userID {
		return nil, apperror.Forbidden("you can only change your own drinks")
	}
	return d, nil
}

// visibleDrink loads a drink and hides other users' private ones.
func visibleDrink(ctx context.Context, repo repository.DrinkRepository, viewerID, id string) (*model.Drink, error) {
	d, err := repo.GetDrink(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.IsPrivate && d.UserID != viewerID {
		return nil, apperror.NotFound("drink", id)
	}
	return d, nil
}

// checkFilter validates the user-supplied parts of a filter and applies
// the default and maximum limit.
func checkFilter(f *model.DrinkFilter) error {
	if f.Type != "" && !f.Type.Valid() {
		return apperror.ValidationFailed("type", "must be one of: wine beer spirit cocktail")
	}
	switch f.SortBy {
	case "", model.SortByDate, model.SortByRating, model.SortByName, model.SortByPrice:
	default:
		return apperror.ValidationFailed("sort", "must be one of: date rating name price")
	}
	if f.MinRating != nil && f.MaxRating != nil && *f.MinRating > *f.MaxRating {
		return apperror.ValidationFailed("minRating", "must not exceed maxRating")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return apperror.ValidationFailed("minPrice", "must not exceed maxPrice")
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return apperror.ValidationFailed("from", "must be before to")
	}
	f.Limit = clampLimit(f.Limit, DefaultDrinkLimit, MaxDrinkLimit)
	return nil
}
