package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/sakif/drink-journal/internal/model"
	"github.com/sakif/drink-journal/internal/repository"
)

// favoriteRating is the rating from which a drink counts as a favourite
// and steers recommendations.
const favoriteRating = 4.0

// StatsService computes stats, recommendations and the dashboard from a
// user's drinks.
type StatsService struct {
	store  repository.Store
	chat   *ChatService
	logger *slog.Logger
}

func NewStatsService(store repository.Store, chat *ChatService, logger *slog.Logger) *StatsService {
	return &StatsService{store: store, chat: chat, logger: logger}
}

// GetStats loads every drink of userID and reduces them in memory.
func (s *StatsService) GetStats(ctx context.Context, userID string) (*model.Stats, error) {
	drinks, err := s.allDrinks(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := computeStats(drinks)
	return &stats, nil
}

// GetRecommendations suggests up to ten public drinks from other users.
//
// Types and makers the user rated at least favoriteRating drive two passes,
// one by type and one by maker, of at most RecommendationLimit each.
// Without favourites, or when both passes come back empty, it falls back
// to the best rated public drinks.
func (s *StatsService) GetRecommendations(ctx context.Context, userID string) ([]model.Drink, error) {
	drinks, err := s.allDrinks(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.recommend(ctx, drinks)
}

// GetDashboard bundles stats, the latest drinks, recommendations and the
// unread counters for the home screen.
func (s *StatsService) GetDashboard(ctx context.Context, userID string) (*model.Dashboard, error) {
	drinks, err := s.allDrinks(ctx, userID)
	if err != nil {
		return nil, err
	}

	recs, err := s.recommend(ctx, drinks)
	if err != nil {
		return nil, err
	}

	unreadNotifications, err := s.store.CountUnreadNotifications(ctx, userID)
	if err != nil {
		logStoreError(s.logger, "failed to count notifications", err, slog.String("user_id", userID))
		return nil, fmt.Errorf("loading dashboard: %w", err)
	}
	unreadMessages, err := s.chat.TotalUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading dashboard: %w", err)
	}

	recent := drinks
	if len(recent) > RecentDrinksLimit {
		recent = recent[:RecentDrinksLimit]
	}

	return &model.Dashboard{
		Stats:               computeStats(drinks),
		RecentDrinks:        recent,
		Recommendations:     recs,
		UnreadNotifications: unreadNotifications,
		UnreadMessages:      unreadMessages,
	}, nil
}

// allDrinks returns every drink of userID, newest first.
func (s *StatsService) allDrinks(ctx context.Context, userID string) ([]model.Drink, error) {
	drinks, err := s.store.ListDrinks(ctx, model.DrinkFilter{
		UserID: userID,
		SortBy: model.SortByDate,
		Desc:   true,
	})
	if err != nil {
		logStoreError(s.logger, "failed to load drinks", err, slog.String("user_id", userID))
		return nil, fmt.Errorf("loading drinks: %w", err)
	}
	return drinks, nil
}

func (s *StatsService) recommend(ctx context.Context, own []model.Drink) ([]model.Drink, error) {
	ownIDs := make([]string, 0, len(own))
	typeSet := make(map[model.DrinkType]bool)
	makerSet := make(map[string]bool)
	for _, d := range own {
		ownIDs = append(ownIDs, d.ID)
		if d.Rating < favoriteRating {
			continue
		}
		typeSet[d.Type] = true
		if d.Maker != "" {
			makerSet[d.Maker] = true
		}
	}

	var recs []model.Drink
	if len(typeSet) > 0 {
		types := make([]model.DrinkType, 0, len(typeSet))
		for t := range typeSet {
			types = append(types, t)
		}
		makers := make([]string, 0, len(makerSet))
		for m := range makerSet {
			makers = append(makers, m)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
		sort.Strings(makers)

		byType, err := s.store.ListPublicDrinksMatching(ctx, types, nil, ownIDs, RecommendationLimit)
		if err != nil {
			logStoreError(s.logger, "failed to recommend by type", err)
			return nil, fmt.Errorf("recommending drinks: %w", err)
		}
		byMaker, err := s.store.ListPublicDrinksMatching(ctx, nil, makers, ownIDs, RecommendationLimit)
		if err != nil {
			logStoreError(s.logger, "failed to recommend by maker", err)
			return nil, fmt.Errorf("recommending drinks: %w", err)
		}
		recs = dedupeDrinks(byType, byMaker)
	}
	if len(recs) > 0 {
		return recs, nil
	}

	public := false
	top, err := s.store.ListDrinks(ctx, model.DrinkFilter{
		IsPrivate:  &public,
		ExcludeIDs: ownIDs,
		SortBy:     model.SortByRating,
		Desc:       true,
		Limit:      RecommendationLimit,
	})
	if err != nil {
		logStoreError(s.logger, "failed to load top rated drinks", err)
		return nil, fmt.Errorf("recommending drinks: %w", err)
	}
	return top, nil
}

// dedupeDrinks concatenates lists keeping the first occurrence of each ID.
func dedupeDrinks(lists ...[]model.Drink) []model.Drink {
	seen := make(map[string]bool)
	out := make([]model.Drink, 0)
	for _, list := range lists {
		for _, d := range list {
			if seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			out = append(out, d)
		}
	}
	return out
}

// computeStats is a pure reduction over drinks, which must be newest first
// for TopRated to break rating ties by recency.
func computeStats(drinks []model.Drink) model.Stats {
	st := model.Stats{
		CountByType: make(map[model.DrinkType]int),
		TopRated:    make([]model.Drink, 0, TopRatedLimit),
	}
	if len(drinks) == 0 {
		return st
	}

	var ratingSum, spent float64
	makers := make(map[string]bool)
	for _, d := range drinks {
		ratingSum += d.Rating
		if d.Price != nil {
			spent += *d.Price
		}
		st.CountByType[d.Type]++
		if m := strings.ToLower(strings.TrimSpace(d.Maker)); m != "" {
			makers[m] = true
		}
		if d.IsPrivate {
			st.PrivateCount++
		}
	}

	st.TotalDrinks = len(drinks)
	st.AverageRating = math.Round(ratingSum/float64(len(drinks))*10) / 10
	st.TotalSpent = math.Round(spent*100) / 100
	st.UniqueMakers = len(makers)

	var fav model.DrinkType
	best := 0
	for t, n := range st.CountByType {
		if n > best || (n == best && t < fav) {
			fav, best = t, n
		}
	}
	st.FavoriteType = &fav

	ranked := make([]model.Drink, len(drinks))
	copy(ranked, drinks)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Rating > ranked[j].Rating })
	if len(ranked) > TopRatedLimit {
		ranked = ranked[:TopRatedLimit]
	}
	st.TopRated = append(st.TopRated, ranked...)
	return st
}
