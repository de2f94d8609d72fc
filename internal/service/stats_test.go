package service

import (
	"context"
	"testing"
	"time"

	"github.com/sakif/drink-journal/internal/model"
)

func TestComputeStats_Empty(t *testing.T) {
	st := computeStats(nil)

	if st.TotalDrinks != 0 || st.AverageRating != 0 || st.FavoriteType != nil {
		t.Errorf("computeStats(nil) = %+v", st)
	}
	if st.CountByType == nil || st.TopRated == nil {
		t.Error("maps and lists must be empty, not nil")
	}
}

func TestComputeStats(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Newest first, as the store returns them.
	drinks := []model.Drink{
		{ID: "5", Type: model.DrinkBeer, Rating: 4, Maker: "Guinness", Price: ptr(6.0), CreatedAt: base.Add(5 * time.Hour)},
		{ID: "4", Type: model.DrinkWine, Rating: 4.5, Maker: "muga", CreatedAt: base.Add(4 * time.Hour), IsPrivate: true},
		{ID: "3", Type: model.DrinkBeer, Rating: 3, Maker: "Guinness", Price: ptr(5.5), CreatedAt: base.Add(3 * time.Hour)},
		{ID: "2", Type: model.DrinkWine, Rating: 4.5, Maker: "Muga", Price: ptr(20.25), CreatedAt: base.Add(2 * time.Hour)},
		{ID: "1", Type: model.DrinkSpirit, Rating: 2.1, CreatedAt: base.Add(time.Hour)},
	}

	st := computeStats(drinks)

	if st.TotalDrinks != 5 {
		t.Errorf("TotalDrinks = %d", st.TotalDrinks)
	}
	// (4 + 4.5 + 3 + 4.5 + 2.1) / 5 = 3.62
	if st.AverageRating != 3.6 {
		t.Errorf("AverageRating = %v, want 3.6", st.AverageRating)
	}
	if st.TotalSpent != 31.75 {
		t.Errorf("TotalSpent = %v, want 31.75", st.TotalSpent)
	}
	if st.CountByType[model.DrinkBeer] != 2 || st.CountByType[model.DrinkWine] != 2 || st.CountByType[model.DrinkSpirit] != 1 {
		t.Errorf("CountByType = %v", st.CountByType)
	}
	// beer and wine tie on 2; the name breaks it.
	if st.FavoriteType == nil || *st.FavoriteType != model.DrinkBeer {
		t.Errorf("FavoriteType = %v, want beer", st.FavoriteType)
	}
	// Guinness and Muga/muga.
	if st.UniqueMakers != 2 {
		t.Errorf("UniqueMakers = %d, want 2", st.UniqueMakers)
	}
	if st.PrivateCount != 1 {
		t.Errorf("PrivateCount = %d, want 1", st.PrivateCount)
	}

	if len(st.TopRated) != 3 {
		t.Fatalf("TopRated = %d drinks, want 3", len(st.TopRated))
	}
	got := []string{st.TopRated[0].ID, st.TopRated[1].ID, st.TopRated[2].ID}
	want := []string{"4", "2", "5"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TopRated = %v, want %v", got, want)
			break
		}
	}
}

func TestGetStats_ZeroDrinks(t *testing.T) {
	e := newTestEnv(t)
	u := e.user(t, "ada")

	st, err := e.stats.GetStats(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if st.TotalDrinks != 0 || st.AverageRating != 0 || st.FavoriteType != nil {
		t.Errorf("GetStats() = %+v", st)
	}
}

func TestGetRecommendations_NoDrinksFallsBackToTopRated(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ada := e.user(t, "ada")
	bob := e.user(t, "bob")

	for _, r := range []float64{1, 2, 3, 4, 5, 4.5, 3.5} {
		e.drink(t, bob.ID, DrinkInput{Rating: r})
	}
	e.drink(t, bob.ID, DrinkInput{Rating: 5, IsPrivate: true})

	recs, err := e.stats.GetRecommendations(ctx, ada.ID)
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if len(recs) != RecommendationLimit {
		t.Fatalf("got %d recommendations, want %d", len(recs), RecommendationLimit)
	}
	if recs[0].Rating != 5 || recs[len(recs)-1].Rating != 3 {
		t.Errorf("ratings = %v, want best first", ratings(recs))
	}
	for _, d := range recs {
		if d.IsPrivate {
			t.Errorf("private drink %s recommended", d.ID)
		}
	}
}

func TestGetRecommendations_ByTypeAndMaker(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ada := e.user(t, "ada")
	bob := e.user(t, "bob")

	e.drink(t, ada.ID, DrinkInput{Name: "Loved Rioja", Type: model.DrinkWine, Maker: "Muga", Rating: 4.5})
	e.drink(t, ada.ID, DrinkInput{Name: "Meh Lager", Type: model.DrinkBeer, Maker: "Generic", Rating: 2})

	sameType := e.drink(t, bob.ID, DrinkInput{Name: "Other Wine", Type: model.DrinkWine, Maker: "Vega", Rating: 4})
	sameMaker := e.drink(t, bob.ID, DrinkInput{Name: "Muga Gin", Type: model.DrinkSpirit, Maker: "Muga", Rating: 3})
	e.drink(t, bob.ID, DrinkInput{Name: "Generic Pils", Type: model.DrinkBeer, Maker: "Generic", Rating: 5})

	recs, err := e.stats.GetRecommendations(ctx, ada.ID)
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}

	ids := map[string]bool{}
	for _, d := range recs {
		if d.UserID == ada.ID {
			t.Errorf("own drink %q recommended", d.Name)
		}
		if ids[d.ID] {
			t.Errorf("duplicate recommendation %q", d.Name)
		}
		ids[d.ID] = true
	}
	if !ids[sameType.ID] || !ids[sameMaker.ID] {
		t.Errorf("recommendations = %v, want Other Wine and Muga Gin", drinkNames(recs))
	}
	if len(recs) != 2 {
		t.Errorf("recommendations = %v, the beer is not a favourite", drinkNames(recs))
	}
}

func TestGetDashboard(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ada := e.user(t, "ada")
	bob := e.user(t, "bob")
	e.befriend(t, ada.ID, bob.ID)

	for i := 0; i < RecentDrinksLimit+2; i++ {
		e.drink(t, ada.ID, DrinkInput{Rating: 3})
	}
	conv, _, _ := e.chat.GetOrCreateConversation(ctx, bob.ID, ada.ID)
	e.chat.SendMessage(ctx, bob.ID, conv.ID, MessageInput{Content: "cheers"})

	dash, err := e.stats.GetDashboard(ctx, ada.ID)
	if err != nil {
		t.Fatalf("GetDashboard() error = %v", err)
	}
	if dash.Stats.TotalDrinks != RecentDrinksLimit+2 {
		t.Errorf("TotalDrinks = %d", dash.Stats.TotalDrinks)
	}
	if len(dash.RecentDrinks) != RecentDrinksLimit {
		t.Errorf("RecentDrinks = %d, want %d", len(dash.RecentDrinks), RecentDrinksLimit)
	}
	if dash.UnreadMessages != 1 {
		t.Errorf("UnreadMessages = %d, want 1", dash.UnreadMessages)
	}
	// befriend left a follow_request and a follow_accepted for ada.
	if dash.UnreadNotifications != 2 {
		t.Errorf("UnreadNotifications = %d, want 2", dash.UnreadNotifications)
	}
}

func ratings(drinks []model.Drink) []float64 {
	out := make([]float64, len(drinks))
	for i, d := range drinks {
		out[i] = d.Rating
	}
	return out
}
