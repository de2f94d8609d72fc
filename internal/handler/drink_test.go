package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/drink-journal/internal/model"
)

func TestDrinkHandler_RequiresUser(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(http.MethodGet, "/api/drinks", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rr).Error)
}

func TestDrinkHandler_CRUD(t *testing.T) {
	api := newTestAPI(t)
	ada := api.user("ada")

	t.Run("create", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/api/drinks", ada, map[string]any{
			"name":     " Rioja Reserva ",
			"type":     "WINE",
			"maker":    "Muga",
			"rating":   4.56,
			"nose":     []string{"cherry", " cherry ", "", "oak"},
			"price":    24.5,
			"currency": "eur",
		})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var d model.Drink
		decode(t, rr, &d)
		assert.NotEmpty(t, d.ID)
		assert.Equal(t, ada, d.UserID)
		assert.Equal(t, "Rioja Reserva", d.Name)
		assert.Equal(t, model.DrinkWine, d.Type)
		assert.Equal(t, 4.6, d.Rating)
		assert.Equal(t, []string{"cherry", "oak"}, d.Nose)
		assert.Equal(t, "EUR", d.Currency)
	})

	t.Run("invalid body lists every field", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/api/drinks", ada, map[string]any{
			"type":   "juice",
			"rating": 7,
		})
		require.Equal(t, http.StatusBadRequest, rr.Code)

		e := decodeError(t, rr)
		assert.Equal(t, "validation_error", e.Error)
		assert.Contains(t, e.Fields, "name")
		assert.Contains(t, e.Fields, "type")
		assert.Contains(t, e.Fields, "rating")
	})

	t.Run("malformed JSON", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/api/drinks", ada, `{"name": `)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("get update delete", func(t *testing.T) {
		d := api.createDrink(ada, map[string]any{"name": "Pils", "type": "beer", "rating": 3})

		rr := api.do(http.MethodGet, "/api/drinks/"+d.ID, ada, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = api.do(http.MethodPut, "/api/drinks/"+d.ID, ada, map[string]any{
			"name": "Pilsner Urquell", "type": "beer", "rating": 4,
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var updated model.Drink
		decode(t, rr, &updated)
		assert.Equal(t, "Pilsner Urquell", updated.Name)
		assert.Equal(t, 4.0, updated.Rating)

		rr = api.do(http.MethodDelete, "/api/drinks/"+d.ID, ada, nil)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = api.do(http.MethodGet, "/api/drinks/"+d.ID, ada, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestDrinkHandler_Ownership(t *testing.T) {
	api := newTestAPI(t)
	ada := api.user("ada")
	bob := api.user("bob")

	public := api.createDrink(ada, map[string]any{"name": "Open"})
	private := api.createDrink(ada, map[string]any{"name": "Hidden", "isPrivate": true})

	rr := api.do(http.MethodGet, "/api/drinks/"+public.ID, bob, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = api.do(http.MethodGet, "/api/drinks/"+private.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code, "private drinks are invisible to others")

	rr = api.do(http.MethodPut, "/api/drinks/"+public.ID, bob, map[string]any{"name": "Mine now", "type": "wine"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do(http.MethodDelete, "/api/drinks/"+public.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestDrinkHandler_ListFilters(t *testing.T) {
	api := newTestAPI(t)
	ada := api.user("ada")

	api.createDrink(ada, map[string]any{"name": "Cheap Red", "type": "wine", "rating": 2, "price": 8})
	api.createDrink(ada, map[string]any{"name": "Good Red", "type": "wine", "rating": 4.5, "price": 30})
	api.createDrink(ada, map[string]any{"name": "Stout", "type": "beer", "rating": 4})

	var drinks []model.Drink
	rr := api.do(http.MethodGet, "/api/drinks?type=wine&minRating=4", ada, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &drinks)
	require.Len(t, drinks, 1)
	assert.Equal(t, "Good Red", drinks[0].Name)

	rr = api.do(http.MethodGet, "/api/drinks?sort=name&order=asc", ada, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	drinks = nil
	decode(t, rr, &drinks)
	require.Len(t, drinks, 3)
	assert.Equal(t, "Cheap Red", drinks[0].Name)
	assert.Equal(t, "Stout", drinks[2].Name)

	rr = api.do(http.MethodGet, "/api/drinks?minRating=5&maxRating=1", ada, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(http.MethodGet, "/api/drinks?sort=colour", ada, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDrinkHandler_StatsAndDashboard(t *testing.T) {
	api := newTestAPI(t)
	ada := api.user("ada")

	rr := api.do(http.MethodGet, "/api/drinks/stats", ada, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var empty model.Stats
	decode(t, rr, &empty)
	assert.Zero(t, empty.TotalDrinks)
	assert.Nil(t, empty.FavoriteType)

	api.createDrink(ada, map[string]any{"name": "A", "type": "beer", "rating": 4})
	api.createDrink(ada, map[string]any{"name": "B", "type": "beer", "rating": 3})

	rr = api.do(http.MethodGet, "/api/drinks/stats", ada, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var st model.Stats
	decode(t, rr, &st)
	assert.Equal(t, 2, st.TotalDrinks)
	assert.Equal(t, 3.5, st.AverageRating)
	require.NotNil(t, st.FavoriteType)
	assert.Equal(t, model.DrinkBeer, *st.FavoriteType)

	rr = api.do(http.MethodGet, "/api/drinks/recommendations", ada, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var recs []model.Drink
	decode(t, rr, &recs)
	assert.Empty(t, recs, "nobody else has drinks")

	rr = api.do(http.MethodGet, "/api/dashboard", ada, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var dash model.Dashboard
	decode(t, rr, &dash)
	assert.Equal(t, 2, dash.Stats.TotalDrinks)
	assert.Len(t, dash.RecentDrinks, 2)
}
