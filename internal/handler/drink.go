package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/drink-journal/internal/service"
)

// DrinkHandler serves the caller's journal and the numbers derived from it.
type DrinkHandler struct {
	drinks *service.DrinkService
	stats  *service.StatsService
	logger *slog.Logger
}

// NewDrinkHandler creates a new DrinkHandler.
func NewDrinkHandler(drinks *service.DrinkService, stats *service.StatsService, logger *slog.Logger) *DrinkHandler {
	return &DrinkHandler{drinks: drinks, stats: stats, logger: logger}
}

// HandleList returns the caller's drinks, filtered by the query string.
//
// HTTP: GET /api/drinks?type=wine&minRating=4&sort=rating&order=desc
func (h *DrinkHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	f, err := parseDrinkFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	drinks, err := h.drinks.List(r.Context(), me, f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, drinks)
}

// HandleCreate adds a drink to the caller's journal.
//
// HTTP: POST /api/drinks
// REQUEST BODY: {"name": "Rioja Reserva", "type": "wine", "rating": 4.5}
func (h *DrinkHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	var in service.DrinkInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	d, err := h.drinks.Create(r.Context(), me, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// HandleGet returns one drink. Other users' private drinks are 404.
//
// HTTP: GET /api/drinks/{id}
func (h *DrinkHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	d, err := h.drinks.Get(r.Context(), me, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleUpdate replaces every writable field of an owned drink.
//
// HTTP: PUT /api/drinks/{id}
func (h *DrinkHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	var in service.DrinkInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	d, err := h.drinks.Update(r.Context(), me, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleDelete removes an owned drink.
//
// HTTP: DELETE /api/drinks/{id}
func (h *DrinkHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.drinks.Delete(r.Context(), me, r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStats returns aggregate numbers over the caller's journal.
//
// HTTP: GET /api/drinks/stats
func (h *DrinkHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	st, err := h.stats.GetStats(r.Context(), me)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleRecommendations suggests other users' public drinks.
//
// HTTP: GET /api/drinks/recommendations
func (h *DrinkHandler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	recs, err := h.stats.GetRecommendations(r.Context(), me)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// HandleDashboard combines stats, recent drinks and unread counters.
//
// HTTP: GET /api/dashboard
func (h *DrinkHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	dash, err := h.stats.GetDashboard(r.Context(), me)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}
