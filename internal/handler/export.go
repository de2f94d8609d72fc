package handler

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/drink-journal/internal/model"
)

var exportHeader = []string{
	"id", "name", "maker", "type", "subtype", "rating",
	"nose", "palate", "finish", "notes",
	"price", "currency", "location", "pairings", "occasion", "mood", "abv",
	"private", "createdAt",
}

// HandleExport streams the caller's drinks as CSV. It takes the same
// filters as HandleList but is not paged.
//
// HTTP: GET /api/drinks/export?type=spirit
func (h *DrinkHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	f, err := parseDrinkFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	drinks, err := h.drinks.Export(r.Context(), me, f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="drinks.csv"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(exportHeader)
	for i := range drinks {
		if err := cw.Write(exportRow(&drinks[i])); err != nil {
			break
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		// Headers are already sent; all that is left is to log.
		h.logger.Warn("drink export interrupted",
			slog.String("user_id", me),
			slog.String("error", err.Error()),
		)
	}
}

func exportRow(d *model.Drink) []string {
	return []string{
		d.ID,
		d.Name,
		d.Maker,
		string(d.Type),
		d.Subtype,
		strconv.FormatFloat(d.Rating, 'f', -1, 64),
		strings.Join(d.Nose, "; "),
		strings.Join(d.Palate, "; "),
		strings.Join(d.Finish, "; "),
		d.Notes,
		optionalFloat(d.Price),
		d.Currency,
		d.Location,
		strings.Join(d.Pairings, "; "),
		d.Occasion,
		d.Mood,
		optionalFloat(d.ABV),
		strconv.FormatBool(d.IsPrivate),
		d.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
