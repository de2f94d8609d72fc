package handler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/model"
)

// parseDrinkFilter reads the drink list query parameters:
//
//	type, subtype, maker, q, minRating, maxRating, minPrice, maxPrice,
//	from, to (RFC 3339 or YYYY-MM-DD), private (true|false),
//	sort (date|rating|name|price), order (asc|desc, default desc), limit
//
// A "to" given as a bare date covers that whole day.
func parseDrinkFilter(q url.Values) (model.DrinkFilter, error) {
	f := model.DrinkFilter{
		Type:    model.DrinkType(strings.ToLower(strings.TrimSpace(q.Get("type")))),
		Subtype: strings.TrimSpace(q.Get("subtype")),
		Maker:   strings.TrimSpace(q.Get("maker")),
		Search:  strings.TrimSpace(q.Get("q")),
		SortBy:  strings.ToLower(strings.TrimSpace(q.Get("sort"))),
		Desc:    true,
	}

	var err error
	if f.MinRating, err = floatParam(q, "minRating"); err != nil {
		return f, err
	}
	if f.MaxRating, err = floatParam(q, "maxRating"); err != nil {
		return f, err
	}
	if f.MinPrice, err = floatParam(q, "minPrice"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = floatParam(q, "maxPrice"); err != nil {
		return f, err
	}
	if f.From, err = timeParam(q, "from", false); err != nil {
		return f, err
	}
	if f.To, err = timeParam(q, "to", true); err != nil {
		return f, err
	}

	if v := q.Get("private"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, apperror.ValidationFailed("private", "must be true or false")
		}
		f.IsPrivate = &b
	}

	switch strings.ToLower(q.Get("order")) {
	case "", "desc":
	case "asc":
		f.Desc = false
	default:
		return f, apperror.ValidationFailed("order", "must be asc or desc")
	}

	if f.Limit, err = intParam(q, "limit"); err != nil {
		return f, err
	}
	return f, nil
}

func floatParam(q url.Values, name string) (*float64, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, apperror.ValidationFailed(name, "must be a number")
	}
	return &f, nil
}

func intParam(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(name, "must be a non-negative integer")
	}
	return n, nil
}

// timeParam accepts RFC 3339 (with or without fractional seconds) or a
// bare date. endOfDay moves a bare date to its last instant.
func timeParam(q url.Values, name string, endOfDay bool) (*time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, apperror.ValidationFailed(name, "must be an RFC 3339 time or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
