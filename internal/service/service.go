// Package service contains the business rules of the journal.
//
// Handlers call services with plain Go values. A service validates its
// input, checks ownership and visibility, and reaches storage only through
// the interfaces in package repository, so tests can run it against an
// in-memory SQLite database or a hand-written fake.
//
// Errors are returned as *apperror.AppError for anything the caller did
// wrong (bad input, missing row, someone else's drink). Everything else is
// a storage failure: it is logged here at Error and wrapped for the handler
// to turn into a 500.
package service

import (
	"errors"
	"log/slog"

	"github.com/sakif/drink-journal/internal/apperror"
)

// List sizes.
const (
	DefaultDrinkLimit   = 50
	MaxDrinkLimit       = 200
	FeedLimit           = 20
	MaxSearchResults    = 20
	MaxNotifications    = 50
	RecentDrinksLimit   = 5
	RecommendationLimit = 5
	TopRatedLimit       = 3
	MessagePageLimit    = 100
	CircleListLimit     = 50
)

// clampLimit applies a default for non-positive limits and caps the rest.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// isAppError reports whether err is a caller-facing domain error rather
// than a storage failure.
func isAppError(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr)
}

// logStoreError logs err at Error unless it is a domain error. Not-found
// and conflict results are normal outcomes and stay out of the error log.
func logStoreError(logger *slog.Logger, msg string, err error, attrs ...any) {
	if isAppError(err) {
		return
	}
	logger.Error(msg, append(attrs, slog.String("error", err.Error()))...)
}
