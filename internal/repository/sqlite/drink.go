package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/xid"
	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/model"
	"github.com/sakif/drink-journal/internal/repository"
)

var _ repository.DrinkRepository = (*DB)(nil)

var drinkColumns = []string{
	"id", "user_id", "name", "maker", "type", "subtype", "rating",
	"nose", "palate", "finish", "notes", "price", "currency", "location",
	"pairings", "occasion", "mood", "abv", "image_url", "is_private",
	"created_at", "updated_at",
}

// sortColumns maps the public sort keys to columns. Anything not listed
// falls back to created_at, so user input never reaches ORDER BY directly.
var sortColumns = map[string]string{
	model.SortByDate:   "created_at",
	model.SortByRating: "rating",
	model.SortByName:   "name COLLATE NOCASE",
	model.SortByPrice:  "price",
}

// encodeList stores a descriptor list as JSON text. nil becomes "[]".
func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeList(raw string) ([]string, error) {
	items := []string{}
	if raw == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func scanDrink(row rowScanner) (*model.Drink, error) {
	var d model.Drink
	var nose, palate, finish, pairs string
	var price, abv sql.NullFloat64
	if err := row.Scan(
		&d.ID, &d.UserID, &d.Name, &d.Maker, &d.Type, &d.Subtype, &d.Rating,
		&nose, &palate, &finish, &d.Notes, &price, &d.Currency, &d.Location,
		&pairs, &d.Occasion, &d.Mood, &abv, &d.ImageURL, &d.IsPrivate,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if d.Nose, err = decodeList(nose); err != nil {
		return nil, fmt.Errorf("decoding nose: %w", err)
	}
	if d.Palate, err = decodeList(palate); err != nil {
		return nil, fmt.Errorf("decoding palate: %w", err)
	}
	if d.Finish, err = decodeList(finish); err != nil {
		return nil, fmt.Errorf("decoding finish: %w", err)
	}
	if d.Pairings, err = decodeList(pairs); err != nil {
		return nil, fmt.Errorf("decoding pairings: %w", err)
	}
	if price.Valid {
		d.Price = &price.Float64
	}
	if abv.Valid {
		d.ABV = &abv.Float64
	}
	return &d, nil
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// CreateDrink inserts a new drink, filling in ID and timestamps.
func (db *DB) CreateDrink(ctx context.Context, d *model.Drink) error {
	d.ID = xid.New().String()
	ts := now()
	d.CreatedAt = ts
	d.UpdatedAt = ts

	query, args, err := builder.Insert("drinks").Columns(drinkColumns...).Values(
		d.ID, d.UserID, d.Name, d.Maker, d.Type, d.Subtype, d.Rating,
		encodeList(d.Nose), encodeList(d.Palate), encodeList(d.Finish), d.Notes,
		nullableFloat(d.Price), d.Currency, d.Location, encodeList(d.Pairings),
		d.Occasion, d.Mood, nullableFloat(d.ABV), d.ImageURL, d.IsPrivate,
		d.CreatedAt, d.UpdatedAt,
	).ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: building drink insert: %w", err)
	}

	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite: creating drink: %w", err)
	}
	return nil
}

// GetDrink retrieves a single drink by ID regardless of visibility.
// Visibility rules live in the service layer.
func (db *DB) GetDrink(ctx context.Context, id string) (*model.Drink, error) {
	query, args, err := builder.Select(drinkColumns...).From("drinks").
		Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building drink select: %w", err)
	}

	d, err := scanDrink(db.conn.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("drink", id)
		}
		return nil, fmt.Errorf("sqlite: getting drink %s: %w", id, err)
	}
	return d, nil
}

// ListDrinks applies every set field of filter as an AND-ed condition.
//
// squirrel builds the WHERE clause so each optional constraint is one
// statement instead of string concatenation. All values are bound
// parameters.
func (db *DB) ListDrinks(ctx context.Context, f model.DrinkFilter) ([]model.Drink, error) {
	q := builder.Select(drinkColumns...).From("drinks")

	if f.UserID != "" {
		q = q.Where(sq.Eq{"user_id": f.UserID})
	}
	if f.Type != "" {
		q = q.Where(sq.Eq{"type": f.Type})
	}
	if f.Subtype != "" {
		q = q.Where(sq.Eq{"subtype": f.Subtype})
	}
	if f.MinRating != nil {
		q = q.Where(sq.GtOrEq{"rating": *f.MinRating})
	}
	if f.MaxRating != nil {
		q = q.Where(sq.LtOrEq{"rating": *f.MaxRating})
	}
	if f.MinPrice != nil {
		q = q.Where(sq.GtOrEq{"price": *f.MinPrice})
	}
	if f.MaxPrice != nil {
		q = q.Where(sq.LtOrEq{"price": *f.MaxPrice})
	}
	if f.Maker != "" {
		q = q.Where(sq.Expr(`maker LIKE ? ESCAPE '\'`, likePattern(f.Maker)))
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where(sq.Or{
			sq.Expr(`name LIKE ? ESCAPE '\'`, p),
			sq.Expr(`maker LIKE ? ESCAPE '\'`, p),
		})
	}
	if f.From != nil {
		q = q.Where(sq.GtOrEq{"created_at": f.From.UTC()})
	}
	if f.To != nil {
		q = q.Where(sq.LtOrEq{"created_at": f.To.UTC()})
	}
	if f.IsPrivate != nil {
		q = q.Where(sq.Eq{"is_private": *f.IsPrivate})
	}
	if len(f.ExcludeIDs) > 0 {
		q = q.Where(sq.NotEq{"id": f.ExcludeIDs})
	}

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = sortColumns[model.SortByDate]
	}
	dir := " ASC"
	if f.Desc {
		dir = " DESC"
	}
	// id is the tie-breaker; xids sort by creation time.
	q = q.OrderBy(col+dir, "id"+dir)

	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	return db.queryDrinks(ctx, q)
}

func (db *DB) queryDrinks(ctx context.Context, q sq.SelectBuilder) ([]model.Drink, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building drink query: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing drinks: %w", err)
	}
	defer rows.Close()

	drinks := make([]model.Drink, 0)
	for rows.Next() {
		d, err := scanDrink(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning drink row: %w", err)
		}
		drinks = append(drinks, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating drinks: %w", err)
	}
	return drinks, nil
}

// UpdateDrink writes every editable field. ID, owner and created_at are
// immutable.
func (db *DB) UpdateDrink(ctx context.Context, d *model.Drink) error {
	d.UpdatedAt = now()

	query, args, err := builder.Update("drinks").SetMap(map[string]any{
		"name":       d.Name,
		"maker":      d.Maker,
		"type":       d.Type,
		"subtype":    d.Subtype,
		"rating":     d.Rating,
		"nose":       encodeList(d.Nose),
		"palate":     encodeList(d.Palate),
		"finish":     encodeList(d.Finish),
		"notes":      d.Notes,
		"price":      nullableFloat(d.Price),
		"currency":   d.Currency,
		"location":   d.Location,
		"pairings":   encodeList(d.Pairings),
		"occasion":   d.Occasion,
		"mood":       d.Mood,
		"abv":        nullableFloat(d.ABV),
		"image_url":  d.ImageURL,
		"is_private": d.IsPrivate,
		"updated_at": d.UpdatedAt,
	}).Where(sq.Eq{"id": d.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: building drink update: %w", err)
	}

	result, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: updating drink %s: %w", d.ID, err)
	}
	ok, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotFound("drink", d.ID)
	}
	return nil
}

// DeleteDrink removes a drink. Cheers and comments go with it (ON DELETE CASCADE).
func (db *DB) DeleteDrink(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM drinks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting drink %s: %w", id, err)
	}
	ok, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotFound("drink", id)
	}
	return nil
}

// CountDrinks counts a user's drinks, optionally only the public ones.
func (db *DB) CountDrinks(ctx context.Context, userID string, publicOnly bool) (int, error) {
	q := builder.Select("COUNT(*)").From("drinks").Where(sq.Eq{"user_id": userID})
	if publicOnly {
		q = q.Where(sq.Eq{"is_private": false})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("sqlite: building drink count: %w", err)
	}

	var n int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting drinks: %w", err)
	}
	return n, nil
}

// ListPublicDrinksMatching returns public drinks whose type is in types OR
// whose maker is in makers, best rated first. excludeIDs becomes a
// NOT IN list of bound parameters.
func (db *DB) ListPublicDrinksMatching(
	ctx context.Context,
	types []model.DrinkType,
	makers []string,
	excludeIDs []string,
	limit int,
) ([]model.Drink, error) {
	match := sq.Or{}
	if len(types) > 0 {
		match = append(match, sq.Eq{"type": types})
	}
	if len(makers) > 0 {
		match = append(match, sq.Eq{"maker": makers})
	}
	if len(match) == 0 {
		return []model.Drink{}, nil
	}

	q := builder.Select(drinkColumns...).From("drinks").
		Where(sq.Eq{"is_private": false}).
		Where(match)
	if len(excludeIDs) > 0 {
		q = q.Where(sq.NotEq{"id": excludeIDs})
	}
	q = q.OrderBy("rating DESC", "created_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	return db.queryDrinks(ctx, q)
}

// ListPublicFeed returns public drinks newest first, optionally restricted
// to a set of authors. An empty, non-nil authorIDs yields no rows.
func (db *DB) ListPublicFeed(ctx context.Context, authorIDs []string, limit int) ([]model.Drink, error) {
	q := builder.Select(drinkColumns...).From("drinks").
		Where(sq.Eq{"is_private": false})
	if authorIDs != nil {
		q = q.Where(sq.Eq{"user_id": authorIDs})
	}
	q = q.OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return db.queryDrinks(ctx, q)
}
