package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/drink-journal/internal/model"
	"github.com/sakif/drink-journal/internal/repository"
)

var _ repository.CheerRepository = (*DB)(nil)

// ToggleCheer flips the (drink, user) cheer inside one transaction, so the
// returned count always reflects this caller's write.
func (db *DB) ToggleCheer(ctx context.Context, drinkID, userID string) (model.CheerResult, error) {
	var res model.CheerResult

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("sqlite: beginning cheer tx: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM cheers WHERE drink_id = ? AND user_id = ?`, drinkID, userID)
	if err != nil {
		return res, fmt.Errorf("sqlite: removing cheer: %w", err)
	}
	removed, err := rowsAffected(result)
	if err != nil {
		return res, err
	}

	if !removed {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cheers (drink_id, user_id, created_at) VALUES (?, ?, ?)`,
			drinkID, userID, now(),
		); err != nil {
			return res, fmt.Errorf("sqlite: adding cheer: %w", err)
		}
		res.Cheered = true
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cheers WHERE drink_id = ?`, drinkID,
	).Scan(&res.Count); err != nil {
		return res, fmt.Errorf("sqlite: counting cheers: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("sqlite: committing cheer: %w", err)
	}
	return res, nil
}

func (db *DB) CountCheers(ctx context.Context, drinkID string) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cheers WHERE drink_id = ?`, drinkID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting cheers: %w", err)
	}
	return n, nil
}

func (db *DB) HasCheered(ctx context.Context, drinkID, userID string) (bool, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cheers WHERE drink_id = ? AND user_id = ?`, drinkID, userID,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("sqlite: checking cheer: %w", err)
	}
	return n > 0, nil
}
