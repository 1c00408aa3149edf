package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// CodesRepo implements domain.CodeRepository against the single
// (game_id, code) partition table described in schema.go.
type CodesRepo struct {
	pool *pgxpool.Pool
}

// NewCodesRepo constructs a CodesRepo.
func NewCodesRepo(pool *pgxpool.Pool) *CodesRepo {
	return &CodesRepo{pool: pool}
}

// Append implements domain.CodeRepository. A duplicate (game, code) pair is
// treated as already-persisted rather than an error, since the upstream
// promo API can in principle mint the same code twice.
func (r *CodesRepo) Append(ctx domain.Context, game, code string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO codes (game_id, code) VALUES ($1, $2) ON CONFLICT (game_id, code) DO NOTHING`,
		game, code)
	if err != nil {
		return fmt.Errorf("op=codes.append: %w", err)
	}
	return nil
}

// PeekOldest implements domain.CodeRepository.
func (r *CodesRepo) PeekOldest(ctx domain.Context, game string, n int) ([]domain.Code, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, game_id, code, created_at FROM codes WHERE game_id = $1 ORDER BY created_at ASC, id ASC LIMIT $2`,
		game, n)
	if err != nil {
		return nil, fmt.Errorf("op=codes.peek_oldest: %w", err)
	}
	defer rows.Close()

	var out []domain.Code
	for rows.Next() {
		var c domain.Code
		if err := rows.Scan(&c.ID, &c.Game, &c.Code, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=codes.peek_oldest: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=codes.peek_oldest: %w", err)
	}
	return out, nil
}

// Count implements domain.CodeRepository.
func (r *CodesRepo) Count(ctx domain.Context, game string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM codes WHERE game_id = $1`, game).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("op=codes.count: %w", err)
	}
	return n, nil
}

// removeTx deletes codes by value for game within an existing transaction,
// used by the IssuanceRepository's CommitDraw (users_repo.go). It returns
// the number of rows actually deleted so the caller can detect a code that
// a concurrent commit already consumed.
func removeTx(ctx domain.Context, tx pgx.Tx, game string, codes []string) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	tag, err := tx.Exec(ctx, `DELETE FROM codes WHERE game_id = $1 AND code = ANY($2)`, game, codes)
	if err != nil {
		return 0, fmt.Errorf("op=codes.remove: %w", err)
	}
	return tag.RowsAffected(), nil
}

func wrapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}
