package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// UsersRepo implements domain.UserRepository and domain.IssuanceRepository
// over the users and user_actions tables.
type UsersRepo struct {
	pool *pgxpool.Pool
}

// NewUsersRepo constructs a UsersRepo.
func NewUsersRepo(pool *pgxpool.Pool) *UsersRepo {
	return &UsersRepo{pool: pool}
}

// GetUser implements domain.UserRepository.
func (r *UsersRepo) GetUser(ctx domain.Context, userID string) (domain.UserRecord, error) {
	var u domain.UserRecord
	// last_request_time is NULL until the user's first committed draw; map
	// NULL to the zero time the interval check treats as "never requested".
	var lastRequest *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, chat_id, language, first_name, last_name, username,
		       status, daily_request_count, last_reset_date, last_request_time,
		       total_keys_generated, is_banned, role, notes, created_at
		FROM users WHERE user_id = $1`, userID).Scan(
		&u.UserID, &u.ChatID, &u.Language, &u.FirstName, &u.LastName, &u.Username,
		&u.Status, &u.DailyRequestCount, &u.LastResetDate, &lastRequest,
		&u.TotalKeysGenerated, &u.IsBanned, &u.Role, &u.Notes, &u.CreatedAt,
	)
	if err != nil {
		return domain.UserRecord{}, fmt.Errorf("op=users.get: %w", wrapNotFound(err))
	}
	if lastRequest != nil {
		u.LastRequestTime = *lastRequest
	}
	return u, nil
}

// UpsertUser implements domain.UserRepository: creates the row if absent,
// never overwrites identity fields on an existing row.
func (r *UsersRepo) UpsertUser(ctx domain.Context, identity domain.UserRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (user_id, chat_id, language, first_name, last_name, username, status, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO NOTHING`,
		identity.UserID, identity.ChatID, identity.Language, identity.FirstName,
		identity.LastName, identity.Username, nonEmptyStatus(identity.Status), nonEmptyRole(identity.Role),
	)
	if err != nil {
		return fmt.Errorf("op=users.upsert: %w", err)
	}
	return nil
}

func nonEmptyStatus(s domain.UserStatus) domain.UserStatus {
	if s == "" {
		return domain.StatusFree
	}
	return s
}

func nonEmptyRole(r domain.UserRole) domain.UserRole {
	if r == "" {
		return domain.RoleUser
	}
	return r
}

// SetLanguage implements domain.UserRepository.
func (r *UsersRepo) SetLanguage(ctx domain.Context, userID, lang string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET language = $1 WHERE user_id = $2`, lang, userID)
	if err != nil {
		return fmt.Errorf("op=users.set_language: %w", err)
	}
	return nil
}

// SetFlag implements domain.UserRepository. field is validated against an
// allowlist to avoid building a dynamic column name from caller input.
func (r *UsersRepo) SetFlag(ctx domain.Context, userID, field string, value any) error {
	var stmt string
	switch field {
	case "is_banned":
		stmt = `UPDATE users SET is_banned = $1 WHERE user_id = $2`
	case "role":
		stmt = `UPDATE users SET role = $1 WHERE user_id = $2`
	case "status":
		stmt = `UPDATE users SET status = $1 WHERE user_id = $2`
	case "notes":
		stmt = `UPDATE users SET notes = $1 WHERE user_id = $2`
	default:
		return fmt.Errorf("%w: users.set_flag: unknown field %q", domain.ErrInvalidArgument, field)
	}
	if _, err := r.pool.Exec(ctx, stmt, value, userID); err != nil {
		return fmt.Errorf("op=users.set_flag: %w", err)
	}
	return nil
}

// ResetDailyIfNeeded implements domain.UserRepository.
func (r *UsersRepo) ResetDailyIfNeeded(ctx domain.Context, userID string, now time.Time) (domain.UserRecord, error) {
	today := now.UTC().Truncate(24 * time.Hour)
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET daily_request_count = 0, last_reset_date = $2
		WHERE user_id = $1 AND last_reset_date < $2`, userID, today)
	if err != nil {
		return domain.UserRecord{}, fmt.Errorf("op=users.reset_daily: %w", err)
	}
	return r.GetUser(ctx, userID)
}

// LogAction implements domain.UserRepository.
func (r *UsersRepo) LogAction(ctx domain.Context, userID, action string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_actions (user_id, action) VALUES ($1, $2)`, userID, action)
	if err != nil {
		return fmt.Errorf("op=users.log_action: %w", err)
	}
	return nil
}

// ListSubscribed implements domain.UserRepository.
func (r *UsersRepo) ListSubscribed(ctx domain.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM users WHERE is_subscribed`)
	if err != nil {
		return nil, fmt.Errorf("op=users.list_subscribed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("op=users.list_subscribed: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ListUsers implements domain.UserRepository: one page for the operator
// console, newest first. status and query are optional filters; query
// matches username, first name, and last name case-insensitively.
func (r *UsersRepo) ListUsers(ctx domain.Context, offset, limit int, status domain.UserStatus, query string) ([]domain.UserRecord, error) {
	sql := `
		SELECT user_id, chat_id, language, first_name, last_name, username,
		       status, daily_request_count, last_reset_date, last_request_time,
		       total_keys_generated, is_banned, role, notes, created_at
		FROM users`
	args := make([]any, 0, 4)
	var conds []string
	if status != "" {
		args = append(args, status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if query != "" {
		args = append(args, "%"+query+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(username ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)", n, n, n))
	}
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit, offset)
	sql += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("op=users.list: %w", err)
	}
	defer rows.Close()

	var out []domain.UserRecord
	for rows.Next() {
		var u domain.UserRecord
		var lastRequest *time.Time
		if err := rows.Scan(
			&u.UserID, &u.ChatID, &u.Language, &u.FirstName, &u.LastName, &u.Username,
			&u.Status, &u.DailyRequestCount, &u.LastResetDate, &lastRequest,
			&u.TotalKeysGenerated, &u.IsBanned, &u.Role, &u.Notes, &u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("op=users.list: %w", err)
		}
		if lastRequest != nil {
			u.LastRequestTime = *lastRequest
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CountUsers implements domain.UserRepository.
func (r *UsersRepo) CountUsers(ctx domain.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("op=users.count: %w", err)
	}
	return n, nil
}

// DailyRequestsCount implements domain.UserRepository: the sum of
// daily_request_count across every row whose last_reset_date is today,
// i.e. every request counted since the last per-user daily reset.
func (r *UsersRepo) DailyRequestsCount(ctx domain.Context) (int64, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT coalesce(sum(daily_request_count), 0) FROM users WHERE last_reset_date = $1`, today).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("op=users.daily_requests_count: %w", err)
	}
	return n, nil
}

// CommitDraw implements domain.IssuanceRepository: removes
// every drawn code from the durable tier and updates the user's quota
// counters in a single transaction, so a crash between the two cannot leave
// the user under-charged for codes already handed out.
func (r *UsersRepo) CommitDraw(ctx domain.Context, userID string, draws map[string][]string) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("op=users.commit_draw: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	total := 0
	for game, codes := range draws {
		affected, err := removeTx(ctx, tx, game, codes)
		if err != nil {
			return 0, fmt.Errorf("op=users.commit_draw: %w", err)
		}
		if affected != int64(len(codes)) {
			return 0, fmt.Errorf("op=users.commit_draw: game %q: %w: expected to remove %d codes, removed %d (already consumed by a concurrent draw)",
				game, domain.ErrConflict, len(codes), affected)
		}
		total += len(codes)
	}

	// last_request_time is only advanced on a committed draw, never on a
	// wait-outcome rejection: this is the only write path that touches it.
	_, err = tx.Exec(ctx, `
		UPDATE users
		SET daily_request_count = daily_request_count + 1,
		    total_keys_generated = total_keys_generated + $2,
		    last_request_time = now()
		WHERE user_id = $1`, userID, total)
	if err != nil {
		return 0, fmt.Errorf("op=users.commit_draw: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("op=users.commit_draw: commit: %w", err)
	}
	return total, nil
}
