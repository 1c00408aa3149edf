// Package issuance implements the Issuance Engine: the decision procedure
// that turns a user's draw request into either a rejection (banned, quota
// exceeded, interval not elapsed) or a committed set of codes per game,
// atomically with the user's quota counters.
package issuance

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
	"github.com/fairyhunter13/promo-harvester/internal/inventory"
)

// DefaultDrawSize is the number of codes issued per game on a normal
// request.
const DefaultDrawSize = 4

// BoostedDrawSize is k for a game flagged Boosted in its GameSpec.
const BoostedDrawSize = 8

// WaitRemaining carries the remaining cooldown when the interval check
// rejects a request.
type WaitRemaining struct {
	Minutes int
	Seconds int
}

// Draw is one game's outcome within an issuance response: Codes is empty
// exactly when the partition was empty, which still counts against quota.
type Draw struct {
	Game  string
	Codes []string
}

// Result is the full outcome of a successful Issue call.
type Result struct {
	Draws []Draw
}

// Engine runs the issuance decision procedure over a UserRepository, an
// IssuanceRepository for the atomic commit, and per-game Code Inventory
// services.
type Engine struct {
	users       domain.UserRepository
	issuance    domain.IssuanceRepository
	limits      domain.LimitsTable
	boosted     map[string]bool
	inventories map[string]*inventory.Service

	log *slog.Logger
}

// New constructs an Engine. inventories must contain one *inventory.Service
// per game name the engine may be asked to draw from. boosted names the
// games whose draw size is BoostedDrawSize instead of DefaultDrawSize.
func New(users domain.UserRepository, issuanceRepo domain.IssuanceRepository, limits domain.LimitsTable, boosted []string, inventories map[string]*inventory.Service) *Engine {
	boostedSet := make(map[string]bool, len(boosted))
	for _, g := range boosted {
		boostedSet[g] = true
	}
	return &Engine{
		users:       users,
		issuance:    issuanceRepo,
		limits:      limits,
		boosted:     boostedSet,
		inventories: inventories,
		log:         slog.Default().With(slog.String("component", "issuance")),
	}
}

// Issue runs the full decision procedure for userID against games, at
// instant now: ban gate, daily reset, quota check, interval check, draw,
// commit.
func (e *Engine) Issue(ctx domain.Context, userID string, games []string, now time.Time) (*Result, error) {
	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("op=issuance.issue: %w", err)
	}

	// Step 1: ban gate.
	if user.IsBanned {
		return nil, domain.ErrBanned
	}

	// Step 2: daily reset.
	user, err = e.users.ResetDailyIfNeeded(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("op=issuance.issue: %w", err)
	}

	limit, ok := e.limits[user.Status]
	if !ok {
		return nil, fmt.Errorf("%w: issuance: no limits configured for status %q", domain.ErrInvalidArgument, user.Status)
	}

	// Step 3: quota check.
	if user.DailyRequestCount >= limit.DailyLimit {
		return nil, domain.ErrQuotaExceeded
	}

	// Step 4: interval check.
	if !user.LastRequestTime.IsZero() {
		elapsed := now.Sub(user.LastRequestTime)
		interval := time.Duration(limit.IntervalMinutes) * time.Minute
		if elapsed < interval {
			remaining := interval - elapsed
			e.log.Debug("interval not elapsed", slog.String("user_id", userID), slog.Duration("remaining", remaining))
			return nil, fmt.Errorf("%w: %s", domain.ErrIntervalNotElapsed, formatRemaining(remaining))
		}
	}

	// Step 5: draw.
	draws := make([]Draw, 0, len(games))
	drawnByGame := make(map[string][]string, len(games))
	total := 0
	for _, game := range games {
		inv, ok := e.inventories[game]
		if !ok {
			return nil, fmt.Errorf("%w: issuance: unknown game %q", domain.ErrInvalidArgument, game)
		}
		k := DefaultDrawSize
		if e.boosted[game] {
			k = BoostedDrawSize
		}
		codes, err := inv.Take(ctx, game, k)
		if err != nil {
			return nil, fmt.Errorf("op=issuance.issue: %w", err)
		}
		draws = append(draws, Draw{Game: game, Codes: codes})
		if len(codes) > 0 {
			drawnByGame[game] = codes
			total += len(codes)
		}
	}

	// Step 6: commit. Take already reserved drawnByGame's codes by removing
	// them from the warm tier, so the commit transaction only needs to
	// remove them from the durable tier and update the user's counters. A
	// commit failure must reclaim every reserved code back to the warm tier
	// so it isn't silently lost; a committed draw releases the reservations
	// instead, since the durable rows are now gone.
	if _, err := e.issuance.CommitDraw(ctx, userID, drawnByGame); err != nil {
		for game, codes := range drawnByGame {
			if rerr := e.inventories[game].Reclaim(ctx, game, codes); rerr != nil {
				e.log.Error("warm tier reclaim failed after commit failure",
					slog.String("game", game), slog.Any("error", rerr))
			}
		}
		return nil, fmt.Errorf("op=issuance.issue: commit: %w", err)
	}
	for game, codes := range drawnByGame {
		e.inventories[game].Release(codes)
	}

	return &Result{Draws: draws}, nil
}

func formatRemaining(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%dm%ds remaining", total/60, total%60)
}

// IsRejection reports whether err is one of the categorical Issue rejection
// outcomes (as opposed to an infrastructure failure).
func IsRejection(err error) bool {
	return errors.Is(err, domain.ErrBanned) ||
		errors.Is(err, domain.ErrQuotaExceeded) ||
		errors.Is(err, domain.ErrIntervalNotElapsed)
}
