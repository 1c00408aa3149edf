package issuance

import (
	"fmt"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
	"github.com/fairyhunter13/promo-harvester/internal/inventory"
)

// Snapshot is the operator dashboard view: per-game inventory depth plus
// aggregate user counts.
type Snapshot struct {
	InventoryByGame map[string]int64
	TotalUsers      int64
	// ClaimedToday is a cosmetic "codes claimed today" figure: the raw
	// per-user daily request sum scaled by the number of games, the draw
	// size, and the operator-configured popularity coefficient. It never
	// reflects a real inventory or quota count.
	ClaimedToday int64
}

// Dashboard computes operator-facing counters.
type Dashboard struct {
	users                 domain.UserRepository
	inventories           map[string]*inventory.Service
	popularityCoefficient int64
}

// NewDashboard constructs a Dashboard over the same per-game inventories
// wired into the Engine, plus the shared UserRepository. popularityCoefficient
// is the operator-configured POPULARITY_DISPLAY_COEFFICIENT multiplier.
func NewDashboard(users domain.UserRepository, inventories map[string]*inventory.Service, popularityCoefficient int64) *Dashboard {
	return &Dashboard{users: users, inventories: inventories, popularityCoefficient: popularityCoefficient}
}

// Snapshot computes the current operator dashboard view across games.
func (d *Dashboard) Snapshot(ctx domain.Context, games []string) (Snapshot, error) {
	snap := Snapshot{InventoryByGame: make(map[string]int64, len(games))}
	for _, game := range games {
		inv, ok := d.inventories[game]
		if !ok {
			return Snapshot{}, fmt.Errorf("%w: dashboard: unknown game %q", domain.ErrInvalidArgument, game)
		}
		n, err := inv.Count(ctx, game)
		if err != nil {
			return Snapshot{}, fmt.Errorf("op=issuance.dashboard: %w", err)
		}
		snap.InventoryByGame[game] = n
	}

	total, err := d.users.CountUsers(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("op=issuance.dashboard: %w", err)
	}
	snap.TotalUsers = total

	daily, err := d.users.DailyRequestsCount(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("op=issuance.dashboard: %w", err)
	}
	snap.ClaimedToday = daily * int64(len(games)) * DefaultDrawSize * d.popularityCoefficient
	return snap, nil
}
