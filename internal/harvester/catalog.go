// Package harvester implements the Worker state machine, the Supervisor
// that keeps the worker fleet alive, and the static proxy/game
// configuration they are constructed from.
package harvester

import (
	"fmt"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// Catalog is the static per-process Game Catalog: for each game, the
// upstream credentials, pacing floor, retry budget, and replication factor.
type Catalog struct {
	games []domain.GameSpec
}

// NewCatalog builds a Catalog from a slice of GameSpecs.
func NewCatalog(games []domain.GameSpec) (*Catalog, error) {
	if len(games) == 0 {
		return nil, fmt.Errorf("%w: catalog: at least one game is required", domain.ErrInvalidArgument)
	}
	seen := make(map[string]struct{}, len(games))
	for _, g := range games {
		if g.Name == "" {
			return nil, fmt.Errorf("%w: catalog: game with empty name", domain.ErrInvalidArgument)
		}
		if g.Copies <= 0 {
			return nil, fmt.Errorf("%w: catalog: game %q has non-positive copies", domain.ErrInvalidArgument, g.Name)
		}
		if _, dup := seen[g.Name]; dup {
			return nil, fmt.Errorf("%w: catalog: duplicate game name %q", domain.ErrInvalidArgument, g.Name)
		}
		seen[g.Name] = struct{}{}
	}
	return &Catalog{games: games}, nil
}

// Games returns the catalog's GameSpecs in configuration order.
func (c *Catalog) Games() []domain.GameSpec {
	out := make([]domain.GameSpec, len(c.games))
	copy(out, c.games)
	return out
}

// TotalCopies returns the sum of Copies across every game.
func (c *Catalog) TotalCopies() int {
	total := 0
	for _, g := range c.games {
		total += g.Copies
	}
	return total
}

// Assignment is one flattened (GameSpec, copy index, proxy) triple produced
// while constructing the fleet.
type Assignment struct {
	Game  domain.GameSpec
	Copy  int
	Proxy domain.ProxySpec
}

// Flatten produces the (GameSpec, i) list for i in [0, copies) per game, in
// catalog order.
func (c *Catalog) Flatten() []struct {
	Game domain.GameSpec
	Copy int
} {
	out := make([]struct {
		Game domain.GameSpec
		Copy int
	}, 0, c.TotalCopies())
	for _, g := range c.games {
		for i := 0; i < g.Copies; i++ {
			out = append(out, struct {
				Game domain.GameSpec
				Copy int
			}{Game: g, Copy: i})
		}
	}
	return out
}
