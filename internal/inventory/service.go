// Package inventory implements the two-tier Code Inventory service: a
// Redis-backed warm tier fronting the Postgres durable tier, refilled
// lazily from the durable tier when the warm tier runs dry.
package inventory

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// bulkRefillSize is how many codes are pulled from the durable tier into
// the warm tier on a refill.
const bulkRefillSize = 2000

// warmTTL bounds how long a populated warm-tier list is trusted before it
// is refreshed from the durable tier again.
const warmTTL = 7200 * time.Second

// Service is the Code Inventory: Take operates against the warm tier,
// refilling from the durable tier on demand; the durable tier remains the
// source of truth for Count. mu serializes Take, Reclaim, and Release per
// game (one Service is constructed per game, so a single mutex is enough
// to guarantee two concurrent draws never reserve the same code).
//
// reserved tracks codes popped off the warm tier whose commit has not yet
// landed. Reserved codes are still present in the durable tier (rows are
// deleted at commit time), so a refill that runs while a reservation is in
// flight would otherwise re-enqueue them into the warm tier and hand them
// to a second caller. A reservation ends with Release (commit succeeded)
// or Reclaim (commit failed).
type Service struct {
	durable domain.CodeRepository
	warm    domain.WarmTier
	log     *slog.Logger

	mu       sync.Mutex
	reserved map[string]struct{}
}

// New constructs a Service over the given durable and warm tiers.
func New(durable domain.CodeRepository, warm domain.WarmTier) *Service {
	return &Service{
		durable:  durable,
		warm:     warm,
		log:      slog.Default().With(slog.String("component", "inventory")),
		reserved: make(map[string]struct{}),
	}
}

// Take reserves up to n codes for game by atomically removing them from
// the warm tier: this is the reservation point, so two concurrent Take
// calls for the same game can never return the same code. An empty warm
// tier is refilled from the durable tier first. The refill only fires when
// the warm tier is completely empty: durable rows are deleted at commit
// time, so codes still sitting in a non-empty warm list are also still
// present in the durable tier, and refilling over them would enqueue
// duplicates. Take holds mu for its whole body so the refill decision and
// the following pop observe a consistent warm-tier length.
func (s *Service) Take(ctx domain.Context, game string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	length, err := s.warm.Len(ctx, game)
	if err != nil {
		return nil, fmt.Errorf("op=inventory.take: %w", err)
	}
	if length == 0 {
		if err := s.refill(ctx, game); err != nil {
			return nil, fmt.Errorf("op=inventory.take: %w", err)
		}
	}

	codes, err := s.warm.PopOldest(ctx, game, n)
	if err != nil {
		return nil, fmt.Errorf("op=inventory.take: %w", err)
	}
	if len(codes) == 0 {
		return nil, nil
	}
	for _, c := range codes {
		s.reserved[c] = struct{}{}
	}
	return codes, nil
}

// Release ends the reservation for codes whose commit landed: the durable
// rows are gone, so a later refill can no longer observe them and nothing
// more needs tracking.
func (s *Service) Release(codes []string) {
	if len(codes) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range codes {
		delete(s.reserved, c)
	}
}

// Reclaim re-adds codes to the warm tier's head after a Take reservation
// whose commit failed, so the codes remain available to the next Take
// instead of leaking.
func (s *Service) Reclaim(ctx domain.Context, game string, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.warm.PushFront(ctx, game, codes...); err != nil {
		return fmt.Errorf("op=inventory.reclaim: %w", err)
	}
	for _, c := range codes {
		delete(s.reserved, c)
	}
	return nil
}

// refill loads up to bulkRefillSize of the oldest durable-tier codes into
// the empty warm tier and sets its TTL. Codes under an in-flight
// reservation are skipped: they are still present in the durable tier
// until their commit lands, but handing them to a second caller would
// issue them twice.
func (s *Service) refill(ctx domain.Context, game string) error {
	codes, err := s.durable.PeekOldest(ctx, game, bulkRefillSize)
	if err != nil {
		return fmt.Errorf("op=inventory.refill: %w", err)
	}

	values := make([]string, 0, len(codes))
	for _, c := range codes {
		if _, inFlight := s.reserved[c.Code]; inFlight {
			continue
		}
		values = append(values, c.Code)
	}
	if len(values) == 0 {
		s.log.Info("no codes available to refill warm tier", slog.String("game", game))
		return nil
	}
	if err := s.warm.Push(ctx, game, values...); err != nil {
		return fmt.Errorf("op=inventory.refill: %w", err)
	}
	if err := s.warm.Expire(ctx, game, warmTTL); err != nil {
		return fmt.Errorf("op=inventory.refill: %w", err)
	}
	s.log.Info("warm tier refilled", slog.String("game", game), slog.Int("count", len(values)))
	return nil
}

// Count returns the durable-tier unissued code count for game, used by
// the operator dashboard.
func (s *Service) Count(ctx domain.Context, game string) (int64, error) {
	n, err := s.durable.Count(ctx, game)
	if err != nil {
		return 0, fmt.Errorf("op=inventory.count: %w", err)
	}
	return n, nil
}
