package harvester

import (
	"fmt"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// ProxyPool owns the list of outbound network egresses. Each Worker is
// statically bound to one proxy for its lifetime; a Worker restart reuses
// the same binding.
type ProxyPool struct {
	proxies []domain.ProxySpec
}

// NewProxyPool wraps a list of ProxySpecs.
func NewProxyPool(proxies []domain.ProxySpec) *ProxyPool {
	return &ProxyPool{proxies: proxies}
}

// Len returns the number of proxies in the pool.
func (p *ProxyPool) Len() int { return len(p.proxies) }

// BindAll assigns proxies by sequential index to a flattened assignment
// list: assignment k gets proxies[k]. Fails fast if there are more
// assignments than proxies.
func (p *ProxyPool) BindAll(flat []struct {
	Game domain.GameSpec
	Copy int
}) ([]Assignment, error) {
	if len(flat) > len(p.proxies) {
		return nil, fmt.Errorf("%w: proxypool: %d worker copies requested but only %d proxies available",
			domain.ErrInvalidArgument, len(flat), len(p.proxies))
	}
	out := make([]Assignment, len(flat))
	for i, f := range flat {
		out[i] = Assignment{Game: f.Game, Copy: f.Copy, Proxy: p.proxies[i]}
	}
	return out, nil
}
