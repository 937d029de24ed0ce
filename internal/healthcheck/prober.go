package healthcheck

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/angeloszaimis/fleetwatch/config"
	"github.com/angeloszaimis/fleetwatch/internal/model"
)

// Tier names reported in ProbeOutcome.Tier.
const (
	TierPlaceholder = "placeholder"
	TierICMP        = "icmp"
	TierTCP         = "tcp"
	TierFetch       = "fetch"
	TierNone        = "none"
)

// Tier is one probing technique.
type Tier interface {
	Name() string
	Timeout() time.Duration
	// Probe returns nil when address answered.
	Probe(ctx context.Context, address string) error
}

// Prober runs tiers in order until one succeeds.
type Prober struct {
	tiers []Tier
}

// New returns a prober over the given tiers, tried in order.
func New(tiers ...Tier) *Prober {
	return &Prober{tiers: tiers}
}

// NewServerProber returns the batch-side prober: ICMP (when enabled) then
// TCP connect.
func NewServerProber(cfg config.ScanConfig) *Prober {
	var tiers []Tier
	if cfg.ICMPEnabled {
		tiers = append(tiers, NewICMPTier(cfg.ICMPTimeoutDuration()))
	}
	tiers = append(tiers, NewTCPTier(cfg.TCPPort, cfg.TCPTimeoutDuration()))
	return New(tiers...)
}

// NewClientProber is the server prober plus the opaque fetch tier. It is
// only used when the batch endpoint could not give a conclusive answer.
func NewClientProber(cfg config.ScanConfig) *Prober {
	p := NewServerProber(cfg)
	p.tiers = append(p.tiers, NewFetchTier(cfg.FetchTimeoutDuration()))
	return p
}

// Tiers returns the tier names in the order they are tried.
func (p *Prober) Tiers() []string {
	names := make([]string, 0, len(p.tiers))
	for _, t := range p.tiers {
		names = append(names, t.Name())
	}
	return names
}

// Budget is the worst-case time one Probe call can take.
func (p *Prober) Budget() time.Duration {
	var total time.Duration
	for _, t := range p.tiers {
		total += t.Timeout()
	}
	return total
}

// Probe determines the status of target. It never returns an error and
// never panics: every failure mode ends as offline.
func (p *Prober) Probe(ctx context.Context, target model.ProbeTarget) model.ProbeOutcome {
	if IsPlaceholder(target.Address) {
		return model.ProbeOutcome{ID: target.ID, Status: model.StatusOffline, Tier: TierPlaceholder}
	}

	for _, tier := range p.tiers {
		if ctx.Err() != nil {
			break
		}
		if p.attempt(ctx, tier, target.Address) {
			return model.ProbeOutcome{ID: target.ID, Status: model.StatusOnline, Tier: tier.Name()}
		}
	}

	return model.ProbeOutcome{ID: target.ID, Status: model.StatusOffline, Tier: TierNone}
}

func (p *Prober) attempt(ctx context.Context, tier Tier, address string) (ok bool) {
	tierCtx, cancel := context.WithTimeout(ctx, tier.Timeout())
	defer cancel()

	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	return tier.Probe(tierCtx, address) == nil
}

// IsPlaceholder reports whether address is a stand-in rather than a real
// host: empty, masked with '*' or '•', "N/A", or the null address.
func IsPlaceholder(address string) bool {
	address = strings.TrimSpace(address)
	if address == "" {
		return true
	}
	if strings.ContainsAny(address, "*•") {
		return true
	}
	if strings.EqualFold(address, "N/A") {
		return true
	}

	host, _ := splitAddress(address)
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		return true
	}
	return false
}

// splitAddress separates an optional port from address. Bare IPv6 literals
// and bracketed forms are accepted.
func splitAddress(address string) (host, port string) {
	if h, p, err := net.SplitHostPort(address); err == nil {
		return h, p
	}
	return strings.Trim(address, "[]"), ""
}
