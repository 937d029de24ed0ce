// Package healthcheck decides whether a single fleet server is reachable.
//
// A Prober walks an ordered list of tiers (ICMP echo, TCP connect, and on the
// client-side fallback path an opaque HTTP fetch) and stops at the first tier
// that succeeds. Every tier runs under its own timeout, and a failing or
// panicking tier only means "try the next one". Placeholder addresses
// ("N/A", masked values, the null address) are offline without touching the
// network.
package healthcheck
