// Package strategy decides the order in which batch probe endpoints are
// tried for a scan:
//
//   - Ordered: configuration order
//   - Round Robin: rotates the starting endpoint on every batch
//   - Least Response Time: fastest endpoint first, by EWMA round-trip time
//
// Every strategy returns all endpoints. Healthy endpoints come before ones
// whose last batch failed, so a recovered endpoint is still retried.
package strategy
