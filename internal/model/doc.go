// Package model holds the domain types shared by the monitoring pipeline:
// probe targets and outcomes, scan results, country and club rollups, and
// snapshot reports.
package model
