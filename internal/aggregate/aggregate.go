// Package aggregate reduces a completed scan into per-country and per-club
// rollups. Rollups are always recomputed from scratch; nothing is patched
// incrementally.
package aggregate

import "github.com/angeloszaimis/fleetwatch/internal/model"

// Aggregate groups targets by country then club, in first-seen order, and
// counts totals and offline targets. A target without an outcome is
// offline.
func Aggregate(targets []model.ProbeTarget, outcomes map[string]model.ProbeOutcome) (rollups []model.CountryRollup, online, offline int) {
	countryIdx := make(map[string]int)
	clubIdx := make(map[string]map[string]int)

	for _, t := range targets {
		ci, ok := countryIdx[t.Country]
		if !ok {
			ci = len(rollups)
			countryIdx[t.Country] = ci
			clubIdx[t.Country] = make(map[string]int)
			rollups = append(rollups, model.CountryRollup{
				Country:     t.Country,
				CountryCode: t.CountryCode,
				Virtual:     t.Virtual,
			})
		}
		country := &rollups[ci]

		ki, ok := clubIdx[t.Country][t.Club]
		if !ok {
			ki = len(country.Clubs)
			clubIdx[t.Country][t.Club] = ki
			country.Clubs = append(country.Clubs, model.ClubRollup{Club: t.Club})
		}
		club := &country.Clubs[ki]

		country.Total++
		club.Total++
		if isOnline(t.ID, outcomes) {
			online++
			continue
		}
		offline++
		country.Offline++
		club.Offline++
	}

	return rollups, online, offline
}

// OfflineList returns the offline targets in target order.
func OfflineList(targets []model.ProbeTarget, outcomes map[string]model.ProbeOutcome) []model.OfflineEntry {
	list := make([]model.OfflineEntry, 0)
	for _, t := range targets {
		if isOnline(t.ID, outcomes) {
			continue
		}
		list = append(list, model.OfflineEntry{
			Club:    t.Club,
			Country: t.Country,
			Name:    t.Name,
			Address: t.Address,
		})
	}
	return list
}

func isOnline(id string, outcomes map[string]model.ProbeOutcome) bool {
	o, ok := outcomes[id]
	return ok && o.Online()
}
