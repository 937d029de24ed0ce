package aggregate_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/fleetwatch/internal/aggregate"
	"github.com/angeloszaimis/fleetwatch/internal/model"
)

func target(country, club string, i int) model.ProbeTarget {
	return model.ProbeTarget{
		ID:          fmt.Sprintf("%s/%s/%d", country, club, i),
		Address:     fmt.Sprintf("10.0.0.%d", i),
		Name:        fmt.Sprintf("srv-%d", i),
		Club:        club,
		Country:     country,
		CountryCode: country[:2],
	}
}

func outcome(t model.ProbeTarget, s model.Status) model.ProbeOutcome {
	return model.ProbeOutcome{ID: t.ID, Status: s}
}

var _ = Describe("Aggregate", func() {
	It("should roll up clubs into their country", func() {
		var targets []model.ProbeTarget
		outcomes := map[string]model.ProbeOutcome{}
		for i := 0; i < 4; i++ {
			t := target("Spain", "A", i)
			targets = append(targets, t)
			status := model.StatusOnline
			if i == 2 {
				status = model.StatusOffline
			}
			outcomes[t.ID] = outcome(t, status)
		}
		for i := 0; i < 2; i++ {
			t := target("Spain", "B", i)
			targets = append(targets, t)
			outcomes[t.ID] = outcome(t, model.StatusOnline)
		}

		rollups, online, offline := aggregate.Aggregate(targets, outcomes)

		Expect(online).To(Equal(5))
		Expect(offline).To(Equal(1))
		Expect(rollups).To(HaveLen(1))
		spain := rollups[0]
		Expect(spain.Total).To(Equal(6))
		Expect(spain.Offline).To(Equal(1))
		Expect(spain.Clubs).To(Equal([]model.ClubRollup{
			{Club: "A", Total: 4, Offline: 1},
			{Club: "B", Total: 2, Offline: 0},
		}))
		Expect(spain.Clubs[0].Online()).To(Equal(3))
		Expect(spain.Clubs[1].Online()).To(Equal(2))
	})

	It("should keep first-seen order of countries and clubs", func() {
		targets := []model.ProbeTarget{
			target("Portugal", "Porto", 0),
			target("Spain", "Sevilla", 0),
			target("Portugal", "Lisboa", 0),
			target("Portugal", "Porto", 1),
		}
		rollups, _, _ := aggregate.Aggregate(targets, nil)

		Expect(rollups).To(HaveLen(2))
		Expect(rollups[0].Country).To(Equal("Portugal"))
		Expect(rollups[0].Clubs[0].Club).To(Equal("Porto"))
		Expect(rollups[0].Clubs[0].Total).To(Equal(2))
		Expect(rollups[0].Clubs[1].Club).To(Equal("Lisboa"))
		Expect(rollups[1].Country).To(Equal("Spain"))
	})

	It("should count targets without an outcome as offline", func() {
		targets := []model.ProbeTarget{target("Spain", "A", 0), target("Spain", "A", 1)}
		outcomes := map[string]model.ProbeOutcome{targets[0].ID: outcome(targets[0], model.StatusOnline)}

		rollups, online, offline := aggregate.Aggregate(targets, outcomes)
		Expect(online).To(Equal(1))
		Expect(offline).To(Equal(1))
		Expect(rollups[0].Offline).To(Equal(1))
	})

	It("should satisfy total == online + offline for K offline of N", func() {
		const n, k = 40, 7
		var targets []model.ProbeTarget
		outcomes := map[string]model.ProbeOutcome{}
		for i := 0; i < n; i++ {
			t := target("Spain", fmt.Sprintf("club-%d", i%5), i)
			targets = append(targets, t)
			status := model.StatusOnline
			if i < k {
				status = model.StatusOffline
			}
			outcomes[t.ID] = outcome(t, status)
		}

		rollups, online, offline := aggregate.Aggregate(targets, outcomes)
		Expect(offline).To(Equal(k))
		Expect(online + offline).To(Equal(n))

		total := 0
		for _, c := range rollups {
			total += c.Total
		}
		Expect(total).To(Equal(n))
	})

	It("should return nothing for an empty batch", func() {
		rollups, online, offline := aggregate.Aggregate(nil, nil)
		Expect(rollups).To(BeEmpty())
		Expect(online).To(BeZero())
		Expect(offline).To(BeZero())
	})
})

var _ = Describe("OfflineList", func() {
	It("should list offline targets in target order", func() {
		a, b, c := target("Spain", "A", 0), target("Spain", "A", 1), target("Portugal", "P", 2)
		outcomes := map[string]model.ProbeOutcome{
			a.ID: outcome(a, model.StatusOffline),
			b.ID: outcome(b, model.StatusOnline),
		}

		Expect(aggregate.OfflineList([]model.ProbeTarget{a, b, c}, outcomes)).To(Equal([]model.OfflineEntry{
			{Club: "A", Country: "Spain", Name: "srv-0", Address: "10.0.0.0"},
			{Club: "P", Country: "Portugal", Name: "srv-2", Address: "10.0.0.2"},
		}))
	})
})
