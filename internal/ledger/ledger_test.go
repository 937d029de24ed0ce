package ledger_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/fleetwatch/internal/ledger"
	"github.com/angeloszaimis/fleetwatch/internal/model"
)

func scanWith(total, offline int) *model.ScanResult {
	result := &model.ScanResult{Outcomes: map[string]model.ProbeOutcome{}}
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("es/club/%d", i)
		result.Targets = append(result.Targets, model.ProbeTarget{
			ID: id, Address: fmt.Sprintf("10.0.0.%d", i), Name: id, Club: "club", Country: "Spain",
		})
		status := model.StatusOnline
		if i < offline {
			status = model.StatusOffline
		}
		result.Outcomes[id] = model.ProbeOutcome{ID: id, Status: status}
	}
	return result
}

var _ = Describe("Ledger", func() {
	var l *ledger.Ledger

	BeforeEach(func() {
		l = ledger.New(50)
	})

	It("should compute availability with one decimal", func() {
		report, err := l.Snapshot(scanWith(40, 2))
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Total).To(Equal(40))
		Expect(report.Online).To(Equal(38))
		Expect(report.Offline).To(Equal(2))
		Expect(report.AvailabilityString()).To(Equal("95.0"))
		Expect(report.OfflineList).To(HaveLen(2))
		Expect(report.ID).NotTo(BeEmpty())
	})

	It("should report zero availability for an empty scan", func() {
		report, err := l.Snapshot(scanWith(0, 0))
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Availability).To(BeZero())
		Expect(report.OfflineList).To(BeEmpty())
	})

	It("should refuse to snapshot without a scan", func() {
		_, err := l.Snapshot(nil)
		Expect(err).To(MatchError(ledger.ErrNoScan))
		Expect(l.Len()).To(BeZero())
	})

	It("should keep the newest report first and evict past capacity", func() {
		var first, last model.SnapshotReport
		for i := 0; i < 51; i++ {
			report, err := l.Snapshot(scanWith(3, i%3))
			Expect(err).NotTo(HaveOccurred())
			if i == 0 {
				first = report
			}
			last = report
		}

		history := l.History()
		Expect(history).To(HaveLen(50))
		Expect(history[0].ID).To(Equal(last.ID))
		for _, r := range history {
			Expect(r.ID).NotTo(Equal(first.ID))
		}
	})

	It("should hand out copies of the history", func() {
		_, err := l.Snapshot(scanWith(2, 0))
		Expect(err).NotTo(HaveOccurred())

		history := l.History()
		history[0].Total = 99
		Expect(l.History()[0].Total).To(Equal(2))
	})

	It("should clear the history", func() {
		for i := 0; i < 3; i++ {
			_, _ = l.Snapshot(scanWith(1, 0))
		}
		Expect(l.Len()).To(Equal(3))

		l.Clear()
		Expect(l.Len()).To(BeZero())
		Expect(l.History()).To(BeEmpty())
	})

	It("should fall back to the default capacity", func() {
		Expect(ledger.New(0).Capacity()).To(Equal(ledger.DefaultCapacity))
	})

	DescribeTable("Availability",
		func(online, total int, want float64) {
			Expect(ledger.Availability(online, total)).To(Equal(want))
		},
		Entry("all online", 10, 10, 100.0),
		Entry("38 of 40", 38, 40, 95.0),
		Entry("one third", 1, 3, 33.3),
		Entry("two thirds", 2, 3, 66.7),
		Entry("no targets", 0, 0, 0.0),
	)
})
