package scheduler_test

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/fleetwatch/internal/model"
	"github.com/angeloszaimis/fleetwatch/internal/scheduler"
	"github.com/angeloszaimis/fleetwatch/pkg/logger"
)

var _ = Describe("Scheduler", func() {
	var (
		runner *gatedRunner
		sched  *scheduler.Scheduler
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		runner = newGatedRunner()
		sched = scheduler.New(staticInventory{targets: fleet()}, runner, time.Hour, nil, logger.Discard())
		ctx, cancel = context.WithCancel(context.Background())
		DeferCleanup(func() {
			cancel()
			close(runner.gate)
			sched.Wait()
		})
	})

	It("should start idle with an empty board", func() {
		Expect(sched.State()).To(Equal(scheduler.StateIdle))
		Expect(sched.Current().HasResult()).To(BeFalse())
		Expect(sched.Current().Countries).To(BeEmpty())
	})

	It("should scan immediately and publish the rollups", func() {
		runner.setOffline("es/a/2", true)
		sched.Start(ctx)

		Eventually(sched.State).Should(Equal(scheduler.StateScanning))
		runner.release()
		Eventually(sched.State).Should(Equal(scheduler.StateIdle))

		board := sched.Current()
		Expect(board.HasResult()).To(BeTrue())
		Expect(board.Total).To(Equal(6))
		Expect(board.Offline).To(Equal(1))
		Expect(board.Countries).To(HaveLen(1))
		Expect(board.Countries[0].Clubs).To(Equal([]model.ClubRollup{
			{Club: "A", Total: 4, Offline: 1},
			{Club: "B", Total: 2, Offline: 0},
		}))
		Expect(board.OfflineList).To(Equal([]model.OfflineEntry{{Club: "A", Country: "Spain", Name: "a-2"}}))
		Expect(board.State).To(Equal("idle"))
	})

	It("should coalesce a manual scan into the running one", func() {
		sched.Start(ctx)
		Eventually(runner.calls.Load).Should(BeEquivalentTo(1))

		Expect(sched.ScanNow(false)).To(Equal(scheduler.Coalesced))
		Expect(sched.ScanNow(false)).To(Equal(scheduler.Coalesced))

		runner.release()
		Eventually(sched.State).Should(Equal(scheduler.StateIdle))
		Consistently(runner.calls.Load, 100*time.Millisecond).Should(BeEquivalentTo(1))
	})

	It("should queue exactly one follow-up for forced scans", func() {
		sched.Start(ctx)
		Eventually(runner.calls.Load).Should(BeEquivalentTo(1))

		Expect(sched.ScanNow(true)).To(Equal(scheduler.Queued))
		Expect(sched.ScanNow(true)).To(Equal(scheduler.Queued))

		runner.release()
		Eventually(runner.calls.Load).Should(BeEquivalentTo(2))
		Expect(sched.State()).To(Equal(scheduler.StateScanning))

		runner.release()
		Eventually(sched.State).Should(Equal(scheduler.StateIdle))
		Consistently(runner.calls.Load, 100*time.Millisecond).Should(BeEquivalentTo(2))
		Expect(runner.maxSeen.Load()).To(BeEquivalentTo(1))
	})

	It("should run a forced scan requested as the running one finishes", func() {
		const rounds = 100
		for i := 0; i < rounds; i++ {
			base := runner.calls.Load()
			Expect(sched.ScanNow(false)).To(Equal(scheduler.Started))
			Eventually(runner.calls.Load).WithPolling(time.Millisecond).Should(Equal(base + 1))

			released := make(chan struct{})
			go func() {
				runner.release()
				close(released)
			}()
			Expect(sched.ScanNow(true)).To(BeElementOf(scheduler.Started, scheduler.Queued))
			<-released

			Eventually(runner.calls.Load).WithPolling(time.Millisecond).Should(Equal(base + 2))
			runner.release()
			Eventually(sched.State).WithPolling(time.Millisecond).Should(Equal(scheduler.StateIdle))
		}

		Consistently(runner.calls.Load, 100*time.Millisecond).Should(BeEquivalentTo(2 * rounds))
		Expect(runner.maxSeen.Load()).To(BeEquivalentTo(1))
	})

	It("should start a manual scan when idle", func() {
		Expect(sched.ScanNow(false)).To(Equal(scheduler.Started))
		Eventually(runner.calls.Load).Should(BeEquivalentTo(1))
		runner.release()
		Eventually(func() bool { return sched.Current().HasResult() }).Should(BeTrue())
	})

	It("should keep the previous board when a scan fails", func() {
		Expect(sched.ScanNow(false)).To(Equal(scheduler.Started))
		runner.release()
		Eventually(func() bool { return sched.Current().HasResult() }).Should(BeTrue())
		Eventually(sched.State).Should(Equal(scheduler.StateIdle))
		previous := sched.Current()

		runner.setFail(errTransport)
		Expect(sched.ScanNow(false)).To(Equal(scheduler.Started))
		runner.release()
		Eventually(func() string { return sched.Current().LastError }).Should(ContainSubstring("unreachable"))
		Eventually(sched.State).Should(Equal(scheduler.StateIdle))

		board := sched.Current()
		Expect(board.Result).To(BeIdenticalTo(previous.Result))
		Expect(board.UpdatedAt).To(Equal(previous.UpdatedAt))
		Expect(board.Total).To(Equal(previous.Total))

		raw, err := json.Marshal(board)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(ContainSubstring(`"last_error_at"`))
	})

	It("should leave the error fields out of the JSON before any failure", func() {
		raw, err := json.Marshal(sched.Current())
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).NotTo(ContainSubstring("last_error"))
	})

	It("should report status changes between scans", func() {
		Expect(sched.ScanNow(false)).To(Equal(scheduler.Started))
		runner.release()
		Eventually(sched.State).Should(Equal(scheduler.StateIdle))
		Expect(sched.Current().Transitions).To(BeEmpty())

		runner.setOffline("es/b/1", true)
		Expect(sched.ScanNow(false)).To(Equal(scheduler.Started))
		runner.release()
		Eventually(func() int { return sched.Current().Offline }).Should(Equal(1))

		Expect(sched.Current().Transitions).To(ConsistOf(scheduler.Transition{
			ID: "es/b/1", Name: "b-1", Club: "B", Country: "Spain",
			From: model.StatusOnline, To: model.StatusOffline,
		}))
	})

	It("should discard a scan that completes after shutdown", func() {
		sched.Start(ctx)
		Eventually(runner.calls.Load).Should(BeEquivalentTo(1))

		cancel()
		Eventually(func() scheduler.TriggerResult { return sched.ScanNow(true) }).Should(Equal(scheduler.Rejected))

		runner.release()
		Eventually(sched.State).Should(Equal(scheduler.StateIdle))
		Expect(sched.Current().HasResult()).To(BeFalse())
	})

	It("should push boards to subscribers", func() {
		updates, unsubscribe := sched.Subscribe()
		defer unsubscribe()

		var first *scheduler.Board
		Eventually(updates).Should(Receive(&first))
		Expect(first.HasResult()).To(BeFalse())

		Expect(sched.ScanNow(false)).To(Equal(scheduler.Started))
		runner.release()

		Eventually(func() bool {
			select {
			case b := <-updates:
				return b.HasResult()
			default:
				return false
			}
		}).Should(BeTrue())
	})
})
