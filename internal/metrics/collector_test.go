package metrics_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/fleetwatch/internal/metrics"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		log       *slog.Logger
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelError, // Suppress logs in tests
		}))
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(100, log)
	})

	AfterEach(func() {
		cancel()
	})

	Describe("event processing", func() {
		It("should process scan lifecycle events", func() {
			collector.Start(ctx)

			collector.Emit(metrics.MetricEvent{Type: metrics.EventScanStarted})
			collector.Emit(metrics.MetricEvent{
				Type:     metrics.EventScanCompleted,
				Duration: 50 * time.Millisecond,
				Online:   3,
				Offline:  1,
				Source:   "local",
			})
			collector.Emit(metrics.MetricEvent{Type: metrics.EventScanSkipped})

			Eventually(func() int64 { return collector.Snapshot().ScansSkipped }).Should(Equal(int64(1)))
			snap := collector.Snapshot()
			Expect(snap.ScansStarted).To(Equal(int64(1)))
			Expect(snap.ScansCompleted).To(Equal(int64(1)))
			Expect(snap.LastOnline).To(Equal(3))
			Expect(snap.LastScanAt).NotTo(BeZero())
		})

		It("should process probe and endpoint events", func() {
			collector.Start(ctx)

			collector.EventChannel() <- metrics.MetricEvent{Type: metrics.EventProbeCompleted, Tier: "tcp"}
			collector.EventChannel() <- metrics.MetricEvent{Type: metrics.EventEndpointFailed, Endpoint: "http://edge"}

			Eventually(func() int64 { return collector.Snapshot().EndpointFailures["http://edge"] }).Should(Equal(int64(1)))
			Expect(collector.Snapshot().TierHits["tcp"]).To(Equal(int64(1)))
		})

		It("should drain events on context cancellation", func() {
			for i := 0; i < 5; i++ {
				collector.Emit(metrics.MetricEvent{Type: metrics.EventScanFailed})
			}

			collector.Start(ctx)
			cancel()

			Eventually(func() int64 { return collector.Snapshot().ScansFailed }).Should(Equal(int64(5)))
		})
	})

	Describe("Emit", func() {
		It("should drop events instead of blocking when the buffer is full", func() {
			small := metrics.NewCollector(1, log)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for i := 0; i < 10; i++ {
					small.Emit(metrics.MetricEvent{Type: metrics.EventScanStarted})
				}
			}()
			Eventually(done).Should(BeClosed())
		})

		It("should ignore events on a nil collector", func() {
			var nilCollector *metrics.Collector
			Expect(func() { nilCollector.Emit(metrics.MetricEvent{}) }).NotTo(Panic())
		})
	})

	Describe("Handler", func() {
		It("should serve the snapshot as JSON", func() {
			rec := httptest.NewRecorder()
			collector.Handler()(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

			var body map[string]any
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveKey("scans_completed"))
		})
	})
})
