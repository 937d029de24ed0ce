package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/fleetwatch/internal/handler"
	"github.com/angeloszaimis/fleetwatch/internal/ledger"
	"github.com/angeloszaimis/fleetwatch/internal/metrics"
	"github.com/angeloszaimis/fleetwatch/internal/model"
	"github.com/angeloszaimis/fleetwatch/internal/orchestrator"
	"github.com/angeloszaimis/fleetwatch/internal/scheduler"
	"github.com/angeloszaimis/fleetwatch/pkg/logger"
)

var _ = Describe("APIHandler", func() {
	var (
		scanner *fakeScanner
		history *ledger.Ledger
		prober  *fakeProber
		mux     *http.ServeMux
	)

	BeforeEach(func() {
		scanner = newFakeScanner()
		history = ledger.New(50)
		prober = &fakeProber{}
		mux = http.NewServeMux()
		h := handler.NewAPIHandler(logger.Discard(), scanner, history, prober)
		h.Routes(mux, metrics.NewCollector(10, logger.Discard()))
	})

	serve := func(method, target, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, target, nil)
		} else {
			req = httptest.NewRequest(method, target, strings.NewReader(body))
		}
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	Describe("GET /api/status", func() {
		It("should return the current board", func() {
			scanner.board = completedBoard(6, 1)
			prober.endpoints = []orchestrator.EndpointStatus{{URL: "http://edge/api/probe/batch", Healthy: true, Breaker: "CLOSED"}}

			w := serve(http.MethodGet, "/api/status", "")
			Expect(w.Code).To(Equal(http.StatusOK))

			var body map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
			Expect(body["total"]).To(BeEquivalentTo(6))
			Expect(body["offline"]).To(BeEquivalentTo(1))
			Expect(body["state"]).To(Equal("idle"))
			Expect(body["countries"]).To(HaveLen(1))
			Expect(body["endpoints"]).To(HaveLen(1))
			Expect(body).NotTo(HaveKey("Result"))
		})
	})

	Describe("POST /api/scan", func() {
		It("should trigger an unforced scan", func() {
			w := serve(http.MethodPost, "/api/scan", "")
			Expect(w.Code).To(Equal(http.StatusAccepted))
			Expect(w.Body.String()).To(ContainSubstring(`"started"`))
			Expect(scanner.forced).To(Equal([]bool{false}))
		})

		It("should pass force through", func() {
			scanner.result = scheduler.Queued
			w := serve(http.MethodPost, "/api/scan?force=true", "")
			Expect(w.Code).To(Equal(http.StatusAccepted))
			Expect(w.Body.String()).To(ContainSubstring(`"queued"`))
			Expect(scanner.forced).To(Equal([]bool{true}))
		})

		It("should reject a malformed force flag", func() {
			w := serve(http.MethodPost, "/api/scan?force=maybe", "")
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(scanner.forced).To(BeEmpty())
		})

		It("should report a stopped scheduler", func() {
			scanner.result = scheduler.Rejected
			Expect(serve(http.MethodPost, "/api/scan", "").Code).To(Equal(http.StatusServiceUnavailable))
		})

		It("should not accept GET", func() {
			Expect(serve(http.MethodGet, "/api/scan", "").Code).To(Equal(http.StatusMethodNotAllowed))
		})
	})

	Describe("/api/snapshots", func() {
		It("should refuse a snapshot before the first scan", func() {
			w := serve(http.MethodPost, "/api/snapshots", "")
			Expect(w.Code).To(Equal(http.StatusConflict))
			Expect(history.Len()).To(BeZero())
		})

		It("should snapshot, list and clear", func() {
			scanner.board = completedBoard(4, 1)

			w := serve(http.MethodPost, "/api/snapshots", "")
			Expect(w.Code).To(Equal(http.StatusCreated))
			var report model.SnapshotReport
			Expect(json.Unmarshal(w.Body.Bytes(), &report)).To(Succeed())
			Expect(report.Availability).To(Equal(75.0))
			Expect(report.OfflineList).To(HaveLen(1))

			w = serve(http.MethodGet, "/api/snapshots", "")
			Expect(w.Code).To(Equal(http.StatusOK))
			var reports []model.SnapshotReport
			Expect(json.Unmarshal(w.Body.Bytes(), &reports)).To(Succeed())
			Expect(reports).To(HaveLen(1))
			Expect(reports[0].ID).To(Equal(report.ID))

			Expect(serve(http.MethodDelete, "/api/snapshots", "").Code).To(Equal(http.StatusNoContent))
			Expect(history.Len()).To(BeZero())
		})
	})

	Describe("POST /api/probe/batch", func() {
		It("should answer every submitted id", func() {
			w := serve(http.MethodPost, "/api/probe/batch", `[{"id":"a","ip":"10.0.0.1"},{"id":"b","ip":"N/A"}]`)
			Expect(w.Code).To(Equal(http.StatusOK))

			var verdicts []orchestrator.BatchVerdict
			Expect(json.Unmarshal(w.Body.Bytes(), &verdicts)).To(Succeed())
			Expect(verdicts).To(Equal([]orchestrator.BatchVerdict{
				{ID: "a", Status: model.StatusOnline},
				{ID: "b", Status: model.StatusOffline},
			}))
		})

		It("should reject a malformed body", func() {
			Expect(serve(http.MethodPost, "/api/probe/batch", `{"id":"a"}`).Code).To(Equal(http.StatusBadRequest))
			Expect(prober.items).To(BeNil())
		})

		It("should reject items the prober refuses", func() {
			Expect(serve(http.MethodPost, "/api/probe/batch", `[{"ip":"10.0.0.1"}]`).Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/endpoints", func() {
		It("should return an empty list in local mode", func() {
			w := serve(http.MethodGet, "/api/endpoints", "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(strings.TrimSpace(w.Body.String())).To(Equal("[]"))
		})
	})

	Describe("GET /healthz and /metrics", func() {
		It("should respond", func() {
			Expect(serve(http.MethodGet, "/healthz", "").Code).To(Equal(http.StatusOK))
			w := serve(http.MethodGet, "/metrics", "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))
		})
	})

	Describe("GET /api/ws", func() {
		var server *httptest.Server

		BeforeEach(func() {
			server = httptest.NewServer(handler.Logging(logger.Discard(), mux))
			DeferCleanup(server.Close)
		})

		dial := func(origin string) (*websocket.Conn, *http.Response, error) {
			header := http.Header{}
			if origin != "" {
				header.Set("Origin", origin)
			}
			return websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/api/ws", header)
		}

		It("should stream the current board and later updates", func() {
			conn, _, err := dial("")
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()

			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var first map[string]any
			Expect(conn.ReadJSON(&first)).To(Succeed())
			Expect(first["total"]).To(BeEquivalentTo(0))

			scanner.publish(completedBoard(3, 2))
			var next map[string]any
			Expect(conn.ReadJSON(&next)).To(Succeed())
			Expect(next["total"]).To(BeEquivalentTo(3))
			Expect(next["offline"]).To(BeEquivalentTo(2))
		})

		It("should refuse a foreign origin", func() {
			_, resp, err := dial("http://evil.example")
			Expect(err).To(HaveOccurred())
			Expect(resp).NotTo(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		})
	})
})
