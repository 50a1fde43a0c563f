package scanning

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/qr-station/internal/display"
	"github.com/zombor/qr-station/internal/station"
)

var _ = Describe("Controller against a check-in server", func() {
	var (
		ghServer   *ghttp.Server
		scanner    *mockScanner
		disp       *mockDisplay
		controller *Controller
	)

	BeforeEach(func() {
		ghServer = ghttp.NewServer()

		client, err := station.NewClient(ghServer.URL(), time.Second, station.BasicAuth{})
		Expect(err).NotTo(HaveOccurred())

		scanner = newMockScanner(&recorder{})
		disp = &mockDisplay{}
		controller = NewController(scanner, client, disp, Config{PollInterval: testPollInterval})
	})

	AfterEach(func() {
		controller.Close()
		ghServer.Close()
	})

	It("should submit, poll until done and resume decoding", func() {
		ghServer.AppendHandlers(
			ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/scan"),
				ghttp.VerifyJSON(`{"qr_data": "ABC123"}`),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]string{"scan_id": "s1"}),
			),
			ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/scan-status/s1"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]string{"status": "pending"}),
			),
			ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/scan-status/s1"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]string{"status": "done", "message": "OK"}),
			),
		)

		Expect(controller.Start(context.Background())).To(Succeed())
		scanner.onDecoded("ABC123")

		Eventually(controller.Polling).Should(BeFalse())
		Expect(ghServer.ReceivedRequests()).To(HaveLen(3))
		Expect(disp.Status()).To(Equal(display.Status{Text: "OK", Tone: display.ToneSuccess}))
		Expect(scanner.Running()).To(BeTrue())
		Expect(controller.State()).To(Equal(StateScanning))
	})

	It("should resume decoding when the server rejects the scan", func() {
		ghServer.AppendHandlers(
			ghttp.RespondWithJSONEncoded(http.StatusUnauthorized, map[string]string{"error": "login required"}),
		)

		Expect(controller.Start(context.Background())).To(Succeed())
		scanner.onDecoded("ABC123")

		Expect(disp.Alerts()).To(ConsistOf(ContainSubstring("login required")))
		Expect(scanner.Running()).To(BeTrue())
		Expect(controller.Polling()).To(BeFalse())
	})
})
