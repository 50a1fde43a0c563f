package scanning

import (
	"context"
	"io"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Wedge", func() {
	var (
		ctx     context.Context
		mu      sync.Mutex
		decoded []string
		collect DecodeFunc
		codes   func() []string
	)

	BeforeEach(func() {
		ctx = context.Background()
		decoded = nil
		collect = func(qrData string) {
			mu.Lock()
			defer mu.Unlock()
			decoded = append(decoded, qrData)
		}
		codes = func() []string {
			mu.Lock()
			defer mu.Unlock()
			return append([]string(nil), decoded...)
		}
	})

	It("should report a single device without zoom", func() {
		wedge := NewWedge(strings.NewReader(""))
		devices, err := wedge.Devices(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(devices).To(HaveLen(1))

		track, err := wedge.Camera(ctx, Constraints{FacingMode: FacingEnvironment})
		Expect(err).NotTo(HaveOccurred())
		Expect(track.Capabilities().Zoom).To(BeNil())
		Expect(track.ApplyZoom(ctx, 2)).To(HaveOccurred())
		Expect(track.Stop()).To(Succeed())
	})

	It("should require a decode callback", func() {
		wedge := NewWedge(strings.NewReader(""))
		Expect(wedge.Start(ctx, Constraints{}, DecodeConfig{}, nil)).To(HaveOccurred())
	})

	When("decoding is started", func() {
		It("should deliver trimmed non-empty lines", func() {
			wedge := NewWedge(strings.NewReader("ABC123\r\n\n  DEF456 \n"))
			Expect(wedge.Start(ctx, Constraints{}, DecodeConfig{}, collect)).To(Succeed())

			Expect(wedge.Run(ctx)).To(Succeed())
			Expect(codes()).To(Equal([]string{"ABC123", "DEF456"}))
		})
	})

	When("decoding is stopped", func() {
		It("should discard lines until started again", func() {
			wedge := NewWedge(strings.NewReader(""))
			Expect(wedge.Start(ctx, Constraints{}, DecodeConfig{}, collect)).To(Succeed())
			wedge.deliver("FIRST")

			Expect(wedge.Stop()).To(Succeed())
			wedge.deliver("DROPPED")

			Expect(wedge.Start(ctx, Constraints{}, DecodeConfig{}, collect)).To(Succeed())
			wedge.deliver("SECOND")

			Expect(codes()).To(Equal([]string{"FIRST", "SECOND"}))
		})
	})

	When("input is streamed", func() {
		It("should deliver lines as they arrive", func() {
			r, w := io.Pipe()
			wedge := NewWedge(r)
			Expect(wedge.Start(ctx, Constraints{}, DecodeConfig{}, collect)).To(Succeed())

			done := make(chan error, 1)
			go func() { done <- wedge.Run(ctx) }()

			io.WriteString(w, "FIRST\n")
			Eventually(codes).Should(Equal([]string{"FIRST"}))
			io.WriteString(w, "SECOND\n")
			w.Close()

			Eventually(done).Should(Receive(BeNil()))
			Expect(codes()).To(Equal([]string{"FIRST", "SECOND"}))
		})
	})

	When("the context is cancelled", func() {
		It("should return without waiting for input", func() {
			r, w := io.Pipe()
			defer w.Close()
			wedge := NewWedge(r)

			cctx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- wedge.Run(cctx) }()

			cancel()
			Eventually(done).Should(Receive(BeNil()))
		})
	})

	When("the reader fails", func() {
		It("should return the read error", func() {
			r, w := io.Pipe()
			wedge := NewWedge(r)
			w.CloseWithError(io.ErrUnexpectedEOF)

			Expect(wedge.Run(ctx)).To(MatchError(io.ErrUnexpectedEOF))
		})
	})
})
