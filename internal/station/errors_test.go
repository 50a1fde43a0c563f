package station

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("newStatusError", func() {
	It("should prefer the error field", func() {
		err := newStatusError(http.StatusUnauthorized, []byte(`{"error": "login required", "message": "ignored"}`))
		Expect(err.Message).To(Equal("login required"))
		Expect(err.Error()).To(Equal("server returned status 401: login required"))
	})

	It("should pass plain bodies through trimmed", func() {
		err := newStatusError(http.StatusBadGateway, []byte("  bad gateway\n"))
		Expect(err.Message).To(Equal("bad gateway"))
	})

	It("should cut long messages on a character boundary", func() {
		long := strings.Repeat("código inválido ", 40)
		err := newStatusError(http.StatusBadRequest, []byte(`{"message": "`+long+`"}`))

		Expect(utf8.ValidString(err.Message)).To(BeTrue())
		Expect(utf8.RuneCountInString(err.Message)).To(Equal(maxMessageRunes))
		Expect(strings.HasPrefix(long, err.Message)).To(BeTrue())
	})

	It("should keep short multi-byte messages intact", func() {
		err := newStatusError(http.StatusBadRequest, []byte(`{"message": "Código no válido"}`))
		Expect(err.Message).To(Equal("Código no válido"))
	})
})

var _ = Describe("endpoint", func() {
	It("should escape each segment once", func() {
		client, err := NewClient("http://station.local/base/", time.Second, BasicAuth{})
		Expect(err).NotTo(HaveOccurred())

		Expect(client.endpoint("scan-status", "a b").String()).To(Equal("http://station.local/base/scan-status/a%20b"))
		Expect(client.endpoint("scan-status", "x/y").String()).To(Equal("http://station.local/base/scan-status/x%2Fy"))
		Expect(client.endpoint("scan").String()).To(Equal("http://station.local/base/scan"))
	})
})
