package journal

import (
	"bytes"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("WriteReport", func() {
	var entries []*Record

	BeforeEach(func() {
		t0 := time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)
		done := t0.Add(time.Second)
		entries = []*Record{
			{ScanID: "s1", QRData: "ABC123", Status: "done", Message: "Welcome", SubmittedAt: t0, CompletedAt: &done},
			{ScanID: "s2", QRData: "DEF456", Status: "pending", SubmittedAt: t0.Add(time.Minute)},
		}
	})

	It("should print a text table", func() {
		var buf bytes.Buffer
		Expect(WriteReport(&buf, FormatText, entries)).To(Succeed())

		out := buf.String()
		Expect(out).To(ContainSubstring("SCAN ID"))
		Expect(out).To(MatchRegexp(`s1\s+ABC123\s+done\s+Welcome`))
		Expect(out).To(MatchRegexp(`s2\s+DEF456\s+pending`))
	})

	It("should default to text", func() {
		var buf bytes.Buffer
		Expect(WriteReport(&buf, "", entries)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("SCAN ID"))
	})

	It("should print a markdown table", func() {
		var buf bytes.Buffer
		Expect(WriteReport(&buf, FormatMarkdown, entries)).To(Succeed())

		out := buf.String()
		Expect(out).To(ContainSubstring("# Scan history"))
		Expect(out).To(ContainSubstring("`ABC123`"))
		Expect(out).To(ContainSubstring("Welcome"))
		Expect(out).To(ContainSubstring("`DEF456`"))
	})

	It("should reject unknown formats", func() {
		var buf bytes.Buffer
		Expect(WriteReport(&buf, "csv", entries)).To(MatchError(ContainSubstring("csv")))
		Expect(buf.Len()).To(BeZero())
	})
})
