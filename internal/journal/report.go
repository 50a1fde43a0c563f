package journal

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/nao1215/markdown"
)

// Report formats
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// WriteReport renders entries in the given format
func WriteReport(w io.Writer, format string, entries []*Record) error {
	switch format {
	case FormatText, "":
		return writeText(w, entries)
	case FormatMarkdown:
		return writeMarkdown(w, entries)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func writeText(w io.Writer, entries []*Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBMITTED\tSCAN ID\tCODE\tSTATUS\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.SubmittedAt.Local().Format(time.DateTime), e.ScanID, e.QRData, e.Status, e.Message)
	}
	return tw.Flush()
}

func writeMarkdown(w io.Writer, entries []*Record) error {
	md := markdown.NewMarkdown(w)
	md.H1("Scan history")
	md.PlainText("")

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		completed := "-"
		if e.CompletedAt != nil {
			completed = e.CompletedAt.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{
			e.SubmittedAt.Local().Format(time.DateTime),
			"`" + e.ScanID + "`",
			"`" + e.QRData + "`",
			e.Status,
			e.Message,
			completed,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Submitted", "Scan ID", "Code", "Status", "Message", "Completed"},
		Rows:   rows,
	})
	return md.Build()
}
