package conformance

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

var (
	passColor  = color.New(color.FgGreen, color.Bold)
	failColor  = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow)
	labelColor = color.New(color.FgCyan)
)

// PrintSummary writes a human readable digest of report to w. Records on stdout stay
// the source of truth; the summary is for whoever watches stderr.
func PrintSummary(w io.Writer, report *Report) {
	labelColor.Fprintf(w, "Run %s", report.RunID)
	fmt.Fprintf(w, " finished in %s\n", report.Duration.Round(time.Millisecond))

	fmt.Fprintf(w, "  listings:  %d (%d failed)\n", report.Listings, report.ListingFailures)
	fmt.Fprintf(w, "  scenarios: %d run, %d succeeded, %d failed\n",
		len(report.Outcomes), report.Succeeded, report.Failed)

	for _, o := range report.Unexpected {
		warnColor.Fprintf(w, "  unexpected: %s (%s)", o.Label, o.Tool)
		if o.Success {
			fmt.Fprintln(w, " succeeded")
		} else {
			fmt.Fprintf(w, " failed with %s\n", o.Code)
		}
	}

	switch {
	case report.Truncated():
		failColor.Fprintf(w, "TRUNCATED")
		fmt.Fprintf(w, " connection lost: %s\n", report.ConnectionError.Message)
	case len(report.Unexpected) > 0:
		warnColor.Fprintf(w, "DONE")
		fmt.Fprintf(w, " %d outcome(s) contradict their expectation\n", len(report.Unexpected))
	default:
		passColor.Fprintf(w, "OK")
		fmt.Fprintln(w, " every outcome matched its expectation")
	}
}
