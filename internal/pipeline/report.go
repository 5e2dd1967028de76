package pipeline

import (
	"bufio"
	"fmt"
	"io"

	"github.com/couchcryptid/precip-bench/internal/domain"
)

// WriteText prints the report in the console layout:
//
//	+ <metric>:
//	  - <label>: <value>
//
// with values to three decimals and a blank line after each metric.
func WriteText(w io.Writer, r domain.Report) error {
	bw := bufio.NewWriter(w)
	for _, s := range r.Sections {
		fmt.Fprintf(bw, "+ %s:\n", s.Metric)
		for _, sc := range s.Scores {
			fmt.Fprintf(bw, "  - %s: %.3f\n", sc.Label, sc.Value)
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}
