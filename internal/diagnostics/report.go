package diagnostics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quantward/edgegate/internal/gate"
)

// RenderReport formats a summary and histogram as a plain-text
// diagnostic report.
func RenderReport(sum Summary, hist PercentileHistogram) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Decisions: %d  (block %.1f%%  probe %.1f%%  full %.1f%%)\n",
		sum.TotalDecisions, sum.BlockRate*100, sum.ProbeRate*100, sum.FullRate*100)

	if len(sum.StateCounts) > 0 {
		b.WriteString("By state:\n")
		states := make([]string, 0, len(sum.StateCounts))
		for st := range sum.StateCounts {
			states = append(states, string(st))
		}
		sort.Strings(states)
		for _, st := range states {
			fmt.Fprintf(&b, "  %-13s %d\n", st, sum.StateCounts[gate.State(st)])
		}
	}

	if len(sum.BlockReasons) > 0 {
		b.WriteString("Block reasons:\n")
		type rc struct {
			reason string
			count  int
		}
		reasons := make([]rc, 0, len(sum.BlockReasons))
		for r, c := range sum.BlockReasons {
			reasons = append(reasons, rc{r, c})
		}
		sort.Slice(reasons, func(i, j int) bool {
			if reasons[i].count != reasons[j].count {
				return reasons[i].count > reasons[j].count
			}
			return reasons[i].reason < reasons[j].reason
		})
		for _, r := range reasons {
			fmt.Fprintf(&b, "  %4d  %s\n", r.count, r.reason)
		}
	}

	if hist.Count > 0 {
		fmt.Fprintf(&b, "Percentiles over last %d decisions: min %.2f  p50 %.2f  p90 %.2f  max %.2f\n",
			hist.Count, hist.Min, hist.P50, hist.P90, hist.Max)
		fmt.Fprintf(&b, "Bands: <0.60: %d  0.60-0.75: %d  0.75-0.90: %d  >=0.90: %d\n",
			hist.Below60, hist.Band60, hist.Band75, hist.Above90)
	}
	return b.String()
}
