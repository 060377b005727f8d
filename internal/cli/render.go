package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/gookit/color"
	"github.com/vk/tendgo/internal/solver"
)

// RenderSummary prints a one-line-per-action summary of a result set,
// sorted by action address for stable output.
func RenderSummary(w io.Writer, results map[string]*solver.GraphResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No actions were executed.")
		return
	}

	keys := make([]string, 0, len(results))
	for key := range results {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Fprintln(w)
	for _, key := range keys {
		res := results[key]
		fmt.Fprintf(w, "  %s  %-28s %s\n", statusBadge(res), key, statusDetail(res))
	}
	fmt.Fprintln(w)
}

// statusBadge maps a result to its colored marker.
func statusBadge(res *solver.GraphResult) string {
	switch {
	case res.Error == nil && res.Processed:
		return color.Green.Sprint("✔")
	case res.Error == nil:
		return color.Cyan.Sprint("≡")
	case res.State == solver.StateCancelled:
		return color.Yellow.Sprint("−")
	default:
		return color.Red.Sprint("✖")
	}
}

// statusDetail explains a result in a word or two.
func statusDetail(res *solver.GraphResult) string {
	switch {
	case res.Error == nil && res.Processed:
		return fmt.Sprintf("processed in %s", res.CompletedAt.Sub(res.StartedAt).Round(time.Millisecond))
	case res.Error == nil:
		return color.Gray.Sprint("already up to date")
	case res.State == solver.StateCancelled:
		return color.Yellow.Sprint("cancelled")
	default:
		return color.Red.Sprintf("failed: %v", res.Error)
	}
}
