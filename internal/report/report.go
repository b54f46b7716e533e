// Package report renders a selection run for terminals and pipelines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/MikeSquared-Agency/Equilibrium/internal/store"
)

// WriteText prints the equilibrium slate next to the greedy baseline: one row
// per stakeholder, then the welfare totals and both slates.
func WriteText(w io.Writer, run *store.Run) error {
	fmt.Fprintf(w, "Run %s  seed=%d  pool=%d  slate=%d  fairness=%.2f  catalog=%d\n\n",
		run.ID, run.Seed, run.PoolSize, run.SlateSize, run.FairnessThreshold, run.CatalogSize)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tequilibrium\tgreedy\tdelta\t")

	greedy := run.Greedy.Result.UtilityMap()
	flagged := false
	for _, u := range run.Equilibrium.Result.Utilities {
		g := greedy[u.Name]
		mark := ""
		if u.BelowThreshold {
			mark = " *"
			flagged = true
		}
		fmt.Fprintf(tw, "%s%s\t%.4f\t%.4f\t%+.4f\t\n", u.Name, mark, u.Utility, g, u.Utility-g)
	}

	eq, gr := run.Equilibrium, run.Greedy
	rows := []struct {
		name   string
		eq, gr float64
	}{
		{"total", eq.Result.Total, gr.Result.Total},
		{"penalty", eq.Result.Penalty, gr.Result.Penalty},
		{"welfare", eq.Result.Score, gr.Result.Score},
		{"diversity", eq.Diversity, gr.Diversity},
	}
	fmt.Fprintln(tw, "\t\t\t\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%+.4f\t\n", r.name, r.eq, r.gr, r.eq-r.gr)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d of %d candidates penalized; winner at index %d\n", run.Penalized, run.PoolSize, run.WinnerIndex)
	if flagged {
		fmt.Fprintln(w, "* below fairness threshold")
	}
	fmt.Fprintf(w, "\nequilibrium: %s\n", slateLine(eq))
	_, err := fmt.Fprintf(w, "greedy:      %s\n", slateLine(gr))
	return err
}

func slateLine(o store.Outcome) string {
	if len(o.Titles) == len(o.Slate) && len(o.Titles) > 0 {
		parts := make([]string, len(o.Slate))
		for i, id := range o.Slate {
			parts[i] = fmt.Sprintf("%s (%s)", o.Titles[i], id)
		}
		return strings.Join(parts, ", ")
	}
	return strings.Join(o.Slate, ", ")
}

// WriteJSON writes the run as indented JSON.
func WriteJSON(w io.Writer, run *store.Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}
