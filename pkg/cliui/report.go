package cliui

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/aona-labs/aona/pkg/analysis"
	"github.com/aona-labs/aona/pkg/registry"
	"github.com/aona-labs/aona/pkg/report"
)

var (
	qualityStyles = map[analysis.Quality]lipgloss.Style{
		analysis.QualityGood: lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true),
		analysis.QualityFair: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		analysis.QualityPoor: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
	severityStyles = map[analysis.Severity]lipgloss.Style{
		analysis.SeverityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		analysis.SeverityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		analysis.SeverityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// Quality renders q in its traffic light color.
func Quality(q analysis.Quality) string {
	if st, ok := qualityStyles[q]; ok {
		return st.Render(string(q))
	}
	return string(q)
}

// Severity renders s in its color.
func Severity(s analysis.Severity) string {
	if st, ok := severityStyles[s]; ok {
		return st.Render(string(s))
	}
	return string(s)
}

// RenderRun prints the report of a finalized run: the per-node table, any
// failures, the alerts and the summary block.
func RenderRun(w io.Writer, run *report.Run) {
	fmt.Fprintf(w, "\n  %s\n\n", HeaderStyle.Render("Water analyst run "+run.ID))
	fmt.Fprintf(w, "  %s %s\n", KeyStyle.Render("Agent:"), ValueStyle.Render(run.Agent))
	if run.Cancelled {
		fmt.Fprintf(w, "  %s\n", DimStyle.Render("Run was interrupted; results are partial."))
	}
	fmt.Fprintln(w)

	if len(run.Outcomes) > 0 {
		table := newTable(w, "Node", "Quality", "Issues", "Paid", "Reference")
		for _, o := range run.Outcomes {
			table.Append([]string{
				o.NodeName,
				Quality(o.Analysis.Overall),
				strconv.Itoa(len(o.Analysis.Issues)),
				strconv.FormatUint(o.Payment.Amount, 10),
				shortRef(o.Payment.Ref),
			})
		}
		table.Render()
		fmt.Fprintln(w)
	}

	if len(run.Failures) > 0 {
		fmt.Fprintf(w, "  %s\n", KeyStyle.Render("Failures"))
		for _, f := range run.Failures {
			fmt.Fprintf(w, "  %s %s %s %s\n", FailMark, NameStyle.Render(f.NodeName), DimStyle.Render("["+f.Stage+"]"), f.Error)
		}
		fmt.Fprintln(w)
	}

	for _, o := range run.Outcomes {
		for _, a := range o.Alerts {
			fmt.Fprintf(w, "  %s %s %s\n      %s\n",
				Severity(a.Severity), NameStyle.Render(a.NodeName), a.Message,
				DimStyle.Render("→ "+a.Recommendation))
		}
	}

	s := run.Summary
	if s == nil {
		return
	}
	spent := fmt.Sprintf("%d (%g %s)", s.TotalSpent, s.TotalSpentDisplay, s.Symbol)
	if s.TotalSpentUSD != nil {
		spent += fmt.Sprintf(" ≈ $%.4f", *s.TotalSpentUSD)
	}

	fmt.Fprintf(w, "\n  %s\n", KeyStyle.Render("Summary"))
	fmt.Fprintf(w, "  %-22s %d\n", "Nodes analyzed", s.TotalNodes)
	fmt.Fprintf(w, "  %-22s %d\n", "Nodes failed", s.FailedNodes)
	fmt.Fprintf(w, "  %-22s %s\n", "Total spent", spent)
	fmt.Fprintf(w, "  %-22s %d (high %d, medium %d, low %d)\n", "Alerts",
		s.AlertsGenerated, s.AlertsBySeverity.High, s.AlertsBySeverity.Medium, s.AlertsBySeverity.Low)
	fmt.Fprintf(w, "  %-22s %s\n", "Overall water quality", Quality(s.OverallWaterQuality))
	fmt.Fprintf(w, "  %-22s %d\n\n", "Crises avoided (est.)", s.Impact.CrisesAvoided)
}

// RenderProviders prints a discovery listing as a table.
func RenderProviders(w io.Writer, listing registry.Listing) {
	if listing.Message != "" {
		fmt.Fprintf(w, "\n  %s\n", DimStyle.Render(listing.Message))
	}
	fmt.Fprintf(w, "\n  %s %s  %s %s\n\n",
		KeyStyle.Render("Network:"), ValueStyle.Render(listing.Network),
		KeyStyle.Render("Source:"), ValueStyle.Render(listing.Source))

	table := newTable(w, "ID", "Name", "Tier", "Score", "Readings", "Price", "Recipient")
	for _, p := range listing.Providers {
		table.Append([]string{
			p.ID,
			p.Name,
			string(p.Reputation.Tier),
			strconv.Itoa(p.Reputation.Score),
			strconv.FormatUint(p.Reputation.TotalReadings, 10),
			fmt.Sprintf("%d (%g %s)", p.Price.Minimal, p.Price.Display, p.Price.Symbol),
			shortRef(p.Recipient),
		})
	}
	table.Render()
	fmt.Fprintln(w)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetTablePadding("  ")
	return table
}

func shortRef(ref string) string {
	if len(ref) <= 14 {
		return ref
	}
	return ref[:8] + "…" + ref[len(ref)-4:]
}
