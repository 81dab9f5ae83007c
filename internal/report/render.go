package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/kcchien/clawpilot/internal/types"
)

var severityStyles = map[types.Severity]lipgloss.Style{
	types.SeverityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	types.SeverityWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	types.SeverityInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
	types.SeverityPass:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// renderOrder groups the report worst-first; within a group findings
// keep check-registration order.
var renderOrder = []types.Severity{
	types.SeverityCritical,
	types.SeverityWarning,
	types.SeverityInfo,
	types.SeverityPass,
}

// Render writes the human-readable report. With colored false all
// styling is skipped, for pipes and logs.
func (r Report) Render(w io.Writer, colored bool) {
	style := func(s lipgloss.Style, text string) string {
		if !colored {
			return text
		}
		return s.Render(text)
	}

	fmt.Fprintln(w, style(headerStyle, fmt.Sprintf("security audit of %s", r.Root)))
	fmt.Fprintln(w, style(dimStyle, fmt.Sprintf("%d checks evaluated, %d findings", r.ChecksRun, len(r.Findings))))
	fmt.Fprintln(w)

	for _, sev := range renderOrder {
		for _, f := range r.Findings {
			if f.Severity != sev {
				continue
			}
			line := fmt.Sprintf("%-8s [%s] %s", string(f.Severity), f.Category, f.Message)
			fmt.Fprintln(w, style(severityStyles[sev], line))
			if f.SubjectPath != "" {
				fmt.Fprintln(w, style(dimStyle, "         path: "+f.SubjectPath))
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "summary: %d critical, %d warning, %d info, %d pass\n",
		r.Counts[types.SeverityCritical], r.Counts[types.SeverityWarning],
		r.Counts[types.SeverityInfo], r.Counts[types.SeverityPass])
	if r.TranscriptsTotal > 0 {
		fmt.Fprintf(w, "transcripts: %d of %d files scanned (bounded sample, most recent first)\n",
			r.TranscriptsScanned, r.TranscriptsTotal)
	}

	if hints := r.RemediationSummary(); len(hints) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, style(headerStyle, fmt.Sprintf("next actions (%s)", r.WorstSeverity())))
		for _, h := range hints {
			fmt.Fprintln(w, "  - "+h)
		}
	}
}

// RenderJSON writes the report as indented JSON for machine consumers.
func (r Report) RenderJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
