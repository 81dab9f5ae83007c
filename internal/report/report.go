// Package report merges findings into a single verdict: an ordered
// report, a severity histogram, and the process exit code.
package report

import (
	"time"

	"github.com/kcchien/clawpilot/internal/types"
)

// Exit codes. Only a CRITICAL finding blocks success; a missing install
// root is its own code so wrappers can tell "bad install" from "bad
// target path".
const (
	ExitClean       = 0
	ExitCritical    = 1
	ExitUsage       = 2
	ExitMissingRoot = 3
)

// Report is the final product of one audit run.
type Report struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Root        string                  `json:"root"`
	ChecksRun   int                     `json:"checks_run"`
	Findings    []types.Finding         `json:"findings"`
	Counts      map[types.Severity]int  `json:"counts"`

	// Transcript coverage, for the bounded-sampling trade-off note.
	TranscriptsScanned int `json:"transcripts_scanned"`
	TranscriptsTotal   int `json:"transcripts_total"`

	// Config fields the checks looked up, for machine consumers debugging
	// why a rule degraded. Advisory only; absent from the human render.
	ResolvedFields   map[string]string `json:"resolved_fields,omitempty"`
	UnresolvedFields []string          `json:"unresolved_fields,omitempty"`
}

// Aggregator collects findings in the order checks were registered and
// keeps the histogram in lockstep with the finding list.
type Aggregator struct {
	root     string
	checks   int
	findings []types.Finding
	counts   map[types.Severity]int

	scanned, total int

	resolved   map[string]string
	unresolved []string
}

// NewAggregator builds an aggregator for one run over root.
func NewAggregator(root string, checksRun int) *Aggregator {
	return &Aggregator{
		root:   root,
		checks: checksRun,
		counts: map[types.Severity]int{},
	}
}

// Add appends findings in the order given.
func (a *Aggregator) Add(findings ...types.Finding) {
	for _, f := range findings {
		a.findings = append(a.findings, f)
		a.counts[f.Severity]++
	}
}

// SetTranscriptCoverage records how much of the transcript corpus the
// sampler covered.
func (a *Aggregator) SetTranscriptCoverage(scanned, total int) {
	a.scanned, a.total = scanned, total
}

// SetFieldDiagnostics records which config fields the run resolved and
// which lookups came up empty.
func (a *Aggregator) SetFieldDiagnostics(resolved map[string]string, unresolved []string) {
	a.resolved, a.unresolved = resolved, unresolved
}

// Report finalizes the run.
func (a *Aggregator) Report() Report {
	return Report{
		GeneratedAt:        time.Now(),
		Root:               a.root,
		ChecksRun:          a.checks,
		Findings:           a.findings,
		Counts:             a.counts,
		TranscriptsScanned: a.scanned,
		TranscriptsTotal:   a.total,
		ResolvedFields:     a.resolved,
		UnresolvedFields:   a.unresolved,
	}
}

// WorstSeverity returns the highest severity present, or PASS for an
// empty report.
func (r Report) WorstSeverity() types.Severity {
	worst := types.SeverityPass
	for _, f := range r.Findings {
		if f.Severity.WorseThan(worst) {
			worst = f.Severity
		}
	}
	return worst
}

// ExitCode maps the report onto the process exit code.
func (r Report) ExitCode() int {
	if r.Counts[types.SeverityCritical] > 0 {
		return ExitCritical
	}
	return ExitClean
}

// RemediationSummary returns the deduplicated remediation hints attached
// to findings of the worst severity present, in report order. These are
// the concrete next actions the run ends on.
func (r Report) RemediationSummary() []string {
	worst := r.WorstSeverity()
	if worst == types.SeverityPass {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, f := range r.Findings {
		if f.Severity != worst || f.Remediation == "" || seen[f.Remediation] {
			continue
		}
		seen[f.Remediation] = true
		out = append(out, f.Remediation)
	}
	return out
}
