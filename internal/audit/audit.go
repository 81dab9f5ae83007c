// Package audit wires the pipeline together: snapshot the config,
// sample transcripts, evaluate every check, aggregate the verdict.
// Everything it touches is read-only.
package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kcchien/clawpilot/internal/logger"
	"github.com/kcchien/clawpilot/internal/perms"
	"github.com/kcchien/clawpilot/internal/report"
	"github.com/kcchien/clawpilot/internal/rules"
	"github.com/kcchien/clawpilot/internal/signature"
	"github.com/kcchien/clawpilot/internal/transcript"
)

var log = logger.New("audit")

// ErrMissingRoot is the one fatal condition: there is nothing to audit.
var ErrMissingRoot = errors.New("installation root does not exist")

// Options configures one audit run.
type Options struct {
	Root           string
	Policy         []perms.PolicyEntry
	MaxTranscripts int
	Deep           bool
	ScopeWindow    int

	// Now anchors time-based heuristics; zero means wall clock.
	Now time.Time
}

// Run executes a full audit of the installation at opts.Root.
func Run(ctx context.Context, opts Options) (report.Report, error) {
	info, err := os.Stat(opts.Root)
	if err != nil || !info.IsDir() {
		return report.Report{}, fmt.Errorf("%w: %s", ErrMissingRoot, opts.Root)
	}

	reg, err := signature.LoadBuiltin()
	if err != nil {
		return report.Report{}, fmt.Errorf("loading signature registry: %w", err)
	}

	snap := rules.NewSnapshot(opts.Root, opts.ScopeWindow)
	if snap.HasConfig() {
		log.Debug("config discovered at %s", snap.ConfigPath)
	} else {
		log.Debug("no config file under %s", opts.Root)
	}

	sample := transcript.Sample(filepath.Join(opts.Root, "agents"), opts.MaxTranscripts)
	log.Debug("sampled %d of %d transcripts", len(sample.Paths), sample.Total)

	engine := rules.NewEngine(rules.DefaultChecks())
	findings := engine.Run(ctx, &rules.CheckContext{
		Snapshot: snap,
		Policy:   opts.Policy,
		Sigs:     reg,
		Sample:   sample,
		Deep:     opts.Deep,
		Now:      opts.Now,
	})
	if err := ctx.Err(); err != nil {
		return report.Report{}, err
	}

	agg := report.NewAggregator(opts.Root, engine.Len())
	agg.Add(findings...)
	agg.SetTranscriptCoverage(len(sample.Paths), sample.Total)
	resolved, unresolved := snap.Fields()
	agg.SetFieldDiagnostics(resolved, unresolved)
	return agg.Report(), nil
}
