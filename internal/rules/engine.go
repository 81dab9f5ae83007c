package rules

import (
	"context"
	"sync"
	"time"

	"github.com/kcchien/clawpilot/internal/logger"
	"github.com/kcchien/clawpilot/internal/perms"
	"github.com/kcchien/clawpilot/internal/signature"
	"github.com/kcchien/clawpilot/internal/transcript"
	"github.com/kcchien/clawpilot/internal/types"
)

var log = logger.New("rules")

// CheckContext carries everything a check may read. All of it is
// read-only during a run; nothing in the inspected installation is ever
// mutated.
type CheckContext struct {
	Snapshot *Snapshot
	Policy   []perms.PolicyEntry
	Sigs     *signature.Registry
	Sample   transcript.SampleSet
	Deep     bool
	Now      time.Time
}

// Check is one numbered audit check. Checks return every finding they
// produce; most return exactly one, file-walking checks return one per
// offending path.
type Check struct {
	ID   string
	Name string
	Run  func(*CheckContext) []types.Finding
}

// DefaultChecks returns the full check set in report order.
func DefaultChecks() []Check {
	return []Check{
		{ID: "01", Name: "gateway version", Run: checkVersion},
		{ID: "02", Name: "file permissions", Run: checkPermissions},
		{ID: "03", Name: "credential exposure", Run: checkCredentials},
		{ID: "04", Name: "network binding", Run: checkNetworkBinding},
		{ID: "05", Name: "inbound message policy", Run: checkDMPolicy},
		{ID: "06", Name: "sandbox policy", Run: checkSandbox},
		{ID: "07", Name: "log redaction", Run: checkLogRedaction},
		{ID: "08", Name: "plugin trust", Run: checkPluginTrust},
		{ID: "09", Name: "skill supply chain", Run: checkSkills},
		{ID: "10", Name: "control surface", Run: checkControlSurface},
		{ID: "11", Name: "reverse proxy", Run: checkReverseProxy},
		{ID: "12", Name: "process exposure", Run: checkProcessExposure},
		{ID: "13", Name: "synced folder", Run: checkSyncedFolder},
		{ID: "14", Name: "workspace prompt files", Run: checkPromptFiles},
		{ID: "15", Name: "transcript content", Run: checkTranscripts},
	}
}

// Engine evaluates a fixed check set against one installation.
type Engine struct {
	checks []Check
}

// NewEngine builds an engine over the given checks. The slice order is
// the report order.
func NewEngine(checks []Check) *Engine {
	return &Engine{checks: checks}
}

// Run evaluates every check. Checks execute concurrently but results are
// reassembled into registration order, so two runs over an unchanged
// installation produce identical reports. A cancelled context stops
// uncollected checks from being awaited; no partial report is emitted by
// this layer.
func (e *Engine) Run(ctx context.Context, cc *CheckContext) []types.Finding {
	if cc.Now.IsZero() {
		cc.Now = time.Now()
	}

	results := make([][]types.Finding, len(e.checks))
	var wg sync.WaitGroup
	for i := range e.checks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := e.checks[i]
			log.Debug("check %s (%s) starting", c.ID, c.Name)
			results[i] = c.Run(cc)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("audit cancelled: %v", ctx.Err())
		return nil
	}

	var findings []types.Finding
	for _, r := range results {
		findings = append(findings, r...)
	}
	return findings
}

// Len returns the number of registered checks.
func (e *Engine) Len() int { return len(e.checks) }
