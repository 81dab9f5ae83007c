// Package types defines the finding model shared across the audit pipeline.
package types

// Severity classifies the outcome of a single check.
// Ordering matters: PASS < INFO < WARNING < CRITICAL.
type Severity string

const (
	// SeverityPass means the check ran and found nothing wrong.
	SeverityPass Severity = "pass"
	// SeverityInfo is an advisory observation (missing input, documented default).
	SeverityInfo Severity = "info"
	// SeverityWarning needs operator attention but does not block.
	SeverityWarning Severity = "warning"
	// SeverityCritical indicates an exploitable misconfiguration.
	SeverityCritical Severity = "critical"
)

// Valid returns true if the Severity is a known value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityPass, SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// Rank returns the ordering weight of the severity (higher = worse).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// WorseThan reports whether s outranks other.
func (s Severity) WorseThan(other Severity) bool {
	return s.Rank() > other.Rank()
}

// Finding categories. One category per rule family so reports group cleanly.
const (
	CategoryVersion    = "version"
	CategoryFilesystem = "filesystem"
	CategoryCredential = "credential"
	CategoryNetwork    = "network"
	CategoryAccess     = "access"
	CategorySandbox    = "sandbox"
	CategoryLogging    = "logging"
	CategoryPlugin     = "plugin"
	CategorySkill      = "skill"
	CategoryControl    = "control"
	CategoryProxy      = "proxy"
	CategoryProcess    = "process"
	CategorySync       = "sync"
	CategoryPrompt     = "prompt"
	CategoryTranscript = "transcript"
)

// Finding is one classified observation. Findings are immutable once
// emitted; the aggregator only ever appends and counts them.
type Finding struct {
	Severity    Severity `json:"severity"`
	Category    string   `json:"category"`
	Message     string   `json:"message"`
	SubjectPath string   `json:"subject_path,omitempty"`
	Remediation string   `json:"remediation,omitempty"`
}

// Pass builds a PASS finding.
func Pass(category, message string) Finding {
	return Finding{Severity: SeverityPass, Category: category, Message: message}
}

// Info builds an INFO finding.
func Info(category, message string) Finding {
	return Finding{Severity: SeverityInfo, Category: category, Message: message}
}

// Warning builds a WARNING finding.
func Warning(category, message string) Finding {
	return Finding{Severity: SeverityWarning, Category: category, Message: message}
}

// Critical builds a CRITICAL finding.
func Critical(category, message string) Finding {
	return Finding{Severity: SeverityCritical, Category: category, Message: message}
}

// WithPath returns a copy of the finding with the subject path set.
func (f Finding) WithPath(path string) Finding {
	f.SubjectPath = path
	return f
}

// WithRemediation returns a copy of the finding with a remediation hint.
func (f Finding) WithRemediation(hint string) Finding {
	f.Remediation = hint
	return f
}
