package rules

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kcchien/clawpilot/internal/fileutil"
	"github.com/kcchien/clawpilot/internal/signature"
	"github.com/kcchien/clawpilot/internal/transcript"
	"github.com/kcchien/clawpilot/internal/types"
)

func checkSandbox(cc *CheckContext) []types.Finding {
	if !cc.Snapshot.HasConfig() {
		return []types.Finding{insufficient(types.CategorySandbox, "no configuration file found")}
	}
	v, ok := cc.Snapshot.Scoped("sandbox", "mode")
	if !ok {
		v, ok = cc.Snapshot.Field("sandbox")
	}
	if !ok {
		return []types.Finding{types.Info(types.CategorySandbox,
			"sandbox mode is not configured, the gateway default applies")}
	}
	switch strings.ToLower(v) {
	case "off", "none", "disabled", "false":
		return []types.Finding{types.Warning(types.CategorySandbox,
			"tool execution is not sandboxed, a compromised agent can act directly on this host").
			WithRemediation("set sandbox.mode to an isolation backend (container or jail)")}
	default:
		return []types.Finding{types.Pass(types.CategorySandbox,
			fmt.Sprintf("tool execution is sandboxed (%s)", v))}
	}
}

func checkPluginTrust(cc *CheckContext) []types.Finding {
	if !cc.Snapshot.HasConfig() {
		return []types.Finding{insufficient(types.CategoryPlugin, "no configuration file found")}
	}
	if v, ok := cc.Snapshot.Scoped("plugins", "allowUnsigned"); ok {
		if b, known := boolValue(v); known && b {
			return []types.Finding{types.Critical(types.CategoryPlugin,
				"unsigned plugins are allowed, any writable plugin path is an execution vector").
				WithRemediation("set plugins.allowUnsigned to false")}
		}
	}
	v, ok := cc.Snapshot.Scoped("plugins", "trust")
	if !ok {
		return []types.Finding{types.Info(types.CategoryPlugin,
			"plugin trust is not configured, the gateway default (signed only) applies")}
	}
	switch strings.ToLower(v) {
	case "all", "any":
		return []types.Finding{types.Critical(types.CategoryPlugin,
			"plugin trust is set to all, unvetted plugins load with full agent privileges").
			WithRemediation("set plugins.trust to signed")}
	default:
		return []types.Finding{types.Pass(types.CategoryPlugin,
			fmt.Sprintf("plugin trust policy is %s", v))}
	}
}

// maxSkillFiles bounds the supply-chain walk so a huge skills tree cannot
// stall the run.
const maxSkillFiles = 400

func checkSkills(cc *CheckContext) []types.Finding {
	dir := filepath.Join(cc.Snapshot.Root, "skills")
	if !fileutil.Exists(dir) {
		return []types.Finding{types.Info(types.CategorySkill, "no skills directory present").WithPath(dir)}
	}

	var findings []types.Finding
	scanned, blocked, capped := 0, "", false
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if blocked == "" {
				blocked = path
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if scanned >= maxSkillFiles {
			capped = true
			return fs.SkipAll
		}
		scanned++
		findings = append(findings, scanSkillFile(cc, path)...)
		return nil
	})

	if blocked != "" {
		findings = append(findings, types.Warning(types.CategorySkill,
			"part of the skills tree is not readable by the auditor").WithPath(blocked))
	}
	if capped {
		findings = append(findings, types.Info(types.CategorySkill,
			fmt.Sprintf("skill scan stopped at the %d file limit, remaining files were not scanned", maxSkillFiles)).
			WithPath(dir))
	}
	if len(findings) == 0 {
		return []types.Finding{types.Pass(types.CategorySkill,
			fmt.Sprintf("%d skill files scanned, no signatures matched", scanned))}
	}
	return findings
}

func scanSkillFile(cc *CheckContext, path string) []types.Finding {
	res := cc.Sigs.ScanFile(path)
	if res.Err != nil {
		return []types.Finding{types.Info(types.CategorySkill, "skill file could not be read").WithPath(path)}
	}
	if res.Skipped {
		return nil // binary assets are expected inside skills
	}

	names := res.Matches
	if strings.HasSuffix(path, ".sh") || strings.HasSuffix(path, ".bash") {
		if data, err := fileutil.ReadCapped(path); err == nil {
			shellNames, parsed := signature.AnalyzeShell(string(data))
			if parsed {
				names = append(names, shellNames...)
			}
		}
	}
	if len(names) == 0 {
		return nil
	}

	sev := cc.Sigs.WorstSeverity(names)
	f := types.Finding{
		Severity:    sev,
		Category:    types.CategorySkill,
		Message:     fmt.Sprintf("skill file matches signatures: %s", strings.Join(names, ", ")),
		SubjectPath: path,
	}
	if sev == types.SeverityCritical {
		f.Remediation = "remove or quarantine this skill and audit where it came from"
	}
	return []types.Finding{f}
}

// syncMarkers are files sync clients drop inside managed folders.
var syncMarkers = []string{".dropbox", ".dropbox.cache", ".stfolder", ".stversions"}

// syncPathHints are folder names that place the install inside a cloud
// sync root.
var syncPathHints = []string{"dropbox", "google drive", "googledrive", "onedrive", "icloud", "icloud drive", "syncthing"}

func checkSyncedFolder(cc *CheckContext) []types.Finding {
	root := cc.Snapshot.Root

	lower := strings.ToLower(root)
	for _, hint := range syncPathHints {
		if strings.Contains(lower, hint) {
			return []types.Finding{types.Warning(types.CategorySync,
				"installation lives inside a cloud-synced folder, credentials and transcripts replicate to other devices").
				WithPath(root).
				WithRemediation("move the installation outside the synced tree")}
		}
	}
	for _, marker := range syncMarkers {
		if fileutil.Exists(filepath.Join(root, marker)) {
			return []types.Finding{types.Warning(types.CategorySync,
				"a sync client manages this installation directory").
				WithPath(filepath.Join(root, marker)).
				WithRemediation("exclude the installation from sync or relocate it")}
		}
	}
	return []types.Finding{types.Pass(types.CategorySync, "installation is not inside a synced folder")}
}

// promptFileNames is the fixed set of workspace instruction files the
// gateway loads into agent context.
var promptFileNames = []string{"SOUL.md", "AGENTS.md", "IDENTITY.md", "HEARTBEAT.md", "TOOLS.md"}

// workspaceDirs returns the directories probed for prompt files: the
// root itself plus any workspace* subdirectory.
func workspaceDirs(root string) []string {
	dirs := []string{root}
	entries, err := os.ReadDir(root)
	if err != nil {
		return dirs
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "workspace") {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	return dirs
}

func checkPromptFiles(cc *CheckContext) []types.Finding {
	var findings []types.Finding
	found := 0

	for _, dir := range workspaceDirs(cc.Snapshot.Root) {
		for _, name := range promptFileNames {
			path := filepath.Join(dir, name)
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			found++

			// A prompt file others can write is a standing injection
			// vector into every future agent session.
			if info.Mode().Perm()&0o002 != 0 {
				findings = append(findings, types.Critical(types.CategoryPrompt,
					"prompt file is world-writable, its instructions can be replaced by any local user").
					WithPath(path).
					WithRemediation(fmt.Sprintf("chmod o-w %s", path)))
			}

			res := cc.Sigs.ScanFile(path)
			if res.Err != nil || res.Skipped || len(res.Matches) == 0 {
				continue
			}
			findings = append(findings, types.Finding{
				Severity:    cc.Sigs.WorstSeverity(res.Matches),
				Category:    types.CategoryPrompt,
				Message:     fmt.Sprintf("prompt file matches signatures: %s", strings.Join(res.Matches, ", ")),
				SubjectPath: path,
			})
		}
	}

	if found == 0 {
		return []types.Finding{types.Info(types.CategoryPrompt, "no workspace prompt files found")}
	}
	if len(findings) == 0 {
		return []types.Finding{types.Pass(types.CategoryPrompt,
			fmt.Sprintf("%d prompt files inspected, nothing suspicious", found))}
	}
	return findings
}

func checkTranscripts(cc *CheckContext) []types.Finding {
	if cc.Sample.Total == 0 {
		return []types.Finding{types.Info(types.CategoryTranscript, "no transcripts found")}
	}

	var findings []types.Finding
	for _, path := range cc.Sample.Paths {
		res := cc.Sigs.ScanFile(path)
		if res.Err != nil {
			findings = append(findings, types.Info(types.CategoryTranscript,
				"transcript could not be read").WithPath(path))
			continue
		}
		if res.Skipped {
			continue
		}
		if len(res.Matches) > 0 {
			findings = append(findings, types.Finding{
				Severity:    cc.Sigs.WorstSeverity(res.Matches),
				Category:    types.CategoryTranscript,
				Message:     fmt.Sprintf("transcript matches signatures: %s", strings.Join(res.Matches, ", ")),
				SubjectPath: path,
				Remediation: "rotate any credential that appeared in agent conversation and prune the transcript",
			})
		}

		if cc.Deep {
			findings = append(findings, deepScanTranscript(cc, path)...)
		}
	}

	if len(findings) == 0 {
		return []types.Finding{types.Pass(types.CategoryTranscript,
			fmt.Sprintf("%d of %d transcripts scanned, no signatures matched", len(cc.Sample.Paths), cc.Sample.Total))}
	}
	return findings
}

func deepScanTranscript(cc *CheckContext, path string) []types.Finding {
	data, ok, err := transcript.Load(path)
	if err != nil || !ok {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	return transcript.Deep(path, data, info.ModTime(), cc.Now)
}
