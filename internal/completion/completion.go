// Package completion provides CLI tab-completion for clawpilot.
//
// The binary itself handles completions: when invoked with COMP_LINE set
// (by the shell), it outputs matching completions and exits.
// Works across bash, zsh, and fish with a one-time install.
package completion

import (
	"os"

	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/install"
	"github.com/posener/complete/v2/predict"
)

// command defines the full clawpilot CLI completion tree.
var command = &complete.Command{
	Sub: map[string]*complete.Command{
		"audit": {
			Flags: map[string]complete.Predictor{
				"root":            predict.Dirs("*"),
				"config":          predict.Files("*.yaml"),
				"max-transcripts": predict.Nothing,
				"deep":            predict.Nothing,
				"json":            predict.Nothing,
				"no-color":        predict.Nothing,
				"log-level":       predict.Set{"trace", "debug", "info", "warn", "error"},
			},
		},
		"watch": {
			Flags: map[string]complete.Predictor{
				"root":            predict.Dirs("*"),
				"config":          predict.Files("*.yaml"),
				"max-transcripts": predict.Nothing,
				"deep":            predict.Nothing,
				"no-color":        predict.Nothing,
				"log-level":       predict.Set{"trace", "debug", "info", "warn", "error"},
			},
		},
		"version":    {Flags: map[string]complete.Predictor{"json": predict.Nothing}},
		"help":       {},
		"completion": {Flags: map[string]complete.Predictor{"install": predict.Nothing, "uninstall": predict.Nothing}},
	},
}

// Run checks if the binary was invoked for shell completion.
// If COMP_LINE is set, it outputs completions and exits (never returns).
// Otherwise it returns false and the program continues normally.
func Run() bool {
	if os.Getenv("COMP_LINE") != "" || os.Getenv("COMP_INSTALL") != "" || os.Getenv("COMP_UNINSTALL") != "" {
		command.Complete("clawpilot")
		return true
	}
	return false
}

// Install sets up shell completion for the detected shells.
func Install() error {
	return install.Install("clawpilot")
}

// Uninstall removes shell completion for the detected shells.
func Uninstall() error {
	return install.Uninstall("clawpilot")
}

// IsInstalled reports whether shell completion is already set up.
func IsInstalled() bool {
	return install.IsInstalled("clawpilot")
}
