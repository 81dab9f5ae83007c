package rules

import (
	"fmt"
	"strings"

	"github.com/kcchien/clawpilot/internal/types"
)

// insufficient is the uniform degradation for a check that cannot
// evaluate: an explicit INFO, never a silent omission.
func insufficient(category, why string) types.Finding {
	return types.Info(category, fmt.Sprintf("insufficient information: %s", why))
}

// boolValue interprets the spellings operators actually use in config
// files. The second return reports whether the value was recognizable.
func boolValue(v string) (value, known bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "on", "1", "enabled":
		return true, true
	case "false", "no", "off", "0", "disabled":
		return false, true
	}
	return false, false
}
