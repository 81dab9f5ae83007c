package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kcchien/clawpilot/internal/audit"
	"github.com/kcchien/clawpilot/internal/completion"
	"github.com/kcchien/clawpilot/internal/config"
	"github.com/kcchien/clawpilot/internal/logger"
	"github.com/kcchien/clawpilot/internal/report"
	"github.com/kcchien/clawpilot/internal/watch"
)

// Version is set at build time via ldflags: -X main.Version=x.y.z
var Version = "0.4.0"

var log = logger.New("main")

func main() {
	// Shell completion requests short-circuit everything else.
	if completion.Run() {
		return
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "audit":
			os.Exit(runAudit(os.Args[2:], os.Stdout))
		case "watch":
			os.Exit(runWatch(os.Args[2:], os.Stdout))
		case "completion":
			runCompletion(os.Args[2:])
			return
		case "help", "-h", "--help":
			printUsage()
			return
		case "version", "-v", "--version":
			fmt.Printf("clawpilot version %s\n", Version)
			return
		default:
			if strings.HasPrefix(os.Args[1], "-") {
				// Bare flags mean an implicit audit.
				os.Exit(runAudit(os.Args[1:], os.Stdout))
			}
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
			printUsage()
			os.Exit(report.ExitUsage)
		}
	}

	os.Exit(runAudit(nil, os.Stdout))
}

// cliOverrides is the flag surface shared by audit and watch.
type cliOverrides struct {
	fs *flag.FlagSet

	configPath     string
	root           string
	maxTranscripts int
	deep           bool
	jsonOut        bool
	noColor        bool
	logLevel       string
	scopeWindow    int
}

func newOverrides(name string, withJSON bool) *cliOverrides {
	o := &cliOverrides{fs: flag.NewFlagSet(name, flag.ExitOnError)}
	o.fs.StringVar(&o.configPath, "config", config.DefaultConfigPath(), "Path to the clawpilot config file")
	o.fs.StringVar(&o.root, "root", "", "Installation root to audit (default from config)")
	o.fs.IntVar(&o.maxTranscripts, "max-transcripts", -1, "Maximum transcript files to sample")
	o.fs.BoolVar(&o.deep, "deep", false, "Enable deep transcript heuristics")
	if withJSON {
		o.fs.BoolVar(&o.jsonOut, "json", false, "Emit the report as JSON")
	}
	o.fs.BoolVar(&o.noColor, "no-color", false, "Disable colored output")
	o.fs.StringVar(&o.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	o.fs.IntVar(&o.scopeWindow, "scope-window", -1, "Line window for scoped config field lookups")
	return o
}

// load parses args, loads the config file, and applies only the flags
// the user actually passed.
func (o *cliOverrides) load(args []string) (*config.Config, error) {
	_ = o.fs.Parse(args) // ExitOnError

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	passed := map[string]bool{}
	o.fs.Visit(func(f *flag.Flag) { passed[f.Name] = true })

	if passed["root"] {
		cfg.Root = o.root
	}
	if passed["max-transcripts"] {
		cfg.Scan.MaxTranscripts = o.maxTranscripts
	}
	if passed["deep"] {
		cfg.Scan.Deep = o.deep
	}
	if passed["scope-window"] {
		cfg.Scan.ScopeWindow = o.scopeWindow
	}
	if passed["json"] {
		cfg.Output.JSON = o.jsonOut
	}
	if passed["no-color"] {
		cfg.Output.NoColor = o.noColor
	}
	if passed["log-level"] {
		cfg.Output.LogLevel = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.SetGlobalLevelFromString(cfg.Output.LogLevel)
	if cfg.Output.NoColor {
		logger.SetColored(false)
	}
	return cfg, nil
}

func auditOptions(cfg *config.Config) (audit.Options, error) {
	policy, err := cfg.PolicyTable()
	if err != nil {
		return audit.Options{}, err
	}
	return audit.Options{
		Root:           cfg.Root,
		Policy:         policy,
		MaxTranscripts: cfg.Scan.MaxTranscripts,
		Deep:           cfg.Scan.Deep,
		ScopeWindow:    cfg.Scan.ScopeWindow,
	}, nil
}

func runAudit(args []string, stdout io.Writer) int {
	cfg, err := newOverrides("audit", true).load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return report.ExitUsage
	}
	opts, err := auditOptions(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return report.ExitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := audit.Run(ctx, opts)
	if err != nil {
		if errors.Is(err, audit.ErrMissingRoot) {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return report.ExitMissingRoot
		}
		// A cancelled run emits nothing; other failures are reported.
		if ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "audit failed: %v\n", err)
		}
		return 1
	}

	if cfg.Output.JSON {
		if err := r.RenderJSON(stdout); err != nil {
			fmt.Fprintf(os.Stderr, "writing report: %v\n", err)
			return 1
		}
	} else {
		r.Render(stdout, !cfg.Output.NoColor)
	}
	return r.ExitCode()
}

func runWatch(args []string, stdout io.Writer) int {
	cfg, err := newOverrides("watch", false).load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return report.ExitUsage
	}
	opts, err := auditOptions(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return report.ExitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rerun := func() {
		r, err := audit.Run(ctx, opts)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("audit failed: %v", err)
			}
			return
		}
		fmt.Fprintln(stdout)
		r.Render(stdout, !cfg.Output.NoColor)
	}

	// One immediate pass; the root must exist before watching starts.
	r, err := audit.Run(ctx, opts)
	if err != nil {
		if errors.Is(err, audit.ErrMissingRoot) {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return report.ExitMissingRoot
		}
		fmt.Fprintf(os.Stderr, "audit failed: %v\n", err)
		return 1
	}
	r.Render(stdout, !cfg.Output.NoColor)

	w, err := watch.New(cfg.Root, rerun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "starting watcher: %v\n", err)
		return 1
	}
	if err := w.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "starting watcher: %v\n", err)
		return 1
	}
	defer w.Stop()

	<-ctx.Done()
	return 0
}

func runCompletion(args []string) {
	fs := flag.NewFlagSet("completion", flag.ExitOnError)
	installFlag := fs.Bool("install", false, "Install shell completion")
	uninstallFlag := fs.Bool("uninstall", false, "Uninstall shell completion")
	_ = fs.Parse(args)

	switch {
	case *installFlag:
		if completion.IsInstalled() {
			fmt.Println("Shell completion is already installed.")
			return
		}
		if err := completion.Install(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to install completion: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Shell completion installed. Restart your shell to activate.")
	case *uninstallFlag:
		if err := completion.Uninstall(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to uninstall completion: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Shell completion uninstalled.")
	default:
		fmt.Println("Usage: clawpilot completion --install | --uninstall")
	}
}

func printUsage() {
	fmt.Println(`clawpilot - security auditor for OpenClaw gateway installations

Usage:
  clawpilot [audit] [flags]     Run a one-shot audit (the default command)
  clawpilot watch [flags]       Audit, then re-audit whenever the install changes
  clawpilot completion          Install or remove shell tab-completion
  clawpilot help                Show this help message
  clawpilot version             Show version

Flags:
  --root string           Installation root to audit (default ~/.openclaw)
  --config string         Path to the clawpilot config file (default ~/.clawpilot/config.yaml)
  --max-transcripts int   Maximum transcript files to sample
  --deep                  Enable deep transcript heuristics (IP and base64 density, stale sessions)
  --json                  Emit the report as JSON (audit only)
  --no-color              Disable colored output
  --log-level string      Log level: trace, debug, info, warn, error
  --scope-window int      Line window for scoped config field lookups

Exit codes:
  0  no critical findings
  1  at least one critical finding
  2  usage or configuration error
  3  installation root does not exist

Environment:
  CLAWPILOT_ROOT, CLAWPILOT_SCAN_MAX_TRANSCRIPTS, CLAWPILOT_SCAN_DEEP,
  CLAWPILOT_OUTPUT_LOG_LEVEL and friends override the config file.`)
}
