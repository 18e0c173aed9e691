package bindforge

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/gookit/color"
)

// printHelp prints the commands table
func printHelp() {
	colSuccess.Println("Usage: bindforge <command> [arguments]")
	colSuccess.Println("Run 'bindforge <command> -h' for command options")
	fmt.Println()
	colInfo.Println("Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Args string
		Desc string
	}
	cmds := []cmdInfo{
		{"version, --version", "", "Version information"},
		{"build, b", "[-o name] <module>", "Resolve toolchains, assemble the environment and bind a module"},
		{"resolve, r", "", "Fetch and verify the declared toolchain set"},
		{"env", "", "Print the assembled environment variables"},
		{"publish, p", "", "Upload local bundles to the artifact mirror"},
		{"logs, log", "", "TUI build log viewer"},
		{"cleanup", "[-all]", "Remove staging files, stale locks and scratch dirs"},
	}

	// Find the longest usage string to size the first column.
	maxLen := 0
	for _, c := range cmds {
		length := len(c.Cmd) + len(c.Args)
		if c.Args != "" {
			length++
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		var usageString string
		if c.Args != "" {
			usageString = fmt.Sprintf("%s %s", c.Cmd, c.Args)
		} else {
			usageString = c.Cmd
		}

		fmt.Print("  ")
		color.Bold.Print(c.Cmd)
		if c.Args != "" {
			fmt.Print(" ")
			color.Cyan.Print(c.Args)
		}
		for i := len(usageString); i < columnWidth; i++ {
			fmt.Print(" ")
		}
		fmt.Println(c.Desc)
	}
}

func printVersion() {
	fmt.Printf("bindforge %s (%s, built %s)\n", version, hostArch, buildDate)
}

// Run dispatches a command line. The returned code is the process exit
// status; build failures propagate the underlying tool's status unchanged.
func Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		printHelp()
		return 0
	}

	cfgPath := ConfigFile
	if p := os.Getenv("BINDFORGE_CONF"); p != "" {
		cfgPath = p
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		colError.Printf("Failed to load configuration: %v\n", err)
		return 1
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "version", "--version", "-v":
		printVersion()
		return 0

	case "help", "--help", "-h":
		printHelp()
		return 0

	case "build", "b":
		fs := flag.NewFlagSet("build", flag.ContinueOnError)
		outName := fs.String("o", "", "output bundle name (defaults to the module directory name)")
		verbose := fs.Bool("verbose", false, "stream tool output to the terminal as well as the log")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		if fs.NArg() != 1 {
			colError.Println("Usage: bindforge build [-o name] <module path>")
			return 2
		}
		Verbose = *verbose

		code, err := runBuildPipeline(ctx, cfg, fs.Arg(0), *outName)
		if err != nil {
			reportError(err)
			return code
		}
		return 0

	case "resolve", "r":
		resolver := NewResolver(cfg)
		if err := resolver.Prefetch(ctx, toolchainSpecs(cfg)); err != nil {
			reportError(err)
			return 1
		}
		arrowf(colSuccess, "All toolchains resolved\n")
		return 0

	case "env":
		resolver := NewResolver(cfg)
		specs := toolchainSpecs(cfg)
		resolved := make([]*ResolvedToolchain, 0, len(specs))
		for _, spec := range specs {
			rt, err := resolver.Resolve(ctx, spec)
			if err != nil {
				reportError(err)
				return 1
			}
			resolved = append(resolved, rt)
		}
		env, err := NewAssembler(cfg).Assemble(resolved)
		if err != nil {
			reportError(err)
			return 1
		}
		defer env.Release()
		for k, v := range env.Vars {
			fmt.Printf("%s=%s\n", k, v)
		}
		return 0

	case "publish", "p":
		if err := handlePublishCommand(ctx, cfg); err != nil {
			reportError(err)
			return 1
		}
		return 0

	case "logs", "log":
		return runLogViewer(cfg)

	case "cleanup":
		fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
		all := fs.Bool("all", false, "also evict cached toolchains")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		if err := handleCleanupCommand(cfg, *all); err != nil {
			reportError(err)
			return 1
		}
		return 0

	default:
		colError.Printf("Unknown command: %s\n\n", cmd)
		printHelp()
		return 2
	}
}

// reportError prints an error with its taxonomy name when it carries one.
func reportError(err error) {
	if errors.Is(err, context.Canceled) {
		colWarn.Println("Cancelled")
		return
	}

	kind := KindUnclassified
	var de *DownloadError
	var ce *ChecksumError
	switch {
	case errors.As(err, &de):
		kind = KindDownloadError
	case errors.As(err, &ce), errors.Is(err, ErrChecksumMismatch):
		kind = KindChecksumMismatch
	case errors.Is(err, ErrMissingDependency):
		kind = KindMissingDependency
	}

	arrowf(colError, "%s: %v\n", kind, err)
}
