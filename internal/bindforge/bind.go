package bindforge

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// gomobileModule pins the binder itself; installed into the scratch GOBIN
// with the resolved compiler toolchain.
const gomobileModule = "golang.org/x/mobile/cmd/gomobile@latest"

// runBuildPipeline is the whole Resolver -> Assembler -> Invoker flow for one
// module: strictly sequential, no feedback loop.
func runBuildPipeline(ctx context.Context, cfg *Config, modulePath, outName string) (int, error) {
	moduleName := outName
	if moduleName == "" {
		abs, err := filepath.Abs(modulePath)
		if err != nil {
			return 1, err
		}
		moduleName = filepath.Base(abs)
	}

	specs := toolchainSpecs(cfg)
	resolver := NewResolver(cfg)

	// Different keys download concurrently; the later per-spec Resolve calls
	// below are pure cache hits.
	if err := resolver.Prefetch(ctx, specs); err != nil {
		return 1, err
	}

	resolved := make([]*ResolvedToolchain, 0, len(specs))
	for _, spec := range specs {
		rt, err := resolver.Resolve(ctx, spec)
		if err != nil {
			return 1, err
		}
		resolved = append(resolved, rt)
	}

	env, err := NewAssembler(cfg).Assemble(resolved)
	if err != nil {
		return 1, err
	}
	defer env.Release()

	if err := EnsureSDKComponents(ctx, cfg, env); err != nil {
		return 1, err
	}

	logFile, err := openBuildLog(cfg, moduleName)
	if err != nil {
		return 1, err
	}
	defer logFile.Close()

	invoker := NewInvoker(cfg)
	invoker.Tee = logFile
	if Verbose {
		invoker.Tee = io.MultiWriter(logFile, os.Stdout)
	}

	if err := ensureBinder(ctx, invoker, env); err != nil {
		return 1, err
	}

	targets := make([]string, 0, len(cfg.TargetArchs))
	for _, arch := range cfg.TargetArchs {
		targets = append(targets, "android/"+arch)
	}

	outAAR := filepath.Join(env.Scratch(), moduleName+".aar")
	argv := []string{
		"gomobile", "bind",
		"-target=" + strings.Join(targets, ","),
		fmt.Sprintf("-androidapi=%d", cfg.AndroidAPI),
		"-o", outAAR,
		modulePath,
	}

	arrowf(colSuccess, "Binding %s for %s (API %d)\n", moduleName, strings.Join(targets, ","), cfg.AndroidAPI)

	result, err := invoker.Invoke(ctx, env, argv)
	if err != nil {
		return 1, err
	}

	if result.ExitStatus != 0 {
		arrowf(colError, "Bind failed (%s), exit status %d\n", result.Kind, result.ExitStatus)
		if !Verbose {
			fmt.Fprint(os.Stderr, result.Output)
		}
		return result.ExitStatus, fmt.Errorf("bind failed: %s", result.Kind)
	}

	// gomobile writes the companion sources archive next to the .aar.
	sourcesJar := filepath.Join(env.Scratch(), moduleName+"-sources.jar")
	artifacts := []string{outAAR}
	if _, err := os.Stat(sourcesJar); err == nil {
		artifacts = append(artifacts, sourcesJar)
	}

	if _, err := CreateBundle(cfg, moduleName, cfg.CompilerVersion, cfg.TargetArchs, artifacts); err != nil {
		return 1, err
	}
	return 0, nil
}

// ensureBinder installs gomobile into the scratch GOBIN and initializes it.
// Both steps run through the invoker so their output lands in the build log.
func ensureBinder(ctx context.Context, invoker *Invoker, env *BuildEnvironment) error {
	if _, err := env.LookPath("gomobile"); err == nil {
		return nil
	}

	arrowf(colSuccess, "Installing binder into build scratch\n")

	for _, argv := range [][]string{
		{"go", "install", gomobileModule},
		{"gomobile", "init"},
	} {
		result, err := invoker.Invoke(ctx, env, argv)
		if err != nil {
			return err
		}
		if result.ExitStatus != 0 {
			return fmt.Errorf("%s failed (%s):\n%s", strings.Join(argv, " "), result.Kind, result.Output)
		}
	}
	return nil
}
