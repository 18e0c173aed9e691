package bindforge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BuildEnvironment is the assembled view over a set of verified toolchains:
// a search path, the variable map the binder needs, and one scratch directory
// that lives exactly as long as the environment does. Owned by a single
// build; never shared.
type BuildEnvironment struct {
	Toolchains []*ResolvedToolchain
	Path       string
	Vars       map[string]string

	dirs    []string // assembled search dirs, without the process PATH tail
	scratch string
}

// Assembler lays resolved toolchains out into environments.
type Assembler struct {
	cfg *Config
}

func NewAssembler(cfg *Config) *Assembler {
	return &Assembler{cfg: cfg}
}

// Assemble derives the environment for the given toolchains. Later toolchains
// take precedence over earlier ones for colliding binary names, matching
// prepend-to-PATH semantics. Fails with MissingDependency when the set is
// empty or lacks the compiler toolchain that provides the bind step.
func (a *Assembler) Assemble(toolchains []*ResolvedToolchain) (*BuildEnvironment, error) {
	if len(toolchains) == 0 {
		return nil, fmt.Errorf("%w: no toolchains resolved", ErrMissingDependency)
	}

	var haveCompiler bool
	for _, tc := range toolchains {
		if !tc.Verified {
			return nil, fmt.Errorf("toolchain %s entered assembly unverified", tc.Spec.CacheKey())
		}
		if tc.Spec.Name == ToolchainGo {
			haveCompiler = true
		}
	}
	if !haveCompiler {
		return nil, fmt.Errorf("%w: %s toolchain is required for binding generation", ErrMissingDependency, ToolchainGo)
	}

	scratch, err := os.MkdirTemp(ensureDir(a.cfg.TmpRoot), "build-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}

	env := &BuildEnvironment{
		Toolchains: toolchains,
		Vars:       make(map[string]string),
		scratch:    scratch,
	}

	sdkRoot := filepath.Join(a.cfg.InstallRoot, "sdk")

	var pathDirs []string
	for _, tc := range toolchains {
		switch tc.Spec.Name {
		case ToolchainGo:
			env.Vars["GOROOT"] = tc.Dir
			pathDirs = append(pathDirs, filepath.Join(tc.Dir, "bin"))
		case ToolchainSDKTools:
			env.Vars["ANDROID_HOME"] = sdkRoot
			// sdkmanager insists on living under <sdk>/cmdline-tools/latest;
			// the cache entry itself carries the bin dir.
			pathDirs = append(pathDirs, filepath.Join(tc.Dir, "bin"))
			pathDirs = append(pathDirs, filepath.Join(sdkRoot, "platform-tools"))
		case ToolchainNDK:
			env.Vars["ANDROID_NDK_HOME"] = tc.Dir
		default:
			// Unknown toolchains still contribute a bin dir if they have one.
			if bin := filepath.Join(tc.Dir, "bin"); isDir(bin) {
				pathDirs = append(pathDirs, bin)
			} else {
				pathDirs = append(pathDirs, tc.Dir)
			}
		}
	}

	// Scratch-local GOBIN holds the binder itself and must beat everything.
	gopath := filepath.Join(scratch, "gopath")
	gobin := filepath.Join(scratch, "bin")
	for _, d := range []string{gopath, gobin} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			env.Release()
			return nil, fmt.Errorf("failed to create scratch layout: %w", err)
		}
	}
	env.Vars["GOPATH"] = gopath
	env.Vars["GOBIN"] = gobin
	pathDirs = append(pathDirs, gobin)

	// Later-declared wins: reverse so the last toolchain's dirs come first.
	for i, j := 0, len(pathDirs)-1; i < j; i, j = i+1, j-1 {
		pathDirs[i], pathDirs[j] = pathDirs[j], pathDirs[i]
	}
	env.dirs = pathDirs
	tail := os.Getenv("PATH")
	if tail == "" {
		tail = "/usr/bin:/bin"
	}
	env.Path = strings.Join(append(pathDirs, tail), string(os.PathListSeparator))
	env.Vars["PATH"] = env.Path

	debugf("Assembled environment: PATH=%s\n", env.Path)
	return env, nil
}

// Environ merges the derived variables over the process environment,
// suitable for exec.Cmd.Env.
func (e *BuildEnvironment) Environ() []string {
	out := make([]string, 0, len(os.Environ())+len(e.Vars))
	for _, kv := range os.Environ() {
		key := kv
		if idx := strings.IndexByte(kv, '='); idx != -1 {
			key = kv[:idx]
		}
		if _, shadowed := e.Vars[key]; !shadowed {
			out = append(out, kv)
		}
	}
	for k, v := range e.Vars {
		out = append(out, k+"="+v)
	}
	return out
}

// LookPath searches only the assembled toolchain dirs, never the process
// PATH tail. A system binary shadowing a toolchain name must not satisfy a
// toolchain lookup.
func (e *BuildEnvironment) LookPath(name string) (string, error) {
	for _, dir := range e.dirs {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s not found in assembled path", name)
}

// Scratch is the per-build work area.
func (e *BuildEnvironment) Scratch() string { return e.scratch }

// Release destroys the scratch directory. The environment is unusable
// afterwards.
func (e *BuildEnvironment) Release() {
	if e.scratch != "" {
		_ = os.RemoveAll(e.scratch)
		e.scratch = ""
	}
}

func ensureDir(dir string) string {
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
