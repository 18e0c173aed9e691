package bindforge

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
)

// Toolchain names. The assembler refuses to build without the compiler
// toolchain since it provides the binding-generation step.
const (
	ToolchainGo       = "go"
	ToolchainSDKTools = "cmdline-tools"
	ToolchainNDK      = "ndk"
)

// Download URL templates. {version}, {os} and {arch} are substituted from the
// spec and the host platform.
const (
	goDistURL  = "https://go.dev/dl/go{version}.{os}-{arch}.tar.gz"
	sdkDistURL = "https://dl.google.com/android/repository/commandlinetools-{os}-{version}_latest.zip"
	ndkDistURL = "https://dl.google.com/android/repository/android-ndk-{version}-{os}.zip"
)

// ToolchainSpec declares one versioned artifact. Immutable once constructed;
// the resolver never mutates it, it only compares against it.
type ToolchainSpec struct {
	Name        string
	Version     string
	URLTemplate string
	Checksum    string // expected BLAKE3 hex digest; empty means unpinned
}

// CacheKey identifies the cache entry for this spec.
func (s ToolchainSpec) CacheKey() string {
	return s.Name + "-" + s.Version
}

// URL expands the template for the host platform. The SDK repository names
// macOS "mac" while the Go downloads use "darwin".
func (s ToolchainSpec) URL() string {
	hostOS := runtime.GOOS
	if hostOS == "darwin" && s.Name == ToolchainSDKTools {
		hostOS = "mac"
	}
	r := strings.NewReplacer(
		"{version}", s.Version,
		"{os}", hostOS,
		"{arch}", hostArch,
	)
	return r.Replace(s.URLTemplate)
}

// archiveName is the staging filename for the downloaded artifact. The full
// compound extension is kept so the extractor can pick the right decoder.
func (s ToolchainSpec) archiveName() string {
	return s.CacheKey() + archiveExt(s.URL())
}

func archiveExt(url string) string {
	for _, ext := range []string{".tar.gz", ".tar.xz", ".tar.zst", ".tar.bz2", ".tgz", ".zip", ".tar"} {
		if strings.HasSuffix(url, ext) {
			return ext
		}
	}
	return filepath.Ext(url)
}

// toolchainSpecs builds the declared set from configuration. Order matters:
// later entries win search-path collisions during assembly.
func toolchainSpecs(cfg *Config) []ToolchainSpec {
	specs := []ToolchainSpec{
		{Name: ToolchainGo, Version: cfg.CompilerVersion, URLTemplate: goDistURL},
		{Name: ToolchainSDKTools, Version: cfg.SDKVersion, URLTemplate: sdkDistURL},
		{Name: ToolchainNDK, Version: cfg.NDKVersion, URLTemplate: ndkDistURL},
	}
	for i := range specs {
		if tmpl := cfg.lookup(strings.ToUpper(strings.ReplaceAll(specs[i].Name, "-", "_")) + "_URL"); tmpl != "" {
			specs[i].URLTemplate = tmpl
		}
	}
	applyPins(cfg, specs)
	return specs
}

// ResolvedToolchain is a cache entry that passed verification. Verified stays
// false until the archive digest matched the pin; the assembler rejects
// anything else.
type ResolvedToolchain struct {
	Spec     ToolchainSpec
	Dir      string
	Verified bool
}

// --- checksum pins ---

// loadPins reads "<b3sum>  <name>-<version>" lines.
func loadPins(path string) (map[string]string, error) {
	pins := make(map[string]string)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return pins, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) >= 2 {
			pins[strings.Join(fields[1:], " ")] = fields[0]
		}
	}
	return pins, scanner.Err()
}

// savePins writes the pin map back out, sorted for stable diffs.
func savePins(path string, pins map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	keys := make([]string, 0, len(pins))
	for k := range pins {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s  %s\n", pins[k], k)
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// applyPins fills spec checksums from the pin file.
func applyPins(cfg *Config, specs []ToolchainSpec) {
	pins, err := loadPins(cfg.pinsPath())
	if err != nil {
		debugf("failed to read pins file %s: %v\n", cfg.pinsPath(), err)
		return
	}
	for i := range specs {
		if specs[i].Checksum == "" {
			specs[i].Checksum = pins[specs[i].CacheKey()]
		}
	}
}

// pinsMu serializes read-modify-write cycles on the pins file; concurrent
// prefetches may record first-use digests at the same time.
var pinsMu sync.Mutex

// recordPin stores a trust-on-first-use digest for an unpinned toolchain.
func recordPin(cfg *Config, key, sum string) error {
	pinsMu.Lock()
	defer pinsMu.Unlock()
	pins, err := loadPins(cfg.pinsPath())
	if err != nil {
		return err
	}
	pins[key] = sum
	return savePins(cfg.pinsPath(), pins)
}
