package bindforge

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config names every root the tool touches. All state is reachable from here;
// nothing is installed into fixed global paths, so several isolated
// environments can coexist in one process (tests rely on this).
type Config struct {
	Values map[string]string

	// Filesystem roots, each individually overridable.
	CacheRoot   string // verified toolchains and download staging
	InstallRoot string // assembled SDK component tree
	TmpRoot     string // per-build scratch directories
	OutRoot     string // packaged bundles
	LogRoot     string // build logs

	// Declared toolchain set.
	CompilerVersion string
	SDKVersion      string
	NDKVersion      string
	AndroidAPI      int
	TargetArchs     []string

	// License prompts of the SDK installers are never answered interactively;
	// acceptance is this explicit flag or nothing.
	AcceptLicenses bool
	StrictPins     bool
	IdlePriority   bool // run bind invocations under nice -n 19

	MirrorURL string // S3-compatible artifact mirror endpoint, optional
}

// Load the config file and apply defaults
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	// Attempt to read the file
	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	// Merge BINDFORGE_* env overrides
	mergeEnvOverrides(cfg)

	if err := initConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge BINDFORGE_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "BINDFORGE_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}
}

// lookup returns the env-prefixed value when present, then the bare file key.
func (c *Config) lookup(key string) string {
	if v := c.Values["BINDFORGE_"+key]; v != "" {
		return v
	}
	return c.Values[key]
}

func initConfig(cfg *Config) error {
	cfg.CacheRoot = cfg.lookup("CACHE_DIR")
	if cfg.CacheRoot == "" {
		cfg.CacheRoot = "/var/cache/bindforge"
	}

	cfg.InstallRoot = cfg.lookup("INSTALL_DIR")
	if cfg.InstallRoot == "" {
		cfg.InstallRoot = "/var/lib/bindforge"
	}

	cfg.TmpRoot = cfg.lookup("TMPDIR")
	if cfg.TmpRoot == "" {
		cfg.TmpRoot = "/var/tmp/bindforge"
	}

	cfg.OutRoot = cfg.lookup("OUT_DIR")
	if cfg.OutRoot == "" {
		cfg.OutRoot = filepath.Join(cfg.CacheRoot, "bundles")
	}

	cfg.LogRoot = cfg.lookup("LOG_DIR")
	if cfg.LogRoot == "" {
		cfg.LogRoot = filepath.Join(cfg.TmpRoot, "log")
	}

	cfg.CompilerVersion = cfg.lookup("GO_VERSION")
	if cfg.CompilerVersion == "" {
		cfg.CompilerVersion = "1.23.10"
	}

	cfg.SDKVersion = cfg.lookup("SDK_TOOLS_VERSION")
	if cfg.SDKVersion == "" {
		cfg.SDKVersion = "11076708"
	}

	cfg.NDKVersion = cfg.lookup("NDK_VERSION")
	if cfg.NDKVersion == "" {
		cfg.NDKVersion = "r26b"
	}

	cfg.AndroidAPI = 23
	if v := cfg.lookup("ANDROID_API"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ANDROID_API %q: %w", v, err)
		}
		cfg.AndroidAPI = n
	}

	archs := cfg.lookup("TARGET_ARCHS")
	if archs == "" {
		archs = "arm,arm64,386,amd64"
	}
	cfg.TargetArchs = nil
	for _, a := range strings.Split(archs, ",") {
		if a = strings.TrimSpace(a); a != "" {
			cfg.TargetArchs = append(cfg.TargetArchs, a)
		}
	}

	cfg.AcceptLicenses = cfg.lookup("ACCEPT_LICENSES") == "1"
	cfg.StrictPins = cfg.lookup("STRICT_PINS") == "1"
	cfg.IdlePriority = cfg.lookup("IDLE_PRIORITY") == "1"
	cfg.MirrorURL = strings.TrimRight(cfg.lookup("MIRROR_ENDPOINT"), "/")

	Debug = cfg.lookup("DEBUG") == "1"

	return nil
}

// pinsPath is where trusted toolchain digests live. The file sits next to the
// cache so an isolated CacheRoot carries its own trust state.
func (c *Config) pinsPath() string {
	if p := c.lookup("PINS_FILE"); p != "" {
		return p
	}
	return filepath.Join(c.CacheRoot, "pins")
}
