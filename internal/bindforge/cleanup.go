package bindforge

import (
	"os"
	"path/filepath"
)

// handleCleanupCommand clears transient state: download staging, stale locks
// and leftover scratch dirs. With all=true it also evicts every cached
// toolchain, which is the only path that destroys verified entries.
func handleCleanupCommand(cfg *Config, all bool) error {
	var reclaimed int

	dlDir := filepath.Join(cfg.CacheRoot, "dl")
	if entries, err := os.ReadDir(dlDir); err == nil {
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(dlDir, e.Name())); err == nil {
				reclaimed++
			}
		}
	}

	// Stale locks and half-extracted entries from interrupted runs.
	tcDir := filepath.Join(cfg.CacheRoot, "toolchains")
	for _, pattern := range []string{"*.lock", "*.tmp"} {
		matches, _ := filepath.Glob(filepath.Join(tcDir, pattern))
		for _, m := range matches {
			if err := os.RemoveAll(m); err == nil {
				reclaimed++
			}
		}
	}

	if entries, err := os.ReadDir(cfg.TmpRoot); err == nil {
		for _, e := range entries {
			name := e.Name()
			if name == filepath.Base(cfg.LogRoot) {
				continue
			}
			if err := os.RemoveAll(filepath.Join(cfg.TmpRoot, name)); err == nil {
				reclaimed++
			}
		}
	}

	if all {
		matches, _ := filepath.Glob(filepath.Join(tcDir, "*"))
		for _, m := range matches {
			if err := os.RemoveAll(m); err == nil {
				reclaimed++
			}
		}
	}

	arrowf(colSuccess, "Cleanup done, removed %d item(s)\n", reclaimed)
	return nil
}
