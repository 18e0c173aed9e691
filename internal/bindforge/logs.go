package bindforge

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/ulikunitz/xz"
)

// Build logs live at <LogRoot>/<module>/build-log.txt. Starting a new build
// for the same module rotates the previous log into an xz-compressed sibling
// instead of throwing it away.

func buildLogPath(cfg *Config, module string) string {
	return filepath.Join(cfg.LogRoot, module, "build-log.txt")
}

// openBuildLog rotates any previous log and opens a fresh one for writing.
func openBuildLog(cfg *Config, module string) (*os.File, error) {
	logPath := buildLogPath(cfg, module)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}

	if _, err := os.Stat(logPath); err == nil {
		prev := filepath.Join(filepath.Dir(logPath), "build-log.prev.txt.xz")
		if err := compressXZFile(logPath, prev); err != nil {
			debugf("Warning: failed to rotate previous log %s: %v\n", logPath, err)
		}
	}

	return os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

// compressXZFile compresses src into dst, replacing dst.
func compressXZFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	xzWriter, err := xz.NewWriter(out)
	if err != nil {
		return err
	}

	if _, err := io.Copy(xzWriter, in); err != nil {
		xzWriter.Close()
		return err
	}
	return xzWriter.Close()
}

type logInfo struct {
	path    string
	module  string
	content string
}

// readAllBuildLogs scans the log root, newest first.
func readAllBuildLogs(cfg *Config) []logInfo {
	paths, _ := filepath.Glob(filepath.Join(cfg.LogRoot, "*", "build-log.txt"))
	if len(paths) == 0 {
		return nil
	}

	// Sort by modification time (newest first)
	sort.Slice(paths, func(i, j int) bool {
		ai, err1 := os.Stat(paths[i])
		aj, err2 := os.Stat(paths[j])
		if err1 != nil || err2 != nil {
			return paths[i] > paths[j]
		}
		return ai.ModTime().After(aj.ModTime())
	})

	logs := make([]logInfo, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			content = []byte(fmt.Sprintf("failed to read log: %v", err))
		}
		logs = append(logs, logInfo{
			path:    path,
			module:  filepath.Base(filepath.Dir(path)),
			content: string(content),
		})
	}
	return logs
}
