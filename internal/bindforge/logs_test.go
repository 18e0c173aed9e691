package bindforge

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ulikunitz/xz"
)

func TestOpenBuildLogRotatesPrevious(t *testing.T) {
	cfg := newTestConfig(t)

	f, err := openBuildLog(cfg, "widgets")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("first build output\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	f, err = openBuildLog(cfg, "widgets")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("second build output\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	current, err := os.ReadFile(buildLogPath(cfg, "widgets"))
	if err != nil {
		t.Fatal(err)
	}
	if string(current) != "second build output\n" {
		t.Errorf("current log = %q", current)
	}

	prev := filepath.Join(cfg.LogRoot, "widgets", "build-log.prev.txt.xz")
	in, err := os.Open(prev)
	if err != nil {
		t.Fatalf("rotated log missing: %v", err)
	}
	defer in.Close()
	xr, err := xz.NewReader(in)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, xr); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "first build output\n" {
		t.Errorf("rotated log = %q", buf.String())
	}
}

func TestReadAllBuildLogsNewestFirst(t *testing.T) {
	cfg := newTestConfig(t)

	for _, m := range []string{"older", "newer"} {
		f, err := openBuildLog(cfg, m)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.WriteString(m + " log\n"); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}
	// Force a clear mtime ordering.
	old := buildLogPath(cfg, "older")
	info, err := os.Stat(old)
	if err != nil {
		t.Fatal(err)
	}
	past := info.ModTime().Add(-time.Minute)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	logs := readAllBuildLogs(cfg)
	if len(logs) != 2 {
		t.Fatalf("got %d logs", len(logs))
	}
	if logs[0].module != "newer" || logs[1].module != "older" {
		t.Errorf("order wrong: %s, %s", logs[0].module, logs[1].module)
	}
	if logs[0].content != "newer log\n" {
		t.Errorf("content = %q", logs[0].content)
	}
}

func TestReadAllBuildLogsEmptyRoot(t *testing.T) {
	if logs := readAllBuildLogs(newTestConfig(t)); logs != nil {
		t.Errorf("expected nil, got %v", logs)
	}
}
