package bindforge

// Shared fixtures for the package tests. Every test gets fully isolated
// roots under t.TempDir(), exercising the injectable-config layout.

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"
)

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	root := t.TempDir()
	cfg := &Config{
		Values:          map[string]string{},
		CacheRoot:       filepath.Join(root, "cache"),
		InstallRoot:     filepath.Join(root, "install"),
		TmpRoot:         filepath.Join(root, "tmp"),
		OutRoot:         filepath.Join(root, "out"),
		LogRoot:         filepath.Join(root, "log"),
		CompilerVersion: "1.23.10",
		SDKVersion:      "11076708",
		NDKVersion:      "r26b",
		AndroidAPI:      23,
		TargetArchs:     []string{"arm64"},
	}
	for _, d := range []string{cfg.CacheRoot, cfg.TmpRoot, cfg.OutRoot, cfg.LogRoot} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}

// makeTarGz builds a gzipped tarball in memory. Paths are taken as given, so
// callers control whether there is a shared top-level directory.
func makeTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{
			Name: name,
			Mode: 0o755,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// makeFakeToolchain lays out a verified toolchain dir with the given
// binaries under bin/.
func makeFakeToolchain(t *testing.T, name string, binaries ...string) *ResolvedToolchain {
	t.Helper()
	dir := t.TempDir()
	binDir := filepath.Join(dir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, b := range binaries {
		if err := os.WriteFile(filepath.Join(binDir, b), []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return &ResolvedToolchain{
		Spec:     ToolchainSpec{Name: name, Version: "1.0"},
		Dir:      dir,
		Verified: true,
	}
}
