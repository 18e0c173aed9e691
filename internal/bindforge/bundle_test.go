package bindforge

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestStandardizeBundleName(t *testing.T) {
	got := StandardizeBundleName("widgets", "v1.2.0", 23)
	if got != "widgets-v1.2.0-android23.tar.zst" {
		t.Errorf("StandardizeBundleName = %q", got)
	}
}

func TestCreateBundleWritesSidecar(t *testing.T) {
	cfg := newTestConfig(t)

	work := t.TempDir()
	aar := filepath.Join(work, "widgets.aar")
	jar := filepath.Join(work, "widgets-sources.jar")
	for _, p := range []string{aar, jar} {
		if err := os.WriteFile(p, []byte("artifact: "+filepath.Base(p)), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	bundlePath, err := CreateBundle(cfg, "widgets", "v1.2.0", cfg.TargetArchs, []string{aar, jar})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(bundlePath) != "widgets-v1.2.0-android23.tar.zst" {
		t.Errorf("bundle name = %s", filepath.Base(bundlePath))
	}
	if !strings.HasPrefix(bundlePath, cfg.OutRoot) {
		t.Errorf("bundle escaped OutRoot: %s", bundlePath)
	}

	meta, err := ReadBundleMetadata(bundlePath)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Name != "widgets" || meta.Version != "v1.2.0" || meta.APILevel != 23 {
		t.Errorf("sidecar fields wrong: %+v", meta)
	}
	if !reflect.DeepEqual(meta.Archs, cfg.TargetArchs) {
		t.Errorf("archs = %v", meta.Archs)
	}
	if meta.CreatedAt.IsZero() {
		t.Error("CreatedAt unset")
	}

	// The recorded digest must match a fresh hash of the tarball.
	digest, err := ComputeChecksum(bundlePath)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Digest != digest {
		t.Errorf("digest = %s, want %s", meta.Digest, digest)
	}
}

func TestCreateBundleRequiresArtifacts(t *testing.T) {
	if _, err := CreateBundle(newTestConfig(t), "widgets", "v1.0.0", nil, nil); err == nil {
		t.Fatal("empty artifact list accepted")
	}
}

func TestComputeChecksumStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	if err := os.WriteFile(path, []byte("deterministic"), 0o644); err != nil {
		t.Fatal(err)
	}
	first, err := ComputeChecksum(path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ComputeChecksum(path)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("hash not stable: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Errorf("digest length %d, want 64 hex chars", len(first))
	}
}
