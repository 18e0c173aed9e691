package bindforge

import (
	"runtime"
	"strings"
	"testing"
)

func TestToolchainURLExpansion(t *testing.T) {
	spec := ToolchainSpec{Name: ToolchainGo, Version: "1.23.10", URLTemplate: goDistURL}
	want := "https://go.dev/dl/go1.23.10." + runtime.GOOS + "-" + hostArch + ".tar.gz"
	if got := spec.URL(); got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}

	ndk := ToolchainSpec{Name: ToolchainNDK, Version: "r26b", URLTemplate: ndkDistURL}
	if got := ndk.URL(); !strings.Contains(got, "android-ndk-r26b-") {
		t.Errorf("NDK URL missing version: %q", got)
	}
}

func TestCacheKey(t *testing.T) {
	spec := ToolchainSpec{Name: ToolchainSDKTools, Version: "11076708"}
	if got := spec.CacheKey(); got != "cmdline-tools-11076708" {
		t.Errorf("CacheKey() = %q", got)
	}
}

func TestArchiveExtCompound(t *testing.T) {
	cases := map[string]string{
		"https://example.com/go1.23.10.linux-amd64.tar.gz": ".tar.gz",
		"https://example.com/ndk-r26b-linux.zip":           ".zip",
		"https://example.com/tools.tar.xz":                 ".tar.xz",
		"https://example.com/tools.tar.zst":                ".tar.zst",
		"https://example.com/tools.tgz":                    ".tgz",
	}
	for url, want := range cases {
		if got := archiveExt(url); got != want {
			t.Errorf("archiveExt(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestToolchainSpecsOrderAndOverrides(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Values["NDK_URL"] = "https://mirror.internal/ndk-{version}.zip"

	specs := toolchainSpecs(cfg)
	if len(specs) != 3 {
		t.Fatalf("got %d specs", len(specs))
	}
	// Compiler first, NDK last: later entries shadow earlier binaries.
	if specs[0].Name != ToolchainGo || specs[1].Name != ToolchainSDKTools || specs[2].Name != ToolchainNDK {
		t.Errorf("spec order wrong: %v %v %v", specs[0].Name, specs[1].Name, specs[2].Name)
	}
	if got := specs[2].URL(); got != "https://mirror.internal/ndk-r26b.zip" {
		t.Errorf("NDK_URL override ignored: %q", got)
	}
}

func TestPinsRoundTrip(t *testing.T) {
	cfg := newTestConfig(t)
	if err := recordPin(cfg, "go-1.23.10", "aabbcc"); err != nil {
		t.Fatal(err)
	}
	if err := recordPin(cfg, "ndk-r26b", "ddeeff"); err != nil {
		t.Fatal(err)
	}

	pins, err := loadPins(cfg.pinsPath())
	if err != nil {
		t.Fatal(err)
	}
	if pins["go-1.23.10"] != "aabbcc" || pins["ndk-r26b"] != "ddeeff" {
		t.Errorf("pins did not round-trip: %v", pins)
	}

	specs := toolchainSpecs(cfg)
	for _, s := range specs {
		if s.Name == ToolchainGo && s.Checksum != "aabbcc" {
			t.Errorf("pin not applied to spec: %q", s.Checksum)
		}
	}
}

func TestLoadPinsMissingFileIsEmpty(t *testing.T) {
	cfg := newTestConfig(t)
	pins, err := loadPins(cfg.pinsPath())
	if err != nil {
		t.Fatal(err)
	}
	if len(pins) != 0 {
		t.Errorf("expected empty pin set, got %v", pins)
	}
}
