package bindforge

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAssembleEmptySetFails(t *testing.T) {
	a := NewAssembler(newTestConfig(t))
	_, err := a.Assemble(nil)
	if !errors.Is(err, ErrMissingDependency) {
		t.Fatalf("expected MissingDependency, got %v", err)
	}
}

func TestAssembleRequiresCompilerToolchain(t *testing.T) {
	a := NewAssembler(newTestConfig(t))
	_, err := a.Assemble([]*ResolvedToolchain{
		makeFakeToolchain(t, ToolchainNDK),
	})
	if !errors.Is(err, ErrMissingDependency) {
		t.Fatalf("expected MissingDependency, got %v", err)
	}
}

func TestAssembleRejectsUnverifiedToolchain(t *testing.T) {
	a := NewAssembler(newTestConfig(t))
	tc := makeFakeToolchain(t, ToolchainGo)
	tc.Verified = false
	if _, err := a.Assemble([]*ResolvedToolchain{tc}); err == nil {
		t.Fatal("unverified toolchain entered a build environment")
	}
}

func TestAssembleLastDeclaredWins(t *testing.T) {
	a := NewAssembler(newTestConfig(t))
	first := makeFakeToolchain(t, "alpha", "tool")
	second := makeFakeToolchain(t, "beta", "tool")

	env, err := a.Assemble([]*ResolvedToolchain{
		makeFakeToolchain(t, ToolchainGo, "go"),
		first,
		second,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer env.Release()

	got, err := env.LookPath("tool")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(second.Dir, "bin", "tool")
	if got != want {
		t.Errorf("search order wrong: got %s, want %s", got, want)
	}
}

func TestLookPathIgnoresProcessPath(t *testing.T) {
	a := NewAssembler(newTestConfig(t))
	env, err := a.Assemble([]*ResolvedToolchain{makeFakeToolchain(t, ToolchainGo, "go")})
	if err != nil {
		t.Fatal(err)
	}
	defer env.Release()

	// sh exists on every host PATH but is not part of any toolchain.
	if found, err := env.LookPath("sh"); err == nil {
		t.Errorf("LookPath found %s outside the assembled dirs", found)
	}
	if _, err := env.LookPath("go"); err != nil {
		t.Errorf("LookPath missed a toolchain binary: %v", err)
	}
}

func TestAssembleDerivedVars(t *testing.T) {
	cfg := newTestConfig(t)
	a := NewAssembler(cfg)

	goTC := makeFakeToolchain(t, ToolchainGo, "go")
	sdkTC := makeFakeToolchain(t, ToolchainSDKTools, "sdkmanager")
	ndkTC := makeFakeToolchain(t, ToolchainNDK)

	env, err := a.Assemble([]*ResolvedToolchain{goTC, sdkTC, ndkTC})
	if err != nil {
		t.Fatal(err)
	}
	defer env.Release()

	if env.Vars["GOROOT"] != goTC.Dir {
		t.Errorf("GOROOT = %q, want %q", env.Vars["GOROOT"], goTC.Dir)
	}
	if env.Vars["ANDROID_NDK_HOME"] != ndkTC.Dir {
		t.Errorf("ANDROID_NDK_HOME = %q, want %q", env.Vars["ANDROID_NDK_HOME"], ndkTC.Dir)
	}
	if want := filepath.Join(cfg.InstallRoot, "sdk"); env.Vars["ANDROID_HOME"] != want {
		t.Errorf("ANDROID_HOME = %q, want %q", env.Vars["ANDROID_HOME"], want)
	}
	if env.Vars["GOPATH"] == "" || env.Vars["GOBIN"] == "" {
		t.Error("scratch GOPATH/GOBIN not derived")
	}

	// Environ must carry the derived vars, shadowing the process values.
	var sawPath bool
	for _, kv := range env.Environ() {
		if strings.HasPrefix(kv, "PATH=") {
			sawPath = true
			if kv != "PATH="+env.Path {
				t.Error("process PATH not shadowed by assembled path")
			}
		}
	}
	if !sawPath {
		t.Error("Environ missing PATH")
	}
}

func TestReleaseRemovesScratch(t *testing.T) {
	a := NewAssembler(newTestConfig(t))
	env, err := a.Assemble([]*ResolvedToolchain{makeFakeToolchain(t, ToolchainGo)})
	if err != nil {
		t.Fatal(err)
	}

	scratch := env.Scratch()
	if _, err := os.Stat(scratch); err != nil {
		t.Fatalf("scratch dir not materialized: %v", err)
	}

	env.Release()
	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Error("scratch dir survived Release")
	}
}
