package bindforge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// sdkTestEnv assembles an environment whose sdkmanager is a script that
// records every invocation to callLog.
func sdkTestEnv(t *testing.T, cfg *Config, callLog string) *BuildEnvironment {
	t.Helper()
	sdkTC := makeFakeToolchain(t, ToolchainSDKTools, "sdkmanager")
	script := "#!/bin/sh\necho \"$@\" >> " + callLog + "\n"
	if err := os.WriteFile(filepath.Join(sdkTC.Dir, "bin", "sdkmanager"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	env, err := NewAssembler(cfg).Assemble([]*ResolvedToolchain{
		makeFakeToolchain(t, ToolchainGo, "go"),
		sdkTC,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(env.Release)
	return env
}

func readCallLog(t *testing.T, callLog string) []string {
	t.Helper()
	data, err := os.ReadFile(callLog)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestEnsureSDKComponentsRefusesWithoutLicenseFlag(t *testing.T) {
	cfg := newTestConfig(t)
	callLog := filepath.Join(t.TempDir(), "calls")
	env := sdkTestEnv(t, cfg, callLog)

	err := EnsureSDKComponents(context.Background(), cfg, env)
	if err == nil {
		t.Fatal("components installed without license acceptance")
	}
	if !strings.Contains(err.Error(), "ACCEPT_LICENSES") {
		t.Errorf("error does not name the flag: %v", err)
	}
	if calls := readCallLog(t, callLog); calls != nil {
		t.Errorf("sdkmanager ran despite refusal: %v", calls)
	}
}

func TestEnsureSDKComponentsInstallsAndIsIdempotent(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.AcceptLicenses = true
	callLog := filepath.Join(t.TempDir(), "calls")
	env := sdkTestEnv(t, cfg, callLog)

	if err := EnsureSDKComponents(context.Background(), cfg, env); err != nil {
		t.Fatal(err)
	}

	calls := readCallLog(t, callLog)
	if len(calls) != 2 {
		t.Fatalf("expected license + install invocations, got %v", calls)
	}
	if !strings.Contains(calls[0], "--licenses") {
		t.Errorf("first invocation is not license acceptance: %s", calls[0])
	}
	if !strings.Contains(calls[1], "platform-tools") ||
		!strings.Contains(calls[1], "platforms;android-23") {
		t.Errorf("install invocation missing components: %s", calls[1])
	}

	marker := filepath.Join(cfg.InstallRoot, "sdk", ".components")
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("component marker not written: %v", err)
	}

	// A second run must short-circuit on the marker.
	if err := EnsureSDKComponents(context.Background(), cfg, env); err != nil {
		t.Fatal(err)
	}
	if again := readCallLog(t, callLog); len(again) != 2 {
		t.Errorf("sdkmanager re-ran on an installed SDK: %v", again)
	}
}

func TestEnsureSDKComponentsReinstallsOnComponentChange(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.AcceptLicenses = true
	callLog := filepath.Join(t.TempDir(), "calls")
	env := sdkTestEnv(t, cfg, callLog)

	if err := EnsureSDKComponents(context.Background(), cfg, env); err != nil {
		t.Fatal(err)
	}

	// Bumping the API level invalidates the marker.
	cfg.AndroidAPI = 24
	if err := EnsureSDKComponents(context.Background(), cfg, env); err != nil {
		t.Fatal(err)
	}
	calls := readCallLog(t, callLog)
	if len(calls) != 4 {
		t.Fatalf("expected reinstall after component change, got %v", calls)
	}
	if !strings.Contains(calls[3], "platforms;android-24") {
		t.Errorf("reinstall did not use the new API level: %s", calls[3])
	}
}

func TestEnsureSDKComponentsRequiresSDKToolchain(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.AcceptLicenses = true
	env, err := NewAssembler(cfg).Assemble([]*ResolvedToolchain{
		makeFakeToolchain(t, ToolchainGo, "go"),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer env.Release()

	if err := EnsureSDKComponents(context.Background(), cfg, env); err == nil {
		t.Fatal("missing SDK toolchain not reported")
	}
}
