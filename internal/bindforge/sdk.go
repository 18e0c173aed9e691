package bindforge

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// The SDK installers want their license prompts answered. We never answer
// them interactively: acceptance is the explicit ACCEPT_LICENSES flag, and
// the y-stream below is only fed to sdkmanager once that flag is set.

const licenseAnswers = 32 // more than any sdkmanager session ever asks

// EnsureSDKComponents drives sdkmanager to lay out platform-tools and the
// pinned platform under <InstallRoot>/sdk. Idempotent: a marker file recording
// the installed set skips the work on later builds.
func EnsureSDKComponents(ctx context.Context, cfg *Config, env *BuildEnvironment) error {
	sdkRoot := env.Vars["ANDROID_HOME"]
	if sdkRoot == "" {
		return fmt.Errorf("%w: environment has no SDK toolchain", ErrMissingDependency)
	}

	components := []string{
		"platform-tools",
		fmt.Sprintf("platforms;android-%d", cfg.AndroidAPI),
	}
	marker := filepath.Join(sdkRoot, ".components")
	want := strings.Join(components, "\n")

	if data, err := os.ReadFile(marker); err == nil && string(data) == want {
		debugf("SDK components already installed under %s\n", sdkRoot)
		return nil
	}

	sdkmanager, err := env.LookPath("sdkmanager")
	if err != nil {
		return fmt.Errorf("%w: sdkmanager not found in assembled path", ErrMissingDependency)
	}

	if err := os.MkdirAll(sdkRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create SDK root: %w", err)
	}

	if !cfg.AcceptLicenses {
		return fmt.Errorf("SDK licenses not accepted; set BINDFORGE_ACCEPT_LICENSES=1 to accept them non-interactively")
	}

	runner := NewExecutor(ctx)

	arrowf(colSuccess, "Accepting SDK licenses\n")
	licCmd := exec.Command(sdkmanager, "--sdk_root="+sdkRoot, "--licenses")
	licCmd.Stdin = strings.NewReader(strings.Repeat("y\n", licenseAnswers))
	licCmd.Stdout = io.Discard
	licCmd.Stderr = io.Discard
	licCmd.Env = env.Environ()
	if err := runner.Run(licCmd); err != nil {
		return fmt.Errorf("sdkmanager --licenses failed: %w", err)
	}

	arrowf(colSuccess, "Installing SDK components: %s\n", strings.Join(components, ", "))
	args := append([]string{"--sdk_root=" + sdkRoot}, components...)
	instCmd := exec.Command(sdkmanager, args...)
	instCmd.Stdin = strings.NewReader(strings.Repeat("y\n", licenseAnswers))
	instCmd.Env = env.Environ()
	if !Verbose {
		instCmd.Stdout = io.Discard
		instCmd.Stderr = io.Discard
	}
	if err := runner.Run(instCmd); err != nil {
		return fmt.Errorf("sdkmanager install failed: %w", err)
	}

	return os.WriteFile(marker, []byte(want), 0o644)
}
