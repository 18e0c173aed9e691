package bindforge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// BuildResult captures one invocation of the bind tool. Immutable once
// produced. The dominant failure mode in this domain is tool-specific
// diagnostic text, so the combined output travels with the result verbatim.
type BuildResult struct {
	ExitStatus int
	Output     string
	Kind       FailureKind
}

// Invoker runs commands against an assembled environment. Build invocations
// are never retried: given fixed inputs, the outcome is deterministic.
type Invoker struct {
	cfg *Config

	// Tee receives a copy of the combined output as it is produced,
	// typically the build log. Optional.
	Tee io.Writer
}

func NewInvoker(cfg *Config) *Invoker {
	return &Invoker{cfg: cfg}
}

// Invoke spawns argv with the assembled environment, capturing combined
// stdout and stderr. A non-zero exit is NOT an error here: the caller gets a
// BuildResult carrying the tool's own exit status and the classified
// diagnostic. The returned error covers spawn-level problems and
// cancellation only.
func (iv *Invoker) Invoke(ctx context.Context, env *BuildEnvironment, argv []string) (*BuildResult, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command line")
	}

	exe := argv[0]
	if resolved, err := env.LookPath(exe); err == nil {
		exe = resolved
	}

	var buf bytes.Buffer
	var sink io.Writer = &buf
	if iv.Tee != nil {
		sink = io.MultiWriter(&buf, iv.Tee)
	}

	cmd := exec.Command(exe, argv[1:]...)
	cmd.Dir = env.Scratch()
	cmd.Env = env.Environ()
	cmd.Stdin = bytes.NewReader(nil)
	cmd.Stdout = sink
	cmd.Stderr = sink

	debugf("Invoking %v\n", argv)
	runner := NewExecutor(ctx)
	runner.ApplyIdlePriority = iv.cfg.IdlePriority
	err := runner.Run(cmd)

	result := &BuildResult{Output: buf.String()}
	if err == nil {
		return result, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		// Propagate the underlying tool's exit status unchanged, paired with
		// the normalized classification.
		result.ExitStatus = ee.ExitCode()
		result.Kind = classifyOutput(result.Output)
		return result, nil
	}

	return nil, fmt.Errorf("failed to invoke %s: %w", argv[0], err)
}
