package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultExecCommand = "javascript-obfuscator"
	defaultExecTimeout = 2 * time.Minute
)

// ExecEngine delegates to an external obfuscator CLI compatible with
// javascript-obfuscator: `<cli> <input> --output <out> --config <json> --seed <n>`.
type ExecEngine struct {
	path    string
	timeout time.Duration
	config  []byte
	logger  zerolog.Logger
}

// NewExecEngine locates the CLI and serializes opts.Extra as its config file.
func NewExecEngine(opts Options, logger zerolog.Logger) (*ExecEngine, error) {
	path, err := findObfuscatorCLI(opts.ExecCommand)
	if err != nil {
		return nil, err
	}
	extra := opts.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	cfg, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("encoding obfuscator config: %w", err)
	}
	timeout := opts.ExecTimeout
	if timeout <= 0 {
		timeout = defaultExecTimeout
	}
	logger.Debug().Str("cli", path).Dur("timeout", timeout).Msg("using external obfuscator")
	return &ExecEngine{path: path, timeout: timeout, config: cfg, logger: logger}, nil
}

func (e *ExecEngine) Name() string { return EngineExec }

// Obfuscate writes code to a scratch directory, runs the CLI on it and reads
// the result back.
func (e *ExecEngine) Obfuscate(ctx context.Context, name, code string, seed int64) (string, error) {
	dir, err := os.MkdirTemp("", "bundleobf-exec-*")
	if err != nil {
		return "", fmt.Errorf("creating scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	in := filepath.Join(dir, "in.js")
	out := filepath.Join(dir, "out.js")
	cfgPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(in, []byte(code), 0o600); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.WriteFile(cfgPath, e.config, 0o600); err != nil {
		return "", fmt.Errorf("writing obfuscator config: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	args := []string{in, "--output", out, "--config", cfgPath, "--seed", strconv.FormatInt(seed, 10)}
	cmd := exec.CommandContext(runCtx, e.path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("obfuscating %s: timed out after %s", name, e.timeout)
	}
	if runErr != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg == "" {
			msg = runErr.Error()
		}
		return "", fmt.Errorf("obfuscating %s: %s", name, msg)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return "", fmt.Errorf("reading obfuscated %s: %w", name, err)
	}
	e.logger.Debug().Str("file", name).Int("in", len(code)).Int("out", len(data)).Msg("external obfuscator finished")
	return string(data), nil
}
