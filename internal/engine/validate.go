package engine

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
)

// ErrEngineNotFound is returned when the external obfuscator CLI cannot be located.
var ErrEngineNotFound = errors.New("obfuscator CLI not found")

// ErrInvalidOutput is returned when an engine produced code that does not parse.
var ErrInvalidOutput = errors.New("obfuscated output does not parse")

// validateSyntax re-parses obfuscated code so a broken transform fails the
// build instead of shipping.
func validateSyntax(name, js string) error {
	res := api.Transform(js, api.TransformOptions{
		Loader:     api.LoaderJS,
		Sourcefile: name,
		LogLevel:   api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidOutput, formatMessages(res.Errors))
	}
	return nil
}

// findObfuscatorCLI resolves command on PATH, then in node_modules/.bin of the
// working directory and its parents.
func findObfuscatorCLI(command string) (string, error) {
	if command == "" {
		command = defaultExecCommand
	}
	if filepath.IsAbs(command) {
		if pathExists(command) {
			return command, nil
		}
		return "", fmt.Errorf("%w: %s", ErrEngineNotFound, command)
	}
	if p, err := exec.LookPath(command); err == nil {
		return p, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrEngineNotFound, command)
	}
	for {
		candidate := filepath.Join(dir, "node_modules", ".bin", command)
		if pathExists(candidate) {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("%w: %s (install it with npm i -D javascript-obfuscator)", ErrEngineNotFound, command)
}

func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
