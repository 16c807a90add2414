// Package preflight verifies the environment before a pipeline run: the
// collaborator binaries must resolve on PATH and the working directories
// must be writable. The check command prints these results; the run command
// aborts early when a required check fails.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"narrator/internal/config"
)

// Result reports the outcome of one check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Requirement defines an external binary the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
}

// CheckBinary verifies that a required command resolves on PATH.
func CheckBinary(req Requirement) Result {
	cmd := strings.TrimSpace(req.Command)
	if cmd == "" {
		return Result{Name: req.Name, Detail: "command not configured"}
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		return Result{Name: req.Name, Detail: fmt.Sprintf("binary %q not found", cmd)}
	}
	return Result{Name: req.Name, Passed: true, Detail: path}
}

// CheckDirectoryAccess verifies that the directory exists and is
// readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// Run evaluates every check for the given config. Directories are created
// first so a fresh install passes.
func Run(cfg *config.Config) []Result {
	results := []Result{
		CheckBinary(Requirement{
			Name:        "extractor",
			Command:     cfg.Extraction.Command,
			Description: "Required for text extraction",
		}),
		CheckBinary(Requirement{
			Name:        "synthesizer",
			Command:     cfg.Synthesis.Command,
			Description: "Required for speech synthesis",
		}),
	}
	if err := cfg.EnsureDirectories(); err != nil {
		results = append(results, Result{Name: "directories", Detail: err.Error()})
		return results
	}
	results = append(results,
		CheckDirectoryAccess("work dir", cfg.Paths.WorkDir),
		CheckDirectoryAccess("state dir", cfg.Paths.StateDir),
		CheckDirectoryAccess("log dir", cfg.Paths.LogDir),
	)
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
