// Package merge runs esptool merge_bin to combine the bootloader, partition
// table and application into a single image.
package merge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
)

// Indicator is shown while the merge tool runs.
type Indicator interface {
	Start()
	Stop()
}

// Result is the outcome of one merge attempt.
type Result struct {
	Success    bool
	Stdout     string
	Stderr     string
	OutputPath string
	// ExitCode is -1 when the tool did not run to completion.
	ExitCode int
	// Err is set when the merge did not succeed.
	Err error
}

// Invoker runs the merge tool.
type Invoker struct {
	tool      []string
	logger    *slog.Logger
	stdout    io.Writer
	stderr    io.Writer
	indicator Indicator
}

// NewInvoker creates an Invoker for the given tool command.
func NewInvoker(tool []string, logger *slog.Logger) *Invoker {
	return &Invoker{
		tool:   tool,
		logger: logger,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// SetOutput sets where the tool's captured streams are echoed.
func (m *Invoker) SetOutput(stdout, stderr io.Writer) {
	m.stdout = stdout
	m.stderr = stderr
}

// SetIndicator sets the indicator shown while the tool runs.
func (m *Invoker) SetIndicator(ind Indicator) {
	m.indicator = ind
}

// Run merges in into output. It blocks until the tool exits and never
// retries; a failure is logged and returned in the Result.
func (m *Invoker) Run(in Inputs, output string) Result {
	res := Result{OutputPath: output, ExitCode: -1}

	if len(m.tool) == 0 {
		res.Err = errors.New("no merge tool configured")
		m.logger.Error("Merge failed", "error", res.Err)
		return res
	}

	if err := checkInputs(in); err != nil {
		res.Err = err
		m.logger.Error("Merge failed", "error", err)
		return res
	}

	args := Args(output, in)
	m.logger.Info("Merging binaries...", "command", CommandLine(m.tool, args))

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(m.tool[0], append(m.tool[1:], args...)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if m.indicator != nil {
		m.indicator.Start()
	}
	err := cmd.Run()
	if m.indicator != nil {
		m.indicator.Stop()
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			res.Err = fmt.Errorf("merge_bin exited with status %d", res.ExitCode)
		} else {
			res.Err = fmt.Errorf("failed to start merge tool: %w", err)
		}
		m.logger.Error("Error during merge_bin", "error", res.Err)
		io.WriteString(m.stderr, res.Stderr)
		return res
	}

	res.ExitCode = 0
	res.Success = true
	io.WriteString(m.stdout, res.Stdout)
	m.logger.Info("Combined binary created", "path", output)
	return res
}

// checkInputs verifies that every input is a readable regular file.
func checkInputs(in Inputs) error {
	for _, r := range in.Regions() {
		f, err := os.Open(r.Path)
		if err != nil {
			return fmt.Errorf("%s input unavailable: %w", r.Name, err)
		}
		info, err := f.Stat()
		f.Close()
		if err != nil {
			return fmt.Errorf("%s input unavailable: %w", r.Name, err)
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("%s input %s is not a regular file", r.Name, r.Path)
		}
	}
	return nil
}
