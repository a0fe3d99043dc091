// Package pipeline runs the post-build packaging steps in order: resolve
// versions, name the image, remove stale images, merge.
//
// Every step reports a Status instead of an error. Header and cleanup
// problems degrade the run and it continues; a merge failure is terminal for
// the run but is still reported, never raised.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bigbag/agro-fw-merge/internal/artifact"
	"github.com/bigbag/agro-fw-merge/internal/header"
	"github.com/bigbag/agro-fw-merge/internal/merge"
)

// Step names
const (
	StepVersions = "versions"
	StepName     = "name"
	StepClean    = "clean"
	StepMerge    = "merge"
)

// Status is the outcome of a single step.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
)

// Config is everything a run needs. Nothing is read from the environment.
type Config struct {
	ProjectDir string
	BuildDir   string
	HeaderPath string
	Tool       []string

	// Now returns the build date. Defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
	// Stdout and Stderr receive the merge tool's captured output.
	Stdout io.Writer
	Stderr io.Writer

	Indicator merge.Indicator
	// Remove deletes a stale image. Defaults to os.Remove.
	Remove func(path string) error
}

// StepReport describes how one step went.
type StepReport struct {
	Name   string
	Status Status
	Detail string
}

// Report is the aggregate outcome of a run.
type Report struct {
	Header   header.Result
	Artifact artifact.Descriptor
	Clean    artifact.CleanResult
	Merge    merge.Result
	Steps    []StepReport
}

// Succeeded reports whether the merged image was produced.
func (r *Report) Succeeded() bool {
	return r.Merge.Success
}

// Pipeline runs the packaging steps for one build.
type Pipeline struct {
	cfg     Config
	cleaner *artifact.Cleaner
	invoker *merge.Invoker
}

// New validates cfg and creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.ProjectDir == "" {
		return nil, errors.New("project directory is required")
	}
	if cfg.BuildDir == "" {
		return nil, errors.New("build directory is required")
	}
	if cfg.HeaderPath == "" {
		return nil, errors.New("version header path is required")
	}
	if len(cfg.Tool) == 0 {
		return nil, errors.New("merge tool is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}

	cleaner := artifact.NewCleaner(cfg.Logger)
	if cfg.Remove != nil {
		cleaner.SetRemoveFunc(cfg.Remove)
	}

	invoker := merge.NewInvoker(cfg.Tool, cfg.Logger)
	invoker.SetOutput(cfg.Stdout, cfg.Stderr)
	if cfg.Indicator != nil {
		invoker.SetIndicator(cfg.Indicator)
	}

	return &Pipeline{cfg: cfg, cleaner: cleaner, invoker: invoker}, nil
}

// Run executes all steps in order and returns their combined report.
func (p *Pipeline) Run() *Report {
	r := &Report{}

	r.Header = header.Resolve(p.cfg.HeaderPath, p.cfg.Logger)
	r.addVersions()

	r.Artifact = artifact.Describe(r.Header.Versions, p.cfg.Now(), p.cfg.ProjectDir)
	r.Steps = append(r.Steps, StepReport{Name: StepName, Status: StatusOK, Detail: r.Artifact.FileName()})

	r.Clean = p.cleaner.Clean(p.cfg.ProjectDir, artifact.StalePattern)
	r.addClean()

	r.Merge = p.invoker.Run(merge.InputsFromBuildDir(p.cfg.BuildDir), r.Artifact.OutputPath)
	r.addMerge()

	return r
}

func (r *Report) addVersions() {
	s := StepReport{Name: StepVersions, Status: StatusOK, Detail: strings.Join(r.Header.Diagnostics, "; ")}
	if r.Header.Degraded() {
		s.Status = StatusDegraded
	}
	r.Steps = append(r.Steps, s)
}

func (r *Report) addClean() {
	s := StepReport{Name: StepClean, Status: StatusOK}
	switch {
	case r.Clean.Err != nil:
		s.Status = StatusDegraded
		s.Detail = r.Clean.Err.Error()
	case len(r.Clean.Failed) > 0:
		s.Status = StatusDegraded
		s.Detail = fmt.Sprintf("removed %d of %d, could not remove %d", len(r.Clean.Removed), len(r.Clean.Matched), len(r.Clean.Failed))
	default:
		s.Detail = fmt.Sprintf("removed %d", len(r.Clean.Removed))
	}
	if n := len(r.Clean.Skipped); n > 0 {
		s.Detail += fmt.Sprintf(", skipped %d directory(s)", n)
	}
	r.Steps = append(r.Steps, s)
}

func (r *Report) addMerge() {
	s := StepReport{Name: StepMerge, Status: StatusOK, Detail: r.Merge.OutputPath}
	if !r.Merge.Success {
		s.Status = StatusFailed
		s.Detail = r.Merge.Err.Error()
	}
	r.Steps = append(r.Steps, s)
}
