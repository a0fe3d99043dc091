package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bigbag/agro-fw-merge/internal/logging"
	"github.com/bigbag/agro-fw-merge/internal/merge"
)

// DefaultHeader is the version header path relative to the project directory.
var DefaultHeader = filepath.Join("src", "core", "version.h")

// Settings is the resolved configuration of a run.
type Settings struct {
	ProjectDir  string
	BuildDir    string
	HeaderPath  string
	PackagesDir string
	Tool        []string
	Strict      bool
	LogLevel    string
	LogFormat   string
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		ProjectDir: ".",
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// Find returns the config file in projectDir, if there is one.
func Find(projectDir string) (string, bool) {
	path := filepath.Join(projectDir, FileName)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

// Apply overlays the values set in f. A relative project_dir is taken
// relative to baseDir, the directory holding the config file.
func (s *Settings) Apply(f *File, baseDir string) {
	if f.ProjectDir != "" {
		s.ProjectDir = resolvePath(baseDir, f.ProjectDir)
	}
	if f.BuildDir != "" {
		s.BuildDir = f.BuildDir
	}
	if f.VersionHeader != "" {
		s.HeaderPath = f.VersionHeader
	}
	if f.PackagesDir != "" {
		s.PackagesDir = f.PackagesDir
	}
	if len(f.MergeTool) > 0 {
		s.Tool = append([]string(nil), f.MergeTool...)
	}
	if f.Strict != nil {
		s.Strict = *f.Strict
	}
	if f.LogLevel != "" {
		s.LogLevel = f.LogLevel
	}
	if f.LogFormat != "" {
		s.LogFormat = f.LogFormat
	}
}

// Resolve makes paths absolute, fills derived defaults and validates.
// Relative paths are taken relative to the project directory. The build
// directory may stay empty; only the merge needs it.
func (s *Settings) Resolve() error {
	if s.ProjectDir == "" {
		s.ProjectDir = "."
	}
	project, err := filepath.Abs(expandHome(s.ProjectDir))
	if err != nil {
		return fmt.Errorf("failed to resolve project dir: %w", err)
	}
	s.ProjectDir = project

	if strings.TrimSpace(s.BuildDir) != "" {
		s.BuildDir = resolvePath(s.ProjectDir, s.BuildDir)
	}

	if s.HeaderPath == "" {
		s.HeaderPath = DefaultHeader
	}
	s.HeaderPath = resolvePath(s.ProjectDir, s.HeaderPath)

	if s.PackagesDir != "" {
		s.PackagesDir = resolvePath(s.ProjectDir, s.PackagesDir)
	}

	if len(s.Tool) == 0 {
		s.Tool = merge.DefaultTool(s.PackagesDir)
	}

	s.LogLevel = strings.ToLower(s.LogLevel)
	if _, err := logging.ParseLevel(s.LogLevel); err != nil {
		return err
	}
	s.LogFormat = strings.ToLower(s.LogFormat)
	if s.LogFormat == "" {
		s.LogFormat = "text"
	}
	if !slices.Contains(logging.Formats, s.LogFormat) {
		return fmt.Errorf("invalid log format %q: must be one of %s", s.LogFormat, strings.Join(logging.Formats, ", "))
	}

	return nil
}

// resolvePath expands ~ and joins a relative p onto base.
func resolvePath(base, p string) string {
	p = expandHome(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	return filepath.Join(home, p[2:])
}
