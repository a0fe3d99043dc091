package artifact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ProgressCallback is called after each removal attempt.
type ProgressCallback func(current, total int)

// Failure records a stale image that could not be removed.
type Failure struct {
	Path string
	Err  error
}

// CleanResult is the outcome of a cleanup pass.
type CleanResult struct {
	Matched []string
	Removed []string
	Failed  []Failure
	// Skipped lists directories matching the pattern; they are never removed.
	Skipped []string
	// Err is set when the directory itself could not be listed.
	Err error
}

// Complete reports whether every matched image was removed.
func (r CleanResult) Complete() bool {
	return r.Err == nil && len(r.Failed) == 0
}

// Cleaner removes stale images from an output directory.
type Cleaner struct {
	logger   *slog.Logger
	remove   func(path string) error
	progress ProgressCallback
}

// NewCleaner creates a Cleaner that deletes files with os.Remove.
func NewCleaner(logger *slog.Logger) *Cleaner {
	return &Cleaner{logger: logger, remove: os.Remove}
}

// SetProgressCallback sets the progress callback function.
func (c *Cleaner) SetProgressCallback(cb ProgressCallback) {
	c.progress = cb
}

// SetRemoveFunc replaces the function used to delete a file.
func (c *Cleaner) SetRemoveFunc(fn func(path string) error) {
	c.remove = fn
}

func (c *Cleaner) reportProgress(current, total int) {
	if c.progress != nil {
		c.progress(current, total)
	}
}

// Match lists the regular files in dir whose name matches pattern.
func Match(dir, pattern string) ([]string, error) {
	files, _, err := scan(dir, pattern)
	return files, err
}

// scan splits the entries of dir matching pattern into files and directories.
func scan(dir, pattern string) (files, dirs []string, err error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	for _, e := range entries {
		if ok, _ := filepath.Match(pattern, e.Name()); !ok {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			dirs = append(dirs, path)
		} else {
			files = append(files, path)
		}
	}
	return files, dirs, nil
}

// Clean removes every file in dir matching pattern. Each file is attempted
// independently; failures are logged and returned, never fatal.
func (c *Cleaner) Clean(dir, pattern string) CleanResult {
	var res CleanResult

	matches, dirs, err := scan(dir, pattern)
	if err != nil {
		c.logger.Warn("Could not scan for stale images", "dir", dir, "error", err)
		res.Err = err
		return res
	}
	res.Matched = matches

	for _, d := range dirs {
		c.logger.Warn("Skipping directory matching stale image pattern", "dir", d)
		res.Skipped = append(res.Skipped, d)
	}

	for i, path := range matches {
		if err := c.remove(path); err != nil {
			c.logger.Warn("Failed to remove stale image", "file", path, "error", err)
			res.Failed = append(res.Failed, Failure{Path: path, Err: err})
		} else {
			c.logger.Info("Removed old file", "file", filepath.Base(path))
			res.Removed = append(res.Removed, path)
		}
		c.reportProgress(i+1, len(matches))
	}

	return res
}
