package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bigbag/agro-fw-merge/internal/artifact"
	"github.com/bigbag/agro-fw-merge/internal/config"
	"github.com/bigbag/agro-fw-merge/internal/header"
	"github.com/bigbag/agro-fw-merge/internal/logging"
	"github.com/bigbag/agro-fw-merge/internal/pipeline"
	"github.com/bigbag/agro-fw-merge/internal/ports"
	"github.com/bigbag/agro-fw-merge/internal/report"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// listPorts enumerates serial ports for the flashing hint.
var listPorts = func() ([]ports.Port, error) {
	return ports.NewLister().List()
}

// options holds the flag values of one command tree.
type options struct {
	projectDir  string
	configPath  string
	header      string
	logLevel    string
	logFormat   string
	buildDir    string
	packagesDir string
	tool        []string
	strict      bool
	noProgress  bool
	fullPath    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "agro-fw-merge",
		Short: "Package ESP32 firmware builds into a single flashable image",
		Long: `agro-fw-merge runs after a successful firmware build. It reads the
firmware and device versions from the version header, removes images left
by earlier builds and merges bootloader, partition table and application
into one image named

  agro_fertilizer_fw_v<FIRMWARE_VERSION>_<DEVICE_VERSION>_<DD_MM_YYYY>.bin

in the project directory.`,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.projectDir, "project-dir", "d", ".", "Project root directory")
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: <project-dir>/"+config.FileName+" if present)")
	rootCmd.PersistentFlags().StringVar(&opts.header, "header", "", "Version header (default: <project-dir>/src/core/version.h)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")

	// Merge command
	mergeCmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge build outputs into one image",
		Long: `Merge the build outputs into one image with esptool merge_bin:
  - Bootloader at 0x1000
  - Partition table at 0x8000
  - Firmware at 0x10000

A failed merge is reported but does not fail the command unless --strict is set.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd, opts)
		},
	}
	mergeCmd.Flags().StringVarP(&opts.buildDir, "build-dir", "b", "", "Build directory containing bootloader.bin, partitions.bin and firmware.bin")
	mergeCmd.Flags().StringVar(&opts.packagesDir, "packages-dir", "", "PlatformIO packages directory (selects tool-esptoolpy/esptool.py)")
	mergeCmd.Flags().StringArrayVar(&opts.tool, "tool", nil, "Merge tool command, repeat for each word (default: esptool.py)")
	mergeCmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit non-zero when the merge fails")
	mergeCmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Do not show a spinner while merging")

	// Name command
	nameCmd := &cobra.Command{
		Use:   "name",
		Short: "Print the image name the next merge would produce",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runName(cmd, opts)
		},
	}
	nameCmd.Flags().BoolVar(&opts.fullPath, "path", false, "Print the full output path")

	// Clean command
	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove merged images left by earlier builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, opts)
		},
	}

	// Ports command
	portsCmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports and detected ESP32 USB bridges",
		Args:  cobra.NoArgs,
		RunE:  runPorts,
	}

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "agro-fw-merge %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}

	rootCmd.AddCommand(mergeCmd, nameCmd, cleanCmd, portsCmd, versionCmd)
	return rootCmd
}

// loadSettings layers defaults, the config file and explicit flags.
func loadSettings(cmd *cobra.Command, opts *options) (config.Settings, error) {
	s := config.Defaults()
	flags := cmd.Flags()

	path := opts.configPath
	if path == "" {
		if found, ok := config.Find(opts.projectDir); ok {
			path = found
		}
	}
	if path != "" {
		f, err := config.Load(path, os.Environ())
		if err != nil {
			return s, err
		}
		s.Apply(f, filepath.Dir(path))
	}

	if flags.Changed("project-dir") {
		s.ProjectDir = opts.projectDir
	}
	if flags.Changed("header") {
		s.HeaderPath = opts.header
	}
	if flags.Changed("log-level") {
		s.LogLevel = opts.logLevel
	}
	if flags.Changed("log-format") {
		s.LogFormat = opts.logFormat
	}
	if flags.Changed("build-dir") {
		s.BuildDir = opts.buildDir
	}
	if flags.Changed("packages-dir") {
		s.PackagesDir = opts.packagesDir
	}
	if flags.Changed("tool") {
		s.Tool = opts.tool
	}
	if flags.Changed("strict") {
		s.Strict = opts.strict
	}

	if err := s.Resolve(); err != nil {
		return s, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

func runMerge(cmd *cobra.Command, opts *options) error {
	s, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	logger, err := logging.New(s.LogLevel, s.LogFormat, out)
	if err != nil {
		return err
	}

	cfg := pipeline.Config{
		ProjectDir: s.ProjectDir,
		BuildDir:   s.BuildDir,
		HeaderPath: s.HeaderPath,
		Tool:       s.Tool,
		Logger:     logger,
		Stdout:     out,
		Stderr:     errOut,
	}
	if f, ok := errOut.(*os.File); ok && !opts.noProgress && isTerminal(f) {
		cfg.Indicator = newSpinner(f, "Merging binaries...")
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	r := p.Run()

	fmt.Fprintln(out)
	f, ok := out.(*os.File)
	report.Summary(out, r, ok && isTerminal(f))

	if !r.Succeeded() {
		if s.Strict {
			return fmt.Errorf("merge failed: %w", r.Merge.Err)
		}
		fmt.Fprintf(out, "Warning: no image produced: %v\n", r.Merge.Err)
		return nil
	}

	fmt.Fprintf(out, "Combined binary created at: %s\n", r.Merge.OutputPath)
	printFlashHint(out, r.Merge.OutputPath)
	return nil
}

func runName(cmd *cobra.Command, opts *options) error {
	s, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}

	logger, err := logging.New(s.LogLevel, s.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	res := header.Resolve(s.HeaderPath, logger)
	d := artifact.Describe(res.Versions, time.Now(), s.ProjectDir)

	if opts.fullPath {
		fmt.Fprintln(cmd.OutOrStdout(), d.OutputPath)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), d.FileName())
	}
	return nil
}

func runClean(cmd *cobra.Command, opts *options) error {
	s, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	logger, err := logging.New(s.LogLevel, s.LogFormat, out)
	if err != nil {
		return err
	}

	c := artifact.NewCleaner(logger)
	if f, ok := cmd.ErrOrStderr().(*os.File); ok && isTerminal(f) {
		c.SetProgressCallback(newRemovalBar(f))
	}

	res := c.Clean(s.ProjectDir, artifact.StalePattern)
	if res.Err != nil {
		return res.Err
	}

	fmt.Fprintf(out, "Removed %d of %d stale image(s)\n", len(res.Removed), len(res.Matched))
	for _, f := range res.Failed {
		fmt.Fprintf(out, "Warning: could not remove %s: %v\n", f.Path, f.Err)
	}
	for _, d := range res.Skipped {
		fmt.Fprintf(out, "Warning: skipped directory %s\n", d)
	}
	return nil
}

func runPorts(cmd *cobra.Command, args []string) error {
	list, err := listPorts()
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found")
		return nil
	}

	report.Ports(cmd.OutOrStdout(), list)
	return nil
}

// printFlashHint suggests how to flash image when an ESP32 board is attached.
func printFlashHint(w io.Writer, image string) {
	list, err := listPorts()
	if err != nil {
		return
	}
	p, ok := ports.FirstLikely(list)
	if !ok {
		return
	}
	fmt.Fprintf(w, "Detected %s on %s, flash with:\n  %s\n", p.Bridge, p.Name, ports.FlashCommand(p.Name, image))
}
