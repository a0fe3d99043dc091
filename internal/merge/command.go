package merge

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Args returns the esptool arguments that merge in into output.
// Flag names, offsets and their order are what esptool expects.
func Args(output string, in Inputs) []string {
	args := []string{
		"--chip", Chip, "merge_bin",
		"-o", output,
		"--flash_mode", FlashMode,
		"--flash_freq", FlashFreq,
		"--flash_size", FlashSize,
	}
	for _, r := range in.Regions() {
		args = append(args, fmt.Sprintf("0x%X", r.Offset), r.Path)
	}
	return args
}

// DefaultTool returns the command used to run esptool. With a PlatformIO
// packages directory it runs the bundled esptool.py through Python,
// otherwise it expects esptool.py on PATH.
func DefaultTool(packagesDir string) []string {
	if packagesDir == "" {
		return []string{"esptool.py"}
	}
	return []string{pythonExecutable(), filepath.Join(packagesDir, "tool-esptoolpy", "esptool.py")}
}

func pythonExecutable() string {
	if runtime.GOOS == "windows" {
		return "python"
	}
	return "python3"
}

// CommandLine renders tool and args for logging.
func CommandLine(tool, args []string) string {
	parts := make([]string, 0, len(tool)+len(args))
	for _, p := range append(append([]string{}, tool...), args...) {
		if strings.ContainsAny(p, " \t") {
			p = fmt.Sprintf("%q", p)
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}
