package header

import (
	"fmt"
	"log/slog"
	"os"
)

// Unknown is substituted for a version that could not be read.
const Unknown = "unknown"

// Macros holding the version strings.
const (
	FirmwareMacro = "FIRMWARE_VERSION"
	DeviceMacro   = "DEVICE_VERSION"
)

// Versions holds the firmware and device version strings of a build.
type Versions struct {
	Firmware string
	Device   string
}

// Result is the outcome of resolving versions from a header file.
type Result struct {
	Path          string
	Versions      Versions
	FirmwareFound bool
	DeviceFound   bool
	// Diagnostics has one line per macro describing what was detected.
	Diagnostics []string
	// Err is set when the header could not be opened or fully read.
	Err error
}

// Degraded reports whether either version fell back to Unknown.
func (r Result) Degraded() bool {
	return !r.FirmwareFound || !r.DeviceFound
}

// Resolve reads the firmware and device versions from the header at path.
// It never fails: a missing file, read error or absent macro leaves the
// affected field set to Unknown and is reported through the logger and
// Result.Diagnostics.
func Resolve(path string, logger *slog.Logger) Result {
	res := Result{
		Path:     path,
		Versions: Versions{Firmware: Unknown, Device: Unknown},
	}

	defs, err := readDefines(path)
	if err != nil {
		res.Err = err
	}

	res.Versions.Firmware, res.FirmwareFound = res.lookup(defs, FirmwareMacro, logger)
	res.Versions.Device, res.DeviceFound = res.lookup(defs, DeviceMacro, logger)

	return res
}

func (r *Result) lookup(defs Defines, macro string, logger *slog.Logger) (string, bool) {
	var msg string
	if value, ok := defs.Lookup(macro); ok {
		msg = fmt.Sprintf("Detected %s = %s", macro, value)
		logger.Info(msg)
		r.Diagnostics = append(r.Diagnostics, msg)
		return value, true
	}

	if r.Err != nil {
		msg = fmt.Sprintf("Could not read %s from header: %v", macro, r.Err)
	} else {
		msg = fmt.Sprintf("%s not defined in %s", macro, r.Path)
	}
	logger.Warn(msg)
	r.Diagnostics = append(r.Diagnostics, msg)
	return Unknown, false
}

func readDefines(path string) (Defines, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open header: %w", err)
	}
	defer f.Close()

	return Parse(f)
}
