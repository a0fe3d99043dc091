// Package artifact names merged firmware images and removes the ones left
// behind by earlier builds.
package artifact

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/bigbag/agro-fw-merge/internal/header"
)

// Naming constants for merged images.
const (
	Prefix     = "agro_fertilizer_fw"
	Extension  = ".bin"
	DateLayout = "02_01_2006" // DD_MM_YYYY
)

// StalePattern matches every image this tool has ever produced, regardless
// of version or date.
const StalePattern = Prefix + "_*" + Extension

// Descriptor identifies the merged image of one build.
type Descriptor struct {
	Label      string
	Date       string
	OutputPath string
}

// FileName returns the base name of the image.
func (d Descriptor) FileName() string {
	return filepath.Base(d.OutputPath)
}

// Label returns the board label, e.g. agro_fertilizer_fw_v1.2.0_rev3.
func Label(v header.Versions) string {
	return Prefix + "_v" + sanitize(v.Firmware) + "_" + sanitize(v.Device)
}

// FileName returns the image file name for the given versions and date.
func FileName(v header.Versions, date time.Time) string {
	return Label(v) + "_" + date.Format(DateLayout) + Extension
}

// Describe derives the descriptor of the image placed in outDir.
func Describe(v header.Versions, date time.Time, outDir string) Descriptor {
	return Descriptor{
		Label:      Label(v),
		Date:       date.Format(DateLayout),
		OutputPath: filepath.Join(outDir, FileName(v, date)),
	}
}

var separatorReplacer = strings.NewReplacer("/", "-", `\`, "-")

// sanitize keeps a version string from introducing path separators.
func sanitize(s string) string {
	return separatorReplacer.Replace(s)
}
