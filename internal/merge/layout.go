package merge

import "path/filepath"

// Flash offsets for the ESP32 image layout
const (
	BootloaderOffset = 0x1000
	PartitionsOffset = 0x8000
	FirmwareOffset   = 0x10000
)

// Flash parameters passed to merge_bin
const (
	Chip      = "esp32"
	FlashMode = "dio"
	FlashFreq = "40m"
	FlashSize = "4MB"
)

// File names produced by the build in the build directory
const (
	BootloaderFile = "bootloader.bin"
	PartitionsFile = "partitions.bin"
	FirmwareFile   = "firmware.bin"
)

// Region is one input binary and the flash offset it is placed at.
type Region struct {
	Offset uint32
	Path   string
	Name   string
}

// Inputs are the three binaries of a build.
type Inputs struct {
	Bootloader string
	Partitions string
	Firmware   string
}

// InputsFromBuildDir returns the standard input paths inside a build directory.
func InputsFromBuildDir(dir string) Inputs {
	return Inputs{
		Bootloader: filepath.Join(dir, BootloaderFile),
		Partitions: filepath.Join(dir, PartitionsFile),
		Firmware:   filepath.Join(dir, FirmwareFile),
	}
}

// Regions returns the inputs in flash order.
func (in Inputs) Regions() []Region {
	return []Region{
		{Offset: BootloaderOffset, Path: in.Bootloader, Name: "bootloader"},
		{Offset: PartitionsOffset, Path: in.Partitions, Name: "partitions"},
		{Offset: FirmwareOffset, Path: in.Firmware, Name: "firmware"},
	}
}
