// Package ports lists serial ports and recognises the USB-UART bridges used
// on ESP32 boards, so the merged image can be flashed without guessing.
package ports

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Port is a serial port with whatever USB details the OS exposes.
type Port struct {
	Name         string
	USB          bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
	// Bridge names the recognised USB-UART chip, empty if unknown.
	Bridge string
}

// Likely reports whether the port looks like an ESP32 board.
func (p Port) Likely() bool {
	return p.Bridge != ""
}

type usbID struct {
	vid, pid string
}

// bridges maps VID:PID pairs to common ESP32 dev board bridges.
var bridges = map[usbID]string{
	{"10C4", "EA60"}: "CP210x",
	{"1A86", "7523"}: "CH340",
	{"1A86", "55D4"}: "CH9102",
	{"0403", "6001"}: "FT232R",
	{"0403", "6010"}: "FT2232",
	{"0403", "6015"}: "FT231X",
	{"303A", "1001"}: "ESP32 USB-JTAG",
}

// BridgeName returns the bridge chip for a VID/PID pair, or "".
func BridgeName(vid, pid string) string {
	return bridges[usbID{strings.ToUpper(vid), strings.ToUpper(pid)}]
}

// Lister enumerates serial ports.
type Lister struct {
	detailed func() ([]*enumerator.PortDetails, error)
	names    func() ([]string, error)
}

// NewLister returns a Lister backed by the OS.
func NewLister() *Lister {
	return &Lister{
		detailed: enumerator.GetDetailedPortsList,
		names:    serial.GetPortsList,
	}
}

// List returns all serial ports. When USB details are unavailable it falls
// back to bare port names.
func (l *Lister) List() ([]Port, error) {
	details, err := l.detailed()
	if err == nil {
		ports := make([]Port, 0, len(details))
		for _, d := range details {
			p := Port{Name: d.Name, USB: d.IsUSB}
			if d.IsUSB {
				p.VID = d.VID
				p.PID = d.PID
				p.SerialNumber = d.SerialNumber
				p.Product = d.Product
				p.Bridge = BridgeName(d.VID, d.PID)
			}
			ports = append(ports, p)
		}
		return ports, nil
	}

	names, nameErr := l.names()
	if nameErr != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", nameErr)
	}
	ports := make([]Port, 0, len(names))
	for _, n := range names {
		ports = append(ports, Port{Name: n})
	}
	return ports, nil
}

// FirstLikely returns the first port that looks like an ESP32 board.
func FirstLikely(ports []Port) (Port, bool) {
	for _, p := range ports {
		if p.Likely() {
			return p, true
		}
	}
	return Port{}, false
}

// FlashCommand returns the esptool invocation that writes a merged image.
// Merged images start at offset 0x0.
func FlashCommand(port, image string) string {
	return fmt.Sprintf("esptool.py --chip esp32 --port %s write_flash 0x0 %s", port, image)
}
