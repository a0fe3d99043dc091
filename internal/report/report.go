// Package report renders run summaries and port listings as tables.
package report

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/bigbag/agro-fw-merge/internal/pipeline"
	"github.com/bigbag/agro-fw-merge/internal/ports"
)

// Summary writes one row per pipeline step.
func Summary(w io.Writer, r *pipeline.Report, color bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Step", "Status", "Detail"})
	for _, s := range r.Steps {
		t.AppendRow(table.Row{s.Name, formatStatus(s.Status, color), s.Detail})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

// Ports writes the serial port listing.
func Ports(w io.Writer, list []ports.Port) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Port", "VID:PID", "Bridge", "Serial", "Product"})
	for _, p := range list {
		id := ""
		if p.USB {
			id = p.VID + ":" + p.PID
		}
		t.AppendRow(table.Row{p.Name, id, p.Bridge, p.SerialNumber, p.Product})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func formatStatus(s pipeline.Status, color bool) string {
	if !color {
		return string(s)
	}
	switch s {
	case pipeline.StatusOK:
		return text.FgGreen.Sprint(string(s))
	case pipeline.StatusDegraded:
		return text.FgYellow.Sprint(string(s))
	case pipeline.StatusFailed:
		return text.FgRed.Sprint(string(s))
	default:
		return string(s)
	}
}
