// Package report renders a stored design as Markdown, HTML, CSV or PDF.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/joelkehle/cip-designer/internal/cip"
)

type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
)

// ParseFormat accepts the short names plus a few common aliases. Empty
// means CSV, the format the web UI always offered.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want csv, md, html or pdf)", s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv; charset=utf-8"
	}
}

func (f Format) Extension() string {
	return "." + string(f)
}

// Document is everything a report shows. ID and CreatedAt are optional so
// unsaved calculations can be rendered too.
type Document struct {
	ID        string
	CreatedAt time.Time
	Input     cip.DesignInput
	Result    cip.DesignResult
}

// Filename is the download name used in Content-Disposition.
func (d Document) Filename(f Format) string {
	name := "cip-design"
	if d.ID != "" {
		name += "-" + d.ID
	}
	return name + f.Extension()
}

var csvHeader = []string{"Item", "Qty", "Specification", "Comments", "Unit Cost", "Extended Cost"}

// CSV writes one row per BOM line. Unpriced lines have empty cost cells.
func CSV(w io.Writer, bom []cip.BomLine) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, l := range bom {
		row := []string{
			l.Item,
			strconv.Itoa(l.Qty),
			l.Specification,
			l.Comments,
			costCell(l.UnitCost),
			costCell(l.ExtendedCost),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func costCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// Markdown renders the summary, inputs and BOM as GFM tables.
func Markdown(doc Document) string {
	var b strings.Builder
	s := doc.Result.Summary
	in := doc.Input

	b.WriteString("# CIP Skid Design\n\n")
	if doc.ID != "" {
		fmt.Fprintf(&b, "- Reference: `%s`\n", doc.ID)
	}
	if !doc.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- Date: %s\n", doc.CreatedAt.UTC().Format("January 2, 2006 15:04 MST"))
	}
	fmt.Fprintf(&b, "- System: %s\n\n", cip.SystemType)

	b.WriteString("## Summary\n\n| Metric | Value |\n|---|---|\n")
	row(&b, "Stage 1 flow (F1)", num(s.F1)+" gpm")
	row(&b, "Stage 2 flow (F2)", num(s.F2)+" gpm")
	row(&b, "Design flow (Fmax)", num(s.Fmax)+" gpm")
	row(&b, "CIP tank", strconv.Itoa(s.TankGal)+" gal")
	if s.HeaterKW != nil {
		row(&b, "Heater", strconv.Itoa(*s.HeaterKW)+" kW")
	} else {
		row(&b, "Heater", "none")
	}
	row(&b, "Pump", s.Pump)

	b.WriteString("\n## Input Parameters\n\n| Parameter | Value |\n|---|---|\n")
	row(&b, "Stages", strconv.Itoa(in.Stages))
	row(&b, "Vessels, stage 1", strconv.Itoa(in.VesselsStage1))
	row(&b, "Vessels, stage 2", strconv.Itoa(in.VesselsStage2))
	row(&b, "Membranes per vessel", strconv.Itoa(in.MembranesPerVessel))
	row(&b, "Flow per vessel", num(in.PerVesselFlowGPM)+" gpm")
	row(&b, "Heater", strconv.FormatBool(in.Heater))
	row(&b, "Mains", strconv.Itoa(in.MainsHz)+" Hz")
	row(&b, "Start temperature", num(in.StartTempC)+" °C")
	row(&b, "Target temperature", num(in.TargetTempC)+" °C")
	row(&b, "Pump head assumption", num(in.HeadAssumptionFt)+" ft")
	row(&b, "Flow per cartridge", num(in.GPMPerCartridge)+" gpm")

	b.WriteString("\n## Bill of Materials\n\n")
	b.WriteString("| # | Item | Qty | Specification | Comments | Unit Cost | Extended Cost |\n")
	b.WriteString("|---|---|---:|---|---|---:|---:|\n")
	for i, l := range doc.Result.Bom {
		fmt.Fprintf(&b, "| %d | %s | %d | %s | %s | %s | %s |\n",
			i+1, cell(l.Item), l.Qty, cell(l.Specification), cell(l.Comments),
			money(l.UnitCost), money(l.ExtendedCost))
	}

	total, unpriced := doc.Result.TotalCost()
	fmt.Fprintf(&b, "\n**Estimated total:** $%s", strconv.FormatFloat(total, 'f', 2, 64))
	if unpriced > 0 {
		fmt.Fprintf(&b, " (%d line(s) without a catalog price)", unpriced)
	}
	b.WriteString("\n")
	return b.String()
}

func row(b *strings.Builder, k, v string) {
	fmt.Fprintf(b, "| %s | %s |\n", cell(k), cell(v))
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func money(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return "$" + strconv.FormatFloat(*v, 'f', 2, 64)
}
