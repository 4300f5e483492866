package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/cip-designer/internal/catalog"
	"github.com/joelkehle/cip-designer/internal/cip"
)

func baselineDoc() Document {
	in := cip.DesignInput{
		Stages: 2, VesselsStage1: 6, VesselsStage2: 4, MembranesPerVessel: 6,
		PerVesselFlowGPM: 40, Heater: true, MainsHz: 50,
		StartTempC: 20, TargetTempC: 35, HeadAssumptionFt: 110, GPMPerCartridge: 10,
	}
	res := cip.Calculate(in)
	res.Bom = catalog.Default().PriceBOM(res.Bom)
	return Document{
		ID:        "run-1",
		CreatedAt: time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC),
		Input:     in,
		Result:    res,
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"": FormatCSV, "CSV": FormatCSV, "md": FormatMarkdown, "markdown": FormatMarkdown,
		"html": FormatHTML, " pdf ": FormatPDF,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xlsx")
	assert.Error(t, err)

	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
	assert.Equal(t, "cip-design-run-1.md", baselineDoc().Filename(FormatMarkdown))
	assert.Equal(t, "cip-design.csv", Document{}.Filename(FormatCSV))
}

func TestCSV(t *testing.T) {
	doc := baselineDoc()
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, doc.Result.Bom))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(doc.Result.Bom)+1)
	assert.Equal(t, csvHeader, rows[0])

	var cartridges []string
	for _, r := range rows[1:] {
		if r[0] == "Filter Cartridges" {
			cartridges = r
		}
	}
	require.NotNil(t, cartridges)
	assert.Equal(t, "24", cartridges[1])
	assert.Equal(t, "38.25", cartridges[4])
	assert.Equal(t, "918.00", cartridges[5])
}

func TestCSVUnpricedAndQuoted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, []cip.BomLine{{Item: "Skid Frame", Qty: 1, Specification: `carbon steel, 4" channel`}}))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Skid Frame", "1", `carbon steel, 4" channel`, "", "", ""}, rows[1])
}

func TestMarkdown(t *testing.T) {
	out := Markdown(baselineDoc())
	assert.True(t, strings.HasPrefix(out, "# CIP Skid Design\n"))
	assert.Contains(t, out, "- Reference: `run-1`")
	assert.Contains(t, out, "| Design flow (Fmax) | 240 gpm |")
	assert.Contains(t, out, "| CIP tank | 400 gal |")
	assert.Contains(t, out, "| Heater | 37 kW |")
	assert.Contains(t, out, "| 5 | Filter Cartridges | 24 |")
	assert.Contains(t, out, "$918.00")
	assert.Contains(t, out, "**Estimated total:** $")
	assert.NotContains(t, out, "without a catalog price")
}

func TestMarkdownUnpricedAndEscaping(t *testing.T) {
	doc := Document{Result: cip.DesignResult{
		Summary: cip.DesignSummary{Pump: "a|b"},
		Bom:     []cip.BomLine{{Item: "Skid Frame", Qty: 1, Specification: "line one\nline two"}},
	}}
	out := Markdown(doc)
	assert.Contains(t, out, `| Pump | a\|b |`)
	assert.Contains(t, out, "| Heater | none |")
	assert.Contains(t, out, "line one line two")
	assert.Contains(t, out, "| n/a | n/a |")
	assert.Contains(t, out, "(1 line(s) without a catalog price)")
	assert.NotContains(t, out, "Reference:")
}

func TestHTML(t *testing.T) {
	out, err := HTML(baselineDoc())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "<!doctype html>"))
	assert.Contains(t, out, "<title>CIP Skid Design run-1</title>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>Filter Cartridges</td>")
	assert.Contains(t, out, `<h2 data-page-break-before="true">Bill of Materials</h2>`)
}

func TestApplyPrintLayoutHooksNoopWithoutBOM(t *testing.T) {
	in := "<h2>Summary</h2><p>x</p>"
	assert.Equal(t, in, applyPrintLayoutHooks(in))
}

func TestPDFRendererWithoutBrowser(t *testing.T) {
	r := &ChromiumPDFRenderer{}
	assert.False(t, r.Available())
	_, err := r.Render(context.Background(), "<html></html>")
	assert.ErrorIs(t, err, ErrNoBrowser)
}
