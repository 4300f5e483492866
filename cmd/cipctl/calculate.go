package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/joelkehle/cip-designer/internal/apiclient"
	"github.com/joelkehle/cip-designer/internal/catalog"
	"github.com/joelkehle/cip-designer/internal/cip"
	"github.com/joelkehle/cip-designer/internal/report"
)

type calculateOptions struct {
	stages             int
	vesselsStage1      int
	vesselsStage2      int
	membranesPerVessel int
	perVesselFlowGPM   float64
	heater             bool
	mainsHz            int
	startTempC         float64
	targetTempC        float64
	headAssumptionFt   float64
	gpmPerCartridge    float64

	noPrice bool
	format  string
	remote  bool
	useLLM  bool
}

// optionalFields are sent only when set so the calculator applies its own
// defaults otherwise.
var optionalFields = map[string]string{
	"flow":              "perVesselFlowGPM",
	"start-temp":        "startTempC",
	"target-temp":       "targetTempC",
	"head":              "headAssumptionFt",
	"gpm-per-cartridge": "gpmPerCartridge",
}

func newCalculateCmd() *cobra.Command {
	opts := &calculateOptions{}
	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Size a CIP skid and print its bill of materials",
		Example: `  cipctl calculate --stage1 6 --stage2 4 --membranes 6 --heater
  cipctl calculate --stage1 8 --stage2 4 --membranes 7 --mains-hz 60 --format csv
  cipctl calculate --stage1 6 --stage2 4 --membranes 6 --remote --llm`,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := opts.payload(cmd.Flags())
			if opts.remote {
				res, err := apiclient.NewClient(getAPIURL()).CreateDesign(cmd.Context(), payload, opts.useLLM)
				if err != nil {
					return err
				}
				// The server accepted the payload, so it parses.
				req, _ := cip.ParseRequest(mustJSON(payload))
				return writeResult(cmd.OutOrStdout(), opts.format, req.Input(), res)
			}
			cat, err := catalog.Load(getCatalogPath())
			if err != nil {
				return err
			}
			in, res, err := calculateLocal(payload, cat, !opts.noPrice)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), opts.format, in, res)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.stages, "stages", 2, "number of RO stages (must be 2)")
	f.IntVar(&opts.vesselsStage1, "stage1", 0, "pressure vessels in stage 1")
	f.IntVar(&opts.vesselsStage2, "stage2", 0, "pressure vessels in stage 2")
	f.IntVar(&opts.membranesPerVessel, "membranes", 0, "membrane elements per vessel")
	f.Float64Var(&opts.perVesselFlowGPM, "flow", 40, "cleaning flow per vessel, gpm")
	f.BoolVar(&opts.heater, "heater", false, "include an electric heater")
	f.IntVar(&opts.mainsHz, "mains-hz", 50, "mains frequency, 50 or 60")
	f.Float64Var(&opts.startTempC, "start-temp", 20, "starting solution temperature, °C")
	f.Float64Var(&opts.targetTempC, "target-temp", 35, "target solution temperature, °C")
	f.Float64Var(&opts.headAssumptionFt, "head", 110, "pump head assumption, ft")
	f.Float64Var(&opts.gpmPerCartridge, "gpm-per-cartridge", 10, "rated flow per 30-inch cartridge, gpm")
	f.BoolVar(&opts.noPrice, "no-price", false, "skip catalog pricing")
	f.StringVarP(&opts.format, "format", "f", "table", "output format: table, json, csv or md")
	f.BoolVar(&opts.remote, "remote", false, "calculate on cip-api and store the run")
	f.BoolVar(&opts.useLLM, "llm", false, "ask cip-api to enhance BOM text (requires --remote)")
	_ = cmd.MarkFlagRequired("stage1")
	_ = cmd.MarkFlagRequired("stage2")
	_ = cmd.MarkFlagRequired("membranes")
	return cmd
}

func (o *calculateOptions) payload(flags *pflag.FlagSet) map[string]any {
	p := map[string]any{
		"stages":             o.stages,
		"vesselsStage1":      o.vesselsStage1,
		"vesselsStage2":      o.vesselsStage2,
		"membranesPerVessel": o.membranesPerVessel,
		"heater":             o.heater,
		"mainsHz":            o.mainsHz,
	}
	values := map[string]float64{
		"flow":              o.perVesselFlowGPM,
		"start-temp":        o.startTempC,
		"target-temp":       o.targetTempC,
		"head":              o.headAssumptionFt,
		"gpm-per-cartridge": o.gpmPerCartridge,
	}
	for flag, field := range optionalFields {
		if flags.Changed(flag) {
			p[field] = values[flag]
		}
	}
	return p
}

// calculateLocal runs the same validate, calculate and price path as the
// API without persisting anything.
func calculateLocal(payload map[string]any, cat *catalog.Catalog, price bool) (cip.DesignInput, cip.DesignResult, error) {
	req, err := cip.ParseRequest(mustJSON(payload))
	if err != nil {
		return cip.DesignInput{}, cip.DesignResult{}, err
	}
	if err := req.Validate(); err != nil {
		return cip.DesignInput{}, cip.DesignResult{}, err
	}
	in := req.Input()
	res := cip.Calculate(in)
	if price {
		res.Bom = cat.PriceBOM(res.Bom)
	}
	return in, res, nil
}

// mustJSON marshals flag-built payloads, which only hold numbers and bools.
func mustJSON(v map[string]any) []byte {
	blob, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return blob
}

func writeResult(w io.Writer, format string, in cip.DesignInput, res cip.DesignResult) error {
	switch strings.ToLower(format) {
	case "json":
		return writeJSON(w, res)
	case "csv":
		return report.CSV(w, res.Bom)
	case "md":
		_, err := io.WriteString(w, report.Markdown(report.Document{CreatedAt: time.Now(), Input: in, Result: res}))
		return err
	case "", "table":
		return writeTable(w, res)
	default:
		return fmt.Errorf("unknown format %q (want table, json, csv or md)", format)
	}
}

func writeTable(w io.Writer, res cip.DesignResult) error {
	s := res.Summary
	heater := "none"
	if s.HeaterKW != nil {
		heater = fmt.Sprintf("%d kW", *s.HeaterKW)
	}
	fmt.Fprintf(w, "Flow  F1 %.4g gpm  F2 %.4g gpm  Fmax %.4g gpm\n", s.F1, s.F2, s.Fmax)
	fmt.Fprintf(w, "Tank  %d gal   Heater  %s\n", s.TankGal, heater)
	fmt.Fprintf(w, "Pump  %s\n\n", s.Pump)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tQTY\tUNIT\tEXTENDED")
	for _, l := range res.Bom {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", l.Item, l.Qty, costText(l.UnitCost), costText(l.ExtendedCost))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	total, unpriced := res.TotalCost()
	fmt.Fprintf(w, "\nEstimated total: $%.2f", total)
	if unpriced > 0 {
		fmt.Fprintf(w, " (%d line(s) unpriced)", unpriced)
	}
	fmt.Fprintln(w)
	return nil
}

func costText(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *v)
}
