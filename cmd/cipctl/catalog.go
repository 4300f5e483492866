package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joelkehle/cip-designer/internal/assistant"
	"github.com/joelkehle/cip-designer/internal/catalog"
	"github.com/joelkehle/cip-designer/internal/cip"
)

func newCatalogCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the pricing catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(getCatalogPath())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), cat.Entries())
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tITEM\tUNIT COST\tUNIT\tSPEC")
			for _, e := range cat.Entries() {
				fmt.Fprintf(tw, "%s\t%s\t$%.2f\t%s\t%s\n", e.Key, e.Item, e.UnitCost, e.Unit, e.Spec)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var p assistant.Parameters
	var systemType string
	cmd := &cobra.Command{
		Use:     "validate",
		Short:   "Check design parameters against cleaning rules of thumb",
		Example: `  cipctl validate --flow 25 --stage1 6 --stage2 4`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			warnings := assistant.ValidateParameters(p, systemType)
			if len(warnings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no warnings")
				return nil
			}
			for _, w := range warnings {
				fmt.Fprintln(cmd.OutOrStdout(), "warning:", w)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64Var(&p.PerVesselFlowGPM, "flow", 0, "cleaning flow per vessel, gpm")
	f.Float64Var(&p.TargetTempC, "target-temp", 0, "target temperature, °C")
	f.Float64Var(&p.VesselsStage1, "stage1", 0, "vessels in stage 1")
	f.Float64Var(&p.VesselsStage2, "stage2", 0, "vessels in stage 2")
	f.StringVar(&systemType, "system-type", cip.SystemType, "system type")
	return cmd
}
