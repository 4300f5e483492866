package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joelkehle/cip-designer/internal/apiclient"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and prune stored design runs on cip-api",
	}

	var limit int
	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent design runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := apiclient.NewClient(getAPIURL()).ListDesigns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tVESSELS\tFMAX\tTOTAL")
			for _, r := range runs {
				total, _ := r.Output.TotalCost()
				fmt.Fprintf(tw, "%s\t%s\t%d+%d\t%.4g\t$%.2f\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime),
					r.Input.VesselsStage1, r.Input.VesselsStage2, r.Output.Summary.Fmax, total)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 25, "maximum runs to list")
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := apiclient.NewClient(getAPIURL()).GetDesign(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), run)
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiclient.NewClient(getAPIURL()).DeleteDesign(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete all runs without --yes")
			}
			n, err := apiclient.NewClient(getAPIURL()).DeleteAllDesigns(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d run(s)\n", n)
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all runs")

	cmd.AddCommand(list, get, del, clearCmd)
	return cmd
}

func newExportCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Download a stored run as csv, md, html or pdf",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, name, err := apiclient.NewClient(getAPIURL()).Export(cmd.Context(), args[0], format)
			if err != nil {
				return err
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(blob)
				return err
			}
			if out == "" {
				out = name
			}
			if err := os.WriteFile(out, blob, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(blob))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "csv, md, html or pdf")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file, - for stdout (default: server filename)")
	return cmd
}
