package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const defaultAPIURL = "http://localhost:4000"

var (
	apiURL      string
	catalogPath string
)

func newRootCmd() *cobra.Command {
	apiURL, catalogPath = "", ""
	root := &cobra.Command{
		Use:   "cipctl",
		Short: "Size CIP skids and manage design history",
		Long: `cipctl sizes a two-stage RO clean-in-place skid and prices its bill of
materials. The calculate, catalog and validate commands work offline; the
history and export commands talk to a running cip-api.

Environment Variables:
  CIP_API_URL   cip-api base URL (default: http://localhost:4000)
  CATALOG_FILE  YAML catalog used by offline commands`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&apiURL, "api-url", "", "cip-api base URL (overrides CIP_API_URL)")
	root.PersistentFlags().StringVar(&catalogPath, "catalog", "", "YAML catalog file (overrides CATALOG_FILE)")
	root.AddCommand(
		newCalculateCmd(),
		newCatalogCmd(),
		newValidateCmd(),
		newHistoryCmd(),
		newExportCmd(),
	)
	return root
}

func getAPIURL() string {
	if apiURL != "" {
		return apiURL
	}
	if env := os.Getenv("CIP_API_URL"); env != "" {
		return env
	}
	return defaultAPIURL
}

func getCatalogPath() string {
	if catalogPath != "" {
		return catalogPath
	}
	return os.Getenv("CATALOG_FILE")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
