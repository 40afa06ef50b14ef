package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-interview-coach/internal/usecase"
)

func newExtractReportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "extract-report [file|-]",
		Short: "Parse a free-text evaluation into a structured report",
		Long: "Reads an evaluation reply (a file, or stdin when the argument is '-' or missing) " +
			"and prints the extracted report. The source field says whether the content was " +
			"parsed, replaced by the fallback report, or replaced by the sample report.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			raw, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			report := usecase.ExtractReport(raw)
			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			case "text":
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\n\nsource: %s\n", usecase.FormatReport(report), report.Source)
				return err
			default:
				return fmt.Errorf("unknown --format %q (want json or text)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or text")
	return cmd
}
