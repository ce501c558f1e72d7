package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wstszx/LicStats/internal/license"
	"github.com/wstszx/LicStats/internal/lmstat"
	"github.com/wstszx/LicStats/internal/stats"
)

var parseOutput string

var parseCmd = &cobra.Command{
	Use:   "parse [flags] FILE",
	Short: "Parse a license status dump",
	Long:  `Parse a saved lmstat dump and print its features, modules and users.`,
	Example: `  licstats parse logs/20241014_094500.txt
  licstats parse --output yaml dump.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVarP(&parseOutput, "output", "o", "table", "Output format: table, json or yaml")
	rootCmd.AddCommand(parseCmd)
}

// parseReport is everything derived from a single dump.
type parseReport struct {
	File     string              `json:"file"`
	Features []license.Feature   `json:"licenses"`
	Modules  stats.ModuleReport  `json:"modules"`
	Users    []stats.UserSummary `json:"users"`
}

func runParse(cmd *cobra.Command, args []string) error {
	raw, err := afero.ReadFile(afero.NewOsFs(), args[0])
	if err != nil {
		return fmt.Errorf("failed to read dump: %w", err)
	}

	features := lmstat.Parse(string(raw))
	report := parseReport{
		File:     args[0],
		Features: features,
		Modules:  stats.ModuleStatistics(features),
		Users:    stats.UserStatistics(features),
	}

	return writeReport(cmd.OutOrStdout(), parseOutput, report)
}

func writeReport(w io.Writer, format string, report parseReport) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml", "yml":
		return writeYAML(w, report)
	case "table", "":
		printTable(w, report)
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// writeYAML emits v with the same keys as its JSON form.
func writeYAML(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(generic)
}

func printTable(w io.Writer, report parseReport) {
	cyan := color.New(color.FgCyan, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)

	_, _ = cyan.Fprintf(w, "\n%s: %d features, %d users\n\n", report.File, len(report.Features), len(report.Users))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FEATURE\tTOTAL\tIN USE\tAVAILABLE\tUSAGE")
	for _, f := range report.Features {
		rate := stats.UsageRate(f.InUse, f.TotalLicenses)
		c := green
		switch {
		case rate >= 100:
			c = red
		case rate >= 75:
			c = yellow
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", f.Name, f.TotalLicenses, f.InUse, f.Available, c.Sprintf("%.2f%%", rate))
	}
	_ = tw.Flush()

	if len(report.Users) == 0 {
		return
	}

	_, _ = cyan.Fprintln(w, "\nUsers")
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tLICENSES\tHOSTS\tFIRST SEEN")
	for _, u := range report.Users {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", u.Username, u.TotalLicenses, strings.Join(u.Hosts, ","), u.FirstSeen)
	}
	_ = tw.Flush()
}
