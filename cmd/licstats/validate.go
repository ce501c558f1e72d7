package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wstszx/LicStats/internal/config"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the LicStats configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with --dump)
	var unknownKeys []string
	if _, statErr := os.Stat(configPath); statErr == nil {
		unknownKeys, err = config.UnknownKeys(configPath)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
		}
	} else {
		_, _ = fmt.Fprintf(os.Stdout, "ℹ️  %s not found, using defaults and environment\n", configPath)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "✅ Configuration is valid: %s\n", configPath)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(out)
		_, _ = red.Fprintf(out, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(out, "   - %s\n", key)
		}
		fmt.Fprintln(out, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	// If dump requested, show full configuration with defaults highlighted
	if validateDump {
		_, _ = fmt.Fprintln(out, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(out, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(out, strings.Repeat("=", 80))

		if err := dumpConfig(out, cfg, config.Defaults()); err != nil {
			return err
		}

		_, _ = fmt.Fprintln(out, "\n"+strings.Repeat("=", 80))
	}

	return nil
}

// dumpConfig prints every setting, grouped by section, highlighting the
// values that differ from the defaults.
func dumpConfig(w io.Writer, cfg, defaultCfg *config.Config) error {
	current, err := flatten(redacted(*cfg))
	if err != nil {
		return err
	}
	defaults, err := flatten(redacted(*defaultCfg))
	if err != nil {
		return err
	}

	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	keys := make([]string, 0, len(current))
	for key := range current {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	section := ""
	for _, key := range keys {
		dot := strings.LastIndex(key, ".")
		if s := key[:dot]; s != section {
			section = s
			_, _ = cyan.Fprintf(w, "\n[%s]\n", section)
		}

		value := current[key]
		line := fmt.Sprintf("  %s = %v", key[dot+1:], value)
		if reflect.DeepEqual(value, defaults[key]) {
			_, _ = green.Fprintln(w, line)
		} else {
			_, _ = yellow.Fprintf(w, "%s (default: %v)\n", line, defaults[key])
		}
	}
	return nil
}

func redacted(cfg config.Config) config.Config {
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "********"
	}
	return cfg
}

// flatten maps dotted setting names to values using the yaml keys.
func flatten(cfg config.Config) (map[string]interface{}, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	out := make(map[string]interface{})
	var walk func(prefix string, node map[string]interface{})
	walk = func(prefix string, node map[string]interface{}) {
		for key, value := range node {
			if child, ok := value.(map[string]interface{}); ok {
				walk(prefix+key+".", child)
				continue
			}
			out[prefix+key] = value
		}
	}
	walk("", tree)
	return out, nil
}
