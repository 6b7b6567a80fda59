package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/loomshell/loom/internal/config"
	"github.com/loomshell/loom/internal/plugin"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Config  string
	Plugins string
}

// ValidateResult holds the validation outcome.
type ValidateResult struct {
	ConfigPath   string   `json:"config_path,omitempty"`
	ConfigValid  bool     `json:"config_valid"`
	ConfigErrors []string `json:"config_errors,omitempty"`
	Plugins      []string `json:"plugins,omitempty"`
	PluginErrors []string `json:"plugin_errors,omitempty"`
}

// Valid reports whether everything checked out.
func (r ValidateResult) Valid() bool {
	return r.ConfigValid && len(r.PluginErrors) == 0
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate config and plugin manifests",
		Long: `Validate a config file and/or a plugin manifest directory.

Config files are checked against the kernel's CUE schema; plugin
manifests are schema-checked and their dependency order resolved, so
missing requirements and cycles surface before a run.

Exit codes:
  0 - Everything valid
  1 - Validation failures found
  2 - Command error (file not found, etc.)

Examples:
  loom validate --config ./loom.yaml
  loom validate --config ./loom.yaml --plugins ./plugins --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.Plugins, "plugins", "", "plugin manifest directory")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	if opts.Config == "" && opts.Plugins == "" {
		return NewExitError(ExitCommandError, "nothing to validate: pass --config and/or --plugins")
	}

	result := ValidateResult{ConfigPath: opts.Config, ConfigValid: true}

	if opts.Config != "" {
		if _, err := config.Load(opts.Config); err != nil {
			result.ConfigValid = false
			result.ConfigErrors = append(result.ConfigErrors, err.Error())
		}
	}

	if opts.Plugins != "" {
		manifests, failures := plugin.ScanDir(opts.Plugins)
		ordered, resolveFailures := plugin.Resolve(manifests)
		failures = append(failures, resolveFailures...)

		for _, m := range ordered {
			result.Plugins = append(result.Plugins, m.Name)
		}
		for _, f := range failures {
			result.PluginErrors = append(result.PluginErrors, f.Error())
		}
		sort.Strings(result.PluginErrors)
	}

	if opts.Format == "json" {
		if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		printValidateText(cmd, result)
	}

	if !result.Valid() {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

func printValidateText(cmd *cobra.Command, r ValidateResult) {
	out := cmd.OutOrStdout()
	if r.ConfigPath != "" {
		if r.ConfigValid {
			fmt.Fprintf(out, "Config %s: OK\n", r.ConfigPath)
		} else {
			fmt.Fprintf(out, "Config %s: INVALID\n", r.ConfigPath)
			for _, e := range r.ConfigErrors {
				fmt.Fprintf(out, "  %s\n", e)
			}
		}
	}
	if len(r.Plugins) > 0 {
		fmt.Fprintf(out, "Plugins (activation order): %v\n", r.Plugins)
	}
	for _, e := range r.PluginErrors {
		fmt.Fprintf(out, "  plugin error: %s\n", e)
	}
}
