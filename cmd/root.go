// Package cmd provides the CLI commands for medremind.
//
// medremind - medication reminder scheduling and dispatch
// Copyright (c) Manav Panchal
//
// Licensed under the SEGV License, Version 1.0
// See LICENSE file for full license text.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/medremind/internal/config"
	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/logging"
	"github.com/manav03panchal/medremind/internal/output"
	"github.com/manav03panchal/medremind/internal/parser"
	"github.com/manav03panchal/medremind/internal/runtime"
)

// Version information (set at build time via ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Global flags.
var (
	flagFormat string
	flagColor  string
	flagDebug  bool
	flagUser   string
	flagConfig string
)

// EnvUser names the environment variable holding the default user id.
const EnvUser = config.EnvPrefix + "USER"

// skipStore marks commands that must not open the store, either because
// they need none or because a running daemon may hold its lock.
const skipStore = "skip-store"

// ctx is the shared runtime context. It is nil for skipStore commands.
var ctx *runtime.Context

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "medremind",
	Short: "Medication reminder scheduling and dispatch",
	Long: `medremind turns medication frequencies like "twice daily" into daily
reminders and delivers them on time to connected sessions and webhooks.

Examples:
  medremind medication add Amoxicillin --dosage 500mg --frequency "3 times a day"
  medremind medication list
  medremind reminder list
  medremind daemon start`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if ctx != nil {
			err := ctx.Close()
			ctx = nil
			return err
		}
		return nil
	},
}

// setup loads configuration, initialises logging and, unless the command
// opts out, opens the store.
func setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "completion" || cmd.Name() == "help" || cmd.Name() == "version" {
		return nil
	}

	if _, err := config.Load(flagConfig); err != nil {
		return err
	}

	if flagDebug {
		logging.InitDebug()
	} else {
		logging.Init(logging.Config{
			Level:  logging.ParseLevel(config.Global.Log.Level),
			Output: os.Stderr,
		})
	}

	if cmd.Annotations[skipStore] == "true" {
		return nil
	}

	opts := runtime.DefaultOptions()
	opts.Format = parseFormat(flagFormat)
	opts.ColorMode = parseColor(flagColor)
	opts.Debug = flagDebug
	opts.UserID = flagUser
	if opts.UserID == "" {
		opts.UserID = os.Getenv(EnvUser)
	}

	var err error
	ctx, err = runtime.New(opts)
	if err != nil {
		return err
	}
	ctx.Formatter.Writer = cmd.OutOrStdout()
	ctx.Debugf("storage backend: %s", opts.Backend)
	return nil
}

func parseFormat(s string) output.Format {
	switch s {
	case "json":
		return output.FormatJSON
	case "plain":
		return output.FormatPlain
	default:
		return output.FormatCLI
	}
}

func parseColor(s string) output.ColorMode {
	switch s {
	case "always":
		return output.ColorAlways
	case "never":
		return output.ColorNever
	default:
		return output.ColorAuto
	}
}

// Execute adds all child commands to the root command and runs it. Errors
// are printed here, as JSON when --format json is set.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(os.Stderr, err)
	}
	return err
}

func printError(w io.Writer, err error) {
	if parseFormat(flagFormat) == output.FormatJSON {
		f := output.NewFormatter()
		f.Writer = w
		output.NewJSONFormatter(f).PrintError(errors.GetCategory(err).String(), err.Error(), errors.GetSuggestion(err))
		return
	}

	var tpe *parser.TimeParseError
	switch {
	case flagDebug:
		fmt.Fprintln(w, "Error: "+errors.FormatDebugError(err))
		return
	case errors.As(err, &tpe):
		fmt.Fprintln(w, "Error: "+tpe.FormatWithExamples())
		return
	}

	fmt.Fprintln(w, "Error: "+errors.FormatByCategory(err))
	for _, ex := range errors.GetExamples(err) {
		fmt.Fprintln(w, "  "+ex)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "cli",
		"Output format: cli, json, plain")
	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "auto",
		"Color output: auto, always, never")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false,
		"Enable debug output")
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "",
		"User id to act for (default $"+EnvUser+")")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"YAML config file (default $"+config.EnvConfigPath+")")

	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("medremind %s\n", Version)
		cmd.Printf("  commit: %s\n", Commit)
		cmd.Printf("  built: %s\n", BuildTime)
	},
}
