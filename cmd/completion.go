// Package cmd provides the CLI commands for medremind.
//
// medremind - medication reminder scheduling and dispatch
// Copyright (c) Manav Panchal
//
// Licensed under the SEGV License, Version 1.0
// See LICENSE file for full license text.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/medremind/internal/config"
	"github.com/manav03panchal/medremind/internal/runtime"
)

// completionCmd represents the completion command.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for medremind.

Bash:
  $ source <(medremind completion bash)

Zsh:
  $ medremind completion zsh > "${fpath[1]}/_medremind"

Fish:
  $ medremind completion fish > ~/.config/fish/completions/medremind.fish

PowerShell:
  PS> medremind completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// completeMedicationArgs completes the first argument with the user's
// active medication names.
func completeMedicationArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	rc, done := completionContext()
	defer done()
	if len(args) != 0 || rc == nil || rc.UserID == "" {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	meds, err := rc.Medications.List(cmd.Context(), rc.UserID)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	names := make([]string, 0, len(meds))
	for _, m := range meds {
		names = append(names, m.Name+"\t"+m.Dosage)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// completeWebhookArgs completes the first argument with the user's webhook names.
func completeWebhookArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	rc, done := completionContext()
	defer done()
	if len(args) != 0 || rc == nil || rc.UserID == "" {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	webhooks, err := rc.Store.Webhooks().List(cmd.Context(), rc.UserID)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	names := make([]string, 0, len(webhooks))
	for _, wh := range webhooks {
		names = append(names, wh.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// completionContext opens a runtime context for dynamic completion, which
// runs without the persistent pre-run hook. It returns nil when the store
// cannot be opened, for example while the daemon holds it.
func completionContext() (*runtime.Context, func()) {
	if ctx != nil {
		return ctx, func() {}
	}
	if _, err := config.Load(flagConfig); err != nil {
		return nil, func() {}
	}

	opts := runtime.DefaultOptions()
	opts.UserID = flagUser
	if opts.UserID == "" {
		opts.UserID = os.Getenv(EnvUser)
	}
	rc, err := runtime.New(opts)
	if err != nil {
		return nil, func() {}
	}
	return rc, func() { rc.Close() }
}
