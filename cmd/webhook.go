package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/medremind/internal/config"
	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/model"
	"github.com/manav03panchal/medremind/internal/notify"
	"github.com/manav03panchal/medremind/internal/output"
	"github.com/manav03panchal/medremind/internal/validate"
)

// Webhook command flags.
var (
	webhookAddFlagType string
	webhookTestFlagAll bool
)

// webhookCmd represents the webhook command.
var webhookCmd = &cobra.Command{
	Use:     "webhook [command]",
	Aliases: []string{"wh", "hook"},
	Short:   "Configure notification webhooks",
	Long: `Configure webhooks that receive the user's reminders and medication events.

Examples:
  medremind webhook add phone https://discord.com/api/webhooks/...
  medremind webhook add team https://hooks.slack.com/services/...
  medremind webhook list
  medremind webhook test phone
  medremind webhook remove phone`,
	RunE: runWebhookList,
}

var webhookAddCmd = &cobra.Command{
	Use:   "add NAME URL",
	Short: "Add a webhook",
	Long: `Add a webhook. The type is detected from the URL unless --type is given:
  discord  discord.com/api/webhooks/...
  slack    hooks.slack.com/services/...
  generic  any other URL (JSON event body)`,
	Args: cobra.ExactArgs(2),
	RunE: runWebhookAdd,
}

var webhookListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List webhooks",
	RunE:    runWebhookList,
}

var webhookTestCmd = &cobra.Command{
	Use:   "test [NAME]",
	Short: "Send a test notification",
	RunE:  runWebhookTest,
}

var webhookRemoveCmd = &cobra.Command{
	Use:     "remove NAME",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove a webhook",
	Args:    cobra.ExactArgs(1),
	RunE:    runWebhookRemove,
}

func init() {
	webhookAddCmd.Flags().StringVarP(&webhookAddFlagType, "type", "t", "",
		"Webhook type: discord, slack, generic (detected from URL if empty)")
	webhookTestCmd.Flags().BoolVarP(&webhookTestFlagAll, "all", "a", false,
		"Test all enabled webhooks")

	webhookTestCmd.ValidArgsFunction = completeWebhookArgs
	webhookRemoveCmd.ValidArgsFunction = completeWebhookArgs

	webhookCmd.AddCommand(webhookAddCmd)
	webhookCmd.AddCommand(webhookListCmd)
	webhookCmd.AddCommand(webhookTestCmd)
	webhookCmd.AddCommand(webhookRemoveCmd)

	rootCmd.AddCommand(webhookCmd)
}

func runWebhookAdd(cmd *cobra.Command, args []string) error {
	userID, err := ctx.RequireUser()
	if err != nil {
		return err
	}
	name, webhookURL := args[0], args[1]

	if err := validate.WebhookName(name); err != nil {
		return err
	}
	if err := validate.URL(webhookURL); err != nil {
		return err
	}

	webhookType := webhookAddFlagType
	if webhookType == "" {
		webhookType = model.DetectWebhookType(webhookURL)
	}
	if !model.IsValidWebhookType(webhookType) {
		return errors.NewUserErrorWithField("type", webhookType, "invalid webhook type",
			"Use one of: discord, slack, generic.")
	}

	store := ctx.Store.Webhooks()
	if _, err := store.Get(cmd.Context(), userID, name); err == nil {
		return errors.NewUserErrorWithField("name", name,
			fmt.Sprintf("webhook %q already exists", name), "Remove it first or pick another name.")
	} else if !errors.Is(err, errors.ErrWebhookNotFound) {
		return err
	}

	wh := model.NewWebhook(userID, name, webhookType, webhookURL)
	if err := store.Create(cmd.Context(), wh); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]any{
			"name":       wh.Name,
			"type":       wh.Type,
			"url":        wh.MaskedURL(),
			"enabled":    wh.Enabled,
			"created_at": wh.CreatedAt,
		})
	}

	cli := ctx.CLIFormatter()
	cli.Success("Added webhook " + name)
	cli.Printf("  Type: %s\n", wh.Type)
	cli.Printf("  URL:  %s\n", wh.MaskedURL())
	cli.Muted("Test with: medremind webhook test " + name)
	return nil
}

func runWebhookList(cmd *cobra.Command, args []string) error {
	userID, err := ctx.RequireUser()
	if err != nil {
		return err
	}

	webhooks, err := ctx.Store.Webhooks().List(cmd.Context(), userID)
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		if webhooks == nil {
			webhooks = []*model.Webhook{}
		}
		return ctx.Formatter.JSON(map[string]any{"webhooks": webhooks, "count": len(webhooks)})
	}

	cli := ctx.CLIFormatter()
	if len(webhooks) == 0 {
		cli.Muted("No webhooks configured.")
		cli.Muted("Add one with: medremind webhook add <name> <url>")
		return nil
	}

	rows := make([]output.TableRow, 0, len(webhooks))
	for _, wh := range webhooks {
		status := "enabled"
		if !wh.Enabled {
			status = "disabled"
		}
		rows = append(rows, output.TableRow{Columns: []string{wh.Name, wh.Type, status, lastUsedColumn(wh)}})
	}
	cli.PrintTable([]string{"NAME", "TYPE", "STATUS", "LAST USED"}, rows)
	return nil
}

// lastUsedColumn renders the last delivery and its error on one table line.
// Errors can carry an endpoint's response body, so they are flattened and cut.
func lastUsedColumn(wh *model.Webhook) string {
	lastUsed := "never"
	if !wh.LastUsed.IsZero() {
		lastUsed = output.FormatTime(wh.LastUsed)
	}
	if wh.LastError != "" {
		msg := strings.Join(strings.Fields(validate.StripControlChars(wh.LastError)), " ")
		lastUsed += " (" + validate.TruncateString(msg, maxLastErrorWidth) + ")"
	}
	return lastUsed
}

const maxLastErrorWidth = 48

func runWebhookTest(cmd *cobra.Command, args []string) error {
	userID, err := ctx.RequireUser()
	if err != nil {
		return err
	}

	c, cancel := context.WithTimeout(cmd.Context(), config.Global.HTTP.Timeout+5*time.Second)
	defer cancel()

	// One attempt per webhook; the CLI has no retry queue.
	dispatcher := notify.NewWebhookDispatcherWith(ctx.Store.Webhooks(), notify.NewHTTPClient(), nil, nil)

	var names []string
	switch {
	case webhookTestFlagAll:
		webhooks, err := ctx.Store.Webhooks().ListEnabled(c, userID)
		if err != nil {
			return err
		}
		if len(webhooks) == 0 {
			return errors.NewUserError("no enabled webhooks to test", "Add one with 'medremind webhook add'.")
		}
		for _, wh := range webhooks {
			names = append(names, wh.Name)
		}
	case len(args) == 1:
		names = args
	default:
		return errors.NewUserError("webhook name required", "Pass a name or use --all.")
	}

	results := make([]notify.DispatchResult, 0, len(names))
	for _, name := range names {
		results = append(results, dispatcher.TestWebhook(c, userID, name))
	}

	if ctx.IsJSON() {
		out := make([]map[string]any, 0, len(results))
		for _, r := range results {
			out = append(out, map[string]any{
				"webhook":     r.WebhookName,
				"success":     r.Success,
				"status_code": r.StatusCode,
				"duration_ms": r.Duration.Milliseconds(),
				"error":       errorString(r.Error),
			})
		}
		return ctx.Formatter.JSON(map[string]any{"results": out})
	}

	cli := ctx.CLIFormatter()
	failed := 0
	for _, r := range results {
		if r.Success {
			cli.Success(fmt.Sprintf("%s: delivered in %dms", r.WebhookName, r.Duration.Milliseconds()))
			continue
		}
		failed++
		cli.Error(fmt.Sprintf("%s: %s", r.WebhookName, errorString(r.Error)))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d webhook tests failed", failed, len(results))
	}
	return nil
}

func runWebhookRemove(cmd *cobra.Command, args []string) error {
	userID, err := ctx.RequireUser()
	if err != nil {
		return err
	}
	name := args[0]

	if err := ctx.Store.Webhooks().Delete(cmd.Context(), userID, name); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]string{"status": "removed", "webhook": name})
	}
	ctx.CLIFormatter().Success("Removed webhook " + name)
	return nil
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
