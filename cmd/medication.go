package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/medication"
	"github.com/manav03panchal/medremind/internal/model"
	"github.com/manav03panchal/medremind/internal/output"
	"github.com/manav03panchal/medremind/internal/parser"
)

// Medication command flags.
var (
	medFlagDosage       string
	medFlagFrequency    string
	medFlagInstructions string
	medFlagDuration     string
	medTakenFlagNotes   string
	medHistoryFlagFrom  string
	medHistoryFlagTo    string
)

// medicationCmd represents the medication command.
var medicationCmd = &cobra.Command{
	Use:     "medication [command]",
	Aliases: []string{"med", "meds", "m"},
	Short:   "Manage medications",
	Long: `Add, update and remove medications. Adding a medication or changing its
frequency creates the daily reminders the frequency implies.

Examples:
  medremind medication add Amoxicillin --dosage 500mg --frequency "3 times a day"
  medremind medication list
  medremind medication update amoxicillin --frequency "twice daily"
  medremind medication taken amoxicillin --notes "with breakfast"
  medremind medication remove amoxicillin`,
	RunE: runMedicationList,
}

var medicationAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a medication and create its reminders",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMedicationAdd,
}

var medicationListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List active medications",
	RunE:    runMedicationList,
}

var medicationShowCmd = &cobra.Command{
	Use:   "show MEDICATION",
	Short: "Show a medication and its reminder times",
	Args:  cobra.ExactArgs(1),
	RunE:  runMedicationShow,
}

var medicationUpdateCmd = &cobra.Command{
	Use:   "update MEDICATION",
	Short: "Update dosage, frequency, instructions or duration",
	Long: `Update a medication. MEDICATION is a name or an id prefix.

A new frequency adds the reminders it implies; existing reminders are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runMedicationUpdate,
}

var medicationRemoveCmd = &cobra.Command{
	Use:     "remove MEDICATION",
	Aliases: []string{"rm", "delete"},
	Short:   "Deactivate a medication and its reminders",
	Args:    cobra.ExactArgs(1),
	RunE:    runMedicationRemove,
}

var medicationTakenCmd = &cobra.Command{
	Use:   "taken MEDICATION",
	Short: "Record that a medication was taken",
	Args:  cobra.ExactArgs(1),
	RunE:  runMedicationTaken,
}

var medicationHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show taken medications",
	Long: `Show the medication log between two times.

Examples:
  medremind medication history
  medremind medication history --from "last week"
  medremind medication history --from "2024-03-01" --to "2024-03-08"`,
	Args: cobra.NoArgs,
	RunE: runMedicationHistory,
}

var medicationImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import extracted medication candidates from a JSON file",
	Long: `Import medications from a JSON file holding either an array of
candidates or an object with a "medications" array. Each candidate has
name, dosage, frequency, instructions, duration and an optional confidence.
Names that are already active are skipped. Use "-" to read stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runMedicationImport,
}

func init() {
	for _, c := range []*cobra.Command{medicationAddCmd, medicationUpdateCmd} {
		c.Flags().StringVarP(&medFlagDosage, "dosage", "d", "", "Dosage, e.g. 500mg")
		c.Flags().StringVarP(&medFlagFrequency, "frequency", "q", "", `Frequency, e.g. "twice daily"`)
		c.Flags().StringVarP(&medFlagInstructions, "instructions", "i", "", "Instructions, e.g. after food")
		c.Flags().StringVar(&medFlagDuration, "duration", "", "Course duration, e.g. 7 days")
	}
	medicationTakenCmd.Flags().StringVarP(&medTakenFlagNotes, "notes", "n", "", "Optional note")
	medicationHistoryCmd.Flags().StringVar(&medHistoryFlagFrom, "from", "today", "Start of the range")
	medicationHistoryCmd.Flags().StringVar(&medHistoryFlagTo, "to", "now", "End of the range")

	for _, c := range []*cobra.Command{medicationShowCmd, medicationUpdateCmd, medicationRemoveCmd, medicationTakenCmd} {
		c.ValidArgsFunction = completeMedicationArgs
	}

	medicationCmd.AddCommand(medicationAddCmd)
	medicationCmd.AddCommand(medicationListCmd)
	medicationCmd.AddCommand(medicationShowCmd)
	medicationCmd.AddCommand(medicationUpdateCmd)
	medicationCmd.AddCommand(medicationRemoveCmd)
	medicationCmd.AddCommand(medicationTakenCmd)
	medicationCmd.AddCommand(medicationHistoryCmd)
	medicationCmd.AddCommand(medicationImportCmd)

	rootCmd.AddCommand(medicationCmd)
}

// resolveMedication finds an active medication of the user by exact id,
// case-insensitive name or unique id prefix.
func resolveMedication(cmd *cobra.Command, userID, ref string) (*model.Medication, error) {
	meds, err := ctx.Medications.List(cmd.Context(), userID)
	if err != nil {
		return nil, err
	}

	var byPrefix []*model.Medication
	for _, m := range meds {
		if m.ID == ref || strings.EqualFold(m.Name, ref) {
			return m, nil
		}
		if len(ref) >= 4 && strings.HasPrefix(m.ID, ref) {
			byPrefix = append(byPrefix, m)
		}
	}
	if len(byPrefix) == 1 {
		return byPrefix[0], nil
	}
	if len(byPrefix) > 1 {
		return nil, errors.NewUserErrorWithField("medication", ref,
			fmt.Sprintf("id prefix %q matches %d medications", ref, len(byPrefix)),
			"Use more characters of the id.")
	}
	return nil, errors.NotFound(errors.ErrMedicationNotFound, ref)
}

func runMedicationAdd(cmd *cobra.Command, args []string) error {
	userID, err := ctx.RequireUser()
	if err != nil {
		return err
	}

	med, reminders, err := ctx.Medications.Create(cmd.Context(), userID, medication.CreateInput{
		Name:         strings.Join(args, " "),
		Dosage:       medFlagDosage,
		Frequency:    medFlagFrequency,
		Instructions: medFlagInstructions,
		Duration:     medFlagDuration,
	})
	if med == nil {
		return err
	}
	if err != nil {
		// Stored, but reminders will only appear after the daemon's backfill.
		ctx.Debugf("reconcile after create failed: %v", err)
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(output.NewMedicationOutput(med, reminders))
	}

	cli := ctx.CLIFormatter()
	cli.Success("Added " + med.Name)
	cli.PrintMedication(med, reminders)
	switch {
	case err != nil:
		cli.Warning("Reminders are incomplete; the daemon adds the rest on its next start.")
	case len(reminders) == 0:
		cli.Muted("No reminder times for this frequency.")
	}
	return nil
}

func runMedicationList(cmd *cobra.Command, args []string) error {
	userID, err := ctx.RequireUser()
	if err != nil {
		return err
	}

	meds, err := ctx.Medications.List(cmd.Context(), userID)
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintMedications(meds)
	}
	ctx.CLIFormatter().PrintMedications(meds)
	return nil
}

func runMedicationShow(cmd *cobra.Command, args []string) error {
	userID, err := ctx.RequireUser()
	if err != nil {
		return err
	}
	med, err := resolveMedication(cmd, userID, args[0])
	if err != nil {
		return err
	}

	reminders, err := ctx.Store.Reminders().ListByMedication(cmd.Context(), med.ID)
	if err != nil {
		return err
	}
	active := reminders[:0]
	for _, r := range reminders {
		if r.Active {
			active = append(active, r)
		}
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(output.NewMedicationOutput(med, active))
	}
	ctx.CLIFormatter().PrintMedication(med, active)
	return nil
}

func runMedicationUpdate(cmd *cobra.Command, args []string) error {
	userID, err := ctx.RequireUser()
	if err != nil {
		return err
	}
	med, err := resolveMedication(cmd, userID, args[0])
	if err != nil {
		return err
	}

	var in medication.UpdateInput
	flags := cmd.Flags()
	if flags.Changed("dosage") {
		in.Dosage = &medFlagDosage
	}
	if flags.Changed("frequency") {
		in.Frequency = &medFlagFrequency
	}
	if flags.Changed("instructions") {
		in.Instructions = &medFlagInstructions
	}
	if flags.Changed("duration") {
		in.Duration = &medFlagDuration
	}
	if in == (medication.UpdateInput{}) {
		return errors.NewUserError("nothing to update",
			"Pass at least one of --dosage, --frequency, --instructions or --duration.")
	}

	updated, err := ctx.Medications.Update(cmd.Context(), userID, med.ID, in)
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(updated)
	}
	cli := ctx.CLIFormatter()
	cli.Success("Updated " + updated.Name)
	cli.PrintMedication(updated, nil)
	return nil
}

func runMedicationRemove(cmd *cobra.Command, args []string) error {
	userID, err := ctx.RequireUser()
	if err != nil {
		return err
	}
	med, err := resolveMedication(cmd, userID, args[0])
	if err != nil {
		return err
	}

	if _, err := ctx.Medications.Deactivate(cmd.Context(), userID, med.ID); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]string{
			"status":        "removed",
			"medication_id": med.ID,
		})
	}
	ctx.CLIFormatter().Success("Removed " + med.Name + " and its reminders")
	return nil
}

func runMedicationTaken(cmd *cobra.Command, args []string) error {
	userID, err := ctx.RequireUser()
	if err != nil {
		return err
	}
	med, err := resolveMedication(cmd, userID, args[0])
	if err != nil {
		return err
	}

	entry, err := ctx.Medications.MarkTaken(cmd.Context(), userID, med.ID, medTakenFlagNotes)
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(entry)
	}
	ctx.CLIFormatter().Success(fmt.Sprintf("Logged %s at %s", med.Name, output.FormatTimeOnly(entry.TakenAt)))
	return nil
}

func runMedicationHistory(cmd *cobra.Command, args []string) error {
	userID, err := ctx.RequireUser()
	if err != nil {
		return err
	}

	from, err := parseTime(medHistoryFlagFrom)
	if err != nil {
		return err
	}
	to, err := parseTime(medHistoryFlagTo)
	if err != nil {
		return err
	}
	if medHistoryFlagTo == "now" {
		// Include entries logged within the current second.
		to = to.Add(time.Second)
	}

	logs, err := ctx.Medications.History(cmd.Context(), userID, from, to)
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		if logs == nil {
			logs = []*model.MedicationLog{}
		}
		return ctx.Formatter.JSON(map[string]any{"logs": logs, "count": len(logs)})
	}

	cli := ctx.CLIFormatter()
	if len(logs) == 0 {
		cli.Muted("Nothing logged in this range.")
		return nil
	}

	names := make(map[string]string)
	rows := make([]output.TableRow, 0, len(logs))
	for _, l := range logs {
		name, ok := names[l.MedicationID]
		if !ok {
			name = "Unknown"
			if med, err := ctx.Store.Medications().Get(cmd.Context(), l.MedicationID); err == nil {
				name = med.Name
			}
			names[l.MedicationID] = name
		}
		rows = append(rows, output.TableRow{Columns: []string{output.FormatTime(l.TakenAt), name, l.Notes}})
	}
	cli.PrintTable([]string{"TAKEN", "MEDICATION", "NOTES"}, rows)
	return nil
}

// parseTime parses a natural language timestamp relative to now.
func parseTime(s string) (time.Time, error) {
	res := parser.ParseTimestamp(s)
	if res.Error != nil {
		var tpe *parser.TimeParseError
		if errors.As(res.Error, &tpe) {
			return time.Time{}, tpe.ToUserError()
		}
		return time.Time{}, errors.Invalid(errors.ErrInvalidTimestamp, "time", s)
	}
	return res.Time, nil
}

// importFile is the object form of an import file.
type importFile struct {
	Medications []medication.CreateInput `json:"medications"`
}

func readCandidates(path string) ([]medication.CreateInput, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []medication.CreateInput
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return list, nil
	}

	var f importFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return f.Medications, nil
}

func runMedicationImport(cmd *cobra.Command, args []string) error {
	userID, err := ctx.RequireUser()
	if err != nil {
		return err
	}

	candidates, err := readCandidates(args[0])
	if err != nil {
		return err
	}

	result, err := ctx.Medications.Import(cmd.Context(), userID, candidates)
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(result)
	}

	cli := ctx.CLIFormatter()
	cli.Success(fmt.Sprintf("Imported %d of %d medications", len(result.Added), result.Found))
	for _, med := range result.Added {
		cli.Printf("  + %s %s\n", cli.MedicationName(med.Name), med.Dosage)
	}
	if len(result.Skipped) > 0 {
		cli.Muted("Skipped (already active): " + strings.Join(result.Skipped, ", "))
	}
	return nil
}
