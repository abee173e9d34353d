package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/grantscan/internal/profile"
	"github.com/hyperengineering/grantscan/internal/validation"
	"github.com/hyperengineering/grantscan/internal/wizard"
)

var fieldsStep int

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Work through the questionnaire",
	Long:  "Show, answer and navigate the questionnaire. Answers are saved after every change.",
}

var wizardShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current step and the answers so far",
	Args:  cobra.NoArgs,
	RunE:  runWizardShow,
}

var wizardFieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the questions, optionally for one step",
	Args:  cobra.NoArgs,
	RunE:  runWizardFields,
}

var wizardSetCmd = &cobra.Command{
	Use:   "set <field> <value> [<field> <value>...]",
	Short: "Answer one or more questions",
	Long: "Answer questions by name. Booleans accept yes/no, lists are comma separated. " +
		"Changing an answer clears follow-up answers it no longer applies to.",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 || len(args)%2 != 0 {
			return fmt.Errorf("expected field and value pairs, got %d argument(s)", len(args))
		}
		return nil
	},
	RunE: runWizardSet,
}

var wizardUnsetCmd = &cobra.Command{
	Use:   "unset <field>...",
	Short: "Mark questions as unanswered",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWizardUnset,
}

var wizardNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Move to the next step",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return navigate(cmd, func(a *app) (wizard.State, error) {
			return a.wizard.Advance(cmd.Context()), nil
		})
	},
}

var wizardBackCmd = &cobra.Command{
	Use:   "back",
	Short: "Move to the previous step",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return navigate(cmd, func(a *app) (wizard.State, error) {
			return a.wizard.Retreat(cmd.Context()), nil
		})
	},
}

var wizardJumpCmd = &cobra.Command{
	Use:   "jump <step>",
	Short: "Move directly to a step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("step must be a number, got %q", args[0])
		}
		return navigate(cmd, func(a *app) (wizard.State, error) {
			return a.wizard.JumpTo(cmd.Context(), n)
		})
	},
}

var wizardResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear every answer and return to step 1",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return navigate(cmd, func(a *app) (wizard.State, error) {
			return a.wizard.Reset(cmd.Context()), nil
		})
	},
}

func init() {
	wizardFieldsCmd.Flags().IntVar(&fieldsStep, "step", 0, "Only list the questions of this step")

	wizardCmd.AddCommand(wizardShowCmd)
	wizardCmd.AddCommand(wizardFieldsCmd)
	wizardCmd.AddCommand(wizardSetCmd)
	wizardCmd.AddCommand(wizardUnsetCmd)
	wizardCmd.AddCommand(wizardNextCmd)
	wizardCmd.AddCommand(wizardBackCmd)
	wizardCmd.AddCommand(wizardJumpCmd)
	wizardCmd.AddCommand(wizardResetCmd)
}

func runWizardShow(cmd *cobra.Command, args []string) error {
	a, err := cliApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	return printState(cmd, a.wizard.Snapshot())
}

func runWizardFields(cmd *cobra.Command, args []string) error {
	fields := profile.Fields()
	if fieldsStep != 0 {
		if fieldsStep < 1 || fieldsStep > wizard.TotalSteps {
			return fmt.Errorf("%w: %d not in [1, %d]", wizard.ErrStepOutOfRange, fieldsStep, wizard.TotalSteps)
		}
		fields = profile.StepFields(fieldsStep)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		items := make([]map[string]any, len(fields))
		for i, f := range fields {
			items[i] = map[string]any{
				"name":   f.Name,
				"step":   f.Step,
				"kind":   f.Kind.String(),
				"values": f.Values,
			}
		}
		return printJSON(out, map[string]any{"fields": items})
	}

	w := newTabWriter(out)
	fmt.Fprintln(w, "STEP\tFIELD\tTYPE\tVALUES")
	for _, f := range fields {
		values := "-"
		if len(f.Values) > 0 {
			values = strings.Join(f.Values, "|")
		}
		if b, ok := validation.BoundsFor(f.Name); ok {
			values = fmt.Sprintf("%d-%d", b.Min, b.Max)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", f.Step, f.Name, f.Kind, values)
	}
	return w.Flush()
}

func runWizardSet(cmd *cobra.Command, args []string) error {
	var patch profile.Patch
	for i := 0; i < len(args); i += 2 {
		p, err := profile.Assign(args[i], args[i+1])
		if err != nil {
			return err
		}
		patch = patch.Merge(p)
	}
	return applyPatch(cmd, patch)
}

func runWizardUnset(cmd *cobra.Command, args []string) error {
	for _, name := range args {
		if _, ok := profile.Lookup(name); !ok {
			return fmt.Errorf("%w: %q", profile.ErrUnknownField, name)
		}
	}
	return applyPatch(cmd, profile.Patch{Clear: args})
}

// applyPatch validates patch, extends it with the dependent answers it
// invalidates and applies it as one update.
func applyPatch(cmd *cobra.Command, patch profile.Patch) error {
	if errs := validation.ValidatePatch(patch); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("invalid answers: %s", strings.Join(msgs, "; "))
	}

	a, err := cliApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	state, change := a.wizard.Reconcile(cmd.Context(), patch)

	if !jsonOutput {
		for _, name := range change.Cleared {
			fmt.Fprintf(cmd.ErrOrStderr(), "Cleared %s (no longer applies)\n", name)
		}
	}
	return printState(cmd, state)
}

func navigate(cmd *cobra.Command, fn func(a *app) (wizard.State, error)) error {
	a, err := cliApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	state, err := fn(a)
	if err != nil {
		return err
	}
	return printState(cmd, state)
}

func printState(cmd *cobra.Command, s wizard.State) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{
			"current_step": s.CurrentStep,
			"total_steps":  s.TotalSteps,
			"step_title":   wizard.StepTitle(s.CurrentStep),
			"progress":     s.Progress(),
			"profile":      s.Profile,
		})
	}

	fmt.Fprintf(out, "Step %d of %d: %s (%.0f%%)\n", s.CurrentStep, s.TotalSteps,
		wizard.StepTitle(s.CurrentStep), s.Progress())

	answered := s.Profile.Answered()
	if len(answered) == 0 {
		fmt.Fprintln(out, "No answers yet.")
		return nil
	}

	w := newTabWriter(out)
	fmt.Fprintln(w, "STEP\tFIELD\tANSWER")
	for _, name := range answered {
		f, _ := profile.Lookup(name)
		v, _ := s.Profile.Value(name)
		fmt.Fprintf(w, "%d\t%s\t%s\n", f.Step, name, formatAnswer(v))
	}
	return w.Flush()
}
